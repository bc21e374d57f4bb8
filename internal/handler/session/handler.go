package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/flowdial/roundtable/internal/service/chat"
	"github.com/flowdial/roundtable/internal/service/orchestrator"
	"github.com/flowdial/roundtable/pkg/utils"
)

// Handler exposes the session lifecycle: start, transcript, end.
type Handler struct {
	orch    *orchestrator.Service
	chatSvc *chatservice.Service
}

// New creates a session handler.
func New(orch *orchestrator.Service, chatSvc *chatservice.Service) *Handler {
	return &Handler{orch: orch, chatSvc: chatSvc}
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleStartSession)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Delete("/session/{sessionID}", h.handleEndSession)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.orch.StartSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.orch.EndSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}
