package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowdial/roundtable/internal/handler/events"
	"github.com/flowdial/roundtable/internal/handler/persona"
	"github.com/flowdial/roundtable/internal/handler/query"
	"github.com/flowdial/roundtable/internal/handler/session"
	"github.com/flowdial/roundtable/internal/handler/stream"
	middlewarePkg "github.com/flowdial/roundtable/internal/middleware"
	personaModel "github.com/flowdial/roundtable/internal/model/persona"
	aiService "github.com/flowdial/roundtable/internal/service/ai"
	chatService "github.com/flowdial/roundtable/internal/service/chat"
	"github.com/flowdial/roundtable/internal/service/orchestrator"
	"github.com/flowdial/roundtable/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, orch *orchestrator.Service, chatSvc *chatService.Service, aiSvc *aiService.Service, eventsHandler *events.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(personas)
	sessionHandler := session.New(orch, chatSvc)
	queryHandler := query.New(orch)

	// Stream handler only when a chat model is configured.
	var streamHandler *stream.Handler
	if aiSvc != nil {
		streamHandler = stream.New(orch, aiSvc, chatSvc, personas)
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
		queryHandler.RegisterRoutes(api)

		if eventsHandler != nil {
			eventsHandler.RegisterRoutes(api)
		}

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
			}
		})
	})

	return r
}
