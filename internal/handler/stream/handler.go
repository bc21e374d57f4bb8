package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/flowdial/roundtable/internal/model/chat"
	"github.com/flowdial/roundtable/internal/model/persona"
	aiservice "github.com/flowdial/roundtable/internal/service/ai"
	chatservice "github.com/flowdial/roundtable/internal/service/chat"
	"github.com/flowdial/roundtable/internal/service/orchestrator"
	"github.com/flowdial/roundtable/pkg/utils"
)

// Handler streams persona replies over Server-Sent Events. Each request is
// one finalized user utterance; the orchestrator decides the speaking persona
// before any tokens flow.
type Handler struct {
	orch     *orchestrator.Service
	aiSvc    *aiservice.Service
	chatSvc  *chatservice.Service
	personas persona.Store
}

// New creates a stream handler.
func New(orch *orchestrator.Service, aiSvc *aiservice.Service, chatSvc *chatservice.Service, personas persona.Store) *Handler {
	return &Handler{orch: orch, aiSvc: aiSvc, chatSvc: chatSvc, personas: personas}
}

// StreamFrame is one streamed response chunk.
type StreamFrame struct {
	Event     string   `json:"event"`
	Content   string   `json:"content,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	Persona   string   `json:"persona,omitempty"`
	Context   []string `json:"context,omitempty"`
	Finished  bool     `json:"finished,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// HandleStreamRequest runs one turn and streams the persona reply.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	// History snapshot before this turn lands, for prompt assembly.
	priorTurns, err := h.chatSvc.Transcript(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("failed to load session: %v", err))
		return err
	}

	result, err := h.orch.HandleQuery(ctx, sessionID, userMessage)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("turn failed: %v", err))
		return err
	}

	if result.Handoff {
		h.send(w, flusher, StreamFrame{
			Event:     "handoff",
			SessionID: sessionID,
			Persona:   result.Persona.Name,
			Content:   result.HandoffMessage,
		})
	}

	h.send(w, flusher, StreamFrame{
		Event:     "start",
		SessionID: sessionID,
		Persona:   result.Persona.Name,
		Context:   result.Context,
	})

	speaker, ok := h.personas.FindByID(result.Persona.ID)
	if !ok {
		err := fmt.Errorf("persona %s not found", result.Persona.ID)
		h.sendError(w, flusher, err.Error())
		return err
	}

	response, err := h.dispatchAIResponse(ctx, w, flusher, sessionID, speaker, priorTurns, userMessage, result.Context)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("AI generation failed: %v", err))
		return err
	}

	if err := h.orch.RecordResponse(ctx, sessionID, speaker.ID, response.Content); err != nil {
		log.Printf("[stream] failed to record response: %v", err)
	}

	h.send(w, flusher, StreamFrame{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response session=%s persona=%s", sessionID, speaker.ID)
	return nil
}

// dispatchAIResponse generates the reply, streaming deltas when configured.
func (h *Handler) dispatchAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, speaker persona.Persona, history []chat.Turn, userMessage string, retrieved []string) (*schema.Message, error) {
	if h.aiSvc.StreamingEnabled() {
		return h.streamAIResponse(ctx, w, flusher, sessionID, speaker, history, userMessage, retrieved)
	}

	response, err := h.aiSvc.GenerateResponse(ctx, sessionID, speaker, history, userMessage, retrieved)
	if err != nil {
		return nil, err
	}

	h.send(w, flusher, StreamFrame{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}

func (h *Handler) streamAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, speaker persona.Persona, history []chat.Turn, userMessage string, retrieved []string) (*schema.Message, error) {
	stream, err := h.aiSvc.StreamResponse(ctx, speaker, history, userMessage, retrieved)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.send(w, flusher, StreamFrame{
				Event:     "delta",
				SessionID: sessionID,
				Content:   chunk.Content,
			})
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, err
	}

	h.send(w, flusher, StreamFrame{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, frame StreamFrame) {
	utils.SendSSEChunk(w, flusher, frame)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.send(w, flusher, StreamFrame{Event: "error", Error: errorMsg})
}
