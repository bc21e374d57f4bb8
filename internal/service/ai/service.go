package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/flowdial/roundtable/internal/config"
	"github.com/flowdial/roundtable/internal/model/chat"
	"github.com/flowdial/roundtable/internal/model/persona"
)

// historyLimit caps how many prior turns are replayed to the model verbatim.
const historyLimit = 10

// Service generates persona replies through an eino chat chain.
type Service struct {
	chatModel model.ChatModel
	personas  persona.Store
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service, compiling the prompt/model chain once.
func NewService(ctx context.Context, personas persona.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		personas:  personas,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether SSE streaming output is configured.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateResponse produces a complete persona reply grounded in the
// retrieved context.
func (s *Service) GenerateResponse(ctx context.Context, sessionID string, p persona.Persona, history []chat.Turn, userMessage string, retrieved []string) (*schema.Message, error) {
	input := s.buildChainInput(p, history, userMessage, retrieved)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated response session=%s persona=%s length=%d", sessionID, p.ID, len(response.Content))
	return response, nil
}

// StreamResponse streams reply chunks via the configured chain.
func (s *Service) StreamResponse(ctx context.Context, p persona.Persona, history []chat.Turn, userMessage string, retrieved []string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	input := s.buildChainInput(p, history, userMessage, retrieved)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return stream, nil
}

func (s *Service) buildChainInput(p persona.Persona, history []chat.Turn, userMessage string, retrieved []string) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(p, s.personas.List(), history, retrieved),
		"history": s.buildHistoryMessages(p, history),
		"query":   userMessage,
	}
}

// buildHistoryMessages maps the most recent turns onto chat roles: the user's
// turns stay user turns, any persona turn replays as an assistant turn.
func (s *Service) buildHistoryMessages(p persona.Persona, turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		if turn.Speaker == chat.SpeakerUser {
			history = append(history, schema.UserMessage(turn.Content))
		} else {
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
