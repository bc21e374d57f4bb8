// Package orchestrator decides, per user utterance, which persona speaks,
// whether a handoff happens, and what retrieved context grounds the reply.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/flowdial/roundtable/internal/analysis/topic"
	"github.com/flowdial/roundtable/internal/model/chat"
	"github.com/flowdial/roundtable/internal/model/persona"
	chatservice "github.com/flowdial/roundtable/internal/service/chat"
	"github.com/flowdial/roundtable/internal/service/retrieval"
)

// transitionHistoryWindow is how many recent turns feed the handoff message.
const transitionHistoryWindow = 4

// PersonaView is the by-value persona snapshot returned with each turn.
type PersonaView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Topic       persona.Topic `json:"topic"`
	Personality string        `json:"personality"`
	Backstory   string        `json:"backstory"`
}

// TurnResult is the structured outcome of one user utterance.
type TurnResult struct {
	Persona        PersonaView `json:"persona"`
	Context        []string    `json:"context"`
	Handoff        bool        `json:"handoff"`
	HandoffMessage string      `json:"handoffMessage,omitempty"`
}

// Notifier receives persona-change signals so the surrounding transport can
// relay presence updates. Implementations must not block.
type Notifier interface {
	PersonaChanged(sessionID string, p persona.Persona)
}

// Service composes detection, persona state and retrieval into per-turn
// decisions. It exclusively owns session lifecycle: it is the only writer of
// the active persona and the history.
type Service struct {
	personas     persona.Store
	detector     topic.Detector
	retriever    *retrieval.Retriever
	sessions     *chatservice.Service
	notifier     Notifier
	defaultTopic persona.Topic

	mu        sync.Mutex
	turnLocks map[string]*sync.Mutex
}

// New wires the orchestrator. An empty registry is a fatal configuration
// error. defaultTopic selects the persona bound on session start; empty picks
// the first catalog entry. The notifier may be nil.
func New(personas persona.Store, detector topic.Detector, retriever *retrieval.Retriever, sessions *chatservice.Service, defaultTopic persona.Topic, notifier Notifier) (*Service, error) {
	if len(personas.List()) == 0 {
		return nil, fmt.Errorf("persona registry is empty")
	}
	if defaultTopic != "" {
		if _, ok := personas.FindByTopic(defaultTopic); !ok {
			return nil, fmt.Errorf("no persona registered for default topic %q", defaultTopic)
		}
	}

	return &Service{
		personas:     personas,
		detector:     detector,
		retriever:    retriever,
		sessions:     sessions,
		notifier:     notifier,
		defaultTopic: defaultTopic,
		turnLocks:    make(map[string]*sync.Mutex),
	}, nil
}

// StartSession creates a session bound to the default persona, so handoff
// logic always operates against a concrete current persona.
func (s *Service) StartSession(ctx context.Context) (chat.Session, error) {
	initial := s.personas.List()[0]
	if s.defaultTopic != "" {
		if p, ok := s.personas.FindByTopic(s.defaultTopic); ok {
			initial = p
		}
	}

	session, err := s.sessions.CreateSession(ctx, initial.ID)
	if err != nil {
		return chat.Session{}, err
	}

	log.Printf("[orchestrator] session started id=%s persona=%s", session.ID, initial.ID)
	return session, nil
}

// EndSession disposes the session and its history. It waits for any in-flight
// turn to finish first, so teardown never overlaps turn processing.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	lock := s.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	err := s.sessions.EndSession(ctx, sessionID)

	s.mu.Lock()
	delete(s.turnLocks, sessionID)
	s.mu.Unlock()
	return err
}

// HandleQuery processes one finalized user utterance. Turns for a session are
// serialized: an invocation arriving while another is in flight queues behind
// it. Context cancellation is honored before the retrieval step, the only
// step with meaningful latency.
func (s *Service) HandleQuery(ctx context.Context, sessionID, queryText string) (TurnResult, error) {
	lock := s.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	current, ok := s.personas.FindByID(session.ActivePersonaID)
	if !ok {
		// The active persona always comes from the registry, so a miss
		// means a broken catalog, not a runtime condition.
		return TurnResult{}, fmt.Errorf("active persona %q missing from registry", session.ActivePersonaID)
	}

	target := current
	if detected, signal := s.detector.Detect(queryText); signal && detected != current.Topic {
		if candidate, ok := s.personas.FindByTopic(detected); ok {
			target = candidate
		}
	}

	handoff := target.ID != current.ID
	var handoffMessage string
	if handoff {
		recent, _ := s.sessions.Recent(ctx, sessionID, transitionHistoryWindow)
		handoffMessage = buildTransitionMessage(current, target, recent, queryText)
		if err := s.sessions.SetActivePersona(ctx, sessionID, target.ID); err != nil {
			return TurnResult{}, err
		}
		log.Printf("[orchestrator] handoff session=%s %s -> %s", sessionID, current.ID, target.ID)
		if s.notifier != nil {
			s.notifier.PersonaChanged(sessionID, target)
		}
	}

	// Cancellation point: a superseded turn bails out before paying for
	// retrieval.
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	contextTexts := s.retriever.RetrieveFor(ctx, target, queryText)

	if err := s.sessions.AppendTurn(ctx, chat.Turn{
		SessionID:       sessionID,
		Speaker:         chat.SpeakerUser,
		Content:         queryText,
		ActivePersonaID: target.ID,
	}); err != nil {
		return TurnResult{}, err
	}

	return TurnResult{
		Persona: PersonaView{
			ID:          target.ID,
			Name:        target.Name,
			Topic:       target.Topic,
			Personality: target.Personality,
			Backstory:   target.Backstory,
		},
		Context:        contextTexts,
		Handoff:        handoff,
		HandoffMessage: handoffMessage,
	}, nil
}

// RecordResponse appends the persona's generated reply to the history, after
// the surrounding layer has produced it.
func (s *Service) RecordResponse(ctx context.Context, sessionID, personaID, text string) error {
	return s.sessions.AppendTurn(ctx, chat.Turn{
		SessionID:       sessionID,
		Speaker:         personaID,
		Content:         text,
		ActivePersonaID: personaID,
	})
}

// turnLock returns the per-session mutex that serializes turn processing.
func (s *Service) turnLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.turnLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.turnLocks[sessionID] = lock
	}
	return lock
}
