package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/flowdial/roundtable/internal/model/persona"
)

// waitForSubscriber blocks until the session has a registered connection, so
// tests do not race the upgrade handler.
func waitForSubscriber(t *testing.T, h *Handler, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.conns[sessionID])
		h.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}

func TestPersonaChangedReachesSubscriber(t *testing.T) {
	handler := New()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/session-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, handler, "session-1")

	incoming := persona.Seed()[1]
	handler.PersonaChanged("session-1", incoming)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change PersonaChange
	if err := conn.ReadJSON(&change); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}

	if change.Event != "persona_changed" {
		t.Fatalf("unexpected event %q", change.Event)
	}
	if change.PersonaID != incoming.ID {
		t.Fatalf("expected persona %s, got %s", incoming.ID, change.PersonaID)
	}
	if change.SessionID != "session-1" {
		t.Fatalf("unexpected session %s", change.SessionID)
	}
}

func TestPersonaChangedIgnoresOtherSessions(t *testing.T) {
	handler := New()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/session-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, handler, "session-1")

	handler.PersonaChanged("session-2", persona.Seed()[0])

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var change PersonaChange
	if err := conn.ReadJSON(&change); err == nil {
		t.Fatalf("expected no message for other session, got %+v", change)
	}
}

func TestPersonaChangedNoSubscribers(t *testing.T) {
	handler := New()

	// Must not panic or block with nobody listening.
	handler.PersonaChanged("session-1", persona.Seed()[0])
}

func TestPersonaChangedNeverBlocksOnStalledSubscriber(t *testing.T) {
	handler := New()

	// A subscriber with no writer goroutine drains nothing, like a peer
	// whose connection has stalled.
	stalled := &subscriber{send: make(chan PersonaChange, sendBuffer)}
	handler.mu.Lock()
	handler.conns["session-1"] = append(handler.conns["session-1"], stalled)
	handler.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*3; i++ {
			handler.PersonaChanged("session-1", persona.Seed()[0])
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PersonaChanged blocked on a stalled subscriber")
	}

	// Overflow is dropped, not queued unboundedly.
	if len(stalled.send) != sendBuffer {
		t.Fatalf("expected full queue of %d, got %d", sendBuffer, len(stalled.send))
	}

	// Other sessions stay reachable while the stalled subscriber lags.
	other := &subscriber{send: make(chan PersonaChange, sendBuffer)}
	handler.mu.Lock()
	handler.conns["session-2"] = append(handler.conns["session-2"], other)
	handler.mu.Unlock()

	handler.PersonaChanged("session-2", persona.Seed()[1])
	select {
	case change := <-other.send:
		if change.PersonaID != persona.Seed()[1].ID {
			t.Fatalf("unexpected persona %s", change.PersonaID)
		}
	default:
		t.Fatal("expected event for the healthy session")
	}
}
