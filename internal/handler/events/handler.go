package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/flowdial/roundtable/internal/model/persona"
)

// writeTimeout bounds a single socket write so a stalled peer cannot pin the
// writer goroutine.
const writeTimeout = 5 * time.Second

// sendBuffer is how many pending notifications a slow subscriber may lag
// behind before events are dropped for it.
const sendBuffer = 8

// PersonaChange is pushed to subscribed clients whenever a handoff lands, so
// the transport can update display name and presence.
type PersonaChange struct {
	Event       string        `json:"event"`
	SessionID   string        `json:"sessionId"`
	PersonaID   string        `json:"personaId"`
	PersonaName string        `json:"personaName"`
	Topic       persona.Topic `json:"topic"`
	Personality string        `json:"personality"`
	Backstory   string        `json:"backstory"`
}

// subscriber pairs a connection with its outbound queue. All socket writes
// happen on the subscriber's own writer goroutine.
type subscriber struct {
	conn *websocket.Conn
	send chan PersonaChange
}

// Handler relays persona-change notifications over WebSockets. It implements
// the orchestrator's Notifier contract: PersonaChanged only enqueues, it never
// performs network I/O, so a stalled subscriber cannot block a turn.
type Handler struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string][]*subscriber
}

// New creates the events handler.
func New() *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string][]*subscriber),
	}
}

// RegisterRoutes registers the events socket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{sessionID}", h.handleEvents)
}

// PersonaChanged enqueues the new active persona for every subscriber of the
// session. A subscriber whose queue is full misses the event rather than
// delaying the caller.
func (h *Handler) PersonaChanged(sessionID string, p persona.Persona) {
	change := PersonaChange{
		Event:       "persona_changed",
		SessionID:   sessionID,
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Topic:       p.Topic,
		Personality: p.Personality,
		Backstory:   p.Backstory,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.conns[sessionID] {
		select {
		case sub.send <- change:
		default:
			log.Printf("[events] subscriber lagging, dropping event session=%s", sessionID)
		}
	}
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] upgrade failed session=%s: %v", sessionID, err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan PersonaChange, sendBuffer)}

	h.mu.Lock()
	h.conns[sessionID] = append(h.conns[sessionID], sub)
	h.mu.Unlock()

	log.Printf("[events] subscriber connected session=%s", sessionID)

	go h.writeLoop(sessionID, sub)

	// Drain reads until the client goes away.
	go func() {
		defer h.unsubscribe(sessionID, sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeLoop drains the subscriber's queue onto the socket. Each write carries
// a deadline; a timeout or failure drops the subscriber.
func (h *Handler) writeLoop(sessionID string, sub *subscriber) {
	for change := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteJSON(change); err != nil {
			log.Printf("[events] dropping subscriber session=%s: %v", sessionID, err)
			h.unsubscribe(sessionID, sub)
			return
		}
	}
}

// unsubscribe removes the subscriber and closes its queue. Safe to call from
// both the reader and writer goroutines; only the call that finds the
// subscriber still registered closes the channel.
func (h *Handler) unsubscribe(sessionID string, sub *subscriber) {
	sub.conn.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	found := false
	remaining := h.conns[sessionID][:0]
	for _, s := range h.conns[sessionID] {
		if s == sub {
			found = true
			continue
		}
		remaining = append(remaining, s)
	}
	if !found {
		return
	}
	close(sub.send)
	if len(remaining) == 0 {
		delete(h.conns, sessionID)
	} else {
		h.conns[sessionID] = remaining
	}
}
