package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"opendoors.ai/internal/protocol"
	"opendoors.ai/internal/sim/world"
)

// Hub fans audit entries out to connected clients. WriteAudit runs on the
// world loop and never blocks: a slow client loses its oldest pending events.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]chan []byte
	nextID  uint64

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{clients: map[uint64]chan []byte{}}
}

func (h *Hub) subscribe(ch chan []byte) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.clients[id] = ch
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
	}
}

// Clients reports how many connections currently receive events.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts events discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) WriteAudit(e world.AuditEntry) error {
	b, err := json.Marshal(protocol.AuditMsg{
		Type:            protocol.TypeAudit,
		ProtocolVersion: protocol.Version,
		EntryID:         e.ID,
		Tick:            e.Tick,
		Actor:           e.Actor,
		Action:          e.Action,
		Pos:             e.Pos,
		Reason:          e.Reason,
		Details:         e.Details,
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		if !sendLatest(ch, b) {
			h.dropped.Add(1)
		}
	}
	return nil
}

// sendLatest delivers b, discarding the oldest queued message if the channel
// is full. It reports false when something was discarded.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}
