// Package ws streams room events to websocket subscribers. Each client
// subscribes to one guild and receives the engine's audit events for it as
// they happen, which is how dashboards follow channel churn live.
package ws

import (
	"context"
	"sync"

	"github.com/Gopher0727/TempVoice/internal/audit"
)

// Hub maintains the active subscribers per guild and fans events out to
// them. It implements audit.Publisher so it can sit next to the Kafka
// publisher behind a MultiPublisher.
type Hub struct {
	mu sync.RWMutex

	// guild ID -> subscriber set
	guilds map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan audit.Event

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		guilds:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan audit.Event, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber maps. It returns when the context is cancelled,
// closing every client send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.guilds {
				for client := range clients {
					close(client.send)
				}
			}
			h.guilds = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.guilds[client.guildID]; !ok {
				h.guilds[client.guildID] = make(map[*Client]bool)
			}
			h.guilds[client.guildID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.guilds[client.guildID]; ok && clients[client] {
				delete(clients, client)
				close(client.send)
				if len(clients) == 0 {
					delete(h.guilds, client.guildID)
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for client := range h.guilds[ev.GuildID] {
				select {
				case client.send <- ev:
				default:
					// Slow consumer; drop the event rather than stall the
					// hub. The client still gets subsequent events.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish forwards an audit event to the guild's subscribers. Publishing
// is strictly best-effort: a hub that is shutting down, or one whose
// buffer is full because Run is not draining it, discards the event
// instead of stalling the caller.
func (h *Hub) Publish(_ context.Context, ev audit.Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
	}
}

// Subscribers returns the number of connected clients for a guild.
func (h *Hub) Subscribers(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guilds[guildID])
}
