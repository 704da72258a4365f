// Package audit records room lifecycle and access-control events. Audit
// delivery is always best-effort; a failed publish never fails the
// operation that produced the event.
package audit

import (
	"context"
	"time"
)

// Event is one audit record.
type Event struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers audit events.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher discards all events. Used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// MultiPublisher fans an event out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		p.Publish(ctx, ev)
	}
}
