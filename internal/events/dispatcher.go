// Package events fans presence transitions out to a sharded worker pool.
// Events are routed to a worker by channel ID, so transitions on one room
// are handled in observation order while distinct rooms proceed in
// parallel.
package events

import (
	"context"
	"sync"

	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
)

// Handler receives ordered presence transitions for a channel.
type Handler interface {
	HandleMemberJoin(ctx context.Context, guildID, memberID, channelID string)
	HandleMemberLeave(ctx context.Context, guildID, memberID, channelID string)
}

const (
	defaultShards    = 8
	defaultQueueSize = 256
)

// Dispatcher pulls events from a source and hands them to the handler on
// a fixed set of shard workers.
type Dispatcher struct {
	handler Handler
	log     *logger.Logger
	queues  []chan platform.PresenceUpdate
	wg      sync.WaitGroup
}

func NewDispatcher(handler Handler, log *logger.Logger, shards, queueSize int) *Dispatcher {
	if shards <= 0 {
		shards = defaultShards
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	queues := make([]chan platform.PresenceUpdate, shards)
	for i := range queues {
		queues[i] = make(chan platform.PresenceUpdate, queueSize)
	}
	return &Dispatcher{
		handler: handler,
		log:     log,
		queues:  queues,
	}
}

// Run consumes the source until the context is cancelled or the source
// channel closes, then drains the shard queues and returns.
func (d *Dispatcher) Run(ctx context.Context, source platform.EventSource) {
	for i := range d.queues {
		d.wg.Add(1)
		go d.worker(ctx, d.queues[i])
	}

	events := source.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			d.queues[d.shardFor(ev.ChannelID)] <- ev
		}
	}

	for i := range d.queues {
		close(d.queues[i])
	}
	d.wg.Wait()
}

func (d *Dispatcher) shardFor(channelID string) int {
	return int(murmur3.StringSum32(channelID) % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(ctx context.Context, queue <-chan platform.PresenceUpdate) {
	defer d.wg.Done()
	for ev := range queue {
		d.dispatch(ctx, ev)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev platform.PresenceUpdate) {
	// Each event gets its own trace ID so its log lines correlate.
	ctx = logger.WithTraceID(ctx, "")
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "panic while handling presence event",
				zap.Any("panic", r),
				zap.String("channel_id", ev.ChannelID),
				zap.String("member_id", ev.MemberID),
			)
		}
	}()

	if ev.Joined {
		d.handler.HandleMemberJoin(ctx, ev.GuildID, ev.MemberID, ev.ChannelID)
	} else {
		d.handler.HandleMemberLeave(ctx, ev.GuildID, ev.MemberID, ev.ChannelID)
	}
}
