// Package engine implements the room lifecycle and access-control core:
// it reacts to presence transitions, keeps room records consistent with
// live platform state, and executes owner intents against both.
package engine

import (
	"context"
	"time"

	"github.com/Gopher0727/TempVoice/internal/audit"
	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
)

// MemberDirectory is the degraded member view used when live enumeration
// times out.
type MemberDirectory interface {
	Put(ctx context.Context, guildID string, members []platform.Member) error
	List(ctx context.Context, guildID string) ([]platform.Member, error)
}

// Notifier delivers best-effort messages to members.
type Notifier interface {
	Notify(ctx context.Context, memberID, content string)
}

// Options tune engine behavior.
type Options struct {
	// MemberFetchLimit caps guild member enumeration for candidate lists.
	MemberFetchLimit int
	// MemberFetchTimeout bounds the enumeration before degrading to the
	// cached member view.
	MemberFetchTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.MemberFetchLimit <= 0 {
		o.MemberFetchLimit = 25
	}
	if o.MemberFetchTimeout <= 0 {
		o.MemberFetchTimeout = 5 * time.Second
	}
}

// Engine wires the persistence store and the voice platform together. The
// store owns canonical room state; the platform owns membership and object
// existence. Every operation reconciles the two through the resolve layer.
type Engine struct {
	rooms   repository.IRoomRepository
	configs repository.IConfigRepository
	pf      platform.Client
	members MemberDirectory
	notify  Notifier
	audit   audit.Publisher
	log     *logger.Logger
	opts    Options
}

func New(
	rooms repository.IRoomRepository,
	configs repository.IConfigRepository,
	pf platform.Client,
	members MemberDirectory,
	notify Notifier,
	auditor audit.Publisher,
	log *logger.Logger,
	opts Options,
) *Engine {
	opts.withDefaults()
	if auditor == nil {
		auditor = audit.NopPublisher{}
	}
	return &Engine{
		rooms:   rooms,
		configs: configs,
		pf:      pf,
		members: members,
		notify:  notify,
		audit:   auditor,
		log:     log,
		opts:    opts,
	}
}

func (e *Engine) publish(ctx context.Context, action, guildID, channelID, actorID, targetID string) {
	e.audit.Publish(ctx, audit.Event{
		Action:    action,
		GuildID:   guildID,
		ChannelID: channelID,
		ActorID:   actorID,
		TargetID:  targetID,
		At:        time.Now().UTC(),
	})
}
