package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
)

// The resolve layer is the single place where the invariant "a record
// exists iff the platform object exists" is enforced. Every operation
// that loads a Room goes through it; a record whose channel is gone is
// pruned on the spot.

var (
	errNoRoom       = errors.New("no active room")
	errRoomVanished = errors.New("room no longer exists on the platform")
)

// ownedRoom resolves the acting member's room and its live channel.
func (e *Engine) ownedRoom(ctx context.Context, guildID, ownerID string) (*model.Room, *platform.Channel, error) {
	room, err := e.rooms.FindByOwner(ctx, guildID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errNoRoom
		}
		return nil, nil, err
	}
	ch, err := e.liveChannel(ctx, room)
	if err != nil {
		return nil, nil, err
	}
	return room, ch, nil
}

// roomByChannel resolves a room record by channel ID and its live channel.
func (e *Engine) roomByChannel(ctx context.Context, channelID string) (*model.Room, *platform.Channel, error) {
	room, err := e.rooms.FindByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errNoRoom
		}
		return nil, nil, err
	}
	ch, err := e.liveChannel(ctx, room)
	if err != nil {
		return nil, nil, err
	}
	return room, ch, nil
}

func (e *Engine) liveChannel(ctx context.Context, room *model.Room) (*platform.Channel, error) {
	ch, err := e.pf.Channel(ctx, room.ChannelID)
	if err == nil {
		return ch, nil
	}
	if errors.Is(err, platform.ErrNotFound) {
		// The platform is the source of truth for existence.
		if derr := e.rooms.Delete(ctx, room.ChannelID); derr != nil {
			e.log.ErrorContext(ctx, "failed to prune vanished room record",
				zap.String("channel_id", room.ChannelID),
				zap.Error(derr),
			)
		}
		return nil, errRoomVanished
	}
	return nil, err
}

// resolveFailure maps a resolve error onto the caller-facing result.
func (e *Engine) resolveFailure(ctx context.Context, err error, action string) Result {
	switch {
	case errors.Is(err, errNoRoom):
		return fail(msgNoRoom)
	case errors.Is(err, errRoomVanished):
		return fail(msgRoomVanished)
	default:
		e.log.ErrorContext(ctx, "operation failed while resolving room",
			zap.String("action", action),
			zap.Error(err),
		)
		return fail("An error occurred while %s.", action)
	}
}
