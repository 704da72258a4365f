package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

const (
	maxNameLength = 100
	maxUserLimit  = 99
)

// Rename changes the room's display name.
func (e *Engine) Rename(ctx context.Context, guildID, actorID, name string) Result {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return fail("Channel names must be between 1 and 100 characters.")
	}

	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "renaming the channel")
	}

	previous := room.Name
	if err := e.rooms.SetName(ctx, room.ChannelID, name); err != nil {
		e.log.ErrorContext(ctx, "failed to record channel name",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while renaming the channel.")
	}
	if err := e.pf.RenameChannel(ctx, room.ChannelID, name); err != nil {
		if rerr := e.rooms.SetName(ctx, room.ChannelID, previous); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore channel name after rename failure",
				zap.String("channel_id", room.ChannelID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to rename channel",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while renaming the channel.")
	}

	e.publish(ctx, "room_renamed", guildID, room.ChannelID, actorID, "")
	return ok("Your voice channel has been renamed to **%s**.", name)
}

// SetLimit changes the room's member cap. Zero removes the cap.
func (e *Engine) SetLimit(ctx context.Context, guildID, actorID string, limit int) Result {
	if limit < 0 || limit > maxUserLimit {
		return fail("The user limit must be between 0 and 99.")
	}

	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "changing the user limit")
	}

	previous := room.UserLimit
	if err := e.rooms.SetUserLimit(ctx, room.ChannelID, limit); err != nil {
		e.log.ErrorContext(ctx, "failed to record user limit",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while changing the user limit.")
	}
	if err := e.pf.SetChannelUserLimit(ctx, room.ChannelID, limit); err != nil {
		if rerr := e.rooms.SetUserLimit(ctx, room.ChannelID, previous); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore user limit after platform failure",
				zap.String("channel_id", room.ChannelID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to set channel user limit",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while changing the user limit.")
	}

	e.publish(ctx, "room_limit_changed", guildID, room.ChannelID, actorID, "")
	if limit == 0 {
		return ok("The user limit has been removed.")
	}
	return ok("The user limit has been set to %d.", limit)
}

// ToggleLock flips the room between locked and unlocked. The live connect
// grant of the everyone principal is the truth for the current state;
// trusted members keep their own grant and can join a locked room.
func (e *Engine) ToggleLock(ctx context.Context, guildID, actorID string) Result {
	room, ch, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "locking the channel")
	}

	locking := ch.EveryoneCanConnect
	if err := e.rooms.SetLocked(ctx, room.ChannelID, locking); err != nil {
		e.log.ErrorContext(ctx, "failed to record lock state",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while locking the channel.")
	}

	everyone := e.pf.EveryonePrincipal(guildID)
	var gerr error
	if locking {
		gerr = e.pf.SetGrant(ctx, room.ChannelID, everyone, platform.GrantSpeak, platform.GrantConnect)
	} else {
		gerr = e.pf.SetGrant(ctx, room.ChannelID, everyone, platform.GrantPresent, 0)
	}
	if gerr != nil {
		if rerr := e.rooms.SetLocked(ctx, room.ChannelID, !locking); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore lock state after grant failure",
				zap.String("channel_id", room.ChannelID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to update everyone grant",
			zap.String("channel_id", room.ChannelID),
			zap.Error(gerr),
		)
		return fail("An error occurred while locking the channel.")
	}

	if locking {
		e.publish(ctx, "room_locked", guildID, room.ChannelID, actorID, "")
		return ok("Your voice channel has been locked.")
	}
	e.publish(ctx, "room_unlocked", guildID, room.ChannelID, actorID, "")
	return ok("Your voice channel has been unlocked.")
}

// DeleteRoom removes the room at the owner's request, channel first and
// record second. A channel that is already gone still gets its record
// cleaned up.
func (e *Engine) DeleteRoom(ctx context.Context, guildID, actorID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "deleting the channel")
	}

	if err := e.pf.DeleteChannel(ctx, room.ChannelID, "Owner requested deletion"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		e.log.ErrorContext(ctx, "failed to delete room channel",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while deleting the channel.")
	}
	if err := e.rooms.Delete(ctx, room.ChannelID); err != nil {
		e.log.ErrorContext(ctx, "failed to delete room record",
			zap.String("channel_id", room.ChannelID),
			zap.Error(err),
		)
		return fail("An error occurred while deleting the channel.")
	}

	e.publish(ctx, "room_deleted", guildID, room.ChannelID, actorID, "")
	return ok("Your voice channel has been deleted.")
}
