package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/platform"
)

// Access-control operations. Each mutation writes the record first and
// applies the platform grant second; a platform failure rolls the record
// back so the two never drift in a direction the resolve layer cannot
// repair.

// Trust puts the target on the room's allow list and grants them entry to
// the channel even while it is locked. A blocked target flips to trusted.
func (e *Engine) Trust(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "trusting the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if room.IsAllowed(targetID) {
		return fail("%s is already trusted.", target.DisplayName)
	}

	wasBlocked := room.IsBlocked(targetID)
	if err := e.rooms.Allow(ctx, room.ChannelID, targetID); err != nil {
		e.log.ErrorContext(ctx, "failed to record trust entry",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while trusting the user.")
	}
	if err := e.pf.SetGrant(ctx, room.ChannelID, targetID, platform.GrantPresent, 0); err != nil {
		e.rollbackAllow(ctx, room.ChannelID, targetID, wasBlocked)
		e.log.ErrorContext(ctx, "failed to apply trust grant",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while trusting the user.")
	}

	e.publish(ctx, "trusted", guildID, room.ChannelID, actorID, targetID)
	return ok("%s has been trusted.", target.DisplayName)
}

// Untrust removes the target from the allow list and clears their grant.
func (e *Engine) Untrust(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "untrusting the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if !room.IsAllowed(targetID) {
		return fail("%s is not trusted.", target.DisplayName)
	}

	if err := e.rooms.ClearAccess(ctx, room.ChannelID, targetID, model.AccessAllow); err != nil {
		e.log.ErrorContext(ctx, "failed to clear trust entry",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while untrusting the user.")
	}
	if err := e.pf.ClearGrant(ctx, room.ChannelID, targetID); err != nil {
		if rerr := e.rooms.Allow(ctx, room.ChannelID, targetID); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore trust entry after grant failure",
				zap.String("channel_id", room.ChannelID),
				zap.String("target_id", targetID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to clear trust grant",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while untrusting the user.")
	}

	e.publish(ctx, "untrusted", guildID, room.ChannelID, actorID, targetID)
	return ok("%s is no longer trusted.", target.DisplayName)
}

// Block puts the target on the block list, denies them entry and, if they
// are currently connected, removes them from the channel. A trusted target
// flips to blocked.
func (e *Engine) Block(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "blocking the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if targetID == actorID {
		return fail("You cannot block yourself.")
	}
	if room.IsBlocked(targetID) {
		return fail("%s is already blocked.", target.DisplayName)
	}

	wasAllowed := room.IsAllowed(targetID)
	if err := e.rooms.Block(ctx, room.ChannelID, targetID); err != nil {
		e.log.ErrorContext(ctx, "failed to record block entry",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while blocking the user.")
	}
	if err := e.pf.SetGrant(ctx, room.ChannelID, targetID, 0, platform.GrantConnect|platform.GrantSpeak); err != nil {
		e.rollbackBlock(ctx, room.ChannelID, targetID, wasAllowed)
		e.log.ErrorContext(ctx, "failed to apply block grant",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while blocking the user.")
	}

	// The grant keeps them out going forward; a connected target is removed
	// here. Disconnect failure does not undo the block.
	if e.memberPresent(ctx, guildID, room.ChannelID, targetID) {
		if err := e.pf.DisconnectMember(ctx, guildID, targetID, "Blocked from channel"); err != nil {
			e.log.WarnContext(ctx, "failed to disconnect blocked member",
				zap.String("channel_id", room.ChannelID),
				zap.String("target_id", targetID),
				zap.Error(err),
			)
		}
	}

	e.publish(ctx, "blocked", guildID, room.ChannelID, actorID, targetID)
	return ok("%s has been blocked.", target.DisplayName)
}

// Unblock removes the target from the block list and clears their grant.
func (e *Engine) Unblock(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "unblocking the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if !room.IsBlocked(targetID) {
		return fail("%s is not blocked.", target.DisplayName)
	}

	if err := e.rooms.ClearAccess(ctx, room.ChannelID, targetID, model.AccessBlock); err != nil {
		e.log.ErrorContext(ctx, "failed to clear block entry",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while unblocking the user.")
	}
	if err := e.pf.ClearGrant(ctx, room.ChannelID, targetID); err != nil {
		if rerr := e.rooms.Block(ctx, room.ChannelID, targetID); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore block entry after grant failure",
				zap.String("channel_id", room.ChannelID),
				zap.String("target_id", targetID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to clear block grant",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while unblocking the user.")
	}

	e.publish(ctx, "unblocked", guildID, room.ChannelID, actorID, targetID)
	return ok("%s is no longer blocked.", target.DisplayName)
}

// Kick removes a connected member from the room without changing any
// access entry; they may rejoin unless the room is locked or they are
// blocked.
func (e *Engine) Kick(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "kicking the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if targetID == actorID {
		return fail("You cannot kick yourself.")
	}
	if !e.memberPresent(ctx, guildID, room.ChannelID, targetID) {
		return fail("%s is not in your voice channel.", target.DisplayName)
	}

	if err := e.pf.DisconnectMember(ctx, guildID, targetID, "Kicked from channel"); err != nil {
		e.log.ErrorContext(ctx, "failed to kick member",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while kicking the user.")
	}

	e.publish(ctx, "kicked", guildID, room.ChannelID, actorID, targetID)
	return ok("%s has been kicked.", target.DisplayName)
}

// Invite sends the target a direct message pointing at the room. A blocked
// target must be unblocked first.
func (e *Engine) Invite(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "inviting the user")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if room.IsBlocked(targetID) {
		return fail("%s is blocked from your channel. Unblock them first.", target.DisplayName)
	}

	e.notify.Notify(ctx, targetID, fmt.Sprintf(
		"You've been invited to join **%s**! <#%s>", room.Name, room.ChannelID))

	e.publish(ctx, "invited", guildID, room.ChannelID, actorID, targetID)
	return ok("Invitation sent to %s.", target.DisplayName)
}

// memberPresent reports whether the member is connected to the channel.
// Errors degrade to "absent"; callers treat presence as advisory.
func (e *Engine) memberPresent(ctx context.Context, guildID, channelID, memberID string) bool {
	members, err := e.pf.RoomMembers(ctx, guildID, channelID)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			e.log.WarnContext(ctx, "failed to read room membership",
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
		}
		return false
	}
	for _, id := range members {
		if id == memberID {
			return true
		}
	}
	return false
}

func (e *Engine) rollbackAllow(ctx context.Context, channelID, targetID string, wasBlocked bool) {
	var err error
	if wasBlocked {
		err = e.rooms.Block(ctx, channelID, targetID)
	} else {
		err = e.rooms.ClearAccess(ctx, channelID, targetID, model.AccessAllow)
	}
	if err != nil {
		e.log.ErrorContext(ctx, "failed to roll back trust entry",
			zap.String("channel_id", channelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

func (e *Engine) rollbackBlock(ctx context.Context, channelID, targetID string, wasAllowed bool) {
	var err error
	if wasAllowed {
		err = e.rooms.Allow(ctx, channelID, targetID)
	} else {
		err = e.rooms.ClearAccess(ctx, channelID, targetID, model.AccessBlock)
	}
	if err != nil {
		e.log.ErrorContext(ctx, "failed to roll back block entry",
			zap.String("channel_id", channelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}
