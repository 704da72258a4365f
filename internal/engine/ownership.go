package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

// Transfer hands the room to a member who is currently connected to it.
// The record changes first; the permission swap follows, and a failed swap
// restores the previous owner.
func (e *Engine) Transfer(ctx context.Context, guildID, actorID, targetID string) Result {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return e.resolveFailure(ctx, err, "transferring ownership")
	}
	target, err := e.pf.Member(ctx, guildID, targetID)
	if err != nil {
		return fail(msgUserNotFound)
	}
	if targetID == actorID {
		return fail("You are already the owner of this channel.")
	}
	if !e.memberPresent(ctx, guildID, room.ChannelID, targetID) {
		return fail("%s is not in your voice channel.", target.DisplayName)
	}

	if err := e.rooms.SetOwner(ctx, room.ChannelID, targetID); err != nil {
		e.log.ErrorContext(ctx, "failed to record ownership transfer",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while transferring ownership.")
	}
	if err := e.swapOwnerGrants(ctx, room.ChannelID, actorID, targetID); err != nil {
		if rerr := e.rooms.SetOwner(ctx, room.ChannelID, actorID); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore owner after grant failure",
				zap.String("channel_id", room.ChannelID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to swap owner grants",
			zap.String("channel_id", room.ChannelID),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return fail("An error occurred while transferring ownership.")
	}

	e.publish(ctx, "ownership_transferred", guildID, room.ChannelID, actorID, targetID)
	return ok("Ownership transferred to %s.", target.DisplayName)
}

// Claim lets a member take over the room they are sitting in when its
// recorded owner has left. The liveness check runs against the platform at
// claim time, not against any cached roster.
func (e *Engine) Claim(ctx context.Context, guildID, actorID string) Result {
	channelID, err := e.pf.MemberVoiceChannel(ctx, guildID, actorID)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to resolve claimant voice state",
			zap.String("member_id", actorID),
			zap.Error(err),
		)
		return fail("An error occurred while claiming the channel.")
	}
	if channelID == "" {
		return fail("You are not in a voice channel.")
	}

	room, _, err := e.roomByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, errNoRoom) || errors.Is(err, errRoomVanished) {
			return fail("This is not a temporary voice channel.")
		}
		return e.resolveFailure(ctx, err, "claiming the channel")
	}
	if room.OwnerID == actorID {
		return fail("You are already the owner of this channel.")
	}
	if e.memberPresent(ctx, guildID, room.ChannelID, room.OwnerID) {
		return fail("The current owner is still in the channel.")
	}

	formerOwner := room.OwnerID
	if err := e.rooms.SetOwner(ctx, room.ChannelID, actorID); err != nil {
		e.log.ErrorContext(ctx, "failed to record claim",
			zap.String("channel_id", room.ChannelID),
			zap.String("member_id", actorID),
			zap.Error(err),
		)
		return fail("An error occurred while claiming the channel.")
	}
	if err := e.swapOwnerGrants(ctx, room.ChannelID, formerOwner, actorID); err != nil {
		if rerr := e.rooms.SetOwner(ctx, room.ChannelID, formerOwner); rerr != nil {
			e.log.ErrorContext(ctx, "failed to restore owner after grant failure",
				zap.String("channel_id", room.ChannelID),
				zap.Error(rerr),
			)
		}
		e.log.ErrorContext(ctx, "failed to swap owner grants",
			zap.String("channel_id", room.ChannelID),
			zap.String("member_id", actorID),
			zap.Error(err),
		)
		return fail("An error occurred while claiming the channel.")
	}

	e.publish(ctx, "ownership_claimed", guildID, room.ChannelID, actorID, formerOwner)
	return ok("You are now the owner of this channel.")
}

// swapOwnerGrants demotes the former owner to a plain member grant and
// promotes the new owner. A former owner the platform no longer knows is
// treated as absent and the demotion is skipped.
func (e *Engine) swapOwnerGrants(ctx context.Context, channelID, formerID, newID string) error {
	if err := e.pf.SetGrant(ctx, channelID, formerID, platform.GrantPresent, 0); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return err
	}
	return e.pf.SetGrant(ctx, channelID, newID, platform.GrantModerate, 0)
}
