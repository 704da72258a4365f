package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
)

// HandleMemberJoin reacts to a member entering a voice channel. Entering
// the guild's trigger channel provisions a fresh room owned by the member
// and moves them into it; any other channel is ignored.
func (e *Engine) HandleMemberJoin(ctx context.Context, guildID, memberID, channelID string) {
	cfg, err := e.configs.Find(ctx, guildID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.ErrorContext(ctx, "failed to load guild config",
				zap.String("guild_id", guildID),
				zap.Error(err),
			)
		}
		return
	}
	if channelID != cfg.TriggerChannelID {
		return
	}

	// Do not create a room that would land outside the managed category.
	if _, err := e.pf.Channel(ctx, cfg.CategoryID); err != nil {
		e.log.WarnContext(ctx, "trigger entry ignored, category missing",
			zap.String("guild_id", guildID),
			zap.String("category_id", cfg.CategoryID),
			zap.Error(err),
		)
		return
	}

	member, err := e.pf.Member(ctx, guildID, memberID)
	if err != nil {
		e.log.WarnContext(ctx, "trigger entry ignored, member unresolvable",
			zap.String("guild_id", guildID),
			zap.String("member_id", memberID),
			zap.Error(err),
		)
		return
	}

	name := fmt.Sprintf("%s's Channel", member.DisplayName)
	grants := []platform.GrantSpec{
		{Principal: e.pf.EveryonePrincipal(guildID), Allow: platform.GrantPresent},
		{Principal: memberID, Allow: platform.GrantModerate},
		{Principal: e.pf.Identity(), Allow: platform.GrantModerate | platform.GrantViewChannel},
	}

	ch, err := e.pf.CreateVoiceChannel(ctx, guildID, cfg.CategoryID, name, grants)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to create voice channel",
			zap.String("guild_id", guildID),
			zap.String("member_id", memberID),
			zap.Error(err),
		)
		return
	}

	room := &model.Room{
		GuildID:   guildID,
		ChannelID: ch.ID,
		OwnerID:   memberID,
		Name:      name,
	}
	if err := e.rooms.Create(ctx, room); err != nil {
		e.log.ErrorContext(ctx, "failed to persist room record, removing channel",
			zap.String("channel_id", ch.ID),
			zap.Error(err),
		)
		// The platform must not keep a channel with no matching record.
		if derr := e.pf.DeleteChannel(ctx, ch.ID, "Failed to record temporary voice channel"); derr != nil {
			e.log.ErrorContext(ctx, "failed to remove unrecorded channel",
				zap.String("channel_id", ch.ID),
				zap.Error(derr),
			)
		}
		return
	}

	// Move is best-effort; the member can join by hand if it fails.
	if err := e.pf.MoveMember(ctx, guildID, memberID, ch.ID); err != nil {
		e.log.WarnContext(ctx, "failed to move member into new room",
			zap.String("channel_id", ch.ID),
			zap.String("member_id", memberID),
			zap.Error(err),
		)
	}

	e.notify.Notify(ctx, memberID, fmt.Sprintf(
		"I've created a temporary voice channel for you: **%s**\nYou can manage your channel in the interface channel.", name))

	e.publish(ctx, "room_created", guildID, ch.ID, memberID, "")

	e.log.InfoContext(ctx, "room created",
		zap.String("guild_id", guildID),
		zap.String("channel_id", ch.ID),
		zap.String("owner_id", memberID),
	)
}

// HandleMemberLeave reacts to a member leaving a voice channel. If the
// channel is a managed room and is now empty, both the channel and its
// record are removed. Membership is re-read from the platform at decision
// time; the event payload alone is never trusted.
func (e *Engine) HandleMemberLeave(ctx context.Context, guildID, memberID, channelID string) {
	_, err := e.rooms.FindByChannel(ctx, channelID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.ErrorContext(ctx, "failed to load room record",
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
		}
		return
	}

	members, err := e.pf.RoomMembers(ctx, guildID, channelID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// Channel already gone; prune the record.
			e.deleteRoomRecord(ctx, guildID, channelID)
			return
		}
		e.log.ErrorContext(ctx, "failed to read room membership",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return
	}
	if len(members) > 0 {
		return
	}

	if err := e.pf.DeleteChannel(ctx, channelID, "Temporary voice channel is empty"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		e.log.ErrorContext(ctx, "failed to delete empty room channel",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return
	}
	e.deleteRoomRecord(ctx, guildID, channelID)
}

func (e *Engine) deleteRoomRecord(ctx context.Context, guildID, channelID string) {
	if err := e.rooms.Delete(ctx, channelID); err != nil {
		e.log.ErrorContext(ctx, "failed to delete room record",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return
	}
	e.publish(ctx, "room_deleted", guildID, channelID, "", "")
	e.log.InfoContext(ctx, "room deleted",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
	)
}
