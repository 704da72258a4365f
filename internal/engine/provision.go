package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
)

const (
	categoryName = "TempVoice"
	triggerName  = "➕ Create Channel"
	panelName    = "🔊 Interface"
)

// Setup provisions a guild: the category, the trigger channel members join
// to get a room, and the text channel holding the control panel. A broken
// previous setup is cleared so the caller can run Setup again; a valid one
// is left untouched.
func (e *Engine) Setup(ctx context.Context, guildID string, variant model.InterfaceVariant) Result {
	if variant == "" {
		variant = model.VariantStandard
	}

	state, err := e.Validate(ctx, guildID)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to validate existing setup",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while setting up.")
	}
	switch {
	case state.Valid():
		return fail("TempVoice is already set up in this server.")
	case state != SetupAbsent:
		if err := e.Repair(ctx, guildID); err != nil {
			return fail("An error occurred while setting up.")
		}
		return fail("%s The previous setup has been removed, run setup again.", state.Reason())
	}

	everyone := e.pf.EveryonePrincipal(guildID)
	bot := e.pf.Identity()

	category, err := e.pf.CreateCategory(ctx, guildID, categoryName, nil)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to create category",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while setting up.")
	}

	// Members can sit in the trigger channel but never talk there.
	trigger, err := e.pf.CreateVoiceChannel(ctx, guildID, category.ID, triggerName, []platform.GrantSpec{
		{Principal: everyone, Allow: platform.GrantConnect, Deny: platform.GrantSpeak},
	})
	if err != nil {
		e.log.ErrorContext(ctx, "failed to create trigger channel",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		e.cleanupProvisioned(ctx, category.ID)
		return fail("An error occurred while setting up.")
	}

	panel, err := e.pf.CreateTextChannel(ctx, guildID, category.ID, panelName, []platform.GrantSpec{
		{Principal: everyone, Allow: platform.GrantViewChannel | platform.GrantReadHistory, Deny: platform.GrantSendMessages},
		{Principal: bot, Allow: platform.GrantViewChannel | platform.GrantSendMessages | platform.GrantManageMessages | platform.GrantEmbedLinks},
	})
	if err != nil {
		e.log.ErrorContext(ctx, "failed to create panel channel",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		e.cleanupProvisioned(ctx, trigger.ID, category.ID)
		return fail("An error occurred while setting up.")
	}

	messageID, err := e.pf.SendPanelMessage(ctx, panel.ID, string(variant))
	if err != nil {
		e.log.ErrorContext(ctx, "failed to post panel message",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		e.cleanupProvisioned(ctx, panel.ID, trigger.ID, category.ID)
		return fail("An error occurred while setting up.")
	}

	cfg := &model.GuildConfig{
		GuildID:          guildID,
		CategoryID:       category.ID,
		TriggerChannelID: trigger.ID,
		PanelChannelID:   panel.ID,
		PanelMessageID:   messageID,
		InterfaceVariant: variant,
	}
	if err := e.configs.Save(ctx, cfg); err != nil {
		e.log.ErrorContext(ctx, "failed to persist setup record",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		e.cleanupProvisioned(ctx, panel.ID, trigger.ID, category.ID)
		return fail("An error occurred while setting up.")
	}

	e.publish(ctx, "setup_completed", guildID, category.ID, "", "")
	e.log.InfoContext(ctx, "guild provisioned",
		zap.String("guild_id", guildID),
		zap.String("category_id", category.ID),
	)
	return ok("TempVoice has been set up. Join **%s** to create a channel.", triggerName)
}

// NewCreator adds a fresh trigger channel to the guild's category and
// points the setup record at it. The previous trigger channel is left in
// place; it simply stops creating rooms.
func (e *Engine) NewCreator(ctx context.Context, guildID string) Result {
	cfg, err := e.configs.Find(ctx, guildID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail("TempVoice is not set up in this server.")
		}
		e.log.ErrorContext(ctx, "failed to load setup record",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new create channel.")
	}
	if _, err := e.pf.Channel(ctx, cfg.CategoryID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return fail("The TempVoice category no longer exists. Run setup again.")
		}
		e.log.ErrorContext(ctx, "failed to probe category",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new create channel.")
	}

	everyone := e.pf.EveryonePrincipal(guildID)
	trigger, err := e.pf.CreateVoiceChannel(ctx, guildID, cfg.CategoryID, triggerName, []platform.GrantSpec{
		{Principal: everyone, Allow: platform.GrantConnect, Deny: platform.GrantSpeak},
	})
	if err != nil {
		e.log.ErrorContext(ctx, "failed to create trigger channel",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new create channel.")
	}
	if err := e.configs.SetTriggerChannel(ctx, guildID, trigger.ID); err != nil {
		e.log.ErrorContext(ctx, "failed to record trigger channel",
			zap.String("guild_id", guildID),
			zap.String("channel_id", trigger.ID),
			zap.Error(err),
		)
		e.cleanupProvisioned(ctx, trigger.ID)
		return fail("An error occurred while creating a new create channel.")
	}

	e.publish(ctx, "trigger_replaced", guildID, trigger.ID, "", "")
	return ok("A new create channel has been added to the TempVoice category.")
}

// NewInterface posts a fresh control panel message in the guild's panel
// channel and records its ID. The previous message stays in the channel
// but is no longer tracked.
func (e *Engine) NewInterface(ctx context.Context, guildID string) Result {
	cfg, err := e.configs.Find(ctx, guildID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail("TempVoice is not set up in this server.")
		}
		e.log.ErrorContext(ctx, "failed to load setup record",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new interface message.")
	}
	if _, err := e.pf.Channel(ctx, cfg.PanelChannelID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return fail("The interface channel no longer exists. Run setup again.")
		}
		e.log.ErrorContext(ctx, "failed to probe panel channel",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new interface message.")
	}

	messageID, err := e.pf.SendPanelMessage(ctx, cfg.PanelChannelID, string(cfg.InterfaceVariant))
	if err != nil {
		e.log.ErrorContext(ctx, "failed to post panel message",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new interface message.")
	}
	if err := e.configs.SetPanel(ctx, guildID, cfg.PanelChannelID, messageID); err != nil {
		e.log.ErrorContext(ctx, "failed to record panel message",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return fail("An error occurred while creating a new interface message.")
	}

	e.publish(ctx, "panel_replaced", guildID, cfg.PanelChannelID, "", "")
	return ok("A new interface message has been created.")
}

// cleanupProvisioned tears down partially created setup channels. Children
// go before the category so nothing is orphaned if a delete fails midway.
func (e *Engine) cleanupProvisioned(ctx context.Context, channelIDs ...string) {
	for _, id := range channelIDs {
		if err := e.pf.DeleteChannel(ctx, id, "Setup failed"); err != nil {
			e.log.WarnContext(ctx, "failed to clean up setup channel",
				zap.String("channel_id", id),
				zap.Error(err),
			)
		}
	}
}
