package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
)

// Validation is the outcome of a guild setup consistency check.
type Validation int

const (
	// SetupValid means the stored setup references live channels.
	SetupValid Validation = iota
	// SetupAbsent means the guild has no stored setup.
	SetupAbsent
	// SetupCategoryMissing means the recorded category is gone.
	SetupCategoryMissing
	// SetupTriggerMissing means the recorded trigger channel is gone.
	SetupTriggerMissing
	// SetupPanelMissing means the recorded panel channel is gone.
	SetupPanelMissing
)

// Reason renders the check outcome for the member who asked.
func (v Validation) Reason() string {
	switch v {
	case SetupValid:
		return "Setup is valid."
	case SetupAbsent:
		return "TempVoice is not set up in this server."
	case SetupCategoryMissing:
		return "The TempVoice category no longer exists."
	case SetupTriggerMissing:
		return "The create channel no longer exists."
	case SetupPanelMissing:
		return "The interface channel no longer exists."
	default:
		return "Setup state is unknown."
	}
}

// Valid reports whether the setup is usable as recorded.
func (v Validation) Valid() bool {
	return v == SetupValid
}

// Validate checks the guild's stored setup against live platform state.
// Channels are probed in dependency order; the first missing one decides
// the outcome.
func (e *Engine) Validate(ctx context.Context, guildID string) (Validation, error) {
	cfg, err := e.configs.Find(ctx, guildID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SetupAbsent, nil
		}
		return SetupAbsent, err
	}

	probes := []struct {
		channelID string
		missing   Validation
	}{
		{cfg.CategoryID, SetupCategoryMissing},
		{cfg.TriggerChannelID, SetupTriggerMissing},
		{cfg.PanelChannelID, SetupPanelMissing},
	}
	for _, p := range probes {
		if _, err := e.pf.Channel(ctx, p.channelID); err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				return p.missing, nil
			}
			return SetupValid, err
		}
	}
	return SetupValid, nil
}

// Repair drops a setup record that Validate found broken. Remaining
// channels from the partial setup are left alone; only the record that
// points at missing ones is removed, so the guild can run setup again.
func (e *Engine) Repair(ctx context.Context, guildID string) error {
	if err := e.configs.Delete(ctx, guildID); err != nil {
		e.log.ErrorContext(ctx, "failed to delete broken setup record",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return err
	}
	e.publish(ctx, "setup_repaired", guildID, "", "", "")
	e.log.InfoContext(ctx, "broken setup record removed",
		zap.String("guild_id", guildID),
	)
	return nil
}
