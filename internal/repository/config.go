package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/TempVoice/internal/model"
)

// IConfigRepository defines the interface for guild configuration records.
type IConfigRepository interface {
	Save(ctx context.Context, cfg *model.GuildConfig) error
	Find(ctx context.Context, guildID string) (*model.GuildConfig, error)
	SetTriggerChannel(ctx context.Context, guildID, channelID string) error
	SetPanel(ctx context.Context, guildID, channelID, messageID string) error
	Delete(ctx context.Context, guildID string) error
}

// ConfigRepository implements IConfigRepository on PostgreSQL.
type ConfigRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a new IConfigRepository instance
func NewConfigRepository(db *gorm.DB) IConfigRepository {
	return &ConfigRepository{db: db}
}

// Save inserts the configuration, replacing any existing record for the
// guild.
func (r *ConfigRepository) Save(ctx context.Context, cfg *model.GuildConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			UpdateAll: true,
		}).
		Create(cfg).Error
}

// Find returns the configuration for a guild, or ErrNotFound.
func (r *ConfigRepository) Find(ctx context.Context, guildID string) (*model.GuildConfig, error) {
	var cfg model.GuildConfig
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&cfg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

// SetTriggerChannel atomically replaces the trigger channel reference.
func (r *ConfigRepository) SetTriggerChannel(ctx context.Context, guildID, channelID string) error {
	return r.db.WithContext(ctx).
		Model(&model.GuildConfig{}).
		Where("guild_id = ?", guildID).
		Update("trigger_channel_id", channelID).Error
}

// SetPanel atomically replaces the panel channel and message references.
func (r *ConfigRepository) SetPanel(ctx context.Context, guildID, channelID, messageID string) error {
	return r.db.WithContext(ctx).
		Model(&model.GuildConfig{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]interface{}{
			"panel_channel_id": channelID,
			"panel_message_id": messageID,
		}).Error
}

// Delete removes the configuration. Deleting an absent record is a no-op.
func (r *ConfigRepository) Delete(ctx context.Context, guildID string) error {
	return r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Delete(&model.GuildConfig{}).Error
}
