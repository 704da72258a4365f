package model

import "time"

// InterfaceVariant selects which control-panel layout a guild uses.
type InterfaceVariant string

const (
	VariantStandard InterfaceVariant = "standard"
	VariantOriginal InterfaceVariant = "original"
)

// GuildConfig is the per-guild provisioning record. It is valid only while
// the category, trigger channel and panel channel all still exist on the
// platform; the consistency checker prunes it otherwise.
type GuildConfig struct {
	GuildID          string           `gorm:"primaryKey;type:varchar(64)" json:"guild_id"`
	CategoryID       string           `gorm:"not null;type:varchar(64)" json:"category_id"`
	TriggerChannelID string           `gorm:"not null;type:varchar(64)" json:"trigger_channel_id"`
	PanelChannelID   string           `gorm:"not null;type:varchar(64)" json:"panel_channel_id"`
	PanelMessageID   string           `gorm:"type:varchar(64)" json:"panel_message_id"`
	InterfaceVariant InterfaceVariant `gorm:"not null;type:varchar(16);default:standard" json:"interface_variant"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GuildConfig) TableName() string {
	return "guild_configs"
}
