// Package platform defines the voice platform surface the engine consumes.
// The store is the canonical owner of room records; the platform is the
// independent source of truth for membership and object existence, and the
// engine reconciles the two.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the referenced channel, member or message no
	// longer exists on the platform.
	ErrNotFound = errors.New("platform object not found")
)

// ChannelType distinguishes the channel kinds the engine provisions.
type ChannelType int

const (
	ChannelCategory ChannelType = iota
	ChannelVoice
	ChannelText
)

// Channel is the platform view of a channel.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Type     ChannelType

	UserLimit int
	// EveryoneCanConnect reflects the live connect grant of the everyone
	// principal; it is the platform truth for the locked state.
	EveryoneCanConnect bool
}

// Member is a guild member summary used for candidate lists and target
// resolution.
type Member struct {
	ID          string
	DisplayName string
	Username    string
	Bot         bool
}

// Client is the platform API consumed by the engine. Implementations must
// return ErrNotFound (possibly wrapped) whenever the referenced object no
// longer exists, since the engine uses that signal to self-heal records.
type Client interface {
	// Identity returns the member ID of the system identity (the bot).
	Identity() string
	// EveryonePrincipal returns the principal ID addressing all guild
	// members in permission overrides.
	EveryonePrincipal(guildID string) string

	Channel(ctx context.Context, channelID string) (*Channel, error)
	CreateCategory(ctx context.Context, guildID, name string, grants []GrantSpec) (*Channel, error)
	CreateVoiceChannel(ctx context.Context, guildID, parentID, name string, grants []GrantSpec) (*Channel, error)
	CreateTextChannel(ctx context.Context, guildID, parentID, name string, grants []GrantSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetChannelUserLimit(ctx context.Context, channelID string, limit int) error

	SetGrant(ctx context.Context, channelID, principalID string, allow, deny Grant) error
	ClearGrant(ctx context.Context, channelID, principalID string) error

	// RoomMembers enumerates the members currently connected to a voice
	// channel. It returns ErrNotFound when the channel is gone.
	RoomMembers(ctx context.Context, guildID, channelID string) ([]string, error)
	GuildMembers(ctx context.Context, guildID string, limit int) ([]Member, error)
	Member(ctx context.Context, guildID, memberID string) (*Member, error)
	// MemberVoiceChannel returns the channel the member currently occupies,
	// or an empty string if they are not in voice.
	MemberVoiceChannel(ctx context.Context, guildID, memberID string) (string, error)

	MoveMember(ctx context.Context, guildID, memberID, channelID string) error
	DisconnectMember(ctx context.Context, guildID, memberID, reason string) error

	// SendDirectMessage is best-effort; callers discard its error.
	SendDirectMessage(ctx context.Context, memberID, content string) error
	// SendPanelMessage posts the control panel into the panel channel and
	// returns the message ID.
	SendPanelMessage(ctx context.Context, channelID string, variant string) (string, error)
}
