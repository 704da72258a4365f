// Package discord adapts the platform.Client surface onto the Discord API
// via discordgo. REST 404s are translated to platform.ErrNotFound so the
// engine can self-heal records for objects deleted out from under it.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

var grantBits = map[platform.Grant]int64{
	platform.GrantConnect:        discordgo.PermissionVoiceConnect,
	platform.GrantSpeak:          discordgo.PermissionVoiceSpeak,
	platform.GrantMuteMembers:    discordgo.PermissionVoiceMuteMembers,
	platform.GrantDeafenMembers:  discordgo.PermissionVoiceDeafenMembers,
	platform.GrantManageChannel:  discordgo.PermissionManageChannels,
	platform.GrantViewChannel:    discordgo.PermissionViewChannel,
	platform.GrantSendMessages:   discordgo.PermissionSendMessages,
	platform.GrantReadHistory:    discordgo.PermissionReadMessageHistory,
	platform.GrantManageMessages: discordgo.PermissionManageMessages,
	platform.GrantEmbedLinks:     discordgo.PermissionEmbedLinks,
}

// Client implements platform.Client over a discordgo session.
type Client struct {
	session *discordgo.Session
	events  chan platform.PresenceUpdate
}

// NewClient wraps an opened discordgo session. The session must have the
// guilds, voice-state and members intents enabled.
func NewClient(session *discordgo.Session) *Client {
	c := &Client{
		session: session,
		events:  make(chan platform.PresenceUpdate, 64),
	}
	session.AddHandler(c.onVoiceStateUpdate)
	return c
}

// Identity returns the bot's member ID.
func (c *Client) Identity() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

// EveryonePrincipal returns the everyone role ID, which Discord defines to
// equal the guild ID.
func (c *Client) EveryonePrincipal(guildID string) string {
	return guildID
}

func (c *Client) Channel(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return c.toChannel(ch), nil
}

func (c *Client) CreateCategory(ctx context.Context, guildID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return c.createChannel(ctx, guildID, "", name, discordgo.ChannelTypeGuildCategory, grants)
}

func (c *Client) CreateVoiceChannel(ctx context.Context, guildID, parentID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return c.createChannel(ctx, guildID, parentID, name, discordgo.ChannelTypeGuildVoice, grants)
}

func (c *Client) CreateTextChannel(ctx context.Context, guildID, parentID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return c.createChannel(ctx, guildID, parentID, name, discordgo.ChannelTypeGuildText, grants)
}

func (c *Client) createChannel(ctx context.Context, guildID, parentID, name string, chType discordgo.ChannelType, grants []platform.GrantSpec) (*platform.Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(grants))
	for _, g := range grants {
		owType := discordgo.PermissionOverwriteTypeMember
		if g.Principal == guildID {
			owType = discordgo.PermissionOverwriteTypeRole
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    g.Principal,
			Type:  owType,
			Allow: toBits(g.Allow),
			Deny:  toBits(g.Deny),
		})
	}

	ch, err := c.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 chType,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return c.toChannel(ch), nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := c.session.ChannelDelete(channelID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError(err)
}

func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name},
		discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) SetChannelUserLimit(ctx context.Context, channelID string, limit int) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{UserLimit: limit},
		discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) SetGrant(ctx context.Context, channelID, principalID string, allow, deny platform.Grant) error {
	owType := discordgo.PermissionOverwriteTypeMember
	if ch, err := c.session.State.Channel(channelID); err == nil && ch.GuildID == principalID {
		owType = discordgo.PermissionOverwriteTypeRole
	}
	err := c.session.ChannelPermissionSet(channelID, principalID, owType,
		toBits(allow), toBits(deny), discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) ClearGrant(ctx context.Context, channelID, principalID string) error {
	err := c.session.ChannelPermissionDelete(channelID, principalID,
		discordgo.WithContext(ctx))
	return mapError(err)
}

// RoomMembers verifies the channel still exists, then counts occupants
// from the gateway voice state. The REST round-trip is deliberate: the
// emptiness decision must read existence at decision time, not trust the
// event payload.
func (c *Client) RoomMembers(ctx context.Context, guildID, channelID string) ([]string, error) {
	if _, err := c.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		return nil, mapError(err)
	}

	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		return nil, mapError(err)
	}

	var members []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			members = append(members, vs.UserID)
		}
	}
	return members, nil
}

func (c *Client) GuildMembers(ctx context.Context, guildID string, limit int) ([]platform.Member, error) {
	raw, err := c.session.GuildMembers(guildID, "", limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	members := make([]platform.Member, 0, len(raw))
	for _, m := range raw {
		members = append(members, toMember(m))
	}
	return members, nil
}

func (c *Client) Member(ctx context.Context, guildID, memberID string) (*platform.Member, error) {
	if m, err := c.session.State.Member(guildID, memberID); err == nil {
		member := toMember(m)
		return &member, nil
	}
	m, err := c.session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	member := toMember(m)
	return &member, nil
}

func (c *Client) MemberVoiceChannel(ctx context.Context, guildID, memberID string) (string, error) {
	vs, err := c.session.State.VoiceState(guildID, memberID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return "", nil
		}
		return "", err
	}
	return vs.ChannelID, nil
}

func (c *Client) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	err := c.session.GuildMemberMove(guildID, memberID, &channelID,
		discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) DisconnectMember(ctx context.Context, guildID, memberID, reason string) error {
	err := c.session.GuildMemberMove(guildID, memberID, nil,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError(err)
}

func (c *Client) SendDirectMessage(ctx context.Context, memberID, content string) error {
	dm, err := c.session.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	_, err = c.session.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) toChannel(ch *discordgo.Channel) *platform.Channel {
	var chType platform.ChannelType
	switch ch.Type {
	case discordgo.ChannelTypeGuildCategory:
		chType = platform.ChannelCategory
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		chType = platform.ChannelVoice
	default:
		chType = platform.ChannelText
	}

	everyoneConnect := true
	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == ch.GuildID && ow.Deny&discordgo.PermissionVoiceConnect != 0 {
			everyoneConnect = false
		}
	}

	return &platform.Channel{
		ID:                 ch.ID,
		GuildID:            ch.GuildID,
		ParentID:           ch.ParentID,
		Name:               ch.Name,
		Type:               chType,
		UserLimit:          ch.UserLimit,
		EveryoneCanConnect: everyoneConnect,
	}
}

func toMember(m *discordgo.Member) platform.Member {
	member := platform.Member{DisplayName: m.Nick}
	// Partial gateway payloads can omit the user object.
	if m.User == nil {
		return member
	}
	member.ID = m.User.ID
	member.Username = m.User.Username
	member.Bot = m.User.Bot
	if member.DisplayName == "" {
		if m.User.GlobalName != "" {
			member.DisplayName = m.User.GlobalName
		} else {
			member.DisplayName = m.User.Username
		}
	}
	return member
}

func toBits(g platform.Grant) int64 {
	var bits int64
	for flag, bit := range grantBits {
		if g.Has(flag) {
			bits |= bit
		}
	}
	return bits
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	return err
}
