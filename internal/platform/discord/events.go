package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

// Events returns the presence transition stream. Transitions for the same
// channel are emitted in gateway order.
func (c *Client) Events() <-chan platform.PresenceUpdate {
	return c.events
}

// onVoiceStateUpdate converts a gateway voice-state update into presence
// transitions. A move between channels becomes a leave followed by a join
// so that the lifecycle controller sees both sides.
func (c *Client) onVoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil {
		return
	}

	var before string
	if e.BeforeUpdate != nil {
		before = e.BeforeUpdate.ChannelID
	}
	after := e.ChannelID

	if before == after {
		return
	}

	if before != "" {
		c.events <- platform.PresenceUpdate{
			GuildID:   e.GuildID,
			MemberID:  e.UserID,
			ChannelID: before,
			Joined:    false,
		}
	}
	if after != "" {
		c.events <- platform.PresenceUpdate{
			GuildID:   e.GuildID,
			MemberID:  e.UserID,
			ChannelID: after,
			Joined:    true,
		}
	}
}
