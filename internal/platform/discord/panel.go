package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Panel button custom IDs. The HTTP intent API is the canonical control
// surface; these IDs only label the rendered buttons.
const (
	buttonRename   = "voice_rename"
	buttonLimit    = "voice_limit"
	buttonLock     = "voice_lock"
	buttonTrust    = "voice_trust"
	buttonUntrust  = "voice_untrust"
	buttonInvite   = "voice_invite"
	buttonKick     = "voice_kick"
	buttonBlock    = "voice_block"
	buttonUnblock  = "voice_unblock"
	buttonClaim    = "voice_claim"
	buttonTransfer = "voice_transfer"
	buttonDelete   = "voice_delete"
)

// SendPanelMessage posts the control panel embed and buttons into the
// panel channel and returns the message ID.
func (c *Client) SendPanelMessage(ctx context.Context, channelID string, variant string) (string, error) {
	embed := &discordgo.MessageEmbed{
		Title: "Voice Channel Interface",
		Description: "Join the create channel to get your own voice channel, " +
			"then use the buttons below to manage it.",
		Color: 0x5865F2,
	}

	rows := panelRows(variant)

	msg, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: rows,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return msg.ID, nil
}

func panelRows(variant string) []discordgo.MessageComponent {
	row := func(buttons ...discordgo.MessageComponent) discordgo.ActionsRow {
		return discordgo.ActionsRow{Components: buttons}
	}
	btn := func(label, id string) discordgo.Button {
		return discordgo.Button{Label: label, Style: discordgo.SecondaryButton, CustomID: id}
	}

	if variant == "original" {
		// The original layout groups moderation actions on one row.
		return []discordgo.MessageComponent{
			row(btn("Name", buttonRename), btn("Limit", buttonLimit), btn("Privacy", buttonLock)),
			row(btn("Trust", buttonTrust), btn("Untrust", buttonUntrust), btn("Block", buttonBlock), btn("Unblock", buttonUnblock)),
			row(btn("Invite", buttonInvite), btn("Kick", buttonKick), btn("Claim", buttonClaim), btn("Transfer", buttonTransfer), btn("Delete", buttonDelete)),
		}
	}

	return []discordgo.MessageComponent{
		row(btn("Rename", buttonRename), btn("Limit", buttonLimit), btn("Lock", buttonLock), btn("Delete", buttonDelete)),
		row(btn("Trust", buttonTrust), btn("Untrust", buttonUntrust), btn("Invite", buttonInvite), btn("Kick", buttonKick)),
		row(btn("Block", buttonBlock), btn("Unblock", buttonUnblock), btn("Claim", buttonClaim), btn("Transfer", buttonTransfer)),
	}
}
