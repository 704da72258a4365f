package platform

// PresenceUpdate is one observed membership transition on a voice channel.
// A move between channels is delivered as a leave followed by a join.
type PresenceUpdate struct {
	GuildID   string
	MemberID  string
	ChannelID string
	// Joined is true when the member entered ChannelID and false when
	// they left it.
	Joined bool
}

// EventSource supplies the stream of presence transitions. Events for the
// same channel are emitted in observation order.
type EventSource interface {
	Events() <-chan PresenceUpdate
}
