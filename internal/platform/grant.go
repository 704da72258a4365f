package platform

// Grant is a set of per-channel permission flags. It covers only the
// permissions the engine manages; the adapter maps them to the platform's
// native permission bits.
type Grant uint32

const (
	GrantConnect Grant = 1 << iota
	GrantSpeak
	GrantMuteMembers
	GrantDeafenMembers
	GrantManageChannel
	GrantViewChannel
	GrantSendMessages
	GrantReadHistory
	GrantManageMessages
	GrantEmbedLinks
)

// GrantPresent is the default grant of a present, non-owning member.
const GrantPresent = GrantConnect | GrantSpeak

// GrantModerate is the full owner grant.
const GrantModerate = GrantPresent | GrantMuteMembers | GrantDeafenMembers | GrantManageChannel

// Has reports whether all flags in other are set.
func (g Grant) Has(other Grant) bool {
	return g&other == other
}

// GrantSpec is one per-principal permission override applied at channel
// creation time.
type GrantSpec struct {
	Principal string
	Allow     Grant
	Deny      Grant
}
