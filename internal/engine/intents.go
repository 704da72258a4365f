package engine

import (
	"context"
	"fmt"

	"github.com/Gopher0727/TempVoice/internal/model"
)

// Kind enumerates every operation a member can request. The set is closed:
// Dispatch matches each kind explicitly, so an unknown value is rejected
// up front instead of falling through a string-keyed handler table.
type Kind int

const (
	KindRename Kind = iota
	KindSetLimit
	KindToggleLock
	KindTrust
	KindUntrust
	KindInvite
	KindKick
	KindBlock
	KindUnblock
	KindTransfer
	KindClaim
	KindDelete
	KindSetup
	KindNewCreator
	KindNewInterface
)

var kindNames = map[Kind]string{
	KindRename:       "rename",
	KindSetLimit:     "limit",
	KindToggleLock:   "lock",
	KindTrust:        "trust",
	KindUntrust:      "untrust",
	KindInvite:       "invite",
	KindKick:         "kick",
	KindBlock:        "block",
	KindUnblock:      "unblock",
	KindTransfer:     "transfer",
	KindClaim:        "claim",
	KindDelete:       "delete",
	KindSetup:        "setup",
	KindNewCreator:   "new_creator",
	KindNewInterface: "new_interface",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a wire name back onto its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// NeedsTarget reports whether the kind requires a target member.
func (k Kind) NeedsTarget() bool {
	switch k {
	case KindTrust, KindUntrust, KindInvite, KindKick, KindBlock, KindUnblock, KindTransfer:
		return true
	default:
		return false
	}
}

// Intent is one requested operation with its arguments. Fields beyond
// Kind, GuildID and ActorID are meaningful only for the kinds that read
// them.
type Intent struct {
	Kind    Kind
	GuildID string
	ActorID string

	TargetID string
	Name     string
	Limit    int
	Variant  model.InterfaceVariant
}

// Dispatch routes an intent to its operation.
func (e *Engine) Dispatch(ctx context.Context, in Intent) Result {
	if in.Kind.NeedsTarget() && in.TargetID == "" {
		return fail("No target user was selected.")
	}
	switch in.Kind {
	case KindRename:
		return e.Rename(ctx, in.GuildID, in.ActorID, in.Name)
	case KindSetLimit:
		return e.SetLimit(ctx, in.GuildID, in.ActorID, in.Limit)
	case KindToggleLock:
		return e.ToggleLock(ctx, in.GuildID, in.ActorID)
	case KindTrust:
		return e.Trust(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindUntrust:
		return e.Untrust(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindInvite:
		return e.Invite(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindKick:
		return e.Kick(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindBlock:
		return e.Block(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindUnblock:
		return e.Unblock(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindTransfer:
		return e.Transfer(ctx, in.GuildID, in.ActorID, in.TargetID)
	case KindClaim:
		return e.Claim(ctx, in.GuildID, in.ActorID)
	case KindDelete:
		return e.DeleteRoom(ctx, in.GuildID, in.ActorID)
	case KindSetup:
		return e.Setup(ctx, in.GuildID, in.Variant)
	case KindNewCreator:
		return e.NewCreator(ctx, in.GuildID)
	case KindNewInterface:
		return e.NewInterface(ctx, in.GuildID)
	default:
		return fail("Unknown action.")
	}
}
