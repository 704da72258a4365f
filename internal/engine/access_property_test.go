package engine

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

// The allow and block lists of a room must stay disjoint under any
// sequence of trust, untrust, block and unblock operations.

type accessOp struct {
	verb   int
	target string
}

func genAccessOps() gopter.Gen {
	targets := []string{"bob", "carol", "dave"}
	genOp := gopter.CombineGens(
		gen.IntRange(0, 3),
		gen.IntRange(0, len(targets)-1),
	).Map(func(vals []interface{}) accessOp {
		return accessOp{verb: vals[0].(int), target: targets[vals[1].(int)]}
	})
	return gen.SliceOf(genOp)
}

func TestAccessListsStayDisjoint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("allow and block lists never intersect", prop.ForAll(
		func(ops []accessOp) bool {
			w := newTestWorld()
			room := w.seedRoom("alice")
			for _, name := range []string{"bob", "carol", "dave"} {
				w.pf.addMember(platform.Member{ID: name, DisplayName: name})
			}

			ctx := context.Background()
			for _, op := range ops {
				switch op.verb {
				case 0:
					w.engine.Trust(ctx, testGuild, "alice", op.target)
				case 1:
					w.engine.Untrust(ctx, testGuild, "alice", op.target)
				case 2:
					w.engine.Block(ctx, testGuild, "alice", op.target)
				case 3:
					w.engine.Unblock(ctx, testGuild, "alice", op.target)
				}

				got, err := w.rooms.FindByChannel(ctx, room.ChannelID)
				if err != nil {
					return false
				}
				blocked := make(map[string]bool)
				for _, id := range got.BlockedUsers() {
					blocked[id] = true
				}
				for _, id := range got.AllowedUsers() {
					if blocked[id] {
						return false
					}
				}
			}
			return true
		},
		genAccessOps(),
	))

	properties.TestingRun(t)
}
