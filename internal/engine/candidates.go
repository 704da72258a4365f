package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

// Candidates returns the members a picker for the given action should
// offer, filtered so that every listed member is a valid target. An empty
// list comes back with a Result explaining why.
func (e *Engine) Candidates(ctx context.Context, guildID, actorID string, kind Kind) ([]platform.Member, Result) {
	room, _, err := e.ownedRoom(ctx, guildID, actorID)
	if err != nil {
		return nil, e.resolveFailure(ctx, err, "listing users")
	}

	switch kind {
	case KindTrust:
		return e.guildCandidates(ctx, guildID, actorID, room.IsAllowed,
			"There are no users available to trust.")
	case KindBlock:
		return e.guildCandidates(ctx, guildID, actorID, room.IsBlocked,
			"There are no users available to block.")
	case KindInvite:
		return e.guildCandidates(ctx, guildID, actorID, room.IsBlocked,
			"There are no users available to invite.")
	case KindUntrust:
		return e.resolvedCandidates(ctx, guildID, room.AllowedUsers(),
			"There are no trusted users.")
	case KindUnblock:
		return e.resolvedCandidates(ctx, guildID, room.BlockedUsers(),
			"There are no blocked users.")
	case KindKick:
		return e.presentCandidates(ctx, guildID, actorID, room.ChannelID,
			"There is no one to kick from your voice channel.")
	case KindTransfer:
		return e.presentCandidates(ctx, guildID, actorID, room.ChannelID,
			"There is no one to transfer ownership to.")
	default:
		return nil, fail("This action does not take a user.")
	}
}

// guildCandidates enumerates guild members and drops bots, the actor and
// anyone the exclude predicate flags.
func (e *Engine) guildCandidates(ctx context.Context, guildID, actorID string, exclude func(string) bool, emptyMsg string) ([]platform.Member, Result) {
	members, err := e.guildMembers(ctx, guildID)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to enumerate guild members",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		return nil, fail("An error occurred while listing users.")
	}

	out := make([]platform.Member, 0, len(members))
	for _, m := range members {
		if m.Bot || m.ID == actorID || exclude(m.ID) {
			continue
		}
		out = append(out, m)
		if len(out) == e.opts.MemberFetchLimit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fail("%s", emptyMsg)
	}
	return out, Result{OK: true}
}

// resolvedCandidates turns a list of stored member IDs into member
// summaries. IDs the platform no longer knows are skipped.
func (e *Engine) resolvedCandidates(ctx context.Context, guildID string, ids []string, emptyMsg string) ([]platform.Member, Result) {
	out := make([]platform.Member, 0, len(ids))
	for _, id := range ids {
		m, err := e.pf.Member(ctx, guildID, id)
		if err != nil {
			continue
		}
		out = append(out, *m)
		if len(out) == e.opts.MemberFetchLimit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fail("%s", emptyMsg)
	}
	return out, Result{OK: true}
}

// presentCandidates lists the members connected to the room besides the
// actor.
func (e *Engine) presentCandidates(ctx context.Context, guildID, actorID, channelID, emptyMsg string) ([]platform.Member, Result) {
	ids, err := e.pf.RoomMembers(ctx, guildID, channelID)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to enumerate room members",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return nil, fail("An error occurred while listing users.")
	}

	var present []string
	for _, id := range ids {
		if id != actorID {
			present = append(present, id)
		}
	}
	return e.resolvedCandidates(ctx, guildID, present, emptyMsg)
}

// guildMembers enumerates guild members with a bounded live call, falling
// back to the cached directory when the platform is slow. Successful live
// reads refresh the cache.
func (e *Engine) guildMembers(ctx context.Context, guildID string) ([]platform.Member, error) {
	tctx, cancel := context.WithTimeout(ctx, e.opts.MemberFetchTimeout)
	defer cancel()

	members, err := e.pf.GuildMembers(tctx, guildID, e.opts.MemberFetchLimit)
	if err == nil {
		if cerr := e.members.Put(ctx, guildID, members); cerr != nil {
			e.log.DebugContext(ctx, "failed to refresh member cache",
				zap.String("guild_id", guildID),
				zap.Error(cerr),
			)
		}
		return members, nil
	}

	e.log.WarnContext(ctx, "live member enumeration failed, using cache",
		zap.String("guild_id", guildID),
		zap.Error(err),
	)
	cached, cerr := e.members.List(ctx, guildID)
	if cerr != nil || cached == nil {
		return nil, err
	}
	return cached, nil
}
