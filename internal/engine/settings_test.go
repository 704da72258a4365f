package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
)

func TestRename(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")

	res := w.engine.Rename(context.Background(), testGuild, "alice", "Chill Zone")
	require.True(t, res.OK)

	got, err := w.rooms.FindByChannel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, "Chill Zone", got.Name)

	ch, err := w.pf.Channel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, "Chill Zone", ch.Name)
}

func TestRenameValidation(t *testing.T) {
	w := newTestWorld()
	w.seedRoom("alice")

	for _, name := range []string{"", "   ", strings.Repeat("x", 101)} {
		res := w.engine.Rename(context.Background(), testGuild, "alice", name)
		assert.False(t, res.OK)
		assert.Equal(t, "Channel names must be between 1 and 100 characters.", res.Message)
	}
}

func TestRenameRollsBackOnPlatformFailure(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")
	w.pf.renameErr = errors.New("api down")

	res := w.engine.Rename(context.Background(), testGuild, "alice", "Chill Zone")
	assert.False(t, res.OK)

	got, err := w.rooms.FindByChannel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
}

func TestSetLimit(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")

	res := w.engine.SetLimit(context.Background(), testGuild, "alice", 5)
	require.True(t, res.OK)
	assert.Equal(t, "The user limit has been set to 5.", res.Message)

	ch, err := w.pf.Channel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, 5, ch.UserLimit)
}

func TestSetLimitZeroRemovesCap(t *testing.T) {
	w := newTestWorld()
	w.seedRoom("alice")
	require.True(t, w.engine.SetLimit(context.Background(), testGuild, "alice", 5).OK)

	res := w.engine.SetLimit(context.Background(), testGuild, "alice", 0)
	require.True(t, res.OK)
	assert.Equal(t, "The user limit has been removed.", res.Message)
}

func TestSetLimitValidation(t *testing.T) {
	w := newTestWorld()
	w.seedRoom("alice")

	for _, limit := range []int{-1, 100} {
		res := w.engine.SetLimit(context.Background(), testGuild, "alice", limit)
		assert.False(t, res.OK)
		assert.Equal(t, "The user limit must be between 0 and 99.", res.Message)
	}
}

func TestToggleLock(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")

	res := w.engine.ToggleLock(context.Background(), testGuild, "alice")
	require.True(t, res.OK)
	assert.Equal(t, "Your voice channel has been locked.", res.Message)

	ch, err := w.pf.Channel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.False(t, ch.EveryoneCanConnect)

	got, err := w.rooms.FindByChannel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)

	res = w.engine.ToggleLock(context.Background(), testGuild, "alice")
	require.True(t, res.OK)
	assert.Equal(t, "Your voice channel has been unlocked.", res.Message)

	ch, err = w.pf.Channel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.True(t, ch.EveryoneCanConnect)
}

func TestToggleLockKeepsTrustedGrant(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")
	w.pf.addMember(platform.Member{ID: "bob", DisplayName: "Bob"})
	require.True(t, w.engine.Trust(context.Background(), testGuild, "alice", "bob").OK)

	require.True(t, w.engine.ToggleLock(context.Background(), testGuild, "alice").OK)

	// The lock denies the everyone principal only.
	assert.True(t, w.pf.grantOf(room.ChannelID, "bob").allow.Has(platform.GrantConnect))
	assert.False(t, w.pf.grantOf(room.ChannelID, "bob").deny.Has(platform.GrantConnect))
}

func TestToggleLockRollsBackOnGrantFailure(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")
	w.pf.setGrantErr = errors.New("api down")

	res := w.engine.ToggleLock(context.Background(), testGuild, "alice")
	assert.False(t, res.OK)

	got, err := w.rooms.FindByChannel(context.Background(), room.ChannelID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
}

func TestDeleteRoom(t *testing.T) {
	w := newTestWorld()
	room := w.seedRoom("alice")

	res := w.engine.DeleteRoom(context.Background(), testGuild, "alice")
	require.True(t, res.OK)
	assert.Equal(t, "Your voice channel has been deleted.", res.Message)

	_, err := w.pf.Channel(context.Background(), room.ChannelID)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	_, err = w.rooms.FindByChannel(context.Background(), room.ChannelID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteRoomWithoutRoom(t *testing.T) {
	w := newTestWorld()

	res := w.engine.DeleteRoom(context.Background(), testGuild, "alice")
	assert.False(t, res.OK)
	assert.Equal(t, msgNoRoom, res.Message)
}
