package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Gopher0727/TempVoice/internal/platform"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
)

type recordingHandler struct {
	mu        sync.Mutex
	perShard  map[string][]platform.PresenceUpdate
	panicOnce bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{perShard: make(map[string][]platform.PresenceUpdate)}
}

func (h *recordingHandler) HandleMemberJoin(_ context.Context, guildID, memberID, channelID string) {
	h.record(platform.PresenceUpdate{GuildID: guildID, MemberID: memberID, ChannelID: channelID, Joined: true})
}

func (h *recordingHandler) HandleMemberLeave(_ context.Context, guildID, memberID, channelID string) {
	h.mu.Lock()
	shouldPanic := h.panicOnce
	h.panicOnce = false
	h.mu.Unlock()
	if shouldPanic {
		panic("handler failure")
	}
	h.record(platform.PresenceUpdate{GuildID: guildID, MemberID: memberID, ChannelID: channelID, Joined: false})
}

func (h *recordingHandler) record(ev platform.PresenceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.perShard[ev.ChannelID] = append(h.perShard[ev.ChannelID], ev)
}

func (h *recordingHandler) events(channelID string) []platform.PresenceUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]platform.PresenceUpdate(nil), h.perShard[channelID]...)
}

type channelSource struct {
	ch chan platform.PresenceUpdate
}

func (s *channelSource) Events() <-chan platform.PresenceUpdate { return s.ch }

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestDispatcherPreservesPerChannelOrder(t *testing.T) {
	handler := newRecordingHandler()
	d := NewDispatcher(handler, nopLogger(), 4, 16)
	source := &channelSource{ch: make(chan platform.PresenceUpdate)}

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), source)
		close(done)
	}()

	channels := []string{"ch-a", "ch-b", "ch-c"}
	for i := 0; i < 20; i++ {
		for _, chID := range channels {
			source.ch <- platform.PresenceUpdate{
				GuildID:   "g1",
				MemberID:  "m1",
				ChannelID: chID,
				Joined:    i%2 == 0,
			}
		}
	}
	close(source.ch)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain")
	}

	for _, chID := range channels {
		got := handler.events(chID)
		require.Len(t, got, 20)
		for i, ev := range got {
			assert.Equal(t, i%2 == 0, ev.Joined, "event %d on %s out of order", i, chID)
		}
	}
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	handler := newRecordingHandler()
	handler.panicOnce = true
	d := NewDispatcher(handler, nopLogger(), 1, 16)
	source := &channelSource{ch: make(chan platform.PresenceUpdate, 4)}

	source.ch <- platform.PresenceUpdate{GuildID: "g1", MemberID: "m1", ChannelID: "ch-a", Joined: false}
	source.ch <- platform.PresenceUpdate{GuildID: "g1", MemberID: "m1", ChannelID: "ch-a", Joined: true}
	close(source.ch)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), source)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not survive the panic")
	}

	got := handler.events("ch-a")
	require.Len(t, got, 1)
	assert.True(t, got[0].Joined)
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	handler := newRecordingHandler()
	d := NewDispatcher(handler, nopLogger(), 2, 16)
	source := &channelSource{ch: make(chan platform.PresenceUpdate)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, source)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}

func TestShardRoutingIsStable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		shards := rapid.IntRange(1, 32).Draw(t, "shards")
		channelID := rapid.String().Draw(t, "channelID")

		d := NewDispatcher(newRecordingHandler(), nopLogger(), shards, 1)
		first := d.shardFor(channelID)
		for i := 0; i < 3; i++ {
			if got := d.shardFor(channelID); got != first {
				t.Fatalf("shard for %q changed from %d to %d", channelID, first, got)
			}
		}
		if first < 0 || first >= shards {
			t.Fatalf("shard %d out of range [0,%d)", first, shards)
		}
	})
}
