package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/audit"
	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/platform"
	"github.com/Gopher0727/TempVoice/internal/repository"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
)

// In-memory doubles for the engine's collaborators. They mirror the real
// implementations' contracts: repositories return repository.ErrNotFound,
// the platform returns platform.ErrNotFound, and access rows stay unique
// per (channel, user).

type fakeRooms struct {
	mu        sync.Mutex
	byChannel map[string]*model.Room

	createErr   error
	deleteErr   error
	allowErr    error
	blockErr    error
	clearErr    error
	setOwnerErr error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{byChannel: make(map[string]*model.Room)}
}

func (f *fakeRooms) Create(_ context.Context, room *model.Room) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *room
	f.byChannel[room.ChannelID] = &cp
	return nil
}

func (f *fakeRooms) FindByChannel(_ context.Context, channelID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.byChannel[channelID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *room
	cp.Access = append([]model.RoomAccess(nil), room.Access...)
	return &cp, nil
}

func (f *fakeRooms) FindByOwner(_ context.Context, guildID, ownerID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.byChannel {
		if room.GuildID == guildID && room.OwnerID == ownerID {
			cp := *room
			cp.Access = append([]model.RoomAccess(nil), room.Access...)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRooms) CountByGuild(_ context.Context, guildID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, room := range f.byChannel {
		if room.GuildID == guildID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRooms) Delete(_ context.Context, channelID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byChannel, channelID)
	return nil
}

func (f *fakeRooms) SetOwner(_ context.Context, channelID, ownerID string) error {
	if f.setOwnerErr != nil {
		return f.setOwnerErr
	}
	return f.update(channelID, func(r *model.Room) { r.OwnerID = ownerID })
}

func (f *fakeRooms) SetName(_ context.Context, channelID, name string) error {
	return f.update(channelID, func(r *model.Room) { r.Name = name })
}

func (f *fakeRooms) SetUserLimit(_ context.Context, channelID string, limit int) error {
	return f.update(channelID, func(r *model.Room) { r.UserLimit = limit })
}

func (f *fakeRooms) SetLocked(_ context.Context, channelID string, locked bool) error {
	return f.update(channelID, func(r *model.Room) { r.IsLocked = locked })
}

func (f *fakeRooms) Allow(_ context.Context, channelID, userID string) error {
	if f.allowErr != nil {
		return f.allowErr
	}
	return f.upsert(channelID, userID, model.AccessAllow)
}

func (f *fakeRooms) Block(_ context.Context, channelID, userID string) error {
	if f.blockErr != nil {
		return f.blockErr
	}
	return f.upsert(channelID, userID, model.AccessBlock)
}

func (f *fakeRooms) ClearAccess(_ context.Context, channelID, userID string, kind model.AccessKind) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.update(channelID, func(r *model.Room) {
		out := r.Access[:0]
		for _, a := range r.Access {
			if a.UserID == userID && a.Kind == kind {
				continue
			}
			out = append(out, a)
		}
		r.Access = out
	})
}

func (f *fakeRooms) upsert(channelID, userID string, kind model.AccessKind) error {
	return f.update(channelID, func(r *model.Room) {
		for i := range r.Access {
			if r.Access[i].UserID == userID {
				r.Access[i].Kind = kind
				return
			}
		}
		r.Access = append(r.Access, model.RoomAccess{
			ChannelID: channelID,
			UserID:    userID,
			Kind:      kind,
		})
	})
}

func (f *fakeRooms) update(channelID string, mutate func(*model.Room)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.byChannel[channelID]
	if !ok {
		return nil
	}
	mutate(room)
	return nil
}

type fakeConfigs struct {
	mu      sync.Mutex
	byGuild map[string]*model.GuildConfig

	saveErr       error
	deleteErr     error
	setTriggerErr error
	setPanelErr   error
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{byGuild: make(map[string]*model.GuildConfig)}
}

func (f *fakeConfigs) Save(_ context.Context, cfg *model.GuildConfig) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *cfg
	f.byGuild[cfg.GuildID] = &cp
	return nil
}

func (f *fakeConfigs) Find(_ context.Context, guildID string) (*model.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.byGuild[guildID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (f *fakeConfigs) SetTriggerChannel(_ context.Context, guildID, channelID string) error {
	if f.setTriggerErr != nil {
		return f.setTriggerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg, ok := f.byGuild[guildID]; ok {
		cfg.TriggerChannelID = channelID
	}
	return nil
}

func (f *fakeConfigs) SetPanel(_ context.Context, guildID, channelID, messageID string) error {
	if f.setPanelErr != nil {
		return f.setPanelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg, ok := f.byGuild[guildID]; ok {
		cfg.PanelChannelID = channelID
		cfg.PanelMessageID = messageID
	}
	return nil
}

func (f *fakeConfigs) Delete(_ context.Context, guildID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byGuild, guildID)
	return nil
}

type grantPair struct {
	allow platform.Grant
	deny  platform.Grant
}

// fakePlatform is an in-memory voice platform. The bot identity is "bot"
// and the everyone principal of a guild is the guild ID itself.
type fakePlatform struct {
	mu       sync.Mutex
	channels map[string]*platform.Channel
	members  map[string]platform.Member
	voice    map[string]string
	grants   map[string]map[string]grantPair
	dms      map[string][]string

	disconnected []string
	nextID       int
	nextMsg      int

	createErr     error
	deleteErr     error
	renameErr     error
	limitErr      error
	setGrantErr   error
	clearGrantErr error
	moveErr       error
	membersErr    error
	panelErr      error
	dmErr         error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels: make(map[string]*platform.Channel),
		members:  make(map[string]platform.Member),
		voice:    make(map[string]string),
		grants:   make(map[string]map[string]grantPair),
		dms:      make(map[string][]string),
	}
}

func (f *fakePlatform) addMember(m platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.ID] = m
}

func (f *fakePlatform) addChannel(ch platform.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := ch
	f.channels[ch.ID] = &cp
}

func (f *fakePlatform) connect(memberID, channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voice[memberID] = channelID
}

func (f *fakePlatform) grantOf(channelID, principalID string) grantPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[channelID][principalID]
}

func (f *fakePlatform) Identity() string { return "bot" }

func (f *fakePlatform) EveryonePrincipal(guildID string) string { return guildID }

func (f *fakePlatform) Channel(_ context.Context, channelID string) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (f *fakePlatform) CreateCategory(ctx context.Context, guildID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return f.create(guildID, "", name, platform.ChannelCategory, grants)
}

func (f *fakePlatform) CreateVoiceChannel(ctx context.Context, guildID, parentID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return f.create(guildID, parentID, name, platform.ChannelVoice, grants)
}

func (f *fakePlatform) CreateTextChannel(ctx context.Context, guildID, parentID, name string, grants []platform.GrantSpec) (*platform.Channel, error) {
	return f.create(guildID, parentID, name, platform.ChannelText, grants)
}

func (f *fakePlatform) create(guildID, parentID, name string, typ platform.ChannelType, grants []platform.GrantSpec) (*platform.Channel, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ch := &platform.Channel{
		ID:                 fmt.Sprintf("ch-%d", f.nextID),
		GuildID:            guildID,
		ParentID:           parentID,
		Name:               name,
		Type:               typ,
		EveryoneCanConnect: true,
	}
	f.channels[ch.ID] = ch
	for _, g := range grants {
		f.applyGrant(ch, g.Principal, g.Allow, g.Deny)
	}
	cp := *ch
	return &cp, nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID, _ string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	delete(f.grants, channelID)
	for memberID, chID := range f.voice {
		if chID == channelID {
			delete(f.voice, memberID)
		}
	}
	return nil
}

func (f *fakePlatform) RenameChannel(_ context.Context, channelID, name string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.Name = name
	return nil
}

func (f *fakePlatform) SetChannelUserLimit(_ context.Context, channelID string, limit int) error {
	if f.limitErr != nil {
		return f.limitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.UserLimit = limit
	return nil
}

func (f *fakePlatform) SetGrant(_ context.Context, channelID, principalID string, allow, deny platform.Grant) error {
	if f.setGrantErr != nil {
		return f.setGrantErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	f.applyGrant(ch, principalID, allow, deny)
	return nil
}

func (f *fakePlatform) applyGrant(ch *platform.Channel, principalID string, allow, deny platform.Grant) {
	if f.grants[ch.ID] == nil {
		f.grants[ch.ID] = make(map[string]grantPair)
	}
	f.grants[ch.ID][principalID] = grantPair{allow: allow, deny: deny}
	if principalID == ch.GuildID {
		ch.EveryoneCanConnect = !deny.Has(platform.GrantConnect)
	}
}

func (f *fakePlatform) ClearGrant(_ context.Context, channelID, principalID string) error {
	if f.clearGrantErr != nil {
		return f.clearGrantErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.grants[channelID], principalID)
	return nil
}

func (f *fakePlatform) RoomMembers(_ context.Context, _ string, channelID string) ([]string, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	var ids []string
	for memberID, chID := range f.voice {
		if chID == channelID {
			ids = append(ids, memberID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakePlatform) GuildMembers(ctx context.Context, guildID string, limit int) ([]platform.Member, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.Member, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePlatform) Member(_ context.Context, _ string, memberID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &m, nil
}

func (f *fakePlatform) MemberVoiceChannel(_ context.Context, _ string, memberID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voice[memberID], nil
}

func (f *fakePlatform) MoveMember(_ context.Context, _ string, memberID, channelID string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voice[memberID] = channelID
	return nil
}

func (f *fakePlatform) DisconnectMember(_ context.Context, _ string, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.voice, memberID)
	f.disconnected = append(f.disconnected, memberID)
	return nil
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, memberID, content string) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[memberID] = append(f.dms[memberID], content)
	return nil
}

func (f *fakePlatform) SendPanelMessage(_ context.Context, channelID, _ string) (string, error) {
	if f.panelErr != nil {
		return "", f.panelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return "", platform.ErrNotFound
	}
	f.nextMsg++
	return fmt.Sprintf("msg-%d", f.nextMsg), nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	byGuild map[string][]platform.Member

	putErr  error
	listErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byGuild: make(map[string][]platform.Member)}
}

func (f *fakeDirectory) Put(_ context.Context, guildID string, members []platform.Member) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byGuild[guildID] = append([]platform.Member(nil), members...)
	return nil
}

func (f *fakeDirectory) List(_ context.Context, guildID string) ([]platform.Member, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Member(nil), f.byGuild[guildID]...), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[string][]string)}
}

func (f *fakeNotifier) Notify(_ context.Context, memberID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[memberID] = append(f.sent[memberID], content)
}

type capturingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capturingAudit) Publish(_ context.Context, ev audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturingAudit) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Action)
	}
	return out
}

// testWorld bundles the engine with its doubles for inspection.
type testWorld struct {
	engine  *Engine
	rooms   *fakeRooms
	configs *fakeConfigs
	pf      *fakePlatform
	dir     *fakeDirectory
	notes   *fakeNotifier
	audit   *capturingAudit
}

func newTestWorld() *testWorld {
	w := &testWorld{
		rooms:   newFakeRooms(),
		configs: newFakeConfigs(),
		pf:      newFakePlatform(),
		dir:     newFakeDirectory(),
		notes:   newFakeNotifier(),
		audit:   &capturingAudit{},
	}
	w.engine = New(
		w.rooms, w.configs, w.pf, w.dir, w.notes, w.audit,
		&logger.Logger{Logger: zap.NewNop()},
		Options{MemberFetchLimit: 25, MemberFetchTimeout: time.Second},
	)
	return w
}

const testGuild = "guild-1"

// seedRoom creates a live room on the platform and its matching record.
func (w *testWorld) seedRoom(ownerID string) *model.Room {
	ch, err := w.pf.CreateVoiceChannel(context.Background(), testGuild, "cat-1", ownerID+"'s Channel", []platform.GrantSpec{
		{Principal: testGuild, Allow: platform.GrantPresent},
		{Principal: ownerID, Allow: platform.GrantModerate},
	})
	if err != nil {
		panic(err)
	}
	room := &model.Room{
		GuildID:   testGuild,
		ChannelID: ch.ID,
		OwnerID:   ownerID,
		Name:      ch.Name,
	}
	if err := w.rooms.Create(context.Background(), room); err != nil {
		panic(err)
	}
	w.pf.connect(ownerID, ch.ID)
	return room
}

// seedSetup provisions a valid guild setup directly.
func (w *testWorld) seedSetup() *model.GuildConfig {
	w.pf.addChannel(platform.Channel{ID: "cat-1", GuildID: testGuild, Name: "TempVoice", Type: platform.ChannelCategory})
	w.pf.addChannel(platform.Channel{ID: "trigger-1", GuildID: testGuild, ParentID: "cat-1", Type: platform.ChannelVoice, EveryoneCanConnect: true})
	w.pf.addChannel(platform.Channel{ID: "panel-1", GuildID: testGuild, ParentID: "cat-1", Type: platform.ChannelText})
	cfg := &model.GuildConfig{
		GuildID:          testGuild,
		CategoryID:       "cat-1",
		TriggerChannelID: "trigger-1",
		PanelChannelID:   "panel-1",
		PanelMessageID:   "msg-0",
		InterfaceVariant: model.VariantStandard,
	}
	if err := w.configs.Save(context.Background(), cfg); err != nil {
		panic(err)
	}
	return cfg
}
