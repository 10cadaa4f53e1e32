package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/HangHub/internal/bus"
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// EchoRefresh also sends refresh to the session that caused the change.
	EchoRefresh bool
	// HeartbeatInterval is how often held rooms are republished. Zero disables.
	HeartbeatInterval time.Duration
	// OriginTTL expires remote processes not heard from. Zero disables.
	OriginTTL time.Duration
}

type originView struct {
	seq     uint64
	members []domain.Member // nil for a process that left; kept to reject older messages
	seen    time.Time
}

// roomView is the remote half of a room. Guarded by the room lock.
type roomView struct {
	remote     map[string]*originView
	delivered  []domain.User
	subscribed bool
}

// RoomManager applies membership changes to the local Store and fans the
// resulting snapshot out to local sessions and, through the bus, to other
// processes. Mutations are serialized per room; different rooms proceed
// independently. Nothing is published while a room lock is held.
type RoomManager struct {
	store    *core.Store
	bus      bus.Bus
	notifier core.Notifier
	origin   string
	opts     Options
	now      func() time.Time

	locks  roomLocks
	seq    atomic.Uint64
	closed atomic.Bool

	mu    sync.Mutex
	views map[domain.RoomKey]*roomView
}

var (
	_ core.RoomManager = (*RoomManager)(nil)
	_ bus.Handler      = (*RoomManager)(nil)
)

func NewRoomManager(store *core.Store, b bus.Bus, n core.Notifier, opts Options) *RoomManager {
	return &RoomManager{
		store:    store,
		bus:      b,
		notifier: n,
		origin:   uuid.NewString(),
		opts:     opts,
		now:      time.Now,
		views:    make(map[domain.RoomKey]*roomView),
	}
}

// Origin identifies this process on the bus.
func (m *RoomManager) Origin() string { return m.origin }

func (m *RoomManager) Join(ctx context.Context, key domain.RoomKey, sid core.SessionID, user domain.User) ([]domain.User, error) {
	if err := validateJoin(key, user); err != nil {
		return nil, err
	}
	unlock := m.locks.lock(key)
	v := m.view(key)
	kind := bus.KindSnapshot
	if !v.subscribed {
		if err := m.bus.Subscribe(ctx, key, m); err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", key.String()).Msg("subscribe failed, remote viewers may be stale")
		}
		v.subscribed = true
		kind = bus.KindSync
	}
	local := m.store.Join(key, sid, user)
	// Remote viewers are not awaited: the first joiner's ack may list only
	// local viewers, the rest arrive as a refresh once the sync is answered.
	users := m.fanout(key, v, local, sid)
	msg := m.outgoing(kind, key, local)
	unlock()

	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", key.String()).Str("login", user.Login).Msg("joined")
	m.publish(ctx, msg)
	return users, nil
}

func (m *RoomManager) Update(ctx context.Context, key domain.RoomKey, sid core.SessionID, user domain.User) ([]domain.User, error) {
	if err := validateJoin(key, user); err != nil {
		return nil, err
	}
	unlock := m.locks.lock(key)
	local, err := m.store.Update(key, sid, user)
	if err != nil {
		users := m.merged(m.existing(key), local)
		unlock()
		return users, err
	}
	users := m.fanout(key, m.view(key), local, sid)
	msg := m.outgoing(bus.KindSnapshot, key, local)
	unlock()

	m.publish(ctx, msg)
	return users, nil
}

func (m *RoomManager) Leave(ctx context.Context, key domain.RoomKey, sid core.SessionID) ([]domain.User, error) {
	unlock := m.locks.lock(key)
	local, err := m.store.Leave(key, sid)
	if err != nil {
		users := m.merged(m.existing(key), local)
		unlock()
		return users, err
	}
	v := m.view(key)
	var users []domain.User
	if len(m.store.Sessions(key)) == 0 {
		users = m.merged(v, local)
		if err := m.bus.Unsubscribe(ctx, key, m); err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", key.String()).Msg("unsubscribe failed")
		}
		m.dropView(key)
	} else {
		users = m.fanout(key, v, local, "")
	}
	msg := m.outgoing(bus.KindSnapshot, key, local)
	unlock()

	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", key.String()).Msg("left")
	m.publish(ctx, msg)
	return users, nil
}

func (m *RoomManager) Snapshot(key domain.RoomKey) []domain.User {
	unlock := m.locks.lock(key)
	defer unlock()
	return m.merged(m.existing(key), m.store.Members(key))
}

func (m *RoomManager) List() []core.RoomInfo {
	keys := m.store.Rooms()
	out := make([]core.RoomInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.RoomInfo{Room: k, MemberCount: len(m.Snapshot(k))})
	}
	return out
}

// HandleMessage applies another process's snapshot. Stale and duplicate
// messages are dropped by sequence; local sessions are refreshed only when
// the merged snapshot actually changes.
func (m *RoomManager) HandleMessage(msg bus.Message) {
	if msg.Origin == m.origin {
		return
	}
	key := msg.Room
	unlock := m.locks.lock(key)
	v := m.existing(key)
	if v == nil || !v.subscribed {
		unlock()
		return
	}
	local := m.store.Members(key)
	if m.apply(v, msg) {
		m.refreshIfChanged(key, v, local)
	}
	var reply *bus.Message
	if msg.Kind == bus.KindSync && len(local) > 0 {
		reply = m.outgoing(bus.KindSnapshot, key, local)
	}
	unlock()

	m.publish(context.Background(), reply)
}

// Run republishes held rooms and expires silent processes until ctx ends.
func (m *RoomManager) Run(ctx context.Context) error {
	if m.opts.HeartbeatInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.heartbeat(ctx)
		}
	}
}

func (m *RoomManager) heartbeat(ctx context.Context) {
	for _, key := range m.store.Rooms() {
		unlock := m.locks.lock(key)
		local := m.store.Members(key)
		if v := m.existing(key); v != nil && m.expire(v) {
			m.refreshIfChanged(key, v, local)
		}
		var msg *bus.Message
		if len(local) > 0 {
			msg = m.outgoing(bus.KindSnapshot, key, local)
		}
		unlock()
		m.publish(ctx, msg)
	}
}

// Close tells other processes this one no longer holds any viewers.
// Local mutations after Close still update local sessions but publish
// nothing, so a late leave cannot resurrect members behind the empty list.
func (m *RoomManager) Close(ctx context.Context) {
	m.closed.Store(true)
	for _, key := range m.store.Rooms() {
		unlock := m.locks.lock(key)
		msg := m.message(bus.KindSnapshot, key, nil)
		unlock()
		m.publish(ctx, &msg)
	}
}

func (m *RoomManager) apply(v *roomView, msg bus.Message) bool {
	ov := v.remote[msg.Origin]
	if ov != nil && msg.Seq <= ov.seq {
		return false
	}
	members := msg.Members
	if len(members) == 0 {
		members = nil
	}
	v.remote[msg.Origin] = &originView{seq: msg.Seq, members: members, seen: m.now()}
	return true
}

func (m *RoomManager) expire(v *roomView) bool {
	if m.opts.OriginTTL <= 0 {
		return false
	}
	cutoff := m.now().Add(-m.opts.OriginTTL)
	changed := false
	for origin, ov := range v.remote {
		if ov.seen.Before(cutoff) {
			delete(v.remote, origin)
			changed = true
			log.Info().Str("module", "app.rooms").Str("origin", origin).Msg("expired silent process")
		}
	}
	return changed
}

func (m *RoomManager) refreshIfChanged(key domain.RoomKey, v *roomView, local []domain.Member) {
	users := m.merged(v, local)
	if domain.SameUsers(users, v.delivered) {
		return
	}
	m.notifyAll(key, users, "")
	v.delivered = users
}

// fanout pushes a local mutation's snapshot to every local session in the
// room. skip is the mutating session, left out when echo is disabled.
func (m *RoomManager) fanout(key domain.RoomKey, v *roomView, local []domain.Member, skip core.SessionID) []domain.User {
	users := m.merged(v, local)
	if m.opts.EchoRefresh {
		skip = ""
	}
	m.notifyAll(key, users, skip)
	v.delivered = users
	return users
}

func (m *RoomManager) notifyAll(key domain.RoomKey, users []domain.User, skip core.SessionID) {
	for _, sid := range m.store.Sessions(key) {
		if sid == skip {
			continue
		}
		if err := m.notifier.Notify(sid, key, users); err != nil {
			log.Debug().Err(err).Str("module", "app.rooms").Str("sid", string(sid)).Msg("refresh not delivered")
		}
	}
}

func (m *RoomManager) merged(v *roomView, local []domain.Member) []domain.User {
	all := make([]domain.Member, 0, len(local))
	all = append(all, local...)
	if v != nil {
		origins := make([]string, 0, len(v.remote))
		for o := range v.remote {
			origins = append(origins, o)
		}
		sort.Strings(origins)
		for _, o := range origins {
			all = append(all, v.remote[o].members...)
		}
	}
	return domain.Users(domain.Collapse(all))
}

func (m *RoomManager) message(kind bus.Kind, key domain.RoomKey, local []domain.Member) bus.Message {
	return bus.Message{
		Kind:    kind,
		Origin:  m.origin,
		Seq:     m.seq.Add(1),
		Room:    key,
		Members: local,
	}
}

// outgoing builds the message for a local change, or nil once closed.
// Call it under the room lock.
func (m *RoomManager) outgoing(kind bus.Kind, key domain.RoomKey, local []domain.Member) *bus.Message {
	if m.closed.Load() {
		return nil
	}
	msg := m.message(kind, key, local)
	return &msg
}

func (m *RoomManager) publish(ctx context.Context, msg *bus.Message) {
	if msg == nil {
		return
	}
	if err := m.bus.Publish(ctx, *msg); err != nil {
		log.Warn().Err(err).Str("module", "app.rooms").Str("room", msg.Room.String()).Msg("publish failed")
	}
}

func (m *RoomManager) view(key domain.RoomKey) *roomView {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[key]
	if !ok {
		v = &roomView{remote: make(map[string]*originView)}
		m.views[key] = v
	}
	return v
}

func (m *RoomManager) existing(key domain.RoomKey) *roomView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[key]
}

func (m *RoomManager) dropView(key domain.RoomKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, key)
}

func validateJoin(key domain.RoomKey, user domain.User) error {
	return errors.Join(domain.Validate(key), domain.Validate(user))
}
