// Package room implements live groupings of connections: ordered membership,
// broadcast, the join and create announcement protocol, and the arena that
// owns every room.
//
// Rooms hold member connection IDs, never connections. IDs are resolved
// through a Resolver at send time, so a connection that disappears simply
// stops receiving packets.
package room

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/fairway/internal/directory"
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

var (
	// ErrRoomFull is returned when membership is at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomInvalid is returned by operations on a destroyed room.
	ErrRoomInvalid = errors.New("room is no longer valid")
	// ErrBadPassword is returned when a join password does not match.
	ErrBadPassword = errors.New("wrong room password")
	// ErrAlreadyMember is returned when a connection joins a room twice.
	ErrAlreadyMember = errors.New("already a member of the room")
	// ErrNotMember is returned when an operation names a non-member.
	ErrNotMember = errors.New("not a member of the room")
)

// Member event tags of OpRoomMember frames.
const (
	memberCreate uint8 = 0
	memberJoin   uint8 = 1
	memberLeave  uint8 = 2
	memberRoster uint8 = 7
)

// noSlot is the slot marker written in member frames.
const noSlot int16 = -1

// Member is a connection as seen by a room.
type Member interface {
	ID() uint32
	Snapshot() PlayerState
	Send(frame []byte) error
}

// Resolver looks up live members by connection ID.
type Resolver interface {
	Member(id uint32) (Member, bool)
}

type delivery struct {
	to    Member
	frame []byte
}

// Room is a live grouping of connections.
//
// All membership reads and writes happen under mu. Frames are composed while
// mu is held and sent after it is released. Membership changes also hold
// notify, taken before mu and kept until the directory has been told, so the
// directory sees changes in the order they were made.
type Room struct {
	id           uint16
	name         string
	passwordHash []byte
	kind         catalog.RoomKind
	format       Format

	members Resolver
	dir     directory.Directory
	logger  *zap.Logger
	onEmpty func(id uint16)

	notify sync.Mutex
	mu     sync.Mutex
	order  []uint32
	master uint32
	valid  bool
}

// New creates an empty, valid room. A nil passwordHash leaves the room open.
//
// Precondition: kind.Capacity > 0; members, dir and logger must not be nil.
func New(id uint16, name string, passwordHash []byte, kind catalog.RoomKind, members Resolver, dir directory.Directory, logger *zap.Logger) *Room {
	return &Room{
		id:           id,
		name:         name,
		passwordHash: passwordHash,
		kind:         kind,
		format:       FormatFor(kind.Format),
		members:      members,
		dir:          dir,
		logger:       logger.With(zap.Uint16("room_id", id)),
		valid:        true,
	}
}

// ID returns the room identifier.
func (r *Room) ID() uint16 { return r.id }

// Name returns the display name.
func (r *Room) Name() string { return r.name }

// Kind returns the room kind.
func (r *Room) Kind() catalog.RoomKind { return r.kind }

// Valid reports whether the room still accepts operations.
func (r *Room) Valid() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valid
}

// Size returns the current number of members.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Members returns the member IDs in join order.
func (r *Room) Members() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Master returns the master's connection ID, or zero for an empty room.
func (r *Room) Master() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.master
}

// Contains reports whether id is a member.
func (r *Room) Contains(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.order, id)
}

// Info returns the directory description of the room.
func (r *Room) Info() directory.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *Room) infoLocked() directory.RoomInfo {
	return directory.RoomInfo{
		ID:       r.id,
		Name:     r.name,
		Kind:     r.kind.ID,
		Size:     len(r.order),
		Capacity: r.kind.Capacity,
		Locked:   r.passwordHash != nil,
		Master:   r.master,
	}
}

// CheckPassword reports whether password opens the room.
func (r *Room) CheckPassword(password string) bool {
	if r.passwordHash == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)) == nil
}

// AddMember appends m to the membership without announcing it.
// Joins after the first notify the directory of an update; the first member
// is announced when a master is assigned.
//
// Postcondition: on success m is the last member.
func (r *Room) AddMember(ctx context.Context, m Member) error {
	r.notify.Lock()
	defer r.notify.Unlock()

	r.mu.Lock()
	if err := r.admitLocked(m.ID()); err != nil {
		r.mu.Unlock()
		return err
	}
	r.order = append(r.order, m.ID())
	first := len(r.order) == 1
	info := r.infoLocked()
	r.mu.Unlock()

	if !first {
		r.dir.RoomChanged(ctx, directory.RoomUpdated, info)
	}
	return nil
}

func (r *Room) admitLocked(id uint32) error {
	if !r.valid {
		return ErrRoomInvalid
	}
	if slices.Contains(r.order, id) {
		return ErrAlreadyMember
	}
	if len(r.order) >= r.kind.Capacity {
		return ErrRoomFull
	}
	return nil
}

// Enter verifies password, adds m and announces it: the first member gets the
// create announcement and becomes master, later members get the join protocol.
func (r *Room) Enter(ctx context.Context, m Member, password string) error {
	if !r.CheckPassword(password) {
		return ErrBadPassword
	}
	return r.enter(ctx, m)
}

func (r *Room) enter(ctx context.Context, m Member) error {
	r.notify.Lock()
	defer r.notify.Unlock()

	r.mu.Lock()
	if err := r.admitLocked(m.ID()); err != nil {
		r.mu.Unlock()
		return err
	}
	r.order = append(r.order, m.ID())
	first := len(r.order) == 1
	var out []delivery
	if first {
		r.master = m.ID()
		out = r.composeCreateLocked(m)
	} else {
		out = r.composeJoinLocked(m)
	}
	info := r.infoLocked()
	r.mu.Unlock()

	r.deliver(out)
	if first {
		r.notifyMaster(ctx, info, m)
	} else {
		r.dir.RoomChanged(ctx, directory.RoomUpdated, info)
	}
	return nil
}

// RemoveMember removes id. Removing a non-member is a no-op returning false.
// When the last member leaves the room is invalidated and the directory is
// told it was destroyed; otherwise the directory gets an update. A departing
// master is replaced by the earliest remaining member.
func (r *Room) RemoveMember(ctx context.Context, id uint32) bool {
	r.notify.Lock()
	defer r.notify.Unlock()

	r.mu.Lock()
	idx := slices.Index(r.order, id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.order = slices.Delete(r.order, idx, idx+1)
	destroyed := len(r.order) == 0
	if destroyed {
		r.valid = false
		r.master = 0
	} else if r.master == id {
		r.master = r.order[0]
	}
	info := r.infoLocked()
	r.mu.Unlock()

	if destroyed {
		r.logger.Debug("room destroyed")
		r.dir.RoomChanged(ctx, directory.RoomDestroyed, info)
		if r.onEmpty != nil {
			r.onEmpty(r.id)
		}
		return true
	}
	r.dir.RoomChanged(ctx, directory.RoomUpdated, info)
	return true
}

// Leave removes id and tells the remaining members.
func (r *Room) Leave(ctx context.Context, id uint32) bool {
	if !r.RemoveMember(ctx, id) {
		return false
	}
	w := packet.NewWriter(packet.OpRoomMember)
	w.WriteU8(memberLeave)
	w.WriteI16(noSlot)
	w.WriteU32(id)
	r.Broadcast(w.Bytes())
	return true
}

// Broadcast sends frame to every member in join order.
func (r *Room) Broadcast(frame []byte) {
	r.mu.Lock()
	targets := r.resolveLocked()
	r.mu.Unlock()

	out := make([]delivery, len(targets))
	for i, m := range targets {
		out[i] = delivery{to: m, frame: frame}
	}
	r.deliver(out)
}

// AnnounceJoin sends every other member's snapshot to the member id, then
// broadcasts id's snapshot to all members including itself.
func (r *Room) AnnounceJoin(id uint32) error {
	r.mu.Lock()
	if !slices.Contains(r.order, id) {
		r.mu.Unlock()
		return ErrNotMember
	}
	m, ok := r.members.Member(id)
	if !ok {
		r.mu.Unlock()
		return ErrNotMember
	}
	out := r.composeJoinLocked(m)
	r.mu.Unlock()

	r.deliver(out)
	return nil
}

// AnnounceCreate sends the initial self-snapshot to the member id only.
func (r *Room) AnnounceCreate(id uint32) error {
	r.mu.Lock()
	m, ok := r.members.Member(id)
	if !ok || !slices.Contains(r.order, id) {
		r.mu.Unlock()
		return ErrNotMember
	}
	out := r.composeCreateLocked(m)
	r.mu.Unlock()

	r.deliver(out)
	return nil
}

// AssignMaster makes id the master and notifies the directory that the room
// was created and that the master's presence changed.
func (r *Room) AssignMaster(ctx context.Context, id uint32) error {
	r.notify.Lock()
	defer r.notify.Unlock()

	r.mu.Lock()
	if !r.valid {
		r.mu.Unlock()
		return ErrRoomInvalid
	}
	if !slices.Contains(r.order, id) {
		r.mu.Unlock()
		return ErrNotMember
	}
	r.master = id
	info := r.infoLocked()
	r.mu.Unlock()

	m, ok := r.members.Member(id)
	if !ok {
		return ErrNotMember
	}
	r.notifyMaster(ctx, info, m)
	return nil
}

func (r *Room) notifyMaster(ctx context.Context, info directory.RoomInfo, m Member) {
	s := m.Snapshot()
	r.dir.RoomChanged(ctx, directory.RoomCreated, info)
	r.dir.PresenceChanged(ctx, directory.PresenceUpdated, directory.PlayerInfo{
		ConnID:    s.ConnID,
		AccountID: s.AccountID,
		Name:      s.Nickname,
		Level:     s.Level,
		RoomID:    r.id,
	})
}

// RequestRoster resends every member's snapshot, including its own, to id.
func (r *Room) RequestRoster(id uint32) error {
	r.mu.Lock()
	to, ok := r.members.Member(id)
	if !ok || !slices.Contains(r.order, id) {
		r.mu.Unlock()
		return ErrNotMember
	}
	size := uint8(len(r.order))
	var out []delivery
	for i, mid := range r.order {
		m, ok := r.members.Member(mid)
		if !ok {
			continue
		}
		out = append(out, delivery{to: to, frame: r.memberFrame(memberRoster, &size, m, i)})
	}
	r.mu.Unlock()

	r.deliver(out)
	return nil
}

func (r *Room) composeCreateLocked(m Member) []delivery {
	size := uint8(len(r.order))
	return []delivery{{to: m, frame: r.memberFrame(memberCreate, &size, m, slices.Index(r.order, m.ID()))}}
}

// composeJoinLocked builds the roster frames for the joiner followed by the
// joiner's own frame for every member.
func (r *Room) composeJoinLocked(joiner Member) []delivery {
	size := uint8(len(r.order))
	var out []delivery
	for i, id := range r.order {
		if id == joiner.ID() {
			continue
		}
		m, ok := r.members.Member(id)
		if !ok {
			continue
		}
		out = append(out, delivery{to: joiner, frame: r.memberFrame(memberRoster, &size, m, i)})
	}

	joined := r.memberFrame(memberJoin, nil, joiner, slices.Index(r.order, joiner.ID()))
	for _, m := range r.resolveLocked() {
		out = append(out, delivery{to: m, frame: joined})
	}
	return out
}

// memberFrame encodes an OpRoomMember frame. A nil size omits the size tag.
func (r *Room) memberFrame(tag uint8, size *uint8, m Member, slot int) []byte {
	w := packet.NewWriter(packet.OpRoomMember)
	w.WriteU8(tag)
	w.WriteI16(noSlot)
	if size != nil {
		w.WriteU8(*size)
	}
	role := RoleMember
	if m.ID() == r.master {
		role = RoleMaster
	}
	r.format.WriteSnapshot(w, m.Snapshot(), uint8(slot), role)
	if err := w.Err(); err != nil {
		r.logger.Warn("field truncated in member frame", zap.Uint32("conn_id", m.ID()), zap.Error(err))
	}
	return w.Bytes()
}

func (r *Room) resolveLocked() []Member {
	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.members.Member(id); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) deliver(out []delivery) {
	for _, d := range out {
		if err := d.to.Send(d.frame); err != nil {
			r.logger.Debug("room send failed", zap.Uint32("conn_id", d.to.ID()), zap.Error(err))
		}
	}
}
