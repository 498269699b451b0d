package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/fairway/internal/directory"
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/game/fault"
)

var (
	// ErrRoomNotFound is returned when no live room has the requested id.
	// It wraps fault.ErrDirectoryLookup.
	ErrRoomNotFound = fmt.Errorf("room not found: %w", fault.ErrDirectoryLookup)
	// ErrUnknownKind is returned when a room kind is not in the catalog.
	ErrUnknownKind = errors.New("unknown room kind")
	// ErrNoRoomIDs is returned when every room id is in use.
	ErrNoRoomIDs = errors.New("no room ids available")
)

// Manager owns every live room, keyed by id. Rooms remove themselves when
// their last member leaves.
type Manager struct {
	mu    sync.RWMutex
	rooms map[uint16]*Room
	next  uint16

	catalog      *catalog.Catalog
	members      Resolver
	dir          directory.Directory
	passwordCost int
	logger       *zap.Logger
}

// NewManager creates an empty room arena.
//
// Precondition: cat, members, dir and logger must not be nil; passwordCost
// must be a valid bcrypt cost.
func NewManager(cat *catalog.Catalog, members Resolver, dir directory.Directory, passwordCost int, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:        make(map[uint16]*Room),
		catalog:      cat,
		members:      members,
		dir:          dir,
		passwordCost: passwordCost,
		logger:       logger,
	}
}

// Open creates a room of the given kind with creator as its first member and master.
//
// Postcondition: on success the room is registered and creator has received
// the create announcement.
func (m *Manager) Open(ctx context.Context, kindID uint8, name, password string, creator Member) (*Room, error) {
	kind, ok := m.catalog.RoomKind(kindID)
	if !ok {
		return nil, fmt.Errorf("room kind %d: %w", kindID, ErrUnknownKind)
	}
	var hash []byte
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), m.passwordCost)
		if err != nil {
			return nil, fmt.Errorf("hashing room password: %w", err)
		}
		hash = h
	}

	m.mu.Lock()
	id, err := m.allocateLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r := New(id, name, hash, kind, m.members, m.dir, m.logger)
	r.onEmpty = m.drop
	m.rooms[id] = r
	m.mu.Unlock()

	if err := r.enter(ctx, creator); err != nil {
		m.drop(id)
		return nil, err
	}
	m.logger.Info("room opened",
		zap.Uint16("room_id", id),
		zap.String("name", name),
		zap.Uint8("kind", kindID),
		zap.Uint32("master", creator.ID()),
	)
	return r, nil
}

// Join adds member to the room id.
func (m *Manager) Join(ctx context.Context, id uint16, member Member, password string) (*Room, error) {
	r, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := r.Enter(ctx, member, password); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the live room with the given id.
func (m *Manager) Get(id uint16) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrRoomNotFound)
	}
	return r, nil
}

// List returns every live room ordered by id.
func (m *Manager) List() []directory.RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]directory.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) drop(id uint16) {
	m.mu.Lock()
	delete(m.rooms, id)
	m.mu.Unlock()
}

// allocateLocked returns the next unused id, skipping zero.
func (m *Manager) allocateLocked() (uint16, error) {
	for range 1 << 16 {
		m.next++
		if m.next == 0 {
			continue
		}
		if _, used := m.rooms[m.next]; !used {
			return m.next, nil
		}
	}
	return 0, ErrNoRoomIDs
}
