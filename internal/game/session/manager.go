package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/game/room"
)

// Manager tracks all live connections by connection ID.
// All methods are safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	conns  map[uint32]*Conn
	nextID atomic.Uint32
	logger *zap.Logger
}

var _ room.Resolver = (*Manager)(nil)

// NewManager creates an empty connection Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		conns:  make(map[uint32]*Conn),
		logger: logger,
	}
}

// Accept registers a new connection over t.
//
// Precondition: t must not be nil; deps.Store, deps.Rooms, deps.Table and
// deps.Logger must not be nil.
// Postcondition: Returns a Conn in StateConnecting with a unique ID. The Conn
// removes itself from the Manager on teardown.
func (m *Manager) Accept(t Transport, deps Deps) *Conn {
	id := m.nextID.Add(1)
	c := newConn(id, uuid.NewString(), t, deps)
	c.onClose = m.remove

	m.mu.Lock()
	m.conns[id] = c
	m.mu.Unlock()

	c.Logger().Info("connection accepted")
	return c
}

func (m *Manager) remove(c *Conn) {
	m.mu.Lock()
	if cur, ok := m.conns[c.id]; ok && cur == c {
		delete(m.conns, c.id)
	}
	m.mu.Unlock()
}

// Get returns the connection with the given ID.
func (m *Manager) Get(id uint32) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	return c, ok
}

// Member resolves a connection for a room.
func (m *Manager) Member(id uint32) (room.Member, bool) {
	c, ok := m.Get(id)
	if !ok {
		return nil, false
	}
	return c, true
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Conns returns a snapshot of every live connection.
func (m *Manager) Conns() []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

// DisconnectAll tears down every live connection.
func (m *Manager) DisconnectAll(ctx context.Context) {
	conns := m.Conns()
	for _, c := range conns {
		c.Disconnect(ctx)
	}
	if len(conns) > 0 {
		m.logger.Info("disconnected all connections", zap.Int("count", len(conns)))
	}
}
