// Package session implements the per-player connection: its lifecycle state
// machine, the per-frame dispatch boundary, cached statistics, the wallet,
// pending transaction notifications and room membership.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/directory"
	"github.com/cory-johannsen/fairway/internal/game/character"
	"github.com/cory-johannsen/fairway/internal/game/dispatch"
	"github.com/cory-johannsen/fairway/internal/game/fault"
	"github.com/cory-johannsen/fairway/internal/game/room"
	"github.com/cory-johannsen/fairway/internal/game/stats"
	"github.com/cory-johannsen/fairway/internal/game/transaction"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// State is a connection lifecycle state.
type State uint8

const (
	StateConnecting State = iota
	StateAuthenticated
	StateLobby
	StateInRoom
	StateDisconnected
)

var stateNames = [...]string{"connecting", "authenticated", "lobby", "in_room", "disconnected"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in connection state")
	// ErrNotInRoom is returned by room operations on a connection outside any room.
	// It is a directory lookup failure and therefore not fatal.
	ErrNotInRoom = fmt.Errorf("connection is not in a room: %w", fault.ErrDirectoryLookup)
	// ErrNotLoaded is returned when the profile has not been loaded yet.
	ErrNotLoaded = errors.New("profile not loaded")
)

// Transport is the byte-level connection below the packet boundary.
type Transport interface {
	// Send queues an encoded frame. It must not block past framing.
	Send(frame []byte) error
	// SendRaw queues a frame that bypasses transport encryption.
	SendRaw(frame []byte) error
	// Disconnect closes the underlying connection. It must be safe to call
	// more than once and from the goroutine delivering inbound frames.
	Disconnect()
}

// Store is the persistence collaborator.
type Store interface {
	// LoadProfile returns stats.ErrStatisticsNotFound when the account has no statistics.
	LoadProfile(ctx context.Context, accountID uint32) (stats.Profile, error)
	// SaveProfile writes the profile and appends ledger to the account's
	// transaction history. Failures wrap fault.ErrPersistence.
	SaveProfile(ctx context.Context, p stats.Profile, ledger []transaction.Record) error
}

// Deps are the collaborators shared by every connection.
type Deps struct {
	Store       Store
	Directory   directory.Directory
	Rooms       *room.Manager
	Table       *dispatch.Table[*Conn]
	Clock       func() time.Time
	SaveTimeout time.Duration
	Logger      *zap.Logger
}

// Conn is one player connection.
//
// Inbound frames are handled one at a time by the transport's read goroutine.
// Other goroutines reach a Conn through rooms (Send, Snapshot) and through
// teardown; the fields below mu are guarded by it.
type Conn struct {
	id        uint32
	sessionID string
	transport Transport
	deps      Deps
	logger    *zap.Logger

	reader packet.Reader
	batch  transaction.Batch

	mu        sync.Mutex
	state     State
	accountID uint32
	username  string
	nickname  string
	profile   *stats.Profile
	equipment *character.Equipment
	roomID    uint16
	ledger    []transaction.Record

	teardown sync.Once
	onClose  func(*Conn)
}

func newConn(id uint32, sessionID string, t Transport, deps Deps) *Conn {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Directory == nil {
		deps.Directory = directory.Nop{}
	}
	return &Conn{
		id:        id,
		sessionID: sessionID,
		transport: t,
		deps:      deps,
		logger:    deps.Logger.With(zap.Uint32("conn_id", id), zap.String("session", sessionID)),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() uint32 { return c.id }

// SessionID returns the unique session key assigned at accept.
func (c *Conn) SessionID() string { return c.sessionID }

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() *zap.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// State returns the lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccountID returns the authenticated account, or zero before login.
func (c *Conn) AccountID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// Nickname returns the display name.
func (c *Conn) Nickname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nickname
}

// RoomID returns the current room, or zero when not in a room.
func (c *Conn) RoomID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// HandleInbound processes one frame: reset the cursor, read the opcode,
// dispatch. Every handler failure is classified here and only fatal kinds
// disconnect.
func (c *Conn) HandleInbound(ctx context.Context, frame []byte) {
	if c.State() == StateDisconnected {
		return
	}
	start := time.Now()
	c.reader.Reset(frame)

	op, err := c.reader.Opcode()
	if err == nil {
		err = c.dispatch(ctx, op)
	}
	if err != nil {
		c.fail(ctx, op, err)
	}
	c.Logger().Debug("frame processed",
		zap.Stringer("opcode", op),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (c *Conn) dispatch(ctx context.Context, op packet.Opcode) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", op, r)
		}
	}()
	return c.deps.Table.Dispatch(ctx, c, op, &c.reader)
}

func (c *Conn) fail(ctx context.Context, op packet.Opcode, err error) {
	kind := fault.Classify(err)
	logger := c.Logger()
	switch {
	case kind == fault.UnknownOpcode:
		logger.Error("opcode not registered", zap.Stringer("opcode", op))
	case kind.Fatal():
		logger.Error("frame failed, disconnecting",
			zap.Stringer("opcode", op),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	default:
		logger.Warn("frame failed",
			zap.Stringer("opcode", op),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	}
	if kind.Fatal() {
		c.Disconnect(ctx)
	}
}

// Send hands an encoded frame to the transport.
func (c *Conn) Send(frame []byte) error {
	return c.transport.Send(frame)
}

// SendRaw hands a frame to the transport without encryption.
func (c *Conn) SendRaw(frame []byte) error {
	return c.transport.SendRaw(frame)
}

// SendPacket sends the frame held by w. A truncated field is logged and the
// truncated frame is still sent.
func (c *Conn) SendPacket(w *packet.Writer) error {
	if err := w.Err(); err != nil {
		c.Logger().Warn("field truncated in outbound frame", zap.Error(err))
	}
	return c.Send(w.Bytes())
}

// Login binds the account identity and loads the profile.
//
// Precondition: state is StateConnecting.
// Postcondition: on success state is StateAuthenticated and the profile is
// cached. An account without statistics returns stats.ErrStatisticsNotFound,
// which the frame boundary treats as fatal.
func (c *Conn) Login(ctx context.Context, accountID uint32, username, nickname string) error {
	c.mu.Lock()
	if c.state != StateConnecting {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("login in %s: %w", st, ErrInvalidState)
	}
	c.accountID = accountID
	c.username = username
	c.nickname = nickname
	c.logger = c.logger.With(zap.Uint32("account_id", accountID))
	c.mu.Unlock()

	if err := c.LoadStatistics(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.mu.Unlock()
	return nil
}

// LoadStatistics fetches the profile for the bound account. It is called once
// per session; the cached copy is never re-read.
func (c *Conn) LoadStatistics(ctx context.Context) error {
	accountID := c.AccountID()
	p, err := c.deps.Store.LoadProfile(ctx, accountID)
	if err != nil {
		return fmt.Errorf("loading statistics for account %d: %w", accountID, err)
	}
	c.mu.Lock()
	c.profile = &p
	c.equipment = character.NewEquipment(p.Characters, p.EquippedCharacterID)
	c.mu.Unlock()
	return nil
}

// Profile returns a copy of the cached profile.
func (c *Conn) Profile() (stats.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return stats.Profile{}, false
	}
	p := c.snapshotProfileLocked()
	return p, true
}

func (c *Conn) snapshotProfileLocked() stats.Profile {
	p := *c.profile
	p.Characters = c.equipment.Owned()
	p.EquippedCharacterID = c.equipment.EquippedID()
	return p
}

// EnterLobby moves an authenticated connection into the lobby and announces
// its presence. Entering again from the lobby is a no-op.
func (c *Conn) EnterLobby(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateLobby:
		c.mu.Unlock()
		return nil
	case StateAuthenticated:
		c.state = StateLobby
	default:
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("enter lobby in %s: %w", st, ErrInvalidState)
	}
	info := c.presenceLocked()
	c.mu.Unlock()

	c.deps.Directory.PresenceChanged(ctx, directory.PresenceEntered, info)
	return nil
}

// PlayerInfo returns the directory description of the player.
func (c *Conn) PlayerInfo() directory.PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presenceLocked()
}

func (c *Conn) presenceLocked() directory.PlayerInfo {
	info := directory.PlayerInfo{
		ConnID:    c.id,
		AccountID: c.accountID,
		Name:      c.nickname,
		RoomID:    c.roomID,
	}
	if c.profile != nil {
		info.Level = c.profile.Stats.Level
	}
	return info
}

// Snapshot returns the state rooms write into member frames.
func (c *Conn) Snapshot() room.PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := room.PlayerState{
		ConnID:    c.id,
		AccountID: c.accountID,
		Username:  c.username,
		Nickname:  c.nickname,
	}
	if c.profile != nil {
		s.Level = c.profile.Stats.Level
	}
	if c.equipment != nil {
		s.Character, s.HasCharacter = c.equipment.Current()
	}
	return s
}

// Disconnect tears the connection down. Only the first call has any effect:
// statistics and the transaction ledger are saved, the room is left, the
// directory is told the player left, and the transport is closed.
func (c *Conn) Disconnect(ctx context.Context) {
	c.teardown.Do(func() {
		c.mu.Lock()
		prev := c.state
		c.state = StateDisconnected
		roomID := c.roomID
		c.roomID = 0
		info := c.presenceLocked()
		c.mu.Unlock()

		c.save(ctx)

		if roomID != 0 {
			if r, err := c.deps.Rooms.Get(roomID); err == nil {
				r.Leave(ctx, c.id)
			}
		}
		if prev == StateLobby || prev == StateInRoom {
			c.deps.Directory.PresenceChanged(ctx, directory.PresenceLeft, info)
		}
		c.transport.Disconnect()
		if c.onClose != nil {
			c.onClose(c)
		}
		c.Logger().Info("disconnected", zap.Stringer("from", prev))
	})
}

func (c *Conn) save(ctx context.Context) {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return
	}
	p := c.snapshotProfileLocked()
	ledger := c.ledger
	c.ledger = nil
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if c.deps.SaveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.SaveTimeout)
		defer cancel()
	}
	if err := c.deps.Store.SaveProfile(ctx, p, ledger); err != nil {
		c.Logger().Error("saving profile", zap.Int("ledger", len(ledger)), zap.Error(err))
	}
}
