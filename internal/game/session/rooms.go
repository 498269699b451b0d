package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/directory"
	"github.com/cory-johannsen/fairway/internal/game/room"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Equipment change actions.
const (
	EquipCharacter uint8 = 0
	EquipStart     uint8 = 1
)

// Room returns the room the connection is in.
func (c *Conn) Room() (*room.Room, error) {
	id := c.RoomID()
	if id == 0 {
		return nil, ErrNotInRoom
	}
	return c.deps.Rooms.Get(id)
}

// CreateRoom opens a room with this connection as master.
//
// Precondition: state is StateLobby.
func (c *Conn) CreateRoom(ctx context.Context, kind uint8, name, password string) (*room.Room, error) {
	if err := c.requireState(StateLobby, "create room"); err != nil {
		return nil, err
	}
	r, err := c.deps.Rooms.Open(ctx, kind, name, password, c)
	if err != nil {
		return nil, err
	}
	c.entered(ctx, r)
	return r, nil
}

// JoinRoom enters an existing room.
//
// Precondition: state is StateLobby.
func (c *Conn) JoinRoom(ctx context.Context, id uint16, password string) (*room.Room, error) {
	if err := c.requireState(StateLobby, "join room"); err != nil {
		return nil, err
	}
	r, err := c.deps.Rooms.Join(ctx, id, c, password)
	if err != nil {
		return nil, err
	}
	c.entered(ctx, r)
	return r, nil
}

// entered records membership of r. A connection torn down while the join was
// in flight leaves the room again so no membership is orphaned.
func (c *Conn) entered(ctx context.Context, r *room.Room) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		r.Leave(ctx, c.id)
		return
	}
	c.state = StateInRoom
	c.roomID = r.ID()
	info := c.presenceLocked()
	c.mu.Unlock()

	c.deps.Directory.PresenceChanged(ctx, directory.PresenceUpdated, info)
}

// LeaveRoom leaves the current room, returns to the lobby and confirms to the client.
func (c *Conn) LeaveRoom(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInRoom {
		c.mu.Unlock()
		return ErrNotInRoom
	}
	id := c.roomID
	c.roomID = 0
	c.state = StateLobby
	info := c.presenceLocked()
	c.mu.Unlock()

	r, err := c.deps.Rooms.Get(id)
	if err != nil {
		return err
	}
	r.Leave(ctx, c.id)
	c.deps.Directory.PresenceChanged(ctx, directory.PresenceUpdated, info)

	w := packet.NewWriter(packet.OpRoomLeft)
	w.WriteI16(-1)
	return c.SendPacket(w)
}

// ChangeEquipment reads the action discriminator and its arguments from r.
// Changing character broadcasts the new appearance to the room; an unowned
// character is ignored. The start action asks the room to resend the roster.
func (c *Conn) ChangeEquipment(ctx context.Context, r *packet.Reader) error {
	action, err := r.U8()
	if err != nil {
		return err
	}
	switch action {
	case EquipCharacter:
		charID, err := r.U32()
		if err != nil {
			return err
		}
		c.mu.Lock()
		if c.equipment == nil {
			c.mu.Unlock()
			return ErrNotLoaded
		}
		if !c.equipment.SetCharacter(charID) {
			c.mu.Unlock()
			return nil
		}
		ch, _ := c.equipment.Current()
		c.mu.Unlock()

		w := packet.NewWriter(packet.OpEquipmentChanged)
		w.WriteU32(0)
		w.WriteU8(action)
		w.WriteU32(c.id)
		ch.WriteBlock(w)

		rm, err := c.Room()
		if err != nil {
			return nil
		}
		rm.Broadcast(w.Bytes())
		return nil
	case EquipStart:
		rm, err := c.Room()
		if err != nil {
			return err
		}
		return rm.RequestRoster(c.id)
	default:
		c.Logger().Debug("unknown equipment action", zap.Uint8("action", action))
		return nil
	}
}

func (c *Conn) requireState(want State, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != want {
		return fmt.Errorf("%s in %s: %w", op, c.state, ErrInvalidState)
	}
	return nil
}
