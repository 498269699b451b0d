// Package directory defines the collaborator that tracks global room and
// player presence for other subsystems. The session core only notifies it;
// nothing in the core waits on or reads back a directory result.
package directory

import "context"

// RoomAction is a room lifecycle transition.
type RoomAction uint8

const (
	RoomCreated RoomAction = iota
	RoomUpdated
	RoomDestroyed
)

var roomActionNames = [...]string{"created", "updated", "destroyed"}

func (a RoomAction) String() string {
	if int(a) < len(roomActionNames) {
		return roomActionNames[a]
	}
	return "unknown"
}

// PresenceAction is a player presence transition.
type PresenceAction uint8

const (
	PresenceEntered PresenceAction = iota
	PresenceUpdated
	PresenceLeft
)

var presenceActionNames = [...]string{"entered", "updated", "left"}

func (a PresenceAction) String() string {
	if int(a) < len(presenceActionNames) {
		return presenceActionNames[a]
	}
	return "unknown"
}

// RoomInfo is the public description of a room.
type RoomInfo struct {
	ID       uint16 `json:"id"`
	Name     string `json:"name"`
	Kind     uint8  `json:"kind"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Locked   bool   `json:"locked"`
	Master   uint32 `json:"master"`
}

// PlayerInfo is the public description of a connected player.
// RoomID is zero when the player is not in a room.
type PlayerInfo struct {
	ConnID    uint32 `json:"conn_id"`
	AccountID uint32 `json:"account_id"`
	Name      string `json:"name"`
	Level     uint8  `json:"level"`
	RoomID    uint16 `json:"room_id"`
}

// Directory receives room and presence notifications.
// Implementations must be safe for concurrent use and must not block for long;
// failures are theirs to log.
type Directory interface {
	RoomChanged(ctx context.Context, action RoomAction, room RoomInfo)
	PresenceChanged(ctx context.Context, action PresenceAction, player PlayerInfo)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) RoomChanged(context.Context, RoomAction, RoomInfo)           {}
func (Nop) PresenceChanged(context.Context, PresenceAction, PlayerInfo) {}
