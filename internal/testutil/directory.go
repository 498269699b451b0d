package testutil

import (
	"context"
	"sync"

	"github.com/cory-johannsen/fairway/internal/directory"
)

// RoomEvent is one recorded room notification.
type RoomEvent struct {
	Action directory.RoomAction
	Room   directory.RoomInfo
}

// PresenceEvent is one recorded presence notification.
type PresenceEvent struct {
	Action directory.PresenceAction
	Player directory.PlayerInfo
}

// DirectoryRecorder is a directory.Directory that keeps every notification.
type DirectoryRecorder struct {
	mu       sync.Mutex
	rooms    []RoomEvent
	presence []PresenceEvent
}

var _ directory.Directory = (*DirectoryRecorder)(nil)

func (d *DirectoryRecorder) RoomChanged(_ context.Context, action directory.RoomAction, room directory.RoomInfo) {
	d.mu.Lock()
	d.rooms = append(d.rooms, RoomEvent{Action: action, Room: room})
	d.mu.Unlock()
}

func (d *DirectoryRecorder) PresenceChanged(_ context.Context, action directory.PresenceAction, player directory.PlayerInfo) {
	d.mu.Lock()
	d.presence = append(d.presence, PresenceEvent{Action: action, Player: player})
	d.mu.Unlock()
}

// RoomEvents returns a copy of the recorded room notifications.
func (d *DirectoryRecorder) RoomEvents() []RoomEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RoomEvent(nil), d.rooms...)
}

// PresenceEvents returns a copy of the recorded presence notifications.
func (d *DirectoryRecorder) PresenceEvents() []PresenceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PresenceEvent(nil), d.presence...)
}

// CountRoom returns how many room notifications had the given action.
func (d *DirectoryRecorder) CountRoom(action directory.RoomAction) int {
	n := 0
	for _, ev := range d.RoomEvents() {
		if ev.Action == action {
			n++
		}
	}
	return n
}

// CountPresence returns how many presence notifications had the given action.
func (d *DirectoryRecorder) CountPresence(action directory.PresenceAction) int {
	n := 0
	for _, ev := range d.PresenceEvents() {
		if ev.Action == action {
			n++
		}
	}
	return n
}
