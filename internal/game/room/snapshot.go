package room

import (
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/game/character"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Roles written into a member snapshot.
const (
	RoleMember uint8 = 0x01
	RoleMaster uint8 = 0x08
)

// SnapshotSize is the encoded size of a snapshot without the equipped
// character block.
const SnapshotSize = 346

const (
	trophyTypeID = 0x340000AC
	trophyFlags  = 0x43
)

// Position is a player's location on the course.
type Position struct {
	X, Y, Z float32
}

// PlayerState is the per-player data a room writes into snapshot packets.
type PlayerState struct {
	ConnID    uint32
	AccountID uint32
	Username  string
	Nickname  string
	GuildName string
	GuildID   uint32
	GuildMark string
	TitleID   uint32
	Level     uint8
	GM        bool
	Ready     bool
	Animation uint32
	Posture   uint32
	Position  Position
	MascotID  uint32
	// Character is the equipped character. HasCharacter is false before the
	// profile is loaded.
	Character    character.Character
	HasCharacter bool
}

// Format writes the snapshot payload for one room kind. The join, leave and
// broadcast protocol is shared; only the fields differ.
type Format interface {
	Name() string
	WriteSnapshot(w *packet.Writer, s PlayerState, slot, role uint8)
}

// MatchFormat writes slot, role, readiness and course position.
type MatchFormat struct{}

func (MatchFormat) Name() string { return catalog.FormatMatch }

func (MatchFormat) WriteSnapshot(w *packet.Writer, s PlayerState, slot, role uint8) {
	writeSnapshot(w, s, slot, role, true)
}

// ChatFormat zeroes the match-only fields.
type ChatFormat struct{}

func (ChatFormat) Name() string { return catalog.FormatChat }

func (ChatFormat) WriteSnapshot(w *packet.Writer, s PlayerState, slot, role uint8) {
	writeSnapshot(w, s, slot, role, false)
}

// FormatFor returns the Format registered under name, defaulting to MatchFormat.
func FormatFor(name string) Format {
	if name == catalog.FormatChat {
		return ChatFormat{}
	}
	return MatchFormat{}
}

func writeSnapshot(w *packet.Writer, s PlayerState, slot, role uint8, match bool) {
	if !match {
		slot, role = 0, 0
		s.Ready = false
		s.Posture = 0
		s.Position = Position{}
	}

	w.WriteU32(s.ConnID)
	w.WriteFixed(s.Nickname, 16)
	w.WriteZero(6)
	w.WriteFixed(s.GuildName, 21)
	w.WriteU8(slot)
	w.WriteU32(0)
	w.WriteU32(s.TitleID)
	w.WriteU32(s.Character.TypeID)
	w.WriteZero(20)
	w.WriteU32(s.TitleID)
	w.WriteU8(role)
	if s.Ready {
		w.WriteU8(2)
	} else {
		w.WriteU8(0)
	}
	w.WriteU8(s.Level)
	w.WriteBool(s.GM)
	w.WriteU8(10)
	w.WriteU32(s.GuildID)
	w.WriteFixed(s.GuildMark, 9)
	w.WriteU32(0)
	w.WriteU32(s.AccountID)
	w.WriteU32(s.Animation)
	w.WriteU16(0)
	w.WriteU32(s.Posture)
	w.WriteF32(s.Position.X)
	w.WriteF32(s.Position.Y)
	w.WriteF32(s.Position.Z)
	w.WriteU32(0)
	w.WriteFixed("", 31)
	w.WriteZero(33)
	w.WriteU32(s.MascotID)
	w.WriteU8(0)
	w.WriteU8(0)
	w.WriteU32(0)
	w.WriteFixed(s.Username+"@NT", 18)
	w.WriteZero(110)
	w.WriteU32(trophyTypeID)
	w.WriteU32(trophyFlags)

	if s.HasCharacter {
		s.Character.WriteBlock(w)
	}
}
