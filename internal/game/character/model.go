// Package character defines the playable golfer characters a player owns and
// the equipped-character block written into snapshot packets.
package character

import "github.com/cory-johannsen/fairway/internal/protocol/packet"

// PartSlots is the number of equippable costume part slots per character.
const PartSlots = 24

// AuxSlots is the number of auxiliary part (ring, accessory) slots.
const AuxSlots = 5

// Character is one golfer owned by an account.
//
// ID is set by the persistence layer and is unique per account.
type Character struct {
	ID        uint32
	TypeID    uint32
	HairColor uint8
	Shirt     uint8
	Parts     [PartSlots]uint32
	AuxParts  [AuxSlots]uint32
	CutinID   uint32
	// Power, control, accuracy, spin and curve upgrades.
	Upgrades [5]uint8
}

// WriteBlock appends the equipped-character block.
//
// Postcondition: appends exactly BlockSize bytes.
func (c Character) WriteBlock(w *packet.Writer) {
	w.WriteU32(c.TypeID)
	w.WriteU32(c.ID)
	w.WriteU8(c.HairColor)
	w.WriteU8(c.Shirt)
	for _, p := range c.Parts {
		w.WriteU32(p)
	}
	for _, p := range c.AuxParts {
		w.WriteU32(p)
	}
	w.WriteU32(c.CutinID)
	for _, u := range c.Upgrades {
		w.WriteU8(u)
	}
}

// BlockSize is the encoded size of WriteBlock.
const BlockSize = 4 + 4 + 1 + 1 + PartSlots*4 + AuxSlots*4 + 4 + 5
