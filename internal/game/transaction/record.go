// Package transaction accumulates inventory and currency change notifications
// per connection and encodes them as one batched sync packet.
package transaction

import "time"

// Wire keys of the special-case payload layouts.
const (
	KeyClubPowder  uint8 = 0xC9
	KeyDurability  uint8 = 0xCA
	KeyCardSlot    uint8 = 0xCB
	KeyClubEnhance uint8 = 0xCC
)

// ReservedKey reports whether k selects a special-case layout. A Timed
// payload must not use such a key as its action.
func ReservedKey(k uint8) bool {
	return k >= KeyClubPowder && k <= KeyClubEnhance
}

// Common keys for Timed payloads.
const (
	ActionItemAdd    uint8 = 0x02
	ActionItemUpdate uint8 = 0x03
	ActionItemRemove uint8 = 0x04
)

// ClubStats holds the power, control, accuracy, spin and curve counters of a club.
type ClubStats [5]uint16

// Payload is the kind-specific body of a Record. The set of payloads is closed:
// only the types in this package implement it.
type Payload interface {
	// Key returns the wire discriminator.
	Key() uint8
	sealed()
}

// ClubPowder reports new club stat counters after a powder is applied.
type ClubPowder struct {
	Stats ClubStats
}

// Durability reports the wear counters of an item.
type Durability struct {
	Current uint16
	Max     uint16
}

// CardSlot reports a card placed into a character slot.
type CardSlot struct {
	CardTypeID uint32
	CharSlot   uint8
}

// ClubEnhance reports a club enhancement result.
type ClubEnhance struct {
	Stats       ClubStats
	Point       uint32
	Count       uint32
	CancelCount uint32
}

// Timed is the default payload: a quantity change, or a validity window for
// time-limited items.
type Timed struct {
	Action     uint8
	Registered time.Time
	Expires    time.Time
	OldAmount  uint32
	NewAmount  uint32
	// UCC is the user-created-content identifier shown to the player.
	UCC string
}

func (ClubPowder) Key() uint8  { return KeyClubPowder }
func (Durability) Key() uint8  { return KeyDurability }
func (CardSlot) Key() uint8    { return KeyCardSlot }
func (ClubEnhance) Key() uint8 { return KeyClubEnhance }
func (t Timed) Key() uint8     { return t.Action }

func (ClubPowder) sealed()  {}
func (Durability) sealed()  {}
func (CardSlot) sealed()    {}
func (ClubEnhance) sealed() {}
func (Timed) sealed()       {}

// Record is one pending notification.
type Record struct {
	TypeID  uint32
	ItemID  uint32
	Payload Payload
}
