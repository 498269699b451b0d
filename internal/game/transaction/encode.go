package transaction

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// uccWidth is the fixed width of the UCC identifier field.
const uccWidth = 8

// longTermThreshold is the remaining lifetime at or above which a Timed
// payload is encoded as a validity window instead of an amount delta.
const longTermThreshold = time.Hour

// Timestamp converts t to the 32-bit unix seconds used on the wire.
func Timestamp(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

// EncodeBatch writes a transaction sync frame: timestamp, count, then one
// entry per record in order.
//
// Postcondition: the returned writer holds a complete OpTransactionSync frame.
func EncodeBatch(records []Record, now time.Time) *packet.Writer {
	w := packet.NewWriter(packet.OpTransactionSync)
	w.WriteU32(Timestamp(now))
	w.WriteU32(uint32(len(records)))
	for _, r := range records {
		EncodeRecord(w, r, now)
	}
	return w
}

// EncodeRecord appends one entry. The layout after the common header is
// selected by the payload type.
//
// Precondition: r.Payload is one of the payload types declared in this
// package. Any other value, including nil, panics, as does a Timed payload
// whose action is one of the special-case keys.
func EncodeRecord(w *packet.Writer, r Record, now time.Time) {
	if r.Payload == nil {
		panic("transaction: record has no payload")
	}
	if t, ok := r.Payload.(Timed); ok && ReservedKey(t.Action) {
		panic(fmt.Sprintf("transaction: timed action %#x collides with a special-case key", t.Action))
	}
	w.WriteU8(r.Payload.Key())
	w.WriteU32(r.TypeID)
	w.WriteU32(r.ItemID)

	switch p := r.Payload.(type) {
	case ClubPowder:
		w.WriteZero(16)
		writeClubStats(w, p.Stats)
		w.WriteZero(15)
	case Durability:
		w.WriteZero(16)
		w.WriteU16(p.Current)
		w.WriteU16(p.Max)
		w.WriteZero(21)
	case CardSlot:
		w.WriteZero(16)
		w.WriteZero(20)
		w.WriteU32(p.CardTypeID)
		w.WriteU8(p.CharSlot)
	case ClubEnhance:
		w.WriteZero(16)
		w.WriteZero(20)
		w.WriteU32(0)
		w.WriteU8(0)
		writeClubStats(w, p.Stats)
		w.WriteU32(p.Point)
		if p.Count > 0 {
			w.WriteU8(0)
		} else {
			w.WriteU8(0xFF)
		}
		w.WriteU32(p.Count)
		w.WriteU32(p.CancelCount)
	case Timed:
		encodeTimed(w, p, now)
	default:
		panic(fmt.Sprintf("transaction: unhandled payload %T", p))
	}
}

func writeClubStats(w *packet.Writer, s ClubStats) {
	for _, v := range s {
		w.WriteU16(v)
	}
}

func encodeTimed(w *packet.Writer, p Timed, now time.Time) {
	remaining := p.Expires.Sub(now)
	if remaining >= longTermThreshold {
		days := uint32(remaining / (24 * time.Hour))
		w.WriteU32(1)
		w.WriteU32(Timestamp(p.Registered))
		w.WriteU32(Timestamp(p.Expires))
		w.WriteU32(days)
		w.WriteZero(8)
		w.WriteU16(uint16(days))
	} else {
		w.WriteU32(0)
		w.WriteU32(p.OldAmount)
		w.WriteU32(p.NewAmount)
		w.WriteU32(uint32(int32(p.NewAmount) - int32(p.OldAmount)))
		w.WriteZero(8)
		w.WriteU16(0)
	}
	w.WriteU16(uint16(min(len(p.UCC), uccWidth)))
	w.WriteFixed(p.UCC, uccWidth)
	w.WriteU32(0)
	w.WriteU8(0)
}
