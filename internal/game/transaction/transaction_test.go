package transaction

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// header reads the frame prefix and returns the reader positioned at the first entry.
func header(t *testing.T, frame []byte) (*packet.Reader, uint32) {
	t.Helper()
	r := packet.NewReader(frame)
	op, err := r.Opcode()
	require.NoError(t, err)
	require.Equal(t, packet.OpTransactionSync, op)
	ts, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, Timestamp(now), ts)
	count, err := r.U32()
	require.NoError(t, err)
	return r, count
}

func TestFlush_TwiceSendsEmptyBatch(t *testing.T) {
	var b Batch
	b.Push(Record{TypeID: 1, ItemID: 2, Payload: CardSlot{CardTypeID: 9, CharSlot: 1}})
	b.Push(Record{TypeID: 1, ItemID: 2, Payload: CardSlot{CardTypeID: 9, CharSlot: 1}})

	var frames [][]byte
	send := func(w *packet.Writer) error { frames = append(frames, w.Bytes()); return nil }

	n, err := b.Flush(now, send)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = b.Flush(now, send)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, frames, 2)
	_, count := header(t, frames[0])
	assert.Equal(t, uint32(2), count)
	r, count := header(t, frames[1])
	assert.Equal(t, uint32(0), count)
	assert.Equal(t, 0, r.Remaining())
}

func TestFlush_SendFailureStillClears(t *testing.T) {
	var b Batch
	b.Push(Record{Payload: Timed{Action: ActionItemAdd}})
	boom := errors.New("closed")
	n, err := b.Flush(now, func(*packet.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, b.Len())
}

func TestEncode_ClubPowder(t *testing.T) {
	w := EncodeBatch([]Record{{TypeID: 0x10000001, ItemID: 77, Payload: ClubPowder{Stats: ClubStats{1, 2, 3, 4, 5}}}}, now)
	r, count := header(t, w.Bytes())
	require.Equal(t, uint32(1), count)

	key, _ := r.U8()
	assert.Equal(t, KeyClubPowder, key)
	typeID, _ := r.U32()
	itemID, _ := r.U32()
	assert.Equal(t, uint32(0x10000001), typeID)
	assert.Equal(t, uint32(77), itemID)
	require.NoError(t, r.Skip(16))
	for i := uint16(1); i <= 5; i++ {
		v, err := r.U16()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 15, r.Remaining())
}

func TestEncode_CardSlot(t *testing.T) {
	w := EncodeBatch([]Record{{Payload: CardSlot{CardTypeID: 0x7C000001, CharSlot: 3}}}, now)
	r, _ := header(t, w.Bytes())
	require.NoError(t, r.Skip(1+4+4+16+20))
	card, _ := r.U32()
	slot, _ := r.U8()
	assert.Equal(t, uint32(0x7C000001), card)
	assert.Equal(t, uint8(3), slot)
	assert.Equal(t, 0, r.Remaining())
}

func TestEncode_ClubEnhanceCountFlag(t *testing.T) {
	for _, tc := range []struct {
		count uint32
		flag  uint8
	}{{0, 0xFF}, {3, 0}} {
		w := EncodeBatch([]Record{{Payload: ClubEnhance{Count: tc.count, Point: 12}}}, now)
		r, _ := header(t, w.Bytes())
		require.NoError(t, r.Skip(1+4+4+16+20+4+1+10))
		point, _ := r.U32()
		flag, _ := r.U8()
		count, _ := r.U32()
		assert.Equal(t, uint32(12), point)
		assert.Equal(t, tc.flag, flag)
		assert.Equal(t, tc.count, count)
	}
}

func TestEncode_TimedLongTerm(t *testing.T) {
	reg := now.Add(-time.Hour)
	exp := now.Add(72*time.Hour + 30*time.Minute)
	w := EncodeBatch([]Record{{Payload: Timed{Action: ActionItemAdd, Registered: reg, Expires: exp, UCC: "ABCDEFGHIJ"}}}, now)
	r, _ := header(t, w.Bytes())
	key, _ := r.U8()
	assert.Equal(t, ActionItemAdd, key)
	require.NoError(t, r.Skip(8))

	flag, _ := r.U32()
	start, _ := r.U32()
	end, _ := r.U32()
	days, _ := r.U32()
	assert.Equal(t, uint32(1), flag)
	assert.Equal(t, Timestamp(reg), start)
	assert.Equal(t, Timestamp(exp), end)
	assert.Equal(t, uint32(3), days)

	require.NoError(t, r.Skip(8))
	days16, _ := r.U16()
	assert.Equal(t, uint16(3), days16)
	n, _ := r.U16()
	assert.Equal(t, uint16(8), n)
	ucc, _ := r.Fixed(8)
	assert.Equal(t, "ABCDEFGH", ucc)
}

func TestEncode_TimedAmountDelta(t *testing.T) {
	for _, exp := range []time.Time{{}, now.Add(59 * time.Minute)} {
		w := EncodeBatch([]Record{{Payload: Timed{Action: ActionItemUpdate, Expires: exp, OldAmount: 10, NewAmount: 7}}}, now)
		r, _ := header(t, w.Bytes())
		require.NoError(t, r.Skip(9))
		flag, _ := r.U32()
		oldAmt, _ := r.U32()
		newAmt, _ := r.U32()
		delta, _ := r.U32()
		assert.Equal(t, uint32(0), flag)
		assert.Equal(t, uint32(10), oldAmt)
		assert.Equal(t, uint32(7), newAmt)
		assert.Equal(t, int32(-3), int32(delta))
	}
}

func TestEncode_ThresholdIsInclusive(t *testing.T) {
	w := EncodeBatch([]Record{{Payload: Timed{Expires: now.Add(time.Hour)}}}, now)
	r, _ := header(t, w.Bytes())
	require.NoError(t, r.Skip(9))
	flag, _ := r.U32()
	assert.Equal(t, uint32(1), flag)
}

func TestEncode_TimedWithSpecialKeyPanics(t *testing.T) {
	for _, key := range []uint8{KeyClubPowder, KeyDurability, KeyCardSlot, KeyClubEnhance} {
		assert.Panics(t, func() {
			EncodeBatch([]Record{{Payload: Timed{Action: key}}}, now)
		}, "action %#x", key)
	}
	assert.NotPanics(t, func() {
		EncodeBatch([]Record{{Payload: Timed{Action: KeyClubPowder - 1}}}, now)
		EncodeBatch([]Record{{Payload: Timed{Action: KeyClubEnhance + 1}}}, now)
	})
}

func TestProperty_ReservedKeysAreExactlyTheSpecialLayouts(t *testing.T) {
	special := map[uint8]bool{}
	for _, p := range []Payload{ClubPowder{}, Durability{}, CardSlot{}, ClubEnhance{}} {
		special[p.Key()] = true
	}
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.Uint8().Draw(rt, "key")
		if ReservedKey(k) != special[k] {
			rt.Fatalf("ReservedKey(%#x) = %v", k, ReservedKey(k))
		}
	})
}

func TestEncode_LongUCCRecordsOverflow(t *testing.T) {
	w := EncodeBatch([]Record{{Payload: Timed{Action: ActionItemAdd, UCC: "ABCDEFGHIJ"}}}, now)
	assert.ErrorIs(t, w.Err(), packet.ErrFieldOverflow)

	w = EncodeBatch([]Record{{Payload: Timed{Action: ActionItemAdd, UCC: "ABCD"}}}, now)
	assert.NoError(t, w.Err())
}

func TestEncode_NilPayloadPanics(t *testing.T) {
	assert.Panics(t, func() { EncodeBatch([]Record{{TypeID: 1}}, now) })
}

func TestBatch_ConcurrentPushNeverLosesRecords(t *testing.T) {
	var b Batch
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Push(Record{Payload: Durability{Current: 1, Max: 2}})
				if j%10 == 0 {
					recs := b.Drain()
					mu.Lock()
					total += len(recs)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	total += len(b.Drain())
	assert.Equal(t, 800, total)
}

func TestProperty_FlushCountMatchesPushes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var b Batch
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		for i := 0; i < n; i++ {
			b.Push(Record{ItemID: uint32(i), Payload: ClubPowder{}})
		}
		var frame []byte
		flushed, err := b.Flush(now, func(w *packet.Writer) error { frame = w.Bytes(); return nil })
		if err != nil {
			rt.Fatal(err)
		}
		if flushed != n {
			rt.Fatalf("flushed %d, pushed %d", flushed, n)
		}
		r := packet.NewReader(frame)
		_ = r.Skip(6)
		count, _ := r.U32()
		if int(count) != n {
			rt.Fatalf("count %d, want %d", count, n)
		}
		if b.Len() != 0 {
			rt.Fatalf("queue not empty after flush")
		}
	})
}
