package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fairway/internal/game/fault"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

type recorder struct {
	calls []packet.Opcode
}

func handlerFor(op packet.Opcode) Handler[*recorder] {
	return func(_ context.Context, rec *recorder, _ *packet.Reader) error {
		rec.calls = append(rec.calls, op)
		return nil
	}
}

func TestNewTable_Dispatch(t *testing.T) {
	tbl, err := NewTable([]Entry[*recorder]{
		{Opcode: packet.OpLogin, Handler: handlerFor(packet.OpLogin)},
		{Opcode: packet.OpJoinRoom, Handler: handlerFor(packet.OpJoinRoom)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	rec := &recorder{}
	require.NoError(t, tbl.Dispatch(context.Background(), rec, packet.OpJoinRoom, packet.NewReader(nil)))
	assert.Equal(t, []packet.Opcode{packet.OpJoinRoom}, rec.calls)
}

func TestNewTable_DuplicateOpcode(t *testing.T) {
	_, err := NewTable([]Entry[*recorder]{
		{Opcode: packet.OpLogin, Handler: handlerFor(packet.OpLogin)},
		{Opcode: packet.OpLogin, Handler: handlerFor(packet.OpLogin)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate opcode")
}

func TestNewTable_NilHandler(t *testing.T) {
	_, err := NewTable([]Entry[*recorder]{{Opcode: packet.OpLogin}})
	assert.Error(t, err)
}

func TestMustNewTable_PanicsOnConflict(t *testing.T) {
	assert.Panics(t, func() {
		MustNewTable([]Entry[*recorder]{
			{Opcode: 1, Handler: handlerFor(1)},
			{Opcode: 1, Handler: handlerFor(1)},
		})
	})
}

func TestDispatch_MissIsUnknownOpcode(t *testing.T) {
	tbl := MustNewTable([]Entry[*recorder]{{Opcode: packet.OpLogin, Handler: handlerFor(packet.OpLogin)}})
	rec := &recorder{}
	err := tbl.Dispatch(context.Background(), rec, 0x7777, packet.NewReader(nil))
	require.ErrorIs(t, err, fault.ErrUnknownOpcode)
	assert.Equal(t, fault.UnknownOpcode, fault.Classify(err))
	assert.False(t, fault.Classify(err).Fatal())
	assert.Empty(t, rec.calls)
}

// Property: a table built from distinct opcodes resolves exactly those opcodes.
func TestPropertyLookupMatchesRegistration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfNDistinct(rapid.Uint16(), 0, 40, func(v uint16) uint16 { return v }).Draw(t, "ops")
		entries := make([]Entry[*recorder], 0, len(raw))
		registered := make(map[packet.Opcode]bool, len(raw))
		for _, v := range raw {
			op := packet.Opcode(v)
			entries = append(entries, Entry[*recorder]{Opcode: op, Handler: handlerFor(op)})
			registered[op] = true
		}
		tbl, err := NewTable(entries)
		if err != nil {
			t.Fatalf("NewTable: %v", err)
		}
		probe := packet.Opcode(rapid.Uint16().Draw(t, "probe"))
		_, ok := tbl.Lookup(probe)
		if ok != registered[probe] {
			t.Fatalf("Lookup(%s) = %v, registered = %v", probe, ok, registered[probe])
		}
		if len(tbl.Opcodes()) != len(raw) {
			t.Fatalf("Opcodes() has %d entries, want %d", len(tbl.Opcodes()), len(raw))
		}
	})
}
