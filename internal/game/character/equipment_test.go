package character

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

func TestNewEquipment_DefaultsToFirstOwned(t *testing.T) {
	e := NewEquipment([]Character{{ID: 10, TypeID: 0x04000000}, {ID: 11, TypeID: 0x04000001}}, 99)
	c, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, uint32(10), c.ID)
}

func TestNewEquipment_HonoursEquippedID(t *testing.T) {
	e := NewEquipment([]Character{{ID: 10}, {ID: 11}}, 11)
	assert.Equal(t, uint32(11), e.EquippedID())
}

func TestNewEquipment_Empty(t *testing.T) {
	e := NewEquipment(nil, 0)
	_, ok := e.Current()
	assert.False(t, ok)
	assert.Equal(t, uint32(0), e.EquippedID())
}

func TestSetCharacter_RejectsUnowned(t *testing.T) {
	e := NewEquipment([]Character{{ID: 10}, {ID: 11}}, 10)
	assert.False(t, e.SetCharacter(12))
	assert.Equal(t, uint32(10), e.EquippedID())
	assert.True(t, e.SetCharacter(11))
	assert.Equal(t, uint32(11), e.EquippedID())
}

func TestOwned_PreservesOrderAndDropsDuplicates(t *testing.T) {
	e := NewEquipment([]Character{{ID: 3}, {ID: 1}, {ID: 3, TypeID: 9}}, 0)
	owned := e.Owned()
	require.Len(t, owned, 2)
	assert.Equal(t, uint32(3), owned[0].ID)
	assert.Equal(t, uint32(0), owned[0].TypeID)
	assert.Equal(t, uint32(1), owned[1].ID)
}

func TestWriteBlock_Size(t *testing.T) {
	w := packet.NewWriter(0)
	Character{ID: 1, TypeID: 2}.WriteBlock(w)
	assert.Equal(t, 2+BlockSize, w.Len())
}

// Property: SetCharacter succeeds exactly for owned ids.
func TestPropertySetCharacterOwnership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.Uint32Range(1, 50), 1, 10, func(v uint32) uint32 { return v }).Draw(t, "ids")
		owned := make([]Character, 0, len(ids))
		isOwned := make(map[uint32]bool)
		for _, id := range ids {
			owned = append(owned, Character{ID: id})
			isOwned[id] = true
		}
		e := NewEquipment(owned, 0)
		before := e.EquippedID()
		probe := rapid.Uint32Range(1, 60).Draw(t, "probe")
		got := e.SetCharacter(probe)
		if got != isOwned[probe] {
			t.Fatalf("SetCharacter(%d) = %v, owned = %v", probe, got, isOwned[probe])
		}
		if !got && e.EquippedID() != before {
			t.Fatalf("failed SetCharacter changed equipped id")
		}
	})
}
