package character

// Equipment tracks the characters an account owns and which one is equipped.
// It is not safe for concurrent use; the owning connection serialises access.
type Equipment struct {
	owned    map[uint32]Character
	order    []uint32
	equipped uint32
}

// NewEquipment builds Equipment from owned characters. equippedID is honoured
// only if it names an owned character; otherwise the first owned character is equipped.
//
// Postcondition: Current() reports ok == true iff len(owned) > 0.
func NewEquipment(owned []Character, equippedID uint32) *Equipment {
	e := &Equipment{owned: make(map[uint32]Character, len(owned))}
	for _, c := range owned {
		if _, dup := e.owned[c.ID]; dup {
			continue
		}
		e.owned[c.ID] = c
		e.order = append(e.order, c.ID)
	}
	if _, ok := e.owned[equippedID]; ok {
		e.equipped = equippedID
	} else if len(e.order) > 0 {
		e.equipped = e.order[0]
	}
	return e
}

// SetCharacter equips the owned character id.
//
// Postcondition: Returns false and leaves the equipped character unchanged if id is not owned.
func (e *Equipment) SetCharacter(id uint32) bool {
	if _, ok := e.owned[id]; !ok {
		return false
	}
	e.equipped = id
	return true
}

// Current returns the equipped character.
func (e *Equipment) Current() (Character, bool) {
	c, ok := e.owned[e.equipped]
	return c, ok
}

// EquippedID returns the id of the equipped character, or 0 if none.
func (e *Equipment) EquippedID() uint32 {
	if _, ok := e.owned[e.equipped]; !ok {
		return 0
	}
	return e.equipped
}

// Owned returns the owned characters in load order.
func (e *Equipment) Owned() []Character {
	out := make([]Character, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.owned[id])
	}
	return out
}
