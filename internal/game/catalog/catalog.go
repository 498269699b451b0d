// Package catalog loads the static game content the session core needs:
// room kinds with their capacities and snapshot formats, and shop items.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot formats a room kind may use.
const (
	FormatMatch = "match"
	FormatChat  = "chat"
)

// RoomKind describes one class of room.
//
// Precondition: Capacity > 0 and Format is FormatMatch or FormatChat after loading.
type RoomKind struct {
	ID       uint8  `yaml:"id"`
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Format   string `yaml:"format"`
}

// Currencies an item may be priced in.
const (
	CurrencyPang   = "pang"
	CurrencyCookie = "cookie"
)

// Item is a purchasable item.
type Item struct {
	TypeID uint32 `yaml:"type_id"`
	Name   string `yaml:"name"`
	Price  int64  `yaml:"price"`
	// Currency is CurrencyPang or CurrencyCookie. Empty means pang.
	Currency string `yaml:"currency"`
	// Days is the rental period. Zero means the item is permanent.
	Days int `yaml:"days"`
}

// Catalog is the immutable, indexed content set.
type Catalog struct {
	kinds map[uint8]RoomKind
	items map[uint32]Item
}

type document struct {
	RoomKinds []RoomKind `yaml:"room_kinds"`
	Items     []Item     `yaml:"items"`
}

// Load reads and parses the catalog file at path.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns a validated Catalog or a non-nil error.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog document. Every violation is reported.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var errs []error
	c := &Catalog{
		kinds: make(map[uint8]RoomKind, len(doc.RoomKinds)),
		items: make(map[uint32]Item, len(doc.Items)),
	}
	for _, k := range doc.RoomKinds {
		if _, dup := c.kinds[k.ID]; dup {
			errs = append(errs, fmt.Errorf("room kind %d: duplicate id", k.ID))
			continue
		}
		if k.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("room kind %d: capacity must be positive, got %d", k.ID, k.Capacity))
		}
		if k.Format != FormatMatch && k.Format != FormatChat {
			errs = append(errs, fmt.Errorf("room kind %d: format must be %q or %q, got %q", k.ID, FormatMatch, FormatChat, k.Format))
		}
		c.kinds[k.ID] = k
	}
	for _, it := range doc.Items {
		if _, dup := c.items[it.TypeID]; dup {
			errs = append(errs, fmt.Errorf("item %d: duplicate type_id", it.TypeID))
			continue
		}
		if it.Price < 0 {
			errs = append(errs, fmt.Errorf("item %d: price must not be negative", it.TypeID))
		}
		if it.Currency == "" {
			it.Currency = CurrencyPang
		}
		if it.Currency != CurrencyPang && it.Currency != CurrencyCookie {
			errs = append(errs, fmt.Errorf("item %d: currency must be %q or %q, got %q", it.TypeID, CurrencyPang, CurrencyCookie, it.Currency))
		}
		c.items[it.TypeID] = it
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// RoomKind returns the room kind with the given id.
func (c *Catalog) RoomKind(id uint8) (RoomKind, bool) {
	k, ok := c.kinds[id]
	return k, ok
}

// Item returns the item with the given type id.
func (c *Catalog) Item(typeID uint32) (Item, bool) {
	it, ok := c.items[typeID]
	return it, ok
}

// RoomKindCount returns the number of room kinds.
func (c *Catalog) RoomKindCount() int { return len(c.kinds) }

// ItemCount returns the number of items.
func (c *Catalog) ItemCount() int { return len(c.items) }
