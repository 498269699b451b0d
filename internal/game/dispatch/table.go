// Package dispatch maps inbound opcodes to handlers. A Table is built once at
// startup and is read-only afterwards, so lookups need no synchronisation.
package dispatch

import (
	"context"
	"fmt"
	"slices"

	"github.com/cory-johannsen/fairway/internal/game/fault"
	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Handler processes one frame for target. The reader is positioned just past
// the opcode header.
type Handler[T any] func(ctx context.Context, target T, r *packet.Reader) error

// Entry binds an opcode to its handler.
type Entry[T any] struct {
	Opcode  packet.Opcode
	Handler Handler[T]
}

// Table is an immutable opcode → handler map.
type Table[T any] struct {
	handlers map[packet.Opcode]Handler[T]
}

// NewTable builds a Table from entries.
//
// Precondition: each opcode appears at most once and every handler is non-nil.
// Postcondition: Returns a Table or an error naming the first conflicting opcode.
func NewTable[T any](entries []Entry[T]) (*Table[T], error) {
	t := &Table[T]{handlers: make(map[packet.Opcode]Handler[T], len(entries))}
	for _, e := range entries {
		if e.Handler == nil {
			return nil, fmt.Errorf("opcode %s: nil handler", e.Opcode)
		}
		if _, exists := t.handlers[e.Opcode]; exists {
			return nil, fmt.Errorf("duplicate opcode: %s", e.Opcode)
		}
		t.handlers[e.Opcode] = e.Handler
	}
	return t, nil
}

// MustNewTable is NewTable for static startup tables; a conflict panics.
func MustNewTable[T any](entries []Entry[T]) *Table[T] {
	t, err := NewTable(entries)
	if err != nil {
		panic(fmt.Sprintf("building dispatch table: %v", err))
	}
	return t
}

// Lookup returns the handler registered for op.
func (t *Table[T]) Lookup(op packet.Opcode) (Handler[T], bool) {
	h, ok := t.handlers[op]
	return h, ok
}

// Dispatch invokes the handler for op. A miss returns an error wrapping
// fault.ErrUnknownOpcode.
func (t *Table[T]) Dispatch(ctx context.Context, target T, op packet.Opcode, r *packet.Reader) error {
	h, ok := t.Lookup(op)
	if !ok {
		return fmt.Errorf("opcode %s: %w", op, fault.ErrUnknownOpcode)
	}
	return h(ctx, target, r)
}

// Opcodes returns the registered opcodes in ascending order.
func (t *Table[T]) Opcodes() []packet.Opcode {
	ops := make([]packet.Opcode, 0, len(t.handlers))
	for op := range t.handlers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Len returns the number of registered opcodes.
func (t *Table[T]) Len() int { return len(t.handlers) }
