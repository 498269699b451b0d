// Package fault defines the failure taxonomy applied at the per-frame
// dispatch boundary. Handlers return errors; only the boundary decides
// whether an error disconnects the player.
package fault

import (
	"errors"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Kind classifies a handler failure.
type Kind int

const (
	// GenericFailure is any unexpected condition. It is the default.
	GenericFailure Kind = iota
	// UnknownOpcode is a dispatch miss.
	UnknownOpcode
	// PersistenceUnavailable is a storage backend failure.
	PersistenceUnavailable
	// DirectoryLookupFailed is a reference to a room or channel that no longer exists.
	DirectoryLookupFailed
)

// Sentinel roots. Wrap them with fmt.Errorf("...: %w", ...) to tag an error.
var (
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrPersistence     = errors.New("persistence unavailable")
	ErrDirectoryLookup = errors.New("directory lookup failed")
)

var kindNames = [...]string{
	GenericFailure:         "generic_failure",
	UnknownOpcode:          "unknown_opcode",
	PersistenceUnavailable: "persistence_unavailable",
	DirectoryLookupFailed:  "directory_lookup_failed",
}

// fatal lists which kinds force a disconnect.
var fatal = [...]bool{
	GenericFailure:         true,
	UnknownOpcode:          false,
	PersistenceUnavailable: true,
	DirectoryLookupFailed:  false,
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown_kind"
	}
	return kindNames[k]
}

// Fatal reports whether a failure of this kind disconnects the connection.
// Unrecognised kinds are fatal.
func (k Kind) Fatal() bool {
	if k < 0 || int(k) >= len(fatal) {
		return true
	}
	return fatal[k]
}

// Classify maps err onto the taxonomy. packet.ErrFrameTruncated and any
// untagged error classify as GenericFailure.
//
// Precondition: err must be non-nil.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrUnknownOpcode):
		return UnknownOpcode
	case errors.Is(err, ErrPersistence):
		return PersistenceUnavailable
	case errors.Is(err, ErrDirectoryLookup):
		return DirectoryLookupFailed
	case errors.Is(err, packet.ErrFrameTruncated):
		return GenericFailure
	default:
		return GenericFailure
	}
}
