package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		fatal bool
	}{
		{"unknown opcode", fmt.Errorf("opcode 0x99: %w", ErrUnknownOpcode), UnknownOpcode, false},
		{"persistence", fmt.Errorf("loading statistics: %w", ErrPersistence), PersistenceUnavailable, true},
		{"directory", fmt.Errorf("room 4: %w", ErrDirectoryLookup), DirectoryLookupFailed, false},
		{"truncated frame", fmt.Errorf("reading slot: %w", packet.ErrFrameTruncated), GenericFailure, true},
		{"untagged", errors.New("boom"), GenericFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Classify(tt.err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.fatal, k.Fatal())
		})
	}
}

func TestKind_OutOfRangeIsFatal(t *testing.T) {
	assert.True(t, Kind(42).Fatal())
	assert.Equal(t, "unknown_kind", Kind(-1).String())
	assert.Equal(t, "directory_lookup_failed", DirectoryLookupFailed.String())
}
