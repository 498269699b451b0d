package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRemovePang_Insufficient(t *testing.T) {
	s := Statistics{Pang: 1000}
	assert.False(t, s.RemovePang(1200))
	assert.Equal(t, int64(1000), s.Pang)
}

func TestRemovePang_Sufficient(t *testing.T) {
	s := Statistics{Pang: 1000}
	assert.True(t, s.RemovePang(400))
	assert.Equal(t, int64(600), s.Pang)
}

func TestRemovePang_Negative(t *testing.T) {
	s := Statistics{Pang: 10}
	assert.False(t, s.RemovePang(-5))
	assert.Equal(t, int64(10), s.Pang)
}

// Property: the balance never goes negative and changes only on success.
func TestPropertyRemovePangNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Int64Range(0, 1_000_000).Draw(t, "start")
		amount := rapid.Int64Range(-10, 2_000_000).Draw(t, "amount")
		s := Statistics{Pang: start}
		ok := s.RemovePang(amount)
		if ok && s.Pang != start-amount {
			t.Fatalf("success but pang=%d, want %d", s.Pang, start-amount)
		}
		if !ok && s.Pang != start {
			t.Fatalf("failure mutated pang: %d -> %d", start, s.Pang)
		}
		if s.Pang < 0 {
			t.Fatalf("negative pang %d", s.Pang)
		}
	})
}
