package transaction

import (
	"sync"
	"time"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// Batch is a per-connection queue of pending records. Push and Flush may be
// called from different goroutines; each record is delivered by exactly one Flush.
type Batch struct {
	mu      sync.Mutex
	records []Record
}

// Push appends r. Records are never coalesced.
func (b *Batch) Push(r Record) {
	b.mu.Lock()
	b.records = append(b.records, r)
	b.mu.Unlock()
}

// Len returns the number of pending records.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Drain removes and returns all pending records.
//
// Postcondition: Len() == 0 immediately after the call returns, unless a
// concurrent Push lands afterwards.
func (b *Batch) Drain() []Record {
	b.mu.Lock()
	out := b.records
	b.records = nil
	b.mu.Unlock()
	return out
}

// Flush drains the queue, encodes one sync frame and hands the writer to send,
// which sees any field overflow recorded during encoding.
// The queue is cleared whether or not send succeeds; delivery is
// fire-and-forget. An empty queue still sends a zero-count frame.
//
// Postcondition: Returns the number of records flushed and send's error.
func (b *Batch) Flush(now time.Time, send func(*packet.Writer) error) (int, error) {
	records := b.Drain()
	w := EncodeBatch(records, now)
	return len(records), send(w)
}
