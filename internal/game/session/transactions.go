package session

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/game/transaction"
)

// PushTransaction queues rec for the next sync frame and records it for
// persistence at teardown.
func (c *Conn) PushTransaction(rec transaction.Record) {
	c.batch.Push(rec)
	c.mu.Lock()
	c.ledger = append(c.ledger, rec)
	c.mu.Unlock()
}

// PendingTransactions returns the number of records awaiting a sync frame.
func (c *Conn) PendingTransactions() int {
	return c.batch.Len()
}

// FlushTransactions sends every pending record in one sync frame. The queue
// is cleared even when the send fails.
func (c *Conn) FlushTransactions() error {
	n, err := c.batch.Flush(c.deps.Clock(), c.SendPacket)
	if err != nil {
		c.Logger().Warn("transaction sync not delivered", zap.Int("records", n), zap.Error(err))
	}
	return err
}
