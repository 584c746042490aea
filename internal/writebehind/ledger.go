package writebehind

import (
	"sync"

	"economy/internal/domain"
)

// LedgerQueue buffers transactions in arrival order until the next flush.
// Entries are never coalesced or deduplicated.
type LedgerQueue struct {
	mu      sync.Mutex
	entries []domain.Transaction
}

func NewLedgerQueue() *LedgerQueue {
	return &LedgerQueue{}
}

func (q *LedgerQueue) Append(tx domain.Transaction) {
	q.mu.Lock()
	q.entries = append(q.entries, tx)
	q.mu.Unlock()
}

func (q *LedgerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain hands over the buffered entries and installs a new empty buffer.
func (q *LedgerQueue) Drain() []domain.Transaction {
	q.mu.Lock()
	captured := q.entries
	q.entries = nil
	q.mu.Unlock()
	return captured
}
