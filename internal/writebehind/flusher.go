package writebehind

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"economy/internal/domain"
	"economy/internal/events"
	"economy/internal/metrics"
)

const (
	queueSnapshots = "snapshots"
	queueLedger    = "ledger"
)

// AccountResolver looks up live accounts; the registry implements it.
type AccountResolver interface {
	Get(id uuid.UUID) (*domain.Account, bool)
}

// FlushResult summarises one flush pass.
type FlushResult struct {
	Captured int
	Written  int
	Skipped  int
	Failed   int
}

// SnapshotFlusher persists one snapshot per dirty account.
type SnapshotFlusher struct {
	dirty    *DirtySet
	accounts AccountResolver
	repo     domain.AccountRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewSnapshotFlusher(dirty *DirtySet, accounts AccountResolver, repo domain.AccountRepository, m *metrics.Metrics, logger *slog.Logger) *SnapshotFlusher {
	return &SnapshotFlusher{
		dirty:    dirty,
		accounts: accounts,
		repo:     repo,
		metrics:  m,
		logger:   logger,
	}
}

// Flush drains the dirty set and saves a snapshot of every account that is
// still live. Ids of deleted accounts are skipped. A failed save is logged and
// dropped; the account is persisted again only after its next mutation.
func (f *SnapshotFlusher) Flush(ctx context.Context) FlushResult {
	start := time.Now()
	ids := f.dirty.Drain()
	res := FlushResult{Captured: len(ids)}

	// Snapshot all accounts before the first I/O call.
	snapshots := make([]domain.AccountSnapshot, 0, len(ids))
	for _, id := range ids {
		account, ok := f.accounts.Get(id)
		if !ok {
			res.Skipped++
			f.logger.Debug("Skipping snapshot for deleted account", "account_id", id)
			continue
		}
		snapshots = append(snapshots, account.Snapshot())
	}

	for _, snap := range snapshots {
		if err := f.repo.SaveAccount(ctx, snap); err != nil {
			res.Failed++
			f.logger.Error("Failed to save account snapshot",
				"account_id", snap.ID,
				"account_name", snap.Name,
				"balance", snap.Balance.String(),
				"frozen", snap.Frozen,
				"error", err)
			continue
		}
		res.Written++
		f.logger.Debug("Saved account snapshot", "account_id", snap.ID, "account_name", snap.Name)
	}

	f.metrics.ObserveFlush(queueSnapshots, time.Since(start).Seconds(), res.Captured, res.Written, res.Skipped, res.Failed)
	if res.Captured > 0 {
		f.logger.Info("Account snapshots flushed",
			"captured", res.Captured, "written", res.Written, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res
}

// LedgerFlusher persists every queued transaction as its own row.
type LedgerFlusher struct {
	queue     *LedgerQueue
	repo      domain.TransactionRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewLedgerFlusher(queue *LedgerQueue, repo domain.TransactionRepository, m *metrics.Metrics, logger *slog.Logger) *LedgerFlusher {
	return &LedgerFlusher{
		queue:   queue,
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// WithPublisher fans persisted rows out to p after they are written.
func (f *LedgerFlusher) WithPublisher(p events.Publisher) *LedgerFlusher {
	f.publisher = p
	return f
}

// Flush writes the captured transactions in capture order. Failed rows are
// logged with enough context for manual recovery and then dropped.
func (f *LedgerFlusher) Flush(ctx context.Context) FlushResult {
	start := time.Now()
	entries := f.queue.Drain()
	res := FlushResult{Captured: len(entries)}

	for _, tx := range entries {
		if err := f.repo.CreateTransaction(ctx, tx); err != nil {
			res.Failed++
			f.logger.Error("Failed to save transaction",
				"account_id", tx.AccountID,
				"account_name", tx.AccountName,
				"actor", tx.Transactor,
				"amount", tx.Amount.String(),
				"timestamp", tx.Timestamp,
				"error", err)
			continue
		}
		res.Written++
		f.publish(ctx, tx)
	}

	f.metrics.ObserveFlush(queueLedger, time.Since(start).Seconds(), res.Captured, res.Written, res.Skipped, res.Failed)
	if res.Captured > 0 {
		f.logger.Info("Transactions flushed", "captured", res.Captured, "written", res.Written, "failed", res.Failed)
	}
	return res
}

func (f *LedgerFlusher) publish(ctx context.Context, tx domain.Transaction) {
	if f.publisher == nil {
		return
	}
	event := events.TransactionRecorded{
		AccountID:   tx.AccountID.String(),
		AccountName: tx.AccountName,
		Actor:       string(tx.Transactor),
		Amount:      tx.Amount,
		OccurredAt:  tx.Timestamp,
	}
	if err := f.publisher.Publish(ctx, events.TopicTransactionRecorded, event); err != nil {
		f.logger.Warn("Failed to publish transaction event", "account_id", tx.AccountID, "error", err)
	}
}
