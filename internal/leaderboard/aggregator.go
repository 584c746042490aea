package leaderboard

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/metrics"
)

const DefaultSize = 10

type Entry struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Balance     decimal.Decimal `json:"balance"`
}

// Source yields the accounts to rank; the registry implements it.
type Source interface {
	All() []*domain.Account
}

// Policy decides whether an account may appear on the leaderboard.
type Policy func(domain.AccountSnapshot) bool

// Directory answers whether an account belongs to a known participant.
type Directory interface {
	HasPlayedBefore(id uuid.UUID) bool
}

// ParticipantsOnly admits accounts whose owner has joined at least once.
func ParticipantsOnly(dir Directory) Policy {
	return func(s domain.AccountSnapshot) bool {
		return dir.HasPlayedBefore(s.ID)
	}
}

type Aggregator struct {
	source  Source
	policy  Policy
	size    int
	metrics *metrics.Metrics
	logger  *slog.Logger

	top atomic.Pointer[[]Entry]
}

// NewAggregator ranks at most size accounts. A nil policy admits every account.
func NewAggregator(source Source, policy Policy, size int, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if size <= 0 {
		size = DefaultSize
	}
	if policy == nil {
		policy = func(domain.AccountSnapshot) bool { return true }
	}
	return &Aggregator{
		source:  source,
		policy:  policy,
		size:    size,
		metrics: m,
		logger:  logger,
	}
}

// Refresh rebuilds the ranking from one snapshot per account and publishes it.
// Readers see either the previous or the new list, never a partial one.
func (a *Aggregator) Refresh() []Entry {
	start := time.Now()

	accounts := a.source.All()
	entries := make([]Entry, 0, len(accounts))
	for _, account := range accounts {
		snap := account.Snapshot()
		if snap.Balance.IsZero() || !a.policy(snap) {
			continue
		}
		entries = append(entries, Entry{
			AccountID:   snap.ID,
			Name:        snap.Name,
			DisplayName: domain.DisplayName(snap.Name),
			Balance:     snap.Balance,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Balance.Cmp(entries[j].Balance); c != 0 {
			return c > 0
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > a.size {
		entries = entries[:a.size]
	}

	a.top.Store(&entries)

	elapsed := time.Since(start)
	a.metrics.ObserveLeaderboard(elapsed.Seconds(), len(entries))
	a.logger.Debug("Leaderboard refreshed", "accounts", len(accounts), "entries", len(entries), "duration", elapsed)
	return a.Top()
}

// Top returns a copy of the last published ranking.
func (a *Aggregator) Top() []Entry {
	p := a.top.Load()
	if p == nil {
		return []Entry{}
	}
	out := make([]Entry, len(*p))
	copy(out, *p)
	return out
}
