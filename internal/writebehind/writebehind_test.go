package writebehind

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"economy/internal/domain"
	"economy/internal/events"
	"economy/internal/repository/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type accountMap map[uuid.UUID]*domain.Account

func (m accountMap) Get(id uuid.UUID) (*domain.Account, bool) {
	a, ok := m[id]
	return a, ok
}

type failingAccounts struct {
	domain.AccountRepository
	calls int
}

func (f *failingAccounts) SaveAccount(ctx context.Context, a domain.AccountSnapshot) error {
	f.calls++
	return errors.New("connection refused")
}

type flakyTransactions struct {
	domain.TransactionRepository
	failOn int
	calls  int
}

func (f *flakyTransactions) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("deadlock detected")
	}
	return f.TransactionRepository.CreateTransaction(ctx, tx)
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestDirtySet_Coalesces(t *testing.T) {
	d := NewDirtySet()
	id := uuid.New()

	for i := 0; i < 5; i++ {
		d.MarkDirty(id)
	}

	assert.Equal(t, 1, d.Len())
	assert.True(t, d.Contains(id))
	assert.Equal(t, []uuid.UUID{id}, d.Drain())
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Drain())
}

func TestDirtySet_ConcurrentMarkDuringDrainIsNeverLost(t *testing.T) {
	d := NewDirtySet()
	const producers, perProducer = 8, 500

	want := make(map[uuid.UUID]struct{})
	ids := make([][]uuid.UUID, producers)
	for p := range ids {
		for i := 0; i < perProducer; i++ {
			id := uuid.New()
			ids[p] = append(ids[p], id)
			want[id] = struct{}{}
		}
	}

	seen := make(map[uuid.UUID]struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(batch []uuid.UUID) {
			defer wg.Done()
			for _, id := range batch {
				d.MarkDirty(id)
			}
		}(ids[p])
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	for draining := true; draining; {
		select {
		case <-done:
			draining = false
		default:
		}
		for _, id := range d.Drain() {
			seen[id] = struct{}{}
		}
	}
	for _, id := range d.Drain() {
		seen[id] = struct{}{}
	}

	assert.Equal(t, len(want), len(seen))
}

func TestLedgerQueue_PreservesOrderAndDrains(t *testing.T) {
	q := NewLedgerQueue()
	id := uuid.New()
	for i := 1; i <= 3; i++ {
		q.Append(domain.Transaction{AccountID: id, Amount: decimal.NewFromInt(int64(i))})
	}

	got := q.Drain()
	require.Len(t, got, 3)
	for i, tx := range got {
		assert.True(t, decimal.NewFromInt(int64(i+1)).Equal(tx.Amount))
	}
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestLedgerQueue_ConcurrentAppendIsLossless(t *testing.T) {
	q := NewLedgerQueue()
	var wg sync.WaitGroup
	total := 0
	var mu sync.Mutex

	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-stop:
				return
			default:
				n := len(q.Drain())
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}
	}()

	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Append(domain.Transaction{Amount: decimal.NewFromInt(1)})
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-drained
	total += len(q.Drain())

	assert.Equal(t, 10000, total)
}

func TestSnapshotFlusher_CoalescesAndLedgerIsLossless(t *testing.T) {
	store := memory.NewStore()
	dirty := NewDirtySet()
	ledger := NewLedgerQueue()

	acc := domain.NewAccount(uuid.New(), "alice", decimal.NewFromInt(100), false, dirty, ledger)
	accounts := accountMap{acc.ID(): acc}

	for i := 0; i < 7; i++ {
		acc.Add(decimal.NewFromInt(1), domain.TransactorPlayer)
	}

	snaps := NewSnapshotFlusher(dirty, accounts, store.Account(), nil, discard)
	txs := NewLedgerFlusher(ledger, store.Transaction(), nil, discard)

	res := snaps.Flush(context.Background())
	assert.Equal(t, FlushResult{Captured: 1, Written: 1}, res)

	res = txs.Flush(context.Background())
	assert.Equal(t, FlushResult{Captured: 7, Written: 7}, res)

	rows, err := store.Account().LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, decimal.NewFromInt(107).Equal(rows[0].Balance))
	assert.Len(t, store.Transactions(), 7)
}

func TestSnapshotFlusher_SkipsDeletedAccounts(t *testing.T) {
	store := memory.NewStore()
	dirty := NewDirtySet()

	gone := uuid.New()
	dirty.MarkDirty(gone)

	res := NewSnapshotFlusher(dirty, accountMap{}, store.Account(), nil, discard).Flush(context.Background())

	assert.Equal(t, FlushResult{Captured: 1, Skipped: 1}, res)
	rows, _ := store.Account().LoadAll(context.Background())
	assert.Empty(t, rows)
}

func TestSnapshotFlusher_FailureIsDroppedNotRequeued(t *testing.T) {
	dirty := NewDirtySet()
	acc := domain.NewAccount(uuid.New(), "bob", decimal.Zero, false, dirty, nil)
	acc.Add(decimal.NewFromInt(5), domain.TransactorServer)

	repo := &failingAccounts{}
	res := NewSnapshotFlusher(dirty, accountMap{acc.ID(): acc}, repo, nil, discard).Flush(context.Background())

	assert.Equal(t, FlushResult{Captured: 1, Failed: 1}, res)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 0, dirty.Len(), "failed snapshots are not re-marked")
}

func TestSnapshotFlusher_MutationAfterDrainLandsInNextRound(t *testing.T) {
	store := memory.NewStore()
	dirty := NewDirtySet()
	acc := domain.NewAccount(uuid.New(), "carol", decimal.Zero, false, dirty, nil)
	acc.Add(decimal.NewFromInt(1), domain.TransactorServer)

	flusher := NewSnapshotFlusher(dirty, accountMap{acc.ID(): acc}, store.Account(), nil, discard)
	flusher.Flush(context.Background())

	acc.Add(decimal.NewFromInt(1), domain.TransactorServer)
	assert.True(t, dirty.Contains(acc.ID()))

	flusher.Flush(context.Background())
	row, err := store.Account().GetAccount(context.Background(), acc.ID())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, decimal.NewFromInt(2).Equal(row.Balance))
}

func TestLedgerFlusher_FailedRowIsDroppedOthersWritten(t *testing.T) {
	store := memory.NewStore()
	queue := NewLedgerQueue()
	id := uuid.New()
	for i := 1; i <= 3; i++ {
		queue.Append(domain.Transaction{AccountID: id, AccountName: "dave", Amount: decimal.NewFromInt(int64(i)), Transactor: domain.TransactorPlayer})
	}

	repo := &flakyTransactions{TransactionRepository: store.Transaction(), failOn: 2}
	pub := &capturePublisher{}
	res := NewLedgerFlusher(queue, repo, nil, discard).WithPublisher(pub).Flush(context.Background())

	assert.Equal(t, FlushResult{Captured: 3, Written: 2, Failed: 1}, res)
	rows := store.Transactions()
	require.Len(t, rows, 2)
	assert.True(t, decimal.NewFromInt(1).Equal(rows[0].Amount))
	assert.True(t, decimal.NewFromInt(3).Equal(rows[1].Amount))
	assert.Equal(t, 0, queue.Len())

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TopicTransactionRecorded, pub.topics[0])
	ev := pub.events[1].(events.TransactionRecorded)
	assert.Equal(t, id.String(), ev.AccountID)
	assert.Equal(t, "PLAYER", ev.Actor)
}
