package domain

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	dirty []uuid.UUID
	txs   []Transaction
}

func (r *recorder) MarkDirty(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = append(r.dirty, id)
}

func (r *recorder) Append(tx Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, tx)
}

func newTestAccount(balance string, frozen bool) (*Account, *recorder) {
	rec := &recorder{}
	acc := NewAccount(uuid.New(), "alice", decimal.RequireFromString(balance), frozen, rec, rec)
	return acc, rec
}

func TestAccount_SubtractThenAdd(t *testing.T) {
	acc, rec := newTestAccount("100.00", false)

	assert.True(t, acc.Subtract(decimal.RequireFromString("30.00"), TransactorPlayer))
	assert.True(t, acc.Add(decimal.RequireFromString("5.00"), TransactorServer))

	assert.True(t, decimal.RequireFromString("75.00").Equal(acc.Balance()))
	require.Len(t, rec.txs, 2)
	assert.True(t, decimal.RequireFromString("-30.00").Equal(rec.txs[0].Amount))
	assert.Equal(t, TransactorPlayer, rec.txs[0].Transactor)
	assert.True(t, decimal.RequireFromString("5.00").Equal(rec.txs[1].Amount))
	assert.Equal(t, TransactorServer, rec.txs[1].Transactor)
	assert.Equal(t, "alice", rec.txs[0].AccountName)
	assert.Len(t, rec.dirty, 2)
}

func TestAccount_ZeroDeltaStillRecorded(t *testing.T) {
	acc, rec := newTestAccount("40", false)

	assert.True(t, acc.SetBalance(decimal.NewFromInt(40), TransactorServer))
	assert.True(t, acc.Add(decimal.Zero, TransactorServer))

	require.Len(t, rec.txs, 2)
	assert.True(t, rec.txs[0].Amount.IsZero())
	assert.Len(t, rec.dirty, 2)
}

func TestAccount_SetBalanceRecordsDelta(t *testing.T) {
	acc, rec := newTestAccount("40", false)

	assert.True(t, acc.SetBalance(decimal.NewFromInt(15), TransactorServer))

	assert.True(t, decimal.NewFromInt(15).Equal(acc.Balance()))
	require.Len(t, rec.txs, 1)
	assert.True(t, decimal.NewFromInt(-25).Equal(rec.txs[0].Amount))
}

func TestAccount_FrozenRejectsMutations(t *testing.T) {
	acc, rec := newTestAccount("10", false)
	acc.Freeze()
	require.Len(t, rec.dirty, 1)

	assert.False(t, acc.Add(decimal.NewFromInt(1), TransactorPlayer))
	assert.False(t, acc.Subtract(decimal.NewFromInt(1), TransactorPlayer))
	assert.False(t, acc.SetBalance(decimal.NewFromInt(500), TransactorServer))
	assert.False(t, acc.Rename("bob"))

	assert.True(t, decimal.NewFromInt(10).Equal(acc.Balance()))
	assert.Equal(t, "alice", acc.Name())
	assert.Empty(t, rec.txs)
	assert.Len(t, rec.dirty, 1, "only the freeze itself marks the account dirty")
}

func TestAccount_UnfreezeAlwaysAllowed(t *testing.T) {
	acc, rec := newTestAccount("0", true)

	acc.Unfreeze()
	assert.False(t, acc.IsFrozen())
	acc.SetFrozen(true)
	assert.True(t, acc.IsFrozen())

	assert.Len(t, rec.dirty, 2)
	assert.Empty(t, rec.txs)
}

func TestAccount_RenameIsNotLedgered(t *testing.T) {
	acc, rec := newTestAccount("0", false)

	assert.True(t, acc.Rename("bob"))
	assert.Equal(t, "bob", acc.Name())
	assert.Empty(t, rec.txs)
	assert.Len(t, rec.dirty, 1)
}

func TestAccount_ExactDecimalArithmetic(t *testing.T) {
	acc, rec := newTestAccount("0", false)
	tenth := decimal.RequireFromString("0.1")

	for i := 0; i < 10000; i++ {
		acc.Add(tenth, TransactorServer)
	}

	assert.True(t, decimal.NewFromInt(1000).Equal(acc.Balance()), "got %s", acc.Balance())
	assert.Len(t, rec.txs, 10000)
}

func TestAccount_ConcurrentMutationsDoNotInterleave(t *testing.T) {
	acc, rec := newTestAccount("0", false)
	one := decimal.NewFromInt(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				acc.Add(one, TransactorPlayer)
				acc.Subtract(one, TransactorPlayer)
				acc.Add(one, TransactorPlayer)
			}
		}()
	}
	wg.Wait()

	assert.True(t, decimal.NewFromInt(5000).Equal(acc.Balance()))

	sum := decimal.Zero
	for _, tx := range rec.txs {
		sum = sum.Add(tx.Amount)
	}
	assert.True(t, sum.Equal(acc.Balance()), "ledger deltas must sum to the balance")
}

func TestAccount_SnapshotIsDetached(t *testing.T) {
	acc, _ := newTestAccount("12.34", false)

	snap := acc.Snapshot()
	acc.Add(decimal.NewFromInt(1), TransactorServer)

	assert.Equal(t, acc.ID(), snap.ID)
	assert.True(t, decimal.RequireFromString("12.34").Equal(snap.Balance))
	assert.False(t, snap.Frozen)
}

func TestFromSnapshot(t *testing.T) {
	s := AccountSnapshot{ID: uuid.New(), Name: "town-Oak_Ridge", Balance: decimal.NewFromInt(3), Frozen: true}

	acc := FromSnapshot(s, nil, nil)

	assert.Equal(t, s, acc.Snapshot())
	assert.Equal(t, "Oak Ridge", acc.DisplayName())
}

func TestParseTransactor(t *testing.T) {
	tr, err := ParseTransactor("external-api")
	require.NoError(t, err)
	assert.Equal(t, TransactorExternalAPI, tr)

	_, err = ParseTransactor("bank")
	assert.Error(t, err)
}
