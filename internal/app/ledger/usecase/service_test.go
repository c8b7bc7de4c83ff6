package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/keylock"
)

// mapCache 以 map 實作的 TransactionCache
type mapCache struct {
	mu      sync.Mutex
	records map[string]domain.TransactionRecord
	gets    int
	hits    int
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{records: make(map[string]domain.TransactionRecord)}
}

func (c *mapCache) Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	record, ok := c.records[transactionID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &record, nil
}

func (c *mapCache) Set(ctx context.Context, record *domain.TransactionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[record.TransactionID] = *record
	return nil
}

func TestQueryRoundTrip(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	use, err := f.core.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)

	got, err := f.core.QueryTransaction(ctx, use.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, use, got)

	// 失敗紀錄同樣可以查詢
	_, err = f.core.UseBalance(ctx, 1, testAccountNumber, 5000)
	require.Error(t, err)
	list := f.records()
	require.Len(t, list, 2)
	failed, err := f.core.QueryTransaction(ctx, list[1].TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionResultFailure, failed.Result)
	assert.Equal(t, testAccountNumber, failed.AccountNumber)
}

func TestQueryUnknownTransaction(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.core.QueryTransaction(context.Background(), "ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Empty(t, f.records())
}

func TestQueryReadsThroughCache(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, 1000, usecase.WithCache(cache))
	ctx := context.Background()

	use, err := f.core.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)

	first, err := f.core.QueryTransaction(ctx, use.TransactionID)
	require.NoError(t, err)
	second, err := f.core.QueryTransaction(ctx, use.TransactionID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.hits)
}

func TestQueryIgnoresCacheErrors(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("connection refused")
	f := newFixture(t, 1000, usecase.WithCache(cache))
	ctx := context.Background()

	use, err := f.core.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)

	got, err := f.core.QueryTransaction(ctx, use.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, use.TransactionID, got.TransactionID)
}

func TestServiceUsesIDGenerator(t *testing.T) {
	ids := []string{"00000000000000000000000000000001", "00000000000000000000000000000002"}
	next := 0
	f := newFixture(t, 1000, usecase.WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	ctx := context.Background()

	use, err := f.service.UseBalance(ctx, 1, testAccountNumber, 100)
	require.NoError(t, err)
	assert.Equal(t, ids[0], use.TransactionID)

	cancel, err := f.service.CancelBalance(ctx, use.TransactionID, testAccountNumber, 100)
	require.NoError(t, err)
	assert.Equal(t, ids[1], cancel.TransactionID)
	assert.Equal(t, ids[0], cancel.CancelsTransactionID)
}

func TestCancelRejectsNonUseTargets(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	use, err := f.service.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)
	cancel, err := f.service.CancelBalance(ctx, use.TransactionID, testAccountNumber, 300)
	require.NoError(t, err)

	// CANCEL 紀錄本身不能再被取消
	_, err = f.service.CancelBalance(ctx, cancel.TransactionID, testAccountNumber, 300)
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))

	failed, err := f.service.SaveFailedUseTransaction(ctx, testAccountNumber, 200)
	require.NoError(t, err)
	_, err = f.service.CancelBalance(ctx, failed.TransactionID, testAccountNumber, 200)
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))

	assert.Equal(t, int64(1000), f.balance(t))
}

func TestCancelAccountMismatch(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	use, err := f.service.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)

	_, err = f.service.CancelBalance(ctx, use.TransactionID, "2000000001", 300)
	assert.ErrorIs(t, err, domain.ErrTransactionAccountUnmatch)

	_, err = f.service.CancelBalance(ctx, use.TransactionID, "9999999999", 300)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCancelJustInsideOneYear(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	use, err := f.service.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)

	f.clock.Advance(use.TransactedAt.AddDate(1, 0, 0).Sub(use.TransactedAt) - time.Second)
	_, err = f.service.CancelBalance(ctx, use.TransactionID, testAccountNumber, 300)
	assert.NoError(t, err)
}

func TestSaveFailedTransactionSnapshotsCurrentBalance(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	_, err := f.service.UseBalance(ctx, 1, testAccountNumber, 250)
	require.NoError(t, err)

	record, err := f.service.SaveFailedCancelTransaction(ctx, testAccountNumber, 40)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeCancel, record.Type)
	assert.Equal(t, domain.TransactionResultFailure, record.Result)
	assert.Equal(t, int64(750), record.BalanceSnapshot)
	assert.Equal(t, int64(40), record.Amount)
	assert.Equal(t, f.clock.Now(), record.TransactedAt)

	_, err = f.service.SaveFailedUseTransaction(ctx, "9999999999", 40)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountLockerMapsErrors(t *testing.T) {
	manager := keylock.New(keylock.WithTimeout(20 * time.Millisecond))
	locker := usecase.NewAccountLocker(manager)

	held, err := locker.Acquire(context.Background(), testAccountNumber)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), testAccountNumber)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, testAccountNumber)
	assert.Equal(t, domain.KindInternalServerError, domain.KindOf(err))

	held.Release()
	held.Release()
	again, err := locker.Acquire(context.Background(), testAccountNumber)
	require.NoError(t, err)
	again.Release()
	assert.Equal(t, 0, manager.Len())
}

func TestTimestampsAreUTCMicroseconds(t *testing.T) {
	taipei := time.FixedZone("CST", 8*60*60)
	stamp := time.Date(2024, 6, 1, 20, 0, 0, 123456789, taipei)
	f := newFixture(t, 1000, usecase.WithClock(func() time.Time { return stamp }))
	ctx := context.Background()

	use, err := f.core.UseBalance(ctx, 1, testAccountNumber, 300)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, use.TransactedAt.Location())
	assert.Equal(t, 123456000, use.TransactedAt.Nanosecond())
	assert.True(t, use.TransactedAt.Equal(stamp.Truncate(time.Microsecond)))

	got, err := f.core.QueryTransaction(ctx, use.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, use, got)
}
