package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

func testSeed() Seed {
	return Seed{
		Users: []domain.User{{ID: 1, Name: "Pobi"}},
		Accounts: []domain.Account{{
			ID:            10,
			AccountNumber: "2000000000",
			UserID:        1,
			Balance:       1000,
			Status:        domain.AccountStatusInUse,
			RegisteredAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
}

// debit 在一個交易內扣款並寫入一筆 USE/S
func debit(ctx context.Context, l *MutexLedger, amount int64, failAfter bool) error {
	return l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		if err != nil {
			return err
		}
		if err := acc.UseBalance(amount); err != nil {
			return err
		}
		if err := repos.Accounts().Save(ctx, acc); err != nil {
			return err
		}
		tran := domain.NewTransaction(domain.NewTransactionID(), domain.TransactionTypeUse, domain.TransactionResultSuccess, acc, amount, time.Now())
		if err := repos.Transactions().Save(ctx, tran); err != nil {
			return err
		}
		if failAfter {
			return errors.New("boom")
		}
		return nil
	})
}

func TestWithinTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	require.NoError(t, debit(ctx, l, 300, false))
	balance, err := l.GetAccountBalance("2000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
	assert.Len(t, l.ListTransactions("2000000000"), 1)

	// fn 回傳錯誤 -> 暫存全部丟棄
	require.Error(t, debit(ctx, l, 300, true))
	balance, _ = l.GetAccountBalance("2000000000")
	assert.Equal(t, int64(700), balance)
	assert.Len(t, l.ListTransactions("2000000000"), 1)
}

func TestWithinTxExpiredContextRollsBack(t *testing.T) {
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		require.NoError(t, err)
		acc.Balance = 0
		require.NoError(t, repos.Accounts().Save(ctx, acc))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	balance, _ := l.GetAccountBalance("2000000000")
	assert.Equal(t, int64(1000), balance)
}

func TestReadsSeeStagedWrites(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		require.NoError(t, err)
		acc.Balance = 10
		require.NoError(t, repos.Accounts().Save(ctx, acc))

		again, err := repos.Accounts().FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), again.Balance)

		use := domain.NewTransaction("aaaa", domain.TransactionTypeUse, domain.TransactionResultSuccess, acc, 990, time.Now())
		require.NoError(t, repos.Transactions().Save(ctx, use))
		cancel := domain.NewTransaction("bbbb", domain.TransactionTypeCancel, domain.TransactionResultSuccess, acc, 990, time.Now())
		cancel.CancelsTransactionID = "aaaa"
		require.NoError(t, repos.Transactions().Save(ctx, cancel))

		found, err := repos.Transactions().FindByTransactionID(ctx, "aaaa")
		require.NoError(t, err)
		require.NotNil(t, found)
		link, err := repos.Transactions().FindCancellationOf(ctx, "aaaa")
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, "bbbb", link.TransactionID)
		return nil
	})
	require.NoError(t, err)

	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		link, err := repos.Transactions().FindCancellationOf(ctx, "aaaa")
		require.NoError(t, err)
		require.NotNil(t, link)
		missing, err := repos.Users().FindByID(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestCommitDetectsBalanceConflict(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		require.NoError(t, err)
		// 另一個交易在中途 commit
		require.NoError(t, debit(ctx, l, 100, false))
		acc.Balance -= 500
		return repos.Accounts().Save(ctx, acc)
	})
	assert.ErrorIs(t, err, ErrBalanceConflict)

	balance, _ := l.GetAccountBalance("2000000000")
	assert.Equal(t, int64(900), balance)
}

func TestCommitRejectsDuplicateTransactionID(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	save := func() error {
		return l.WithinTx(ctx, func(repos usecase.Repositories) error {
			acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
			require.NoError(t, err)
			tran := domain.NewTransaction("dup", domain.TransactionTypeUse, domain.TransactionResultFailure, acc, 100, time.Now())
			return repos.Transactions().Save(ctx, tran)
		})
	}
	require.NoError(t, save())
	assert.ErrorIs(t, save(), ErrDuplicateTransactionID)
}

func TestRecoverFromWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	l, err := NewMutexLedger(testSeed(), w)
	require.NoError(t, err)

	require.NoError(t, debit(ctx, l, 300, false))
	require.NoError(t, debit(ctx, l, 200, false))
	require.Error(t, debit(ctx, l, 100, true))
	require.NoError(t, w.Close())

	// 重新啟動: seed 仍是 1000，重放 WAL 後應為 500
	w2, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer w2.Close()
	recovered, err := NewMutexLedger(testSeed(), w2)
	require.NoError(t, err)

	balance, err := recovered.GetAccountBalance("2000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	list := recovered.ListTransactions("2000000000")
	require.Len(t, list, 2)
	assert.Equal(t, int64(700), list[0].BalanceSnapshot)
	assert.Equal(t, int64(500), list[1].BalanceSnapshot)
}

func TestReplayKeepsSeedStatus(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	l, err := NewMutexLedger(testSeed(), w)
	require.NoError(t, err)
	require.NoError(t, debit(ctx, l, 100, false))
	require.NoError(t, w.Close())

	// 帳戶在設定檔中被解約後重新啟動
	seed := testSeed()
	seed.Accounts[0].Status = domain.AccountStatusUnregistered

	w2, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer w2.Close()
	recovered, err := NewMutexLedger(seed, w2)
	require.NoError(t, err)

	err = recovered.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		require.NoError(t, err)
		require.NotNil(t, acc)
		assert.Equal(t, domain.AccountStatusUnregistered, acc.Status)
		assert.Equal(t, int64(900), acc.Balance)
		return nil
	})
	require.NoError(t, err)
}

func TestCommitOnlyChangesBalance(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLedger(testSeed(), nil)
	require.NoError(t, err)

	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByAccountNumber(ctx, "2000000000")
		if err != nil {
			return err
		}
		acc.Balance = 400
		acc.Status = domain.AccountStatusUnregistered
		return repos.Accounts().Save(ctx, acc)
	})
	require.NoError(t, err)

	err = l.WithinTx(ctx, func(repos usecase.Repositories) error {
		acc, err := repos.Accounts().FindByID(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(400), acc.Balance)
		assert.Equal(t, domain.AccountStatusInUse, acc.Status)
		return nil
	})
	require.NoError(t, err)
}
