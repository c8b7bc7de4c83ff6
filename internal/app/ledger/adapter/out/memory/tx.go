package memory

import (
	"context"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
)

// memTx 單一 WithinTx 的暫存區
// 讀取先看暫存再看已 commit 的資料，回傳的都是複本
type memTx struct {
	ledger       *MutexLedger
	accounts     map[int64]domain.Account
	readBalances map[int64]int64
	transactions []domain.Transaction
}

func newMemTx(ledger *MutexLedger) *memTx {
	return &memTx{
		ledger:       ledger,
		accounts:     make(map[int64]domain.Account),
		readBalances: make(map[int64]int64),
	}
}

func (tx *memTx) empty() bool {
	return len(tx.accounts) == 0 && len(tx.transactions) == 0
}

func (tx *memTx) Users() usecase.UserRepository               { return (*userRepo)(tx) }
func (tx *memTx) Accounts() usecase.AccountRepository         { return (*accountRepo)(tx) }
func (tx *memTx) Transactions() usecase.TransactionRepository { return (*transactionRepo)(tx) }

type userRepo memTx

func (r *userRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	user, ok := r.ledger.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

type accountRepo memTx

func (r *accountRepo) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	r.ledger.mu.RLock()
	id, ok := r.ledger.accountIDs[accountNumber]
	r.ledger.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *accountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	if acc, ok := r.accounts[id]; ok {
		return &acc, nil
	}
	r.ledger.mu.RLock()
	acc, ok := r.ledger.accounts[id]
	r.ledger.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if _, seen := r.readBalances[id]; !seen {
		r.readBalances[id] = acc.Balance
	}
	return &acc, nil
}

func (r *accountRepo) Save(ctx context.Context, account *domain.Account) error {
	if _, seen := r.readBalances[account.ID]; !seen {
		// 沒讀過就寫入，以目前 commit 的餘額作為比對基準
		current, err := r.FindByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrUnknownAccount
		}
	}
	r.accounts[account.ID] = *account
	return nil
}

type transactionRepo memTx

func (r *transactionRepo) Save(ctx context.Context, tran *domain.Transaction) error {
	r.transactions = append(r.transactions, *tran)
	return nil
}

func (r *transactionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	for i := range r.transactions {
		if r.transactions[i].TransactionID == transactionID {
			tran := r.transactions[i]
			return &tran, nil
		}
	}
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	tran, ok := r.ledger.transactions[transactionID]
	if !ok {
		return nil, nil
	}
	return &tran, nil
}

func (r *transactionRepo) FindCancellationOf(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	for i := range r.transactions {
		tran := r.transactions[i]
		if tran.CancelsTransactionID == transactionID && tran.Result == domain.TransactionResultSuccess {
			return &tran, nil
		}
	}
	r.ledger.mu.RLock()
	defer r.ledger.mu.RUnlock()
	cancelID, ok := r.ledger.cancellations[transactionID]
	if !ok {
		return nil, nil
	}
	tran := r.ledger.transactions[cancelID]
	return &tran, nil
}
