package usecase

import (
	"context"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// 查無資料時 repository 回傳 (nil, nil)，其他錯誤一律視為儲存層失敗

// UserRepository 使用者查詢
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// AccountRepository 帳戶存取
type AccountRepository interface {
	// FindByAccountNumber 在交易內查詢時需鎖定該列 (若儲存層支援)
	FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
}

// TransactionRepository 交易紀錄存取 (append-only)
type TransactionRepository interface {
	Save(ctx context.Context, tran *domain.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// FindCancellationOf 取得取消指定 USE 的 CANCEL/S
	FindCancellationOf(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// Repositories 同一個儲存交易內可用的 repository
type Repositories interface {
	Users() UserRepository
	Accounts() AccountRepository
	Transactions() TransactionRepository
}

// Ledger 是帳務儲存層的介面
type Ledger interface {
	// WithinTx 在單一儲存交易內執行 fn，fn 回傳 nil 才 commit，否則 rollback
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

// TransactionCache 交易紀錄快取，紀錄不可變所以不需要失效
type TransactionCache interface {
	Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)
	Set(ctx context.Context, record *domain.TransactionRecord) error
}

// AccountLocker 帳戶鎖
type AccountLocker interface {
	Acquire(ctx context.Context, accountNumber string) (Unlocker, error)
}

// Unlocker 釋放鎖
type Unlocker interface {
	Release()
}
