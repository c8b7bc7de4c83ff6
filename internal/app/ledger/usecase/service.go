package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// TransactionService 交易核心邏輯 (驗證 -> 異動帳戶 -> 寫交易紀錄)
// 本身不上鎖，鎖由 CoreUseCase 負責
type TransactionService struct {
	ledger Ledger
	cache  TransactionCache
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// ServiceOption 設定 TransactionService
type ServiceOption func(*TransactionService)

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) ServiceOption {
	return func(s *TransactionService) {
		s.now = now
	}
}

// WithIDGenerator 替換交易序號產生器
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *TransactionService) {
		s.newID = newID
	}
}

// WithCache 查詢交易時使用的快取
func WithCache(cache TransactionCache) ServiceOption {
	return func(s *TransactionService) {
		s.cache = cache
	}
}

// WithServiceLogger 設定 logger
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *TransactionService) {
		s.logger = logger
	}
}

// NewTransactionService 建立 TransactionService
func NewTransactionService(ledger Ledger, opts ...ServiceOption) *TransactionService {
	s := &TransactionService{
		ledger: ledger,
		now:    time.Now,
		newID:  domain.NewTransactionID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UseBalance 使用餘額
//
// 參數:
//
//	ctx: 上下文
//	userID: 使用者 ID
//	accountNumber: 帳號
//	amount: 使用金額
//
// 回傳:
//
//	*domain.TransactionRecord: USE/S 交易紀錄
//	error: 帳務錯誤 (*domain.Error)
func (s *TransactionService) UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	var record *domain.TransactionRecord
	err := s.ledger.WithinTx(ctx, func(repos Repositories) error {
		user, err := repos.Users().FindByID(ctx, userID)
		if err != nil {
			return storageError("find user", err)
		}
		if user == nil {
			return domain.ErrUserNotFound
		}

		account, err := repos.Accounts().FindByAccountNumber(ctx, accountNumber)
		if err != nil {
			return storageError("find account", err)
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}

		if err := domain.ValidateUse(user, account, amount); err != nil {
			return err
		}

		if err := account.UseBalance(amount); err != nil {
			return err
		}
		if err := repos.Accounts().Save(ctx, account); err != nil {
			return storageError("save account", err)
		}

		tran := domain.NewTransaction(s.newID(), domain.TransactionTypeUse, domain.TransactionResultSuccess, account, amount, s.timestamp())
		if err := repos.Transactions().Save(ctx, tran); err != nil {
			return storageError("save transaction", err)
		}
		record = &domain.TransactionRecord{Transaction: *tran, AccountNumber: account.AccountNumber}
		return nil
	})
	if err != nil {
		return nil, ledgerError("use balance", err)
	}
	return record, nil
}

// CancelBalance 取消先前的 USE (必須全額)
//
// 參數:
//
//	ctx: 上下文
//	transactionID: 要取消的 USE 交易序號
//	accountNumber: 帳號
//	amount: 取消金額
//
// 回傳:
//
//	*domain.TransactionRecord: CANCEL/S 交易紀錄
//	error: 帳務錯誤 (*domain.Error)
func (s *TransactionService) CancelBalance(ctx context.Context, transactionID string, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	var record *domain.TransactionRecord
	err := s.ledger.WithinTx(ctx, func(repos Repositories) error {
		original, err := repos.Transactions().FindByTransactionID(ctx, transactionID)
		if err != nil {
			return storageError("find transaction", err)
		}
		if original == nil {
			return domain.ErrTransactionNotFound
		}

		account, err := repos.Accounts().FindByAccountNumber(ctx, accountNumber)
		if err != nil {
			return storageError("find account", err)
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}

		cancellation, err := repos.Transactions().FindCancellationOf(ctx, transactionID)
		if err != nil {
			return storageError("find cancellation", err)
		}

		if err := domain.ValidateCancel(original, account, amount, cancellation, s.now()); err != nil {
			return err
		}

		if err := account.CancelBalance(amount); err != nil {
			return err
		}
		if err := repos.Accounts().Save(ctx, account); err != nil {
			return storageError("save account", err)
		}

		tran := domain.NewTransaction(s.newID(), domain.TransactionTypeCancel, domain.TransactionResultSuccess, account, amount, s.timestamp())
		tran.CancelsTransactionID = original.TransactionID
		if err := repos.Transactions().Save(ctx, tran); err != nil {
			return storageError("save transaction", err)
		}
		record = &domain.TransactionRecord{Transaction: *tran, AccountNumber: account.AccountNumber}
		return nil
	})
	if err != nil {
		return nil, ledgerError("cancel balance", err)
	}
	return record, nil
}

// QueryTransaction 查詢交易，不上鎖也不異動
func (s *TransactionService) QueryTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, transactionID)
		if err != nil {
			s.logger.WarnContext(ctx, "transaction cache get failed", "transaction_id", transactionID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	var record *domain.TransactionRecord
	err := s.ledger.WithinTx(ctx, func(repos Repositories) error {
		tran, err := repos.Transactions().FindByTransactionID(ctx, transactionID)
		if err != nil {
			return storageError("find transaction", err)
		}
		if tran == nil {
			return domain.ErrTransactionNotFound
		}

		account, err := repos.Accounts().FindByID(ctx, tran.AccountID)
		if err != nil {
			return storageError("find account", err)
		}
		if account == nil {
			return storageError("resolve account", fmt.Errorf("account id %d referenced by %s is missing", tran.AccountID, tran.TransactionID))
		}
		record = &domain.TransactionRecord{Transaction: *tran, AccountNumber: account.AccountNumber}
		return nil
	})
	if err != nil {
		return nil, ledgerError("query transaction", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "transaction cache set failed", "transaction_id", transactionID, "error", err)
		}
	}
	return record, nil
}

// SaveFailedUseTransaction 寫入 USE/F 失敗紀錄 (獨立的儲存交易)
func (s *TransactionService) SaveFailedUseTransaction(ctx context.Context, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	return s.saveFailedTransaction(ctx, domain.TransactionTypeUse, accountNumber, amount)
}

// SaveFailedCancelTransaction 寫入 CANCEL/F 失敗紀錄 (獨立的儲存交易)
func (s *TransactionService) SaveFailedCancelTransaction(ctx context.Context, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	return s.saveFailedTransaction(ctx, domain.TransactionTypeCancel, accountNumber, amount)
}

// saveFailedTransaction 重新讀取帳戶後以目前餘額寫入失敗紀錄
func (s *TransactionService) saveFailedTransaction(ctx context.Context, txType domain.TransactionType, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	var record *domain.TransactionRecord
	err := s.ledger.WithinTx(ctx, func(repos Repositories) error {
		account, err := repos.Accounts().FindByAccountNumber(ctx, accountNumber)
		if err != nil {
			return storageError("find account", err)
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}

		tran := domain.NewTransaction(s.newID(), txType, domain.TransactionResultFailure, account, amount, s.timestamp())
		if err := repos.Transactions().Save(ctx, tran); err != nil {
			return storageError("save failed transaction", err)
		}
		record = &domain.TransactionRecord{Transaction: *tran, AccountNumber: account.AccountNumber}
		return nil
	})
	if err != nil {
		return nil, ledgerError("save failed transaction", err)
	}
	return record, nil
}

// timestamp 交易時間一律 UTC 並截到微秒，與資料庫欄位精度一致，查詢結果才會與寫入時回傳的相同
func (s *TransactionService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// storageError 儲存層錯誤一律轉成 INTERNAL_SERVER_ERROR
func storageError(op string, err error) error {
	return domain.WrapError(domain.KindInternalServerError, fmt.Errorf("%s: %w", op, err))
}

// ledgerError 帳務錯誤原樣回傳，commit 失敗等其他錯誤轉成 INTERNAL_SERVER_ERROR
func ledgerError(op string, err error) error {
	var e *domain.Error
	if errors.As(err, &e) {
		return err
	}
	return storageError(op, err)
}
