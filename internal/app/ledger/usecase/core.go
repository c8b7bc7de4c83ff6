package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// defaultFailureRecordTimeout 寫入失敗紀錄的時間上限
const defaultFailureRecordTimeout = 3 * time.Second

// CoreUseCase 是核心業務邏輯層
//
// 流程: 取得帳戶鎖 -> TransactionService -> (失敗時) 寫入 F 紀錄 -> 釋放鎖
type CoreUseCase struct {
	service              *TransactionService
	locker               AccountLocker
	logger               *slog.Logger
	failureRecordTimeout time.Duration
}

// CoreOption 設定 CoreUseCase
type CoreOption func(*CoreUseCase)

// WithLogger 設定 logger
func WithLogger(logger *slog.Logger) CoreOption {
	return func(c *CoreUseCase) {
		c.logger = logger
	}
}

// WithFailureRecordTimeout 設定寫入失敗紀錄的時間上限
func WithFailureRecordTimeout(timeout time.Duration) CoreOption {
	return func(c *CoreUseCase) {
		if timeout > 0 {
			c.failureRecordTimeout = timeout
		}
	}
}

func NewCoreUseCase(service *TransactionService, locker AccountLocker, opts ...CoreOption) *CoreUseCase {
	c := &CoreUseCase{
		service:              service,
		locker:               locker,
		logger:               slog.Default(),
		failureRecordTimeout: defaultFailureRecordTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseBalance 在帳戶鎖內使用餘額，失敗時補寫 USE/F
func (c *CoreUseCase) UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	lock, err := c.locker.Acquire(ctx, accountNumber)
	if err != nil {
		c.logger.WarnContext(ctx, "acquire account lock failed", "account_number", accountNumber, "error", err)
		return nil, err
	}
	defer lock.Release()

	record, err := c.service.UseBalance(ctx, userID, accountNumber, amount)
	if err != nil {
		c.recordFailure(ctx, domain.TransactionTypeUse, accountNumber, amount, err)
		return nil, err
	}
	c.logger.InfoContext(ctx, "balance used",
		"transaction_id", record.TransactionID,
		"account_number", accountNumber,
		"amount", amount,
		"balance_snapshot", record.BalanceSnapshot,
	)
	return record, nil
}

// CancelBalance 在帳戶鎖內取消使用，失敗時補寫 CANCEL/F
func (c *CoreUseCase) CancelBalance(ctx context.Context, transactionID string, accountNumber string, amount int64) (*domain.TransactionRecord, error) {
	lock, err := c.locker.Acquire(ctx, accountNumber)
	if err != nil {
		c.logger.WarnContext(ctx, "acquire account lock failed", "account_number", accountNumber, "error", err)
		return nil, err
	}
	defer lock.Release()

	record, err := c.service.CancelBalance(ctx, transactionID, accountNumber, amount)
	if err != nil {
		c.recordFailure(ctx, domain.TransactionTypeCancel, accountNumber, amount, err)
		return nil, err
	}
	c.logger.InfoContext(ctx, "balance cancelled",
		"transaction_id", record.TransactionID,
		"cancels_transaction_id", transactionID,
		"account_number", accountNumber,
		"amount", amount,
		"balance_snapshot", record.BalanceSnapshot,
	)
	return record, nil
}

// QueryTransaction 查詢交易 (不需要鎖)
func (c *CoreUseCase) QueryTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	return c.service.QueryTransaction(ctx, transactionID)
}

// recordFailure 盡力寫入失敗紀錄
// 寫入失敗只記 log，不取代原本的錯誤；context 不受呼叫端取消影響
func (c *CoreUseCase) recordFailure(ctx context.Context, txType domain.TransactionType, accountNumber string, amount int64, cause error) {
	c.logger.WarnContext(ctx, "transaction failed",
		"type", txType,
		"account_number", accountNumber,
		"amount", amount,
		"error_code", domain.KindOf(cause),
		"error", cause,
	)
	if amount <= 0 {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.failureRecordTimeout)
	defer cancel()

	var err error
	switch txType {
	case domain.TransactionTypeUse:
		_, err = c.service.SaveFailedUseTransaction(recordCtx, accountNumber, amount)
	case domain.TransactionTypeCancel:
		_, err = c.service.SaveFailedCancelTransaction(recordCtx, accountNumber, amount)
	}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountNotFound):
		c.logger.DebugContext(ctx, "skip failure record, account not found", "account_number", accountNumber)
	default:
		c.logger.ErrorContext(ctx, "save failure record failed", "type", txType, "account_number", accountNumber, "error", err)
	}
}
