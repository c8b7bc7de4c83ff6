package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
)

// DefaultPrefix 預設 key 前綴
const DefaultPrefix = "ledger:tx:"

// cachedRecord 快取中的交易紀錄
type cachedRecord struct {
	TransactionID        string    `json:"transactionId"`
	Type                 string    `json:"type"`
	Result               string    `json:"result"`
	AccountID            int64     `json:"accountId"`
	AccountNumber        string    `json:"accountNumber"`
	Amount               int64     `json:"amount"`
	BalanceSnapshot      int64     `json:"balanceSnapshot"`
	CancelsTransactionID string    `json:"cancelsTransactionId,omitempty"`
	TransactedAt         time.Time `json:"transactedAt"`
}

// TransactionCache 以 Redis 實作的交易紀錄快取
// 交易紀錄不會被修改，所以只有 TTL 沒有失效
type TransactionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewTransactionCache 建立快取
//
// 參數:
//
//	client: redis 客戶端
//	prefix: key 前綴 (空字串使用 DefaultPrefix)
//	ttl: 存活時間 (0 表示不過期)
//	logger: logger
func NewTransactionCache(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *TransactionCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *TransactionCache) key(transactionID string) string {
	return c.prefix + transactionID
}

// Get 未命中回傳 (nil, nil)
func (c *TransactionCache) Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	val, err := c.client.Get(ctx, c.key(transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.DebugContext(ctx, "transaction cache miss", "transaction_id", transactionID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record, err := decodeRecord(val)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "transaction cache hit", "transaction_id", transactionID)
	return record, nil
}

func (c *TransactionCache) Set(ctx context.Context, record *domain.TransactionRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(record.TransactionID), data, c.ttl).Err()
}

func encodeRecord(record *domain.TransactionRecord) ([]byte, error) {
	return json.Marshal(cachedRecord{
		TransactionID:        record.TransactionID,
		Type:                 string(record.Type),
		Result:               string(record.Result),
		AccountID:            record.AccountID,
		AccountNumber:        record.AccountNumber,
		Amount:               record.Amount,
		BalanceSnapshot:      record.BalanceSnapshot,
		CancelsTransactionID: record.CancelsTransactionID,
		TransactedAt:         record.TransactedAt,
	})
}

func decodeRecord(data []byte) (*domain.TransactionRecord, error) {
	var c cachedRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.TransactionRecord{
		Transaction: domain.Transaction{
			TransactionID:        c.TransactionID,
			Type:                 domain.TransactionType(c.Type),
			Result:               domain.TransactionResult(c.Result),
			AccountID:            c.AccountID,
			Amount:               c.Amount,
			BalanceSnapshot:      c.BalanceSnapshot,
			CancelsTransactionID: c.CancelsTransactionID,
			TransactedAt:         c.TransactedAt,
		},
		AccountNumber: c.AccountNumber,
	}, nil
}

var _ usecase.TransactionCache = (*TransactionCache)(nil)
