package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

func TestRecordEncoding(t *testing.T) {
	record := &domain.TransactionRecord{
		Transaction: domain.Transaction{
			TransactionID:        "0123456789abcdef0123456789abcdef",
			Type:                 domain.TransactionTypeCancel,
			Result:               domain.TransactionResultSuccess,
			AccountID:            10,
			Amount:               300,
			BalanceSnapshot:      1000,
			CancelsTransactionID: "fedcba9876543210fedcba9876543210",
			TransactedAt:         time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		AccountNumber: "2000000000",
	}

	data, err := encodeRecord(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"transactedAt":"2024-06-01T12:00:00Z"`)

	got, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = decodeRecord([]byte("not json"))
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	c := NewTransactionCache(nil, "", 0, nil)
	assert.Equal(t, "ledger:tx:abc", c.key("abc"))

	c = NewTransactionCache(nil, "test:", time.Minute, nil)
	assert.Equal(t, "test:abc", c.key("abc"))
}

func TestGetReturnsConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewTransactionCache(client, "", time.Minute, nil)

	record, err := c.Get(context.Background(), "abc")
	assert.Error(t, err)
	assert.Nil(t, record)
}
