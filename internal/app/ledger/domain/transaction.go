package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// amount 使用 int64 最小貨幣單位，不處理小數
const (
	MinTransactionAmount int64 = 10
	MaxTransactionAmount int64 = 1_000_000_000
)

// TransactionType 交易類型
type TransactionType string

const (
	// 使用餘額 (扣款)
	TransactionTypeUse TransactionType = "USE"
	// 取消使用 (退回)
	TransactionTypeCancel TransactionType = "CANCEL"
)

// TransactionResult 交易結果
type TransactionResult string

const (
	TransactionResultSuccess TransactionResult = "S"
	TransactionResultFailure TransactionResult = "F"
)

// Transaction 交易紀錄，只新增不修改
type Transaction struct {
	// TransactionID: 32 碼小寫 hex，對外追蹤號
	TransactionID string
	Type          TransactionType
	Result        TransactionResult
	// AccountID: 帳戶外鍵
	AccountID int64
	Amount    int64
	// BalanceSnapshot: 成功時為異動後餘額，失敗紀錄為寫入當下餘額
	BalanceSnapshot int64
	// CancelsTransactionID: CANCEL/S 指向被取消的 USE，其他情況為空
	CancelsTransactionID string
	TransactedAt         time.Time
}

// TransactionRecord 交易紀錄加上已解析的帳號，給外部介面回傳使用
type TransactionRecord struct {
	Transaction
	AccountNumber string
}

// NewTransactionID 產生 32 碼 hex 交易序號 (UUID 去掉 '-')
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewTransaction 依帳戶目前狀態建立一筆交易紀錄
// BalanceSnapshot 取 account 當下的餘額，所以成功交易要在異動之後呼叫
func NewTransaction(id string, txType TransactionType, result TransactionResult, account *Account, amount int64, at time.Time) *Transaction {
	return &Transaction{
		TransactionID:   id,
		Type:            txType,
		Result:          result,
		AccountID:       account.ID,
		Amount:          amount,
		BalanceSnapshot: account.Balance,
		TransactedAt:    at,
	}
}

// IsSuccessfulUse 是否為成功的 USE (唯一可以被取消的交易)
func (t *Transaction) IsSuccessfulUse() bool {
	return t.Type == TransactionTypeUse && t.Result == TransactionResultSuccess
}
