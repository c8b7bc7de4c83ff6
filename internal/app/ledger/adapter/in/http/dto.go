package http

import (
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// UseBalanceRequest POST /transaction/use
type UseBalanceRequest struct {
	UserID        int64  `json:"userId" validate:"required,min=1"`
	AccountNumber string `json:"accountNumber" validate:"required,account_number"`
	Amount        int64  `json:"amount" validate:"required,min=10,max=1000000000"`
}

// CancelBalanceRequest POST /transaction/cancel
type CancelBalanceRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=64"`
	AccountNumber string `json:"accountNumber" validate:"required,account_number"`
	Amount        int64  `json:"amount" validate:"required,min=10,max=1000000000"`
}

// BalanceResponse USE / CANCEL 成功時的回應
type BalanceResponse struct {
	AccountNumber     string    `json:"accountNumber"`
	TransactionResult string    `json:"transactionResult"`
	TransactionID     string    `json:"transactionId"`
	Amount            int64     `json:"amount"`
	TransactedAt      time.Time `json:"transactedAt"`
}

// QueryTransactionResponse GET /transaction/{transactionId}
type QueryTransactionResponse struct {
	AccountNumber     string    `json:"accountNumber"`
	TransactionType   string    `json:"transactionType"`
	TransactionResult string    `json:"transactionResult"`
	TransactionID     string    `json:"transactionId"`
	Amount            int64     `json:"amount"`
	TransactedAt      time.Time `json:"transactedAt"`
}

// ErrorResponse 所有失敗的回應
type ErrorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func newBalanceResponse(record *domain.TransactionRecord) BalanceResponse {
	return BalanceResponse{
		AccountNumber:     record.AccountNumber,
		TransactionResult: string(record.Result),
		TransactionID:     record.TransactionID,
		Amount:            record.Amount,
		TransactedAt:      record.TransactedAt,
	}
}

func newQueryTransactionResponse(record *domain.TransactionRecord) QueryTransactionResponse {
	return QueryTransactionResponse{
		AccountNumber:     record.AccountNumber,
		TransactionType:   string(record.Type),
		TransactionResult: string(record.Result),
		TransactionID:     record.TransactionID,
		Amount:            record.Amount,
		TransactedAt:      record.TransactedAt,
	}
}
