package grpc

import (
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

type UseBalanceRequest struct {
	UserID        int64  `json:"userId" validate:"required,min=1"`
	AccountNumber string `json:"accountNumber" validate:"required,account_number"`
	Amount        int64  `json:"amount" validate:"required,min=10,max=1000000000"`
}

type CancelBalanceRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=64"`
	AccountNumber string `json:"accountNumber" validate:"required,account_number"`
	Amount        int64  `json:"amount" validate:"required,min=10,max=1000000000"`
}

type QueryTransactionRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=64"`
}

// TransactionResponse 三個方法共用的回應
// 帳務錯誤屬於 Soft Failure: RPC 本身成功，ErrorCode 不為空
type TransactionResponse struct {
	AccountNumber        string    `json:"accountNumber,omitempty"`
	TransactionType      string    `json:"transactionType,omitempty"`
	TransactionResult    string    `json:"transactionResult,omitempty"`
	TransactionID        string    `json:"transactionId,omitempty"`
	CancelsTransactionID string    `json:"cancelsTransactionId,omitempty"`
	Amount               int64     `json:"amount,omitempty"`
	BalanceSnapshot      int64     `json:"balanceSnapshot,omitempty"`
	TransactedAt         time.Time `json:"transactedAt,omitzero"`
	ErrorCode            string    `json:"errorCode,omitempty"`
	ErrorMessage         string    `json:"errorMessage,omitempty"`
}

// Failed 是否為 Soft Failure (nil 視為非 Soft Failure)
func (r *TransactionResponse) Failed() bool {
	return r != nil && r.ErrorCode != ""
}

func newTransactionResponse(record *domain.TransactionRecord) *TransactionResponse {
	return &TransactionResponse{
		AccountNumber:        record.AccountNumber,
		TransactionType:      string(record.Type),
		TransactionResult:    string(record.Result),
		TransactionID:        record.TransactionID,
		CancelsTransactionID: record.CancelsTransactionID,
		Amount:               record.Amount,
		BalanceSnapshot:      record.BalanceSnapshot,
		TransactedAt:         record.TransactedAt,
	}
}

func newErrorResponse(kind domain.ErrorKind, message string) *TransactionResponse {
	return &TransactionResponse{
		ErrorCode:    string(kind),
		ErrorMessage: message,
	}
}
