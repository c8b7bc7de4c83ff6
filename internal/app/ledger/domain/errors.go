package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 對外穩定的錯誤代碼 (wire 上直接輸出名稱)
type ErrorKind string

const (
	KindUserNotFound               ErrorKind = "USER_NOT_FOUND"
	KindNotAccountExist            ErrorKind = "NOT_ACCOUNT_EXIST"
	KindUserAccountUnmatch         ErrorKind = "USER_ACCOUNT_UNMATCH"
	KindAccountAlreadyUnregistered ErrorKind = "ACCOUNT_ALREADY_UNREGISTERED"
	KindAmountExceedBalance        ErrorKind = "AMOUNT_EXCEED_BALANCE"
	KindTransactionNotFound        ErrorKind = "TRANSACTION_NOT_FOUND"
	KindTransactionAccountUnmatch  ErrorKind = "TRANSACTION_ACCOUNT_UNMATCH"
	KindCancelMustFully            ErrorKind = "CANCEL_MUST_FULLY"
	KindTooOldForCancel            ErrorKind = "TOO_OLD_FOR_CANCEL"
	KindAlreadyCancelled           ErrorKind = "ALREADY_CANCELLED"
	KindInvalidRequest             ErrorKind = "INVALID_REQUEST"
	KindLockTimeout                ErrorKind = "LOCK_TIMEOUT"
	KindInternalServerError        ErrorKind = "INTERNAL_SERVER_ERROR"
)

var kindMessages = map[ErrorKind]string{
	KindUserNotFound:               "user not found",
	KindNotAccountExist:            "account does not exist",
	KindUserAccountUnmatch:         "user is not the owner of the account",
	KindAccountAlreadyUnregistered: "account is already unregistered",
	KindAmountExceedBalance:        "amount exceeds account balance",
	KindTransactionNotFound:        "transaction not found",
	KindTransactionAccountUnmatch:  "transaction does not belong to the account",
	KindCancelMustFully:            "partial cancellation is not allowed",
	KindTooOldForCancel:            "transactions older than one year cannot be cancelled",
	KindAlreadyCancelled:           "transaction is already cancelled",
	KindInvalidRequest:             "invalid request",
	KindLockTimeout:                "account is busy, try again later",
	KindInternalServerError:        "internal server error",
}

// Message 回傳該錯誤代碼的預設訊息
func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindInternalServerError]
}

// Error 帳務核心的錯誤型別
//
// Kind 決定對外代碼，Err 保留底層原因 (可為 nil)
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同一個 Kind 即視為相同錯誤，讓 errors.Is(err, ErrXxx) 可以直接比對
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewError 建立帶有自訂訊息的錯誤
func NewError(kind ErrorKind, message string) *Error {
	if message == "" {
		message = kind.Message()
	}
	return &Error{Kind: kind, Message: message}
}

// WrapError 以指定 Kind 包裝底層錯誤
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: kind.Message(), Err: err}
}

var (
	// ErrUserNotFound 找不到使用者
	ErrUserNotFound = NewError(KindUserNotFound, "")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = NewError(KindNotAccountExist, "")

	// ErrUserAccountUnmatch 使用者與帳戶擁有者不同
	ErrUserAccountUnmatch = NewError(KindUserAccountUnmatch, "")

	// ErrAccountAlreadyUnregistered 帳戶已解約
	ErrAccountAlreadyUnregistered = NewError(KindAccountAlreadyUnregistered, "")

	// ErrAmountExceedBalance 餘額不足
	ErrAmountExceedBalance = NewError(KindAmountExceedBalance, "")

	// ErrTransactionNotFound 找不到交易
	ErrTransactionNotFound = NewError(KindTransactionNotFound, "")

	// ErrTransactionAccountUnmatch 交易與帳戶不符
	ErrTransactionAccountUnmatch = NewError(KindTransactionAccountUnmatch, "")

	// ErrCancelMustFully 不允許部分取消
	ErrCancelMustFully = NewError(KindCancelMustFully, "")

	// ErrTooOldForCancel 超過一年的交易不可取消
	ErrTooOldForCancel = NewError(KindTooOldForCancel, "")

	// ErrAlreadyCancelled 交易已被取消過
	ErrAlreadyCancelled = NewError(KindAlreadyCancelled, "")

	// ErrInvalidRequest 不合法的請求
	ErrInvalidRequest = NewError(KindInvalidRequest, "")

	// ErrLockTimeout 取得帳戶鎖逾時
	ErrLockTimeout = NewError(KindLockTimeout, "")

	// ErrInternal 其他未預期錯誤 (儲存層失敗等)
	ErrInternal = NewError(KindInternalServerError, "")
)

// KindOf 取出錯誤對應的 Kind，非帳務錯誤一律視為 INTERNAL_SERVER_ERROR
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalServerError
}

// PublicMessage 回傳可以給呼叫端看的訊息，內部錯誤不外洩細節
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternalServerError {
		return e.Message
	}
	return KindInternalServerError.Message()
}
