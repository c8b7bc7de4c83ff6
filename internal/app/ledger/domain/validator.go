package domain

import "time"

// ValidateUse 檢查使用餘額的前置條件，依序檢查，第一個失敗即回傳
//
// 參數:
//
//	user: 發起請求的使用者
//	account: 目標帳戶
//	amount: 使用金額
//
// 回傳:
//
//	error: USER_ACCOUNT_UNMATCH / ACCOUNT_ALREADY_UNREGISTERED / AMOUNT_EXCEED_BALANCE / INVALID_REQUEST
func ValidateUse(user *User, account *Account, amount int64) error {
	if account.UserID != user.ID {
		return ErrUserAccountUnmatch
	}
	if !account.IsInUse() {
		return ErrAccountAlreadyUnregistered
	}
	if account.Balance < amount {
		return ErrAmountExceedBalance
	}
	if !IsValidAmount(amount) {
		return ErrInvalidRequest
	}
	return nil
}

// ValidateCancel 檢查取消交易的前置條件
//
// 參數:
//
//	tran: 要取消的原交易
//	account: 請求中的帳戶
//	amount: 取消金額 (必須全額)
//	cancellation: 已存在的 CANCEL/S (沒有則為 nil)
//	now: 目前時間
//
// 回傳:
//
//	error: TRANSACTION_ACCOUNT_UNMATCH / CANCEL_MUST_FULLY / TOO_OLD_FOR_CANCEL / INVALID_REQUEST / ALREADY_CANCELLED
func ValidateCancel(tran *Transaction, account *Account, amount int64, cancellation *Transaction, now time.Time) error {
	if tran.AccountID != account.ID {
		return ErrTransactionAccountUnmatch
	}
	if tran.Amount != amount {
		return ErrCancelMustFully
	}
	if IsTooOldForCancel(tran.TransactedAt, now) {
		return ErrTooOldForCancel
	}
	if !tran.IsSuccessfulUse() {
		return NewError(KindInvalidRequest, "only a successful USE transaction can be cancelled")
	}
	if cancellation != nil {
		return ErrAlreadyCancelled
	}
	return nil
}

// IsValidAmount 金額範圍 [10, 1_000_000_000]
func IsValidAmount(amount int64) bool {
	return amount >= MinTransactionAmount && amount <= MaxTransactionAmount
}

// IsTooOldForCancel 以日曆年計算: 早於「今天減一年」即視為過期
func IsTooOldForCancel(transactedAt, now time.Time) bool {
	return transactedAt.Before(now.AddDate(-1, 0, 0))
}
