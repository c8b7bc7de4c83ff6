package domain

import (
	"regexp"
	"time"
)

// AccountStatus 帳戶狀態
type AccountStatus string

const (
	AccountStatusInUse        AccountStatus = "IN_USE"
	AccountStatusUnregistered AccountStatus = "UNREGISTERED"
)

var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

// IsValidAccountNumber 帳號必須是 10 位數字
func IsValidAccountNumber(accountNumber string) bool {
	return accountNumberPattern.MatchString(accountNumber)
}

// User 帳戶擁有者，核心只讀不寫
type User struct {
	ID   int64
	Name string
}

// Account 帳戶
// UserID 只是外鍵，需要時再查 User
type Account struct {
	ID             int64
	AccountNumber  string
	UserID         int64
	Balance        int64
	Status         AccountStatus
	RegisteredAt   time.Time
	UnregisteredAt *time.Time
}

// IsInUse 帳戶是否可使用
func (a *Account) IsInUse() bool {
	return a.Status == AccountStatusInUse
}

// UseBalance 扣款
// 呼叫前必須先通過 ValidateUse，這裡只守住 balance >= 0
func (a *Account) UseBalance(amount int64) error {
	if amount <= 0 {
		return ErrInvalidRequest
	}
	if a.Balance < amount {
		return ErrAmountExceedBalance
	}
	a.Balance -= amount
	return nil
}

// CancelBalance 取消扣款 (加回餘額)
func (a *Account) CancelBalance(amount int64) error {
	if amount <= 0 {
		return ErrInvalidRequest
	}
	a.Balance += amount
	return nil
}
