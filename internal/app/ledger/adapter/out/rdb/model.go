package rdb

import (
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
)

// sqlUser 對應資料庫的 users 表
type sqlUser struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:64"`
	CreatedAt time.Time
}

func (*sqlUser) TableName() string {
	return "users"
}

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID             int64  `gorm:"primaryKey"`
	AccountNumber  string `gorm:"size:10;uniqueIndex"`
	UserID         int64  `gorm:"index"`
	Balance        int64
	Status         string `gorm:"size:16"`
	RegisteredAt   time.Time
	UnregisteredAt *time.Time
	UpdatedAt      time.Time // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表 (append-only)
// cancels_transaction_id 為 unique，同一筆 USE 在資料庫層也只能有一筆 CANCEL/S
type sqlTransaction struct {
	ID                   int64  `gorm:"primaryKey;autoIncrement"`
	TransactionID        string `gorm:"size:32;uniqueIndex"`
	Type                 string `gorm:"size:8"`
	Result               string `gorm:"size:1"`
	AccountID            int64  `gorm:"index"`
	Amount               int64
	BalanceSnapshot      int64
	CancelsTransactionID *string   `gorm:"size:32;uniqueIndex"`
	TransactedAt         time.Time `gorm:"precision:6"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func toUser(m *sqlUser) *domain.User {
	return &domain.User{ID: m.ID, Name: m.Name}
}

func fromUser(u *domain.User) *sqlUser {
	return &sqlUser{ID: u.ID, Name: u.Name}
}

func toAccount(m *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:             m.ID,
		AccountNumber:  m.AccountNumber,
		UserID:         m.UserID,
		Balance:        m.Balance,
		Status:         domain.AccountStatus(m.Status),
		RegisteredAt:   m.RegisteredAt,
		UnregisteredAt: m.UnregisteredAt,
	}
}

func fromAccount(a *domain.Account) *sqlAccount {
	return &sqlAccount{
		ID:             a.ID,
		AccountNumber:  a.AccountNumber,
		UserID:         a.UserID,
		Balance:        a.Balance,
		Status:         string(a.Status),
		RegisteredAt:   a.RegisteredAt,
		UnregisteredAt: a.UnregisteredAt,
	}
}

func toTransaction(m *sqlTransaction) *domain.Transaction {
	tran := &domain.Transaction{
		TransactionID:   m.TransactionID,
		Type:            domain.TransactionType(m.Type),
		Result:          domain.TransactionResult(m.Result),
		AccountID:       m.AccountID,
		Amount:          m.Amount,
		BalanceSnapshot: m.BalanceSnapshot,
		TransactedAt:    m.TransactedAt.UTC(),
	}
	if m.CancelsTransactionID != nil {
		tran.CancelsTransactionID = *m.CancelsTransactionID
	}
	return tran
}

func fromTransaction(t *domain.Transaction) *sqlTransaction {
	m := &sqlTransaction{
		TransactionID:   t.TransactionID,
		Type:            string(t.Type),
		Result:          string(t.Result),
		AccountID:       t.AccountID,
		Amount:          t.Amount,
		BalanceSnapshot: t.BalanceSnapshot,
		TransactedAt:    t.TransactedAt,
	}
	if t.CancelsTransactionID != "" {
		cancels := t.CancelsTransactionID
		m.CancelsTransactionID = &cancels
	}
	return m
}
