package rdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/database"
)

// ErrUnknownAccount 更新不存在的帳戶
var ErrUnknownAccount = errors.New("unknown account")

// GormLedger 以 GORM (MySQL / PostgreSQL) 實作的帳本
// 每個 WithinTx 對應一個資料庫交易，帳戶列以 SELECT ... FOR UPDATE 鎖定
type GormLedger struct {
	client *database.Client
}

func NewGormLedger(client *database.Client) *GormLedger {
	return &GormLedger{
		client: client,
	}
}

// Migrate 建立或更新資料表
func (ledger *GormLedger) Migrate(ctx context.Context) error {
	return ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlUser{}, &sqlAccount{}, &sqlTransaction{})
}

// Seed 寫入初始使用者與帳戶，已存在的資料不會被覆寫
func (ledger *GormLedger) Seed(ctx context.Context, users []domain.User, accounts []domain.Account) error {
	if len(users) == 0 && len(accounts) == 0 {
		return nil
	}
	return ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(users) > 0 {
			rows := make([]*sqlUser, 0, len(users))
			for i := range users {
				rows = append(rows, fromUser(&users[i]))
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("seed users: %w", err)
			}
		}
		if len(accounts) > 0 {
			rows := make([]*sqlAccount, 0, len(accounts))
			for i := range accounts {
				rows = append(rows, fromAccount(&accounts[i]))
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("seed accounts: %w", err)
			}
		}
		return nil
	})
}

// WithinTx implements usecase.Ledger.
// fn 回傳錯誤或 ctx 逾時時 rollback
func (ledger *GormLedger) WithinTx(ctx context.Context, fn func(repos usecase.Repositories) error) error {
	return ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// gormTx 同一個資料庫交易內的 repository 集合
type gormTx struct {
	db *gorm.DB
}

func (tx *gormTx) Users() usecase.UserRepository               { return (*userRepo)(tx) }
func (tx *gormTx) Accounts() usecase.AccountRepository         { return (*accountRepo)(tx) }
func (tx *gormTx) Transactions() usecase.TransactionRepository { return (*transactionRepo)(tx) }

type userRepo gormTx

func (r *userRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var user sqlUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toUser(&user), nil
}

type accountRepo gormTx

// FindByAccountNumber 取得帳戶並鎖定該列直到交易結束 (悲觀鎖)
func (r *accountRepo) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account sqlAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_number = ?", accountNumber).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toAccount(&account), nil
}

func (r *accountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var account sqlAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toAccount(&account), nil
}

// Save 只更新餘額，帳戶其餘欄位不屬於帳務核心
func (r *accountRepo) Save(ctx context.Context, account *domain.Account) error {
	result := r.db.WithContext(ctx).
		Model(&sqlAccount{}).
		Where("id = ?", account.ID).
		Update("balance", account.Balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownAccount, account.ID)
	}
	return nil
}

type transactionRepo gormTx

func (r *transactionRepo) Save(ctx context.Context, tran *domain.Transaction) error {
	return r.db.WithContext(ctx).Create(fromTransaction(tran)).Error
}

func (r *transactionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var tran sqlTransaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&tran).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toTransaction(&tran), nil
}

func (r *transactionRepo) FindCancellationOf(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var tran sqlTransaction
	err := r.db.WithContext(ctx).
		Where("cancels_transaction_id = ? AND result = ?", transactionID, string(domain.TransactionResultSuccess)).
		First(&tran).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toTransaction(&tran), nil
}

var _ usecase.Ledger = (*GormLedger)(nil)
