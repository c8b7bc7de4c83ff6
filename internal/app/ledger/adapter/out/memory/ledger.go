package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

var (
	// ErrBalanceConflict commit 時帳戶餘額已被其他交易改變
	ErrBalanceConflict = errors.New("account balance changed by a concurrent transaction")

	// ErrDuplicateTransactionID 交易序號重複
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")

	// ErrUnknownAccount 寫入不存在的帳戶
	ErrUnknownAccount = errors.New("unknown account")
)

// Seed 啟動時載入的使用者與帳戶 (帳戶建立不屬於帳務核心)
type Seed struct {
	Users    []domain.User
	Accounts []domain.Account
}

// walEntry 一次 commit 的內容
// 帳戶只記餘額，其餘欄位 (狀態等) 以啟動時的 seed 為準
type walEntry struct {
	CommittedAt  time.Time            `json:"committedAt"`
	Balances     []balanceEntry       `json:"balances"`
	Transactions []domain.Transaction `json:"transactions"`
}

type balanceEntry struct {
	AccountID int64 `json:"accountId"`
	Balance   int64 `json:"balance"`
}

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	users / accounts / transactions: 已 commit 的資料
//	mu: 保護上述資料
//	wal: Write-Ahead Log 實例 (可為 nil，表示不落地)
//
// 每個 WithinTx 先把寫入暫存在 tx 內，fn 成功後才寫 WAL 並套用，失敗直接丟棄。
type MutexLedger struct {
	mu            sync.RWMutex
	users         map[int64]domain.User
	accounts      map[int64]domain.Account
	accountIDs    map[string]int64
	transactions  map[string]domain.Transaction
	cancellations map[string]string
	history       []string
	wal           *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	seed: 初始使用者與帳戶
//	w: Write-Ahead Log 實例 (nil 表示純記憶體)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(seed Seed, w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		users:         make(map[int64]domain.User, len(seed.Users)),
		accounts:      make(map[int64]domain.Account, len(seed.Accounts)),
		accountIDs:    make(map[string]int64, len(seed.Accounts)),
		transactions:  make(map[string]domain.Transaction),
		cancellations: make(map[string]string),
		wal:           w,
	}
	for _, u := range seed.Users {
		ledger.users[u.ID] = u
	}
	for _, a := range seed.Accounts {
		ledger.putAccount(a)
	}

	if w != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, fmt.Errorf("recover from wal: %w", err)
		}
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		m.apply(&entry)
		return nil
	})
}

// WithinTx implements usecase.Ledger.
func (m *MutexLedger) WithinTx(ctx context.Context, fn func(repos usecase.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	// 逾時視同 rollback
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.empty() {
		return nil
	}
	return m.commit(tx)
}

// commit 檢查衝突 -> 寫 WAL -> 套用
func (m *MutexLedger) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &walEntry{CommittedAt: time.Now()}
	for id, acc := range tx.accounts {
		current, ok := m.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAccount, id)
		}
		if current.Balance != tx.readBalances[id] {
			return fmt.Errorf("%w: %s", ErrBalanceConflict, current.AccountNumber)
		}
		entry.Balances = append(entry.Balances, balanceEntry{AccountID: id, Balance: acc.Balance})
	}
	for _, tran := range tx.transactions {
		if _, dup := m.transactions[tran.TransactionID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTransactionID, tran.TransactionID)
		}
		entry.Transactions = append(entry.Transactions, tran)
	}

	// 1. 寫入 WAL (Critical Path)
	if m.wal != nil {
		if err := m.wal.Write(entry); err != nil {
			return fmt.Errorf("write wal: %w", err)
		}
	}
	// 2. 套用到記憶體
	m.apply(entry)
	return nil
}

func (m *MutexLedger) apply(entry *walEntry) {
	for _, b := range entry.Balances {
		acc, ok := m.accounts[b.AccountID]
		if !ok {
			// seed 已移除的帳戶
			continue
		}
		acc.Balance = b.Balance
		m.accounts[b.AccountID] = acc
	}
	for _, tran := range entry.Transactions {
		m.transactions[tran.TransactionID] = tran
		m.history = append(m.history, tran.TransactionID)
		if tran.CancelsTransactionID != "" && tran.Result == domain.TransactionResultSuccess {
			m.cancellations[tran.CancelsTransactionID] = tran.TransactionID
		}
	}
}

func (m *MutexLedger) putAccount(acc domain.Account) {
	m.accounts[acc.ID] = acc
	m.accountIDs[acc.AccountNumber] = acc.ID
}

// ListTransactions 依寫入順序列出帳戶的所有交易紀錄
func (m *MutexLedger) ListTransactions(accountNumber string) []domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.accountIDs[accountNumber]
	if !ok {
		return nil
	}
	list := make([]domain.Transaction, 0)
	for _, tid := range m.history {
		if tran := m.transactions[tid]; tran.AccountID == id {
			list = append(list, tran)
		}
	}
	return list
}

// GetAccountBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetAccountBalance(accountNumber string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.accountIDs[accountNumber]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return m.accounts[id].Balance, nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
