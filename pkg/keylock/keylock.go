package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout 預設等待鎖的上限
const DefaultTimeout = 5 * time.Second

// ErrTimeout 等待逾時
var ErrTimeout = errors.New("keylock: acquire timeout")

// entry 每個 key 一個容量為 1 的 semaphore
// refs = 持有者 + 等待者，歸零時可從 map 移除
type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager 以 key 為單位的互斥鎖
//
// 同一個 key 依等待順序 (FIFO) 依序取得，不同 key 互不影響。
// 沒有持有者也沒有等待者的 entry 會被回收。
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// Option 設定 Manager
type Option func(*Manager)

// WithTimeout 設定等待上限，<= 0 時使用 DefaultTimeout
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// New 建立 Manager
func New(opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[string]*entry),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle 持有鎖的憑證，Release 可重複呼叫
type Handle struct {
	m    *Manager
	key  string
	e    *entry
	once sync.Once
}

// Key 回傳鎖住的 key
func (h *Handle) Key() string {
	return h.key
}

// Release 釋放鎖
func (h *Handle) Release() {
	h.once.Do(func() {
		h.e.sem.Release(1)
		h.m.unref(h.key, h.e)
	})
}

// Acquire 取得 key 的鎖，最多等待 Manager 的 timeout
//
// 參數:
//
//	ctx: 上下文 (取消時立即放棄等待)
//	key: 鎖的 key (帳號)
//
// 回傳:
//
//	*Handle: 鎖的憑證，使用完必須 Release
//	error: 逾時回傳 ErrTimeout，ctx 被取消則回傳 ctx.Err()
func (m *Manager) Acquire(ctx context.Context, key string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := m.ref(key)

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		m.unref(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}
	return &Handle{m: m, key: key, e: e}, nil
}

// Len 目前存活的 entry 數量
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 && m.entries[key] == e {
		delete(m.entries, key)
	}
}
