package usecase

import (
	"context"
	"errors"

	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-account-ledger/pkg/keylock"
)

type keyLocker struct {
	manager *keylock.Manager
}

// NewAccountLocker 以 keylock.Manager 實作帳戶鎖
func NewAccountLocker(manager *keylock.Manager) AccountLocker {
	return &keyLocker{manager: manager}
}

// Acquire 逾時 (包含 ctx deadline) 回傳 LOCK_TIMEOUT
func (l *keyLocker) Acquire(ctx context.Context, accountNumber string) (Unlocker, error) {
	handle, err := l.manager.Acquire(ctx, accountNumber)
	if err != nil {
		switch {
		case errors.Is(err, keylock.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, domain.ErrLockTimeout
		default:
			return nil, domain.WrapError(domain.KindInternalServerError, err)
		}
	}
	return handle, nil
}
