package shared

import (
	"context"
	"fmt"
)

// ReceiptLockKey builds redis keys for the receipt status critical section.
func ReceiptLockKey(batchID string) string {
	return fmt.Sprintf("receiving:batch:%s:lock", batchID)
}

// Unlock releases a previously obtained lock.
type Unlock func(ctx context.Context) error

// Locker serialises writers on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
