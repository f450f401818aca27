package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed request keys so a client retry after
// a transient failure cannot double-consume stock. The allocation endpoint
// keys entries by order item.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It reports true when the key was
	// newly recorded and false when a previous call already claimed it.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is currently recorded.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Delete forgets key so the same request may be accepted again, as
	// after a release frees the order item.
	Delete(ctx context.Context, key string) error

	Close() error
}
