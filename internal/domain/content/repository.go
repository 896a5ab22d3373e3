package content

import (
	"context"
	"time"
)

// Repository gives read access to the drip catalog.
type Repository interface {
	ListActive(ctx context.Context) ([]*Item, error) // ordered by day_number, id
	GetByID(ctx context.Context, id int64) (*Item, error)
}

// Ledger records which (user, item) pairs were already delivered.
type Ledger interface {
	WasDelivered(ctx context.Context, telegramID, itemID int64) (bool, error)
	// MarkDelivered is idempotent: a second mark for the same pair is a no-op.
	MarkDelivered(ctx context.Context, telegramID, itemID int64) error
}

// BroadcastRepository manages one-off scheduled broadcasts.
type BroadcastRepository interface {
	Create(ctx context.Context, b *Broadcast) error
	ListDue(ctx context.Context, now time.Time) ([]*Broadcast, error)
	MarkSent(ctx context.Context, id int64) error
}
