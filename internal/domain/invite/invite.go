package invite

import (
	"context"
	"time"
)

// Link is an acquisition link whose code is passed as the /start payload.
type Link struct {
	ID        int64
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Repository looks up invite links.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Link, error)
}
