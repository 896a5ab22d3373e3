package joinrequest

import "context"

// Repository persists join requests, unique per (user, chat).
type Repository interface {
	// Upsert records an inbound request. A repeated request for the same
	// (user, chat) resets the row to pending. isNew reports a first-time insert.
	Upsert(ctx context.Context, r *Request) (isNew bool, err error)
	GetByID(ctx context.Context, id int64) (*Request, error)
	// ListByStatus lists requests with the given status; chatID 0 means any chat.
	ListByStatus(ctx context.Context, status Status, chatID int64, limit, offset int) ([]*Request, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]*Request, error)
	// Approve and Deny only transition pending rows.
	Approve(ctx context.Context, id int64) error
	Deny(ctx context.Context, id int64) error
}
