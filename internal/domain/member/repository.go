package member

import "context"

// Repository defines the operations for persisting and retrieving users.
type Repository interface {
	// Upsert creates the user on first contact or refreshes the name fields.
	// A non-empty inviteCode is only stored when the user has none yet.
	Upsert(ctx context.Context, p Profile, inviteCode string) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	ListActive(ctx context.Context) ([]*User, error) // non-banned users
	List(ctx context.Context, f Filter) ([]*User, error)
	Count(ctx context.Context, f Filter) (int, error)
	Ban(ctx context.Context, telegramID int64) error
	Unban(ctx context.Context, telegramID int64) error
	Delete(ctx context.Context, telegramID int64) error
	Touch(ctx context.Context, telegramID int64) error
	LogAction(ctx context.Context, telegramID int64, actionType, actionData string) error
	Stats(ctx context.Context) (*Stats, error)
}
