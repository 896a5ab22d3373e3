package onboarding

import "context"

// Repository persists questions, per-user state and answers.
type Repository interface {
	// ListActiveQuestions returns active questions ordered by order_number.
	ListActiveQuestions(ctx context.Context) ([]*Question, error)
	GetQuestion(ctx context.Context, id int64) (*Question, error)

	// GetState returns nil, nil when the user never started onboarding.
	GetState(ctx context.Context, userID int64) (*State, error)
	// SetCurrentQuestion creates or resets the state row to await questionID.
	SetCurrentQuestion(ctx context.Context, userID int64, questionID int64) error
	// AdvanceQuestion moves the cursor from one question to the next only if the
	// user is still on fromQuestionID. It reports whether the row changed.
	AdvanceQuestion(ctx context.Context, userID, fromQuestionID, toQuestionID int64) (bool, error)
	// MarkCompleted sets the completion time and clears the cursor, only if the
	// user is still on fromQuestionID.
	MarkCompleted(ctx context.Context, userID, fromQuestionID int64) (bool, error)

	UpsertAnswer(ctx context.Context, a *Answer) error
}
