package onboarding

import (
	"database/sql"
	"time"
)

// Phase is the derived position of a user in the onboarding state machine.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseAwaitingAnswer
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseCompleted:
		return "completed"
	default:
		return "not_started"
	}
}

// State is the persisted onboarding cursor of one user.
type State struct {
	UserID            int64
	CurrentQuestionID sql.NullInt64 // null or 0 means "between steps"
	CompletedAt       sql.NullTime
	UpdatedAt         time.Time
}

// Phase derives the state machine position from the stored row. A nil state is NotStarted.
func (s *State) Phase() Phase {
	if s == nil {
		return PhaseNotStarted
	}
	if s.CompletedAt.Valid {
		return PhaseCompleted
	}
	if s.CurrentQuestionID.Valid && s.CurrentQuestionID.Int64 != 0 {
		return PhaseAwaitingAnswer
	}
	return PhaseNotStarted
}

// AwaitingQuestion returns the question id the user must answer, if any.
func (s *State) AwaitingQuestion() (int64, bool) {
	if s.Phase() != PhaseAwaitingAnswer {
		return 0, false
	}
	return s.CurrentQuestionID.Int64, true
}

// Answer is a user's reply to a question (last write wins).
type Answer struct {
	UserID     int64
	QuestionID int64
	Text       string
	AnsweredAt time.Time
}
