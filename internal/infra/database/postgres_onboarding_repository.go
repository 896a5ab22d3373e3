package database

import (
	"context"
	"database/sql"
	"fmt"

	"inviter_bot/internal/domain/onboarding"
)

var ErrQuestionNotFound = fmt.Errorf("onboarding question not found")

type PostgresOnboardingRepository struct {
	db *sql.DB
}

func NewPostgresOnboardingRepository(db *sql.DB) *PostgresOnboardingRepository {
	return &PostgresOnboardingRepository{db: db}
}

const questionColumns = `id, order_number, question_text, question_type, options, is_required, is_active`

func scanQuestion(row interface{ Scan(...any) error }) (*onboarding.Question, error) {
	q := &onboarding.Question{}
	var qType string
	var options sql.NullString
	if err := row.Scan(&q.ID, &q.OrderNumber, &q.Text, &qType, &options, &q.IsRequired, &q.IsActive); err != nil {
		return nil, err
	}
	q.Type = onboarding.QuestionType(qType)
	q.Options = onboarding.ParseOptions(options.String)
	return q, nil
}

func (r *PostgresOnboardingRepository) ListActiveQuestions(ctx context.Context) ([]*onboarding.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM onboarding_questions WHERE is_active = TRUE ORDER BY order_number, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing onboarding questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*onboarding.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning onboarding question: %w", err)
		}
		questions = append(questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating onboarding questions: %w", err)
	}
	return questions, nil
}

func (r *PostgresOnboardingRepository) GetQuestion(ctx context.Context, id int64) (*onboarding.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM onboarding_questions WHERE id = $1`
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("error getting onboarding question by ID: %w", err)
	}
	return q, nil
}

func (r *PostgresOnboardingRepository) GetState(ctx context.Context, userID int64) (*onboarding.State, error) {
	query := `SELECT user_id, current_question_id, completed_at, updated_at FROM user_onboarding_state WHERE user_id = $1`
	s := &onboarding.State{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.CurrentQuestionID, &s.CompletedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting onboarding state: %w", err)
	}
	return s, nil
}

func (r *PostgresOnboardingRepository) SetCurrentQuestion(ctx context.Context, userID int64, questionID int64) error {
	query := `INSERT INTO user_onboarding_state (user_id, current_question_id, completed_at, updated_at)
               VALUES ($1, $2, NULL, NOW())
               ON CONFLICT (user_id) DO UPDATE
               SET current_question_id = EXCLUDED.current_question_id, completed_at = NULL, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, userID, questionID); err != nil {
		return fmt.Errorf("error setting onboarding state: %w", err)
	}
	return nil
}

func (r *PostgresOnboardingRepository) AdvanceQuestion(ctx context.Context, userID, fromQuestionID, toQuestionID int64) (bool, error) {
	query := `UPDATE user_onboarding_state
               SET current_question_id = $3, updated_at = NOW()
               WHERE user_id = $1 AND current_question_id = $2 AND completed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, userID, fromQuestionID, toQuestionID)
	if err != nil {
		return false, fmt.Errorf("error advancing onboarding state: %w", err)
	}
	return changed(res)
}

func (r *PostgresOnboardingRepository) MarkCompleted(ctx context.Context, userID, fromQuestionID int64) (bool, error) {
	query := `UPDATE user_onboarding_state
               SET current_question_id = NULL, completed_at = NOW(), updated_at = NOW()
               WHERE user_id = $1 AND current_question_id = $2 AND completed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, userID, fromQuestionID)
	if err != nil {
		return false, fmt.Errorf("error completing onboarding: %w", err)
	}
	return changed(res)
}

func (r *PostgresOnboardingRepository) UpsertAnswer(ctx context.Context, a *onboarding.Answer) error {
	query := `INSERT INTO user_answers (user_id, question_id, answer_text, answered_at)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (user_id, question_id) DO UPDATE
               SET answer_text = EXCLUDED.answer_text, answered_at = EXCLUDED.answered_at`
	if _, err := r.db.ExecContext(ctx, query, a.UserID, a.QuestionID, a.Text, a.AnsweredAt); err != nil {
		return fmt.Errorf("error saving answer: %w", err)
	}
	return nil
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n > 0, nil
}
