package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"inviter_bot/internal/domain/member"
)

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

const userColumns = `id, telegram_id, username, first_name, last_name, is_banned, invite_code, join_date, last_activity`

func scanUser(row interface{ Scan(...any) error }) (*member.User, error) {
	u := &member.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.IsBanned, &u.InviteCode, &u.JoinDate, &u.LastActivity)
	if err != nil {
		return nil, err
	}
	u.JoinDate = u.JoinDate.UTC()
	return u, nil
}

func (r *PostgresMemberRepository) Upsert(ctx context.Context, p member.Profile, inviteCode string) error {
	// join_date is only set on insert; an existing invite_code is never overwritten.
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, invite_code, join_date, last_activity)
               VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
               ON CONFLICT (telegram_id) DO UPDATE
               SET username = EXCLUDED.username,
                   first_name = EXCLUDED.first_name,
                   last_name = EXCLUDED.last_name,
                   invite_code = COALESCE(users.invite_code, EXCLUDED.invite_code),
                   last_activity = NOW()`
	_, err := r.db.ExecContext(ctx, query, p.TelegramID, nullable(p.Username), nullable(p.FirstName), nullable(p.LastName), nullable(inviteCode))
	if err != nil {
		return fmt.Errorf("error upserting user: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*member.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return u, nil
}

func (r *PostgresMemberRepository) ListActive(ctx context.Context) ([]*member.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_banned = FALSE ORDER BY id`
	return r.queryUsers(ctx, query)
}

func (r *PostgresMemberRepository) List(ctx context.Context, f member.Filter) ([]*member.User, error) {
	where, args := userFilter(f)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY join_date DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	return r.queryUsers(ctx, query, args...)
}

func (r *PostgresMemberRepository) Count(ctx context.Context, f member.Filter) (int, error) {
	where, args := userFilter(f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting users: %w", err)
	}
	return n, nil
}

func userFilter(f member.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.IsBanned != nil {
		args = append(args, *f.IsBanned)
		conds = append(conds, fmt.Sprintf("is_banned = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(username ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d OR telegram_id::text LIKE $%d)", n, n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresMemberRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*member.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]*member.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *PostgresMemberRepository) Ban(ctx context.Context, telegramID int64) error {
	return r.setBanned(ctx, telegramID, true)
}

func (r *PostgresMemberRepository) Unban(ctx context.Context, telegramID int64) error {
	return r.setBanned(ctx, telegramID, false)
}

func (r *PostgresMemberRepository) setBanned(ctx context.Context, telegramID int64, banned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = $1 WHERE telegram_id = $2`, banned, telegramID)
	if err != nil {
		return fmt.Errorf("error updating user ban status: %w", err)
	}
	return expectRow(res, ErrUserNotFound)
}

// Delete removes the user together with their ledger, onboarding and log rows.
func (r *PostgresMemberRepository) Delete(ctx context.Context, telegramID int64) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for user delete: %w", err)
	}
	defer txn.Rollback()

	for _, q := range []string{
		`DELETE FROM user_static_messages WHERE user_id = $1`,
		`DELETE FROM user_answers WHERE user_id = $1`,
		`DELETE FROM user_onboarding_state WHERE user_id = $1`,
		`DELETE FROM user_actions WHERE user_id = $1`,
		`DELETE FROM join_requests WHERE user_id = $1`,
	} {
		if _, err := txn.ExecContext(ctx, q, telegramID); err != nil {
			return fmt.Errorf("error deleting user data: %w", err)
		}
	}
	res, err := txn.ExecContext(ctx, `DELETE FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if err := expectRow(res, ErrUserNotFound); err != nil {
		return err
	}
	return txn.Commit()
}

func (r *PostgresMemberRepository) Touch(ctx context.Context, telegramID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_activity = NOW() WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("error updating last activity: %w", err)
	}
	return expectRow(res, ErrUserNotFound)
}

func (r *PostgresMemberRepository) LogAction(ctx context.Context, telegramID int64, actionType, actionData string) error {
	query := `INSERT INTO user_actions (user_id, action_type, action_data, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := r.db.ExecContext(ctx, query, telegramID, actionType, nullable(actionData)); err != nil {
		return fmt.Errorf("error logging user action: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) Stats(ctx context.Context) (*member.Stats, error) {
	query := `SELECT COUNT(*),
                     COUNT(*) FILTER (WHERE is_banned),
                     COUNT(*) FILTER (WHERE join_date >= date_trunc('day', NOW() AT TIME ZONE 'UTC') AT TIME ZONE 'UTC')
               FROM users`
	st := &member.Stats{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&st.TotalUsers, &st.BannedUsers, &st.JoinedToday); err != nil {
		return nil, fmt.Errorf("error loading user stats: %w", err)
	}
	return st, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
