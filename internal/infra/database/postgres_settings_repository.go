package database

import (
	"context"
	"database/sql"
	"fmt"

	"inviter_bot/internal/domain/invite"
	"inviter_bot/internal/domain/menu"
)

var ErrInviteLinkNotFound = fmt.Errorf("invite link not found")

type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error getting setting %q: %w", key, err)
	}
	return value, true, nil
}

func (r *PostgresSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO bot_settings (key, value, updated_at) VALUES ($1, $2, NOW())
               ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("error setting %q: %w", key, err)
	}
	return nil
}

type PostgresMenuRepository struct {
	db *sql.DB
}

func NewPostgresMenuRepository(db *sql.DB) *PostgresMenuRepository {
	return &PostgresMenuRepository{db: db}
}

func (r *PostgresMenuRepository) ListActive(ctx context.Context) ([]*menu.Item, error) {
	query := `SELECT id, button_name, button_type, action_value, inline_buttons, order_number, is_active
               FROM menu_buttons WHERE is_active = TRUE ORDER BY order_number, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing menu buttons: %w", err)
	}
	defer rows.Close()

	items := make([]*menu.Item, 0)
	for rows.Next() {
		it := &menu.Item{}
		var inline sql.NullString
		if err := rows.Scan(&it.ID, &it.ButtonName, &it.ButtonType, &it.ActionValue, &inline, &it.OrderNumber, &it.IsActive); err != nil {
			return nil, fmt.Errorf("error scanning menu button: %w", err)
		}
		it.InlineButtons = inline.String
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu buttons: %w", err)
	}
	return items, nil
}

type PostgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) *PostgresInviteRepository {
	return &PostgresInviteRepository{db: db}
}

func (r *PostgresInviteRepository) GetByCode(ctx context.Context, code string) (*invite.Link, error) {
	query := `SELECT id, code, name, is_active, created_at FROM invite_links WHERE code = $1`
	l := &invite.Link{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&l.ID, &l.Code, &l.Name, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInviteLinkNotFound
		}
		return nil, fmt.Errorf("error getting invite link by code: %w", err)
	}
	return l, nil
}
