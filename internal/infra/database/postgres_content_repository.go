package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inviter_bot/internal/domain/content"
)

var ErrItemNotFound = fmt.Errorf("static message not found")
var ErrBroadcastNotFound = fmt.Errorf("scheduled broadcast not found")

type PostgresContentRepository struct {
	db *sql.DB
}

func NewPostgresContentRepository(db *sql.DB) *PostgresContentRepository {
	return &PostgresContentRepository{db: db}
}

const itemColumns = `id, day_number, text, html_text, media_type, media_file_id, buttons_config, send_time, additional_minutes, is_active`

func scanItem(row interface{ Scan(...any) error }) (*content.Item, error) {
	it := &content.Item{}
	var mediaType string
	var fileID sql.NullString
	err := row.Scan(&it.ID, &it.DayNumber, &it.Text, &it.HTMLText, &mediaType, &fileID, &it.ButtonsConfig, &it.SendTime, &it.AdditionalMinutes, &it.IsActive)
	if err != nil {
		return nil, err
	}
	kind, ok := content.NormalizeMediaKind(mediaType)
	if !ok {
		// Keep the raw value so delivery can report it before falling back to text.
		kind = content.MediaKind(mediaType)
	}
	it.Media = content.Media{Kind: kind, FileID: fileID.String}
	return it, nil
}

func (r *PostgresContentRepository) ListActive(ctx context.Context) ([]*content.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM static_messages WHERE is_active = TRUE ORDER BY day_number, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing static messages: %w", err)
	}
	defer rows.Close()

	items := make([]*content.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning static message: %w", err)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating static messages: %w", err)
	}
	return items, nil
}

func (r *PostgresContentRepository) GetByID(ctx context.Context, id int64) (*content.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM static_messages WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("error getting static message by ID: %w", err)
	}
	return it, nil
}

// PostgresDeliveryLedger stores delivered (user, item) pairs.
type PostgresDeliveryLedger struct {
	db *sql.DB
}

func NewPostgresDeliveryLedger(db *sql.DB) *PostgresDeliveryLedger {
	return &PostgresDeliveryLedger{db: db}
}

func (l *PostgresDeliveryLedger) WasDelivered(ctx context.Context, telegramID, itemID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM user_static_messages WHERE user_id = $1 AND static_message_id = $2)`
	if err := l.db.QueryRowContext(ctx, query, telegramID, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking delivery ledger: %w", err)
	}
	return exists, nil
}

func (l *PostgresDeliveryLedger) MarkDelivered(ctx context.Context, telegramID, itemID int64) error {
	query := `INSERT INTO user_static_messages (user_id, static_message_id, sent_at)
               VALUES ($1, $2, NOW())
               ON CONFLICT (user_id, static_message_id) DO NOTHING`
	if _, err := l.db.ExecContext(ctx, query, telegramID, itemID); err != nil {
		return fmt.Errorf("error recording delivery: %w", err)
	}
	return nil
}

type PostgresBroadcastRepository struct {
	db *sql.DB
}

func NewPostgresBroadcastRepository(db *sql.DB) *PostgresBroadcastRepository {
	return &PostgresBroadcastRepository{db: db}
}

func (r *PostgresBroadcastRepository) Create(ctx context.Context, b *content.Broadcast) error {
	query := `INSERT INTO scheduled_messages (text, html_text, scheduled_time, is_sent, created_at)
               VALUES ($1, $2, $3, FALSE, NOW())
               RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, b.Text, b.HTMLText, b.ScheduledTime).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("error creating scheduled broadcast: %w", err)
	}
	return nil
}

func (r *PostgresBroadcastRepository) ListDue(ctx context.Context, now time.Time) ([]*content.Broadcast, error) {
	query := `SELECT id, text, html_text, scheduled_time, is_sent, created_at
               FROM scheduled_messages
               WHERE is_sent = FALSE AND scheduled_time <= $1
               ORDER BY scheduled_time, id`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error listing due broadcasts: %w", err)
	}
	defer rows.Close()

	due := make([]*content.Broadcast, 0)
	for rows.Next() {
		b := &content.Broadcast{}
		if err := rows.Scan(&b.ID, &b.Text, &b.HTMLText, &b.ScheduledTime, &b.IsSent, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning broadcast: %w", err)
		}
		due = append(due, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due broadcasts: %w", err)
	}
	return due, nil
}

func (r *PostgresBroadcastRepository) MarkSent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE scheduled_messages SET is_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error marking broadcast sent: %w", err)
	}
	return expectRow(res, ErrBroadcastNotFound)
}
