// Package messages provides the PostgreSQL-backed store-and-forward queue
// used to deliver follow requests, welcomes and group messages between peers.
package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
)

// PostgresRepository implements the message queue over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the message row and all recipient rows. Callers run it
// inside a transaction so a message is never visible to a subset of recipients.
func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message, recipients []string) error {
	query := `
		INSERT INTO messages (id, sender_id, payload, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.Payload, msg.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if len(recipients) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("message_recipients").Cols("message_id", "recipient_id")
	for _, rcpt := range recipients {
		ib.Values(msg.ID, rcpt)
	}
	q, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Pending(ctx context.Context, recipientID string, now time.Time) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.sender_id, m.payload, m.created_at, m.expires_at
		FROM messages m
		JOIN message_recipients r ON r.message_id = m.id
		WHERE r.recipient_id = $1 AND r.received_at IS NULL AND m.expires_at > $2
		ORDER BY m.created_at, m.id
	`
	rows, err := r.db.QueryContext(ctx, query, recipientID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Payload, &m.CreatedAt, &m.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) MarkReceived(ctx context.Context, recipientID, messageID string, now time.Time) error {
	query := `
		UPDATE message_recipients
		SET received_at = $1
		WHERE message_id = $2 AND recipient_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, now, messageID, recipientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
