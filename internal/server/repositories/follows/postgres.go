// Package follows stores the read-access relation consulted by batch fetches:
// a follower may read every object its followee owns.
package follows

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
)

// PostgresRepository implements the follow relation over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Grant records that followerID may read followeeID's objects. Granting twice is a no-op.
func (r *PostgresRepository) Grant(ctx context.Context, followeeID, followerID string) error {
	query := `
		INSERT INTO follows (followee_id, follower_id)
		VALUES ($1, $2)
		ON CONFLICT (followee_id, follower_id) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, query, followeeID, followerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Revoke removes the relation. Revoking a missing relation is not an error.
func (r *PostgresRepository) Revoke(ctx context.Context, followeeID, followerID string) error {
	query := `DELETE FROM follows WHERE followee_id = $1 AND follower_id = $2`
	if _, err := r.db.ExecContext(ctx, query, followeeID, followerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Followers lists everyone followeeID has granted access to, oldest first.
func (r *PostgresRepository) Followers(ctx context.Context, followeeID string) ([]string, error) {
	query := `SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at, follower_id`
	rows, err := r.db.QueryContext(ctx, query, followeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to select followers: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
