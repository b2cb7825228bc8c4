// Package pointers provides the PostgreSQL-backed pointer table that maps
// logical object ids to physical blobs and enforces optimistic versioning.
package pointers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
)

// PostgresRepository implements pointer storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Write points ptr.ObjectID at ptr.StorageID if the stored version equals
// expectedVersion and the row belongs to ptr.OwnerID. A zero expectedVersion
// creates the row at version 1. On success ptr.Version holds the new version.
//
// A rejected write is classified by re-reading the row: another owner yields
// *common.ForbiddenError, otherwise *common.StaleError with the current version.
func (r *PostgresRepository) Write(ctx context.Context, ptr *models.ContentPointer, expectedVersion uint64) error {
	var (
		res sql.Result
		err error
	)

	if expectedVersion == 0 {
		res, err = r.db.ExecContext(ctx, `
			INSERT INTO content_pointers (object_id, owner_id, storage_id, version)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (object_id) DO NOTHING;
		`, ptr.ObjectID, ptr.OwnerID, ptr.StorageID)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE content_pointers
			SET storage_id = $3, version = version + 1
			WHERE object_id = $1 AND owner_id = $2 AND version = $4;
		`, ptr.ObjectID, ptr.OwnerID, ptr.StorageID, int64(expectedVersion))
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}

	switch n {
	case 1:
		ptr.Version = expectedVersion + 1
		return nil
	case 0:
		return r.conflict(ctx, ptr)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) conflict(ctx context.Context, ptr *models.ContentPointer) error {
	current, err := r.Get(ctx, ptr.ObjectID)
	if errors.Is(err, common.ErrorNotFound) {
		return &common.StaleError{ObjectID: ptr.ObjectID, Version: 0}
	}
	if err != nil {
		return err
	}
	if current.OwnerID != ptr.OwnerID {
		return &common.ForbiddenError{ObjectID: ptr.ObjectID}
	}
	return &common.StaleError{ObjectID: ptr.ObjectID, Version: current.Version}
}

// Get returns the pointer row for objectID or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, objectID string) (*models.ContentPointer, error) {
	query := `SELECT object_id, owner_id, storage_id, version FROM content_pointers WHERE object_id = $1`

	var (
		p       models.ContentPointer
		version int64
	)
	if err := r.db.QueryRowContext(ctx, query, objectID).Scan(&p.ObjectID, &p.OwnerID, &p.StorageID, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.Version = uint64(version)
	return &p, nil
}

// SelectReadable returns the pointers among objectIDs that requesterID may
// read: rows it owns, or rows owned by a user it follows. Ids that are
// missing or unreadable are simply absent from the result.
func (r *PostgresRepository) SelectReadable(ctx context.Context, requesterID string, objectIDs []string) ([]*models.ContentPointer, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("p.object_id", "p.owner_id", "p.storage_id", "p.version").From("content_pointers AS p")
	sb.Where(
		sb.In("p.object_id", lo.ToAnySlice(lo.Uniq(objectIDs))...),
		sb.Or(
			sb.Equal("p.owner_id", requesterID),
			fmt.Sprintf("EXISTS (SELECT 1 FROM follows f WHERE f.followee_id = p.owner_id AND f.follower_id = %s)", sb.Var(requesterID)),
		),
	)
	query, args := sb.Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select pointers: %w", err)
	}
	defer rows.Close()

	var result []*models.ContentPointer
	for rows.Next() {
		var (
			item    models.ContentPointer
			version int64
		)
		if err := rows.Scan(&item.ObjectID, &item.OwnerID, &item.StorageID, &version); err != nil {
			return nil, err
		}
		item.Version = uint64(version)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
