// Package cache keeps a local sqlite copy of fetched and written objects.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/client/cache/migrations"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
)

type Cache struct {
	db *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens the sqlite database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache migrations: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// PutMany upserts objects keyed by encoded object id in one transaction.
func (c *Cache) PutMany(ctx context.Context, objects map[string]api.Object) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO objects (object_id, body, nonce, version) VALUES (?, ?, ?, ?)
			ON CONFLICT(object_id) DO UPDATE SET body = excluded.body,
				nonce = excluded.nonce,
				version = excluded.version`
		for id, o := range objects {
			if _, err := tx.ExecContext(ctx, query, id, o.Body, o.Nonce, o.Version); err != nil {
				return fmt.Errorf("failed to upsert object: %w", err)
			}
		}
		return nil
	})
}

// Get returns the cached object and whether it was present.
func (c *Cache) Get(ctx context.Context, id string) (api.Object, bool, error) {
	var o api.Object
	row := c.db.QueryRowContext(ctx, `SELECT body, nonce, version FROM objects WHERE object_id = ?`, id)
	if err := row.Scan(&o.Body, &o.Nonce, &o.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Object{}, false, nil
		}
		return api.Object{}, false, fmt.Errorf("query row scan failed: %w", err)
	}
	return o, true, nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM objects WHERE object_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
