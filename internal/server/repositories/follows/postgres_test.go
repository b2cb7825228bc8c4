package follows

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestGrant_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+follows\b.*ON\s+CONFLICT\s*\(followee_id, follower_id\)\s*DO\s+NOTHING;?$`
	mock.ExpectExec(q).WithArgs("alice", "bob").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Grant(context.Background(), "alice", "bob"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrant_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO follows`).WillReturnError(errors.New("db is down"))

	err := repo.Grant(context.Background(), "alice", "bob")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
}

func TestRevoke_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM follows WHERE followee_id = \$1 AND follower_id = \$2`).
		WithArgs("alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(context.Background(), "alice", "bob"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT follower_id FROM follows WHERE followee_id = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"follower_id"}).AddRow("bob").AddRow("carol"))

	got, err := repo.Followers(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, got)
}

func TestFollowers_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT follower_id`).WillReturnError(errors.New("boom"))

	_, err := repo.Followers(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select followers")
}
