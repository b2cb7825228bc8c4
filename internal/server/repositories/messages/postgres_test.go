package messages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate_InsertsMessageAndRecipients(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &models.Message{ID: "m1", SenderID: "alice", Payload: []byte{1, 2}, ExpiresAt: exp}

	mock.ExpectExec(`INSERT INTO messages \(id, sender_id, payload, expires_at\)`).
		WithArgs("m1", "alice", []byte{1, 2}, exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO message_recipients \(message_id, recipient_id\) VALUES \(\$1, \$2\), \(\$3, \$4\)`).
		WithArgs("m1", "bob", "m1", "carol").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Create(context.Background(), msg, []string{"bob", "carol"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_MessageInsertError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO messages`).WillReturnError(errors.New("db is down"))

	err := repo.Create(context.Background(), &models.Message{ID: "m1"}, []string{"bob"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
}

func TestPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-time.Minute)
	exp := now.Add(time.Hour)

	mock.ExpectQuery(`(?s)SELECT m\.id, m\.sender_id, m\.payload.*r\.received_at IS NULL AND m\.expires_at > \$2`).
		WithArgs("bob", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "payload", "created_at", "expires_at"}).
			AddRow("m1", "alice", []byte{9}, created, exp))

	got, err := repo.Pending(context.Background(), "bob", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, &models.Message{ID: "m1", SenderID: "alice", Payload: []byte{9}, CreatedAt: created, ExpiresAt: exp}, got[0])
}

func TestMarkReceived(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `UPDATE message_recipients\s+SET received_at = \$1\s+WHERE message_id = \$2 AND recipient_id = \$3`

	mock.ExpectExec(q).WithArgs(now, "m1", "bob").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkReceived(context.Background(), "bob", "m1", now))

	mock.ExpectExec(q).WithArgs(now, "m2", "bob").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkReceived(context.Background(), "bob", "m2", now), common.ErrorNotFound)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`DELETE FROM messages WHERE expires_at <= \$1`).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
