package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
)

func newMessageService(t *testing.T) (*MessageService, *fakeRepoManager, func(commit bool), *time.Time) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	svc := NewMessageService(db, rm, time.Hour, logging.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	expectTx := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	return svc, rm, expectTx, &now
}

func TestMessageService_SendReceiveAck(t *testing.T) {
	svc, _, expectTx, _ := newMessageService(t)
	ctx := context.Background()

	expectTx(true)
	id, err := svc.Send(ctx, "alice", []byte("hello"), []string{"bob", "bob", "", "carol"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := svc.Receive(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0].SenderID)
	assert.Equal(t, []byte("hello"), msgs[0].Payload)

	expectTx(true)
	require.NoError(t, svc.Ack(ctx, "bob", []string{id}))

	msgs, err = svc.Receive(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = svc.Receive(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "ack by one recipient leaves others pending")
}

func TestMessageService_AckUnknownIDFailsWhole(t *testing.T) {
	svc, rm, expectTx, _ := newMessageService(t)
	ctx := context.Background()

	expectTx(true)
	id, err := svc.Send(ctx, "alice", []byte("x"), []string{"bob"})
	require.NoError(t, err)

	expectTx(false)
	err = svc.Ack(ctx, "bob", []string{"unknown", id})
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "unknown")
	assert.False(t, rm.m.deliveries[[2]string{id, "bob"}].received)
}

func TestMessageService_Expiry(t *testing.T) {
	svc, _, expectTx, now := newMessageService(t)
	ctx := context.Background()

	expectTx(true)
	_, err := svc.Send(ctx, "alice", []byte("x"), []string{"bob"})
	require.NoError(t, err)

	*now = now.Add(2 * time.Hour)

	msgs, err := svc.Receive(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMessageService_Validation(t *testing.T) {
	svc, _, _, _ := newMessageService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "alice", []byte("x"), nil)
	assert.ErrorIs(t, err, common.ErrMalformed)

	_, err = svc.Send(ctx, "alice", nil, []string{"bob"})
	assert.ErrorIs(t, err, common.ErrMalformed)

	assert.ErrorIs(t, svc.Ack(ctx, "bob", nil), common.ErrMalformed)
}

func TestMessageService_CreateErrorRollsBack(t *testing.T) {
	svc, rm, expectTx, _ := newMessageService(t)
	rm.m.createErr = errors.New("db down")

	expectTx(false)
	_, err := svc.Send(context.Background(), "alice", []byte("x"), []string{"bob"})
	require.Error(t, err)
}
