package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/follows"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/pointers"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/repomanager"
)

// -------- test fakes --------

// fakePointersRepo mimics the CAS semantics of the pointer table.
type fakePointersRepo struct {
	pointers.Repository
	rows      map[string]models.ContentPointer
	follows   map[string]map[string]bool // followee -> follower
	writeErr  error
	selectErr error
	writes    int
}

func newFakePointers() *fakePointersRepo {
	return &fakePointersRepo{rows: map[string]models.ContentPointer{}, follows: map[string]map[string]bool{}}
}

func (f *fakePointersRepo) Write(_ context.Context, p *models.ContentPointer, expected uint64) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	cur, ok := f.rows[p.ObjectID]
	switch {
	case ok && cur.OwnerID != p.OwnerID:
		return &common.ForbiddenError{ObjectID: p.ObjectID}
	case !ok && expected != 0:
		return &common.StaleError{ObjectID: p.ObjectID, Version: 0}
	case ok && cur.Version != expected:
		return &common.StaleError{ObjectID: p.ObjectID, Version: cur.Version}
	}
	p.Version = expected + 1
	f.rows[p.ObjectID] = *p
	return nil
}

func (f *fakePointersRepo) Get(_ context.Context, id string) (*models.ContentPointer, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (f *fakePointersRepo) SelectReadable(_ context.Context, requester string, ids []string) ([]*models.ContentPointer, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []*models.ContentPointer
	for _, id := range ids {
		p, ok := f.rows[id]
		if !ok {
			continue
		}
		if p.OwnerID == requester || f.follows[p.OwnerID][requester] {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeFollowsRepo struct {
	follows.Repository
	granted map[[2]string]bool
	err     error
}

func (f *fakeFollowsRepo) Grant(_ context.Context, followee, follower string) error {
	if f.err != nil {
		return f.err
	}
	f.granted[[2]string{followee, follower}] = true
	return nil
}

func (f *fakeFollowsRepo) Revoke(_ context.Context, followee, follower string) error {
	delete(f.granted, [2]string{followee, follower})
	return f.err
}

func (f *fakeFollowsRepo) Followers(_ context.Context, followee string) ([]string, error) {
	var out []string
	for k := range f.granted {
		if k[0] == followee {
			out = append(out, k[1])
		}
	}
	return out, f.err
}

type delivery struct {
	msg      *models.Message
	received bool
}

type fakeMessagesRepo struct {
	messages.Repository
	deliveries map[[2]string]*delivery // message id, recipient
	createErr  error
}

func (f *fakeMessagesRepo) Create(_ context.Context, m *models.Message, recipients []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range recipients {
		f.deliveries[[2]string{m.ID, r}] = &delivery{msg: m}
	}
	return nil
}

func (f *fakeMessagesRepo) Pending(_ context.Context, recipient string, now time.Time) ([]*models.Message, error) {
	var out []*models.Message
	for k, d := range f.deliveries {
		if k[1] == recipient && !d.received && d.msg.ExpiresAt.After(now) {
			out = append(out, d.msg)
		}
	}
	return out, nil
}

func (f *fakeMessagesRepo) MarkReceived(_ context.Context, recipient, id string, _ time.Time) error {
	d, ok := f.deliveries[[2]string{id, recipient}]
	if !ok {
		return common.ErrorNotFound
	}
	d.received = true
	return nil
}

func (f *fakeMessagesRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, d := range f.deliveries {
		if !d.msg.ExpiresAt.After(now) {
			delete(f.deliveries, k)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	p *fakePointersRepo
	f *fakeFollowsRepo
	m *fakeMessagesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		p: newFakePointers(),
		f: &fakeFollowsRepo{granted: map[[2]string]bool{}},
		m: &fakeMessagesRepo{deliveries: map[[2]string]*delivery{}},
	}
}

func (m *fakeRepoManager) Pointers(dbx.DBTX) pointers.Repository { return m.p }
func (m *fakeRepoManager) Follows(dbx.DBTX) follows.Repository   { return m.f }
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository { return m.m }

type storedBlob struct {
	body []byte
	meta blobstore.Meta
}

type fakeBlobs struct {
	objects map[string]storedBlob
	putErr  error
	puts    int
	gets    int
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string]storedBlob{}} }

func (f *fakeBlobs) Put(_ context.Context, key string, body []byte, meta blobstore.Meta) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = storedBlob{body: append([]byte(nil), body...), meta: meta}
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, blobstore.Meta, error) {
	f.gets++
	o, ok := f.objects[key]
	if !ok {
		return nil, blobstore.Meta{}, common.ErrorNotFound
	}
	return o.body, o.meta, nil
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
