package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGetDelete(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutMany(ctx, map[string]api.Object{"a": {Body: []byte("1"), Nonce: []byte("n"), Version: 1}}))
	require.NoError(t, c.PutMany(ctx, map[string]api.Object{"a": {Body: []byte("2"), Nonce: []byte("m"), Version: 2}}))

	o, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, api.Object{Body: []byte("2"), Nonce: []byte("m"), Version: 2}, o)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeStore struct {
	objects map[string]api.Object
	putErr  error
	gets    [][]string
}

func (f *fakeStore) BatchPut(_ context.Context, records []wire.Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	for _, r := range records {
		f.objects[common.EncodeID(r.ObjectID)] = api.Object{Body: r.Blob, Nonce: r.Nonce, Version: r.ExpectedVersion + 1}
	}
	return nil
}

func (f *fakeStore) BatchGet(_ context.Context, ids [][]byte) (map[string]api.Object, error) {
	var asked []string
	out := map[string]api.Object{}
	for _, raw := range ids {
		id := common.EncodeID(raw)
		asked = append(asked, id)
		o, ok := f.objects[id]
		if !ok {
			return nil, &common.MissingError{ObjectIDs: []string{id}}
		}
		out[id] = o
	}
	f.gets = append(f.gets, asked)
	return out, nil
}

func TestCachingStore_ServesOwnWritesLocally(t *testing.T) {
	remote := &fakeStore{objects: map[string]api.Object{}}
	s := NewCachingStore(remote, openCache(t), logging.Nop())
	ctx := context.Background()

	require.NoError(t, s.BatchPut(ctx, []wire.Record{{ObjectID: []byte("mine"), Nonce: []byte("n"), Blob: []byte("b")}}))
	remote.objects[common.EncodeID([]byte("theirs"))] = api.Object{Body: []byte("t"), Version: 4}

	got, err := s.BatchGet(ctx, [][]byte{[]byte("mine"), []byte("theirs")})
	require.NoError(t, err)

	assert.Equal(t, api.Object{Body: []byte("b"), Nonce: []byte("n"), Version: 1}, got[common.EncodeID([]byte("mine"))])
	assert.Equal(t, uint64(4), got[common.EncodeID([]byte("theirs"))].Version)
	assert.Equal(t, [][]string{{common.EncodeID([]byte("theirs"))}}, remote.gets)
}

func TestCachingStore_StaleWriteDropsFreshness(t *testing.T) {
	remote := &fakeStore{objects: map[string]api.Object{}}
	s := NewCachingStore(remote, openCache(t), logging.Nop())
	ctx := context.Background()
	id := common.EncodeID([]byte("o"))

	require.NoError(t, s.BatchPut(ctx, []wire.Record{{ObjectID: []byte("o"), Blob: []byte("v1")}}))

	remote.objects[id] = api.Object{Body: []byte("other session"), Version: 2}
	remote.putErr = fmt.Errorf("batch: %w", &common.StaleError{ObjectID: id, Version: 2})
	err := s.BatchPut(ctx, []wire.Record{{ObjectID: []byte("o"), ExpectedVersion: 1, Blob: []byte("v2")}})
	var stale *common.StaleError
	require.True(t, errors.As(err, &stale))

	got, err := s.BatchGet(ctx, [][]byte{[]byte("o")})
	require.NoError(t, err)
	assert.Equal(t, []byte("other session"), got[id].Body)
}

func TestCachingStore_MissingPropagates(t *testing.T) {
	s := NewCachingStore(&fakeStore{objects: map[string]api.Object{}}, openCache(t), logging.Nop())

	_, err := s.BatchGet(context.Background(), [][]byte{[]byte("nope")})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
