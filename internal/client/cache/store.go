package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

// Store is the remote content store being cached.
type Store interface {
	BatchPut(ctx context.Context, records []wire.Record) error
	BatchGet(ctx context.Context, ids [][]byte) (map[string]api.Object, error)
}

// CachingStore serves reads from the cache for objects this session wrote
// last and goes to the remote store for everything else.
type CachingStore struct {
	next  Store
	cache *Cache
	log   logging.Logger

	mu    sync.Mutex
	fresh map[string]bool
}

func NewCachingStore(next Store, c *Cache, logger logging.Logger) *CachingStore {
	return &CachingStore{next: next, cache: c, log: logger.With("module", "cache"), fresh: map[string]bool{}}
}

func (s *CachingStore) BatchPut(ctx context.Context, records []wire.Record) error {
	if err := s.next.BatchPut(ctx, records); err != nil {
		var stale *common.StaleError
		if errors.As(err, &stale) {
			s.forget(ctx, stale.ObjectID)
		}
		return err
	}

	written := make(map[string]api.Object, len(records))
	for _, r := range records {
		written[common.EncodeID(r.ObjectID)] = api.Object{Body: r.Blob, Nonce: r.Nonce, Version: r.ExpectedVersion + 1}
	}
	if err := s.cache.PutMany(ctx, written); err != nil {
		s.log.Warn(ctx, "cache update failed", "error", err)
		return nil
	}

	s.mu.Lock()
	for id := range written {
		s.fresh[id] = true
	}
	s.mu.Unlock()
	return nil
}

func (s *CachingStore) BatchGet(ctx context.Context, ids [][]byte) (map[string]api.Object, error) {
	out := make(map[string]api.Object, len(ids))
	var remote [][]byte

	for _, raw := range ids {
		id := common.EncodeID(raw)
		if s.isFresh(id) {
			if o, ok, err := s.cache.Get(ctx, id); err == nil && ok {
				out[id] = o
				continue
			}
		}
		remote = append(remote, raw)
	}

	if len(remote) == 0 {
		return out, nil
	}

	fetched, err := s.next.BatchGet(ctx, remote)
	if err != nil {
		return nil, err
	}
	if err := s.cache.PutMany(ctx, fetched); err != nil {
		s.log.Warn(ctx, "cache update failed", "error", err)
	}
	return lo.Assign(out, fetched), nil
}

func (s *CachingStore) isFresh(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh[id]
}

func (s *CachingStore) forget(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.fresh, id)
	s.mu.Unlock()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn(ctx, "cache delete failed", "error", err)
	}
}
