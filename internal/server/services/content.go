// Package services holds the content server's use cases. Services own the
// transaction boundaries and talk to repositories through a RepositoryManager.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

// Object is one resolved entry of a batch fetch.
type Object = api.Object

type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	log         logging.Logger
}

func NewContentService(db *sql.DB, rm repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger) *ContentService {
	return &ContentService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		log:         logger.With("module", "content"),
	}
}

// BatchPut applies every record of one upload for uploaderID, or none of them.
//
// Blobs are first written under fresh storage ids outside any transaction;
// a later failure only leaves unreferenced blobs behind. Pointers are then
// swapped in a single transaction and the first ownership or version
// conflict aborts it.
func (s *ContentService) BatchPut(ctx context.Context, uploaderID string, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}

	objectIDs := lo.Map(records, func(r wire.Record, _ int) string { return common.EncodeID(r.ObjectID) })
	if dups := lo.FindDuplicates(objectIDs); len(dups) > 0 {
		return common.MalformedError(fmt.Sprintf("duplicate object id: %s", dups[0]))
	}

	ptrs := make([]*models.ContentPointer, len(records))
	for i, rec := range records {
		storageID := blobstore.NewStorageID()
		meta := blobstore.Meta{Nonce: rec.Nonce, Owner: uploaderID}
		if err := s.blobs.Put(ctx, blobstore.ContentKey(storageID), rec.Blob, meta); err != nil {
			return fmt.Errorf("store blob for %s: %w", objectIDs[i], err)
		}
		ptrs[i] = &models.ContentPointer{ObjectID: objectIDs[i], OwnerID: uploaderID, StorageID: storageID}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Pointers(tx)
		for i, ptr := range ptrs {
			if err := repo.Write(ctx, ptr, records[i].ExpectedVersion); err != nil {
				return err
			}
		}
		return nil
	})

	var stale *common.StaleError
	var forbidden *common.ForbiddenError
	switch {
	case err == nil:
		s.log.Debug(ctx, "batch stored", "owner", uploaderID, "objects", len(records))
	case errors.As(err, &stale):
		s.log.Info(ctx, "stale write rejected", "owner", uploaderID, "object", stale.ObjectID, "current", stale.Version)
	case errors.As(err, &forbidden):
		s.log.Warn(ctx, "write to foreign object rejected", "owner", uploaderID, "object", forbidden.ObjectID)
	default:
		s.log.Error(ctx, "batch write failed", "owner", uploaderID, "error", err)
	}
	return err
}

// BatchGet resolves ids readable by requesterID. If any id is missing or
// unreadable, a *common.MissingError naming exactly those ids is returned
// and no blob is fetched.
func (s *ContentService) BatchGet(ctx context.Context, requesterID string, ids [][]byte) (map[string]Object, error) {
	keys := lo.Uniq(lo.Map(ids, func(id []byte, _ int) string { return common.EncodeID(id) }))
	if len(keys) == 0 {
		return map[string]Object{}, nil
	}

	ptrs, err := s.repomanager.Pointers(s.db).SelectReadable(ctx, requesterID, keys)
	if err != nil {
		return nil, err
	}

	found := lo.Map(ptrs, func(p *models.ContentPointer, _ int) string { return p.ObjectID })
	if missing := lo.Without(keys, found...); len(missing) > 0 {
		s.log.Debug(ctx, "batch fetch missing ids", "requester", requesterID, "missing", missing)
		return nil, &common.MissingError{ObjectIDs: missing}
	}

	result := make(map[string]Object, len(ptrs))
	for _, p := range ptrs {
		body, meta, err := s.blobs.Get(ctx, blobstore.ContentKey(p.StorageID))
		if err != nil {
			s.log.Error(ctx, "pointer references unreadable blob", "object", p.ObjectID, "storage", p.StorageID, "error", err)
			return nil, fmt.Errorf("%w: fetch blob for %s: %v", common.ErrorInternal, p.ObjectID, err)
		}
		result[p.ObjectID] = Object{Body: body, Nonce: meta.Nonce, Version: p.Version}
	}

	return result, nil
}
