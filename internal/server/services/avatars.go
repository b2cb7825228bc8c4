package services

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

var avatarTypes = []string{"image/png", "image/jpeg", "image/svg+xml"}

// AvatarService stores one public, unencrypted avatar per user.
type AvatarService struct {
	blobs blobstore.Store
	log   logging.Logger
}

func NewAvatarService(blobs blobstore.Store, logger logging.Logger) *AvatarService {
	return &AvatarService{blobs: blobs, log: logger.With("module", "avatars")}
}

func (s *AvatarService) Put(ctx context.Context, userID, contentType string, image []byte) error {
	if !lo.Contains(avatarTypes, contentType) {
		return common.MalformedError("Expected image content type")
	}

	key := blobstore.AvatarKey(userID)

	_, meta, err := s.blobs.Get(ctx, key)
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return err
	case meta.Owner != "" && meta.Owner != userID:
		return &common.ForbiddenError{ObjectID: key}
	}

	envelope, err := wire.EncodeBlobWithMime(contentType, image)
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, key, envelope, blobstore.Meta{Owner: userID, ContentType: contentType})
}

// Get returns userID's avatar and its content type, or common.ErrorNotFound.
func (s *AvatarService) Get(ctx context.Context, userID string) (string, []byte, error) {
	envelope, _, err := s.blobs.Get(ctx, blobstore.AvatarKey(userID))
	if err != nil {
		return "", nil, err
	}
	return wire.DecodeBlobWithMime(envelope)
}
