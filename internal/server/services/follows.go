package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/repomanager"
)

// FollowService maintains the read-access relation used by BatchGet.
// Only the followee can grant or revoke access to its own objects.
type FollowService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewFollowService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) *FollowService {
	return &FollowService{db: db, repomanager: rm, log: logger.With("module", "follows")}
}

func (s *FollowService) Grant(ctx context.Context, followeeID, followerID string) error {
	if followerID == "" || followerID == followeeID {
		return common.MalformedError("invalid follower id")
	}
	if err := s.repomanager.Follows(s.db).Grant(ctx, followeeID, followerID); err != nil {
		return err
	}
	s.log.Info(ctx, "read access granted", "followee", followeeID, "follower", followerID)
	return nil
}

func (s *FollowService) Revoke(ctx context.Context, followeeID, followerID string) error {
	if followerID == "" {
		return common.MalformedError("invalid follower id")
	}
	if err := s.repomanager.Follows(s.db).Revoke(ctx, followeeID, followerID); err != nil {
		return err
	}
	s.log.Info(ctx, "read access revoked", "followee", followeeID, "follower", followerID)
	return nil
}

func (s *FollowService) Followers(ctx context.Context, followeeID string) ([]string, error) {
	return s.repomanager.Follows(s.db).Followers(ctx, followeeID)
}
