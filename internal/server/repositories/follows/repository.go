package follows

import (
	"context"
)

type Repository interface {
	Grant(ctx context.Context, followeeID, followerID string) error
	Revoke(ctx context.Context, followeeID, followerID string) error
	Followers(ctx context.Context, followeeID string) ([]string, error)
}
