package models

import "time"

// Follow grants FollowerID read access to every object owned by FolloweeID.
type Follow struct {
	FolloweeID string
	FollowerID string
	CreatedAt  time.Time
}
