package feed

import (
	"errors"
)

var (
	errNotBootstrapped = errors.New("session not bootstrapped")

	// ErrNotFollowing is returned for operations on a followee this user has
	// no group state for.
	ErrNotFollowing = errors.New("not following user")
	// ErrBadSignature marks an interaction whose signature does not verify.
	ErrBadSignature = errors.New("invalid interaction signature")
	// ErrUnknownMessage marks an incoming message with an unknown kind.
	ErrUnknownMessage = errors.New("unknown message kind")
)
