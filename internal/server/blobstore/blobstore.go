// Package blobstore defines the physical store holding encrypted blobs.
// Blobs are immutable once written and addressed by an opaque key; the
// logical object id to key mapping lives in the pointer table.
package blobstore

import (
	"context"
	"path"

	"github.com/google/uuid"
)

// Meta travels with every blob.
type Meta struct {
	Nonce       []byte
	Owner       string
	ContentType string
}

// Store puts and gets whole blobs. Get returns common.ErrorNotFound for an
// unknown key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, meta Meta) error
	Get(ctx context.Context, key string) ([]byte, Meta, error)
}

// ShardKey spreads ids over two directory levels: id[0:2]/id[2:4]/id[4:].
// Ids shorter than five characters are returned unchanged.
func ShardKey(id string) string {
	if len(id) <= 4 {
		return id
	}
	return path.Join(id[0:2], id[2:4], id[4:])
}

// ContentKey is where a content blob with the given storage id lives.
func ContentKey(storageID string) string {
	return path.Join("content", ShardKey(storageID))
}

// AvatarKey is where userID's public avatar lives.
func AvatarKey(userID string) string {
	return path.Join("avatars", ShardKey(userID))
}

// NewStorageID returns a fresh random storage id. Ids are never reused,
// so the physical location reveals nothing about a logical object's history.
func NewStorageID() string {
	return uuid.NewString()
}
