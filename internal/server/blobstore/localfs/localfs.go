// Package localfs stores blobs on the local filesystem, one file per blob
// plus a CBOR sidecar holding its metadata.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
)

const metaSuffix = ".meta"

type Store struct {
	root string
	log  logging.Logger
}

func New(root string, logger logging.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, log: logger.With("module", "localfs")}, nil
}

type sidecar struct {
	Nonce       []byte `cbor:"nonce"`
	Owner       string `cbor:"owner"`
	ContentType string `cbor:"contentType,omitempty"`
}

// Put writes body and its metadata through temp files and renames, so a
// reader never observes a partially written blob. Overwriting an existing
// key is allowed.
func (s *Store) Put(ctx context.Context, key string, body []byte, meta blobstore.Meta) error {
	finalName, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(finalName), 0o755); err != nil {
		return err
	}

	metaBytes, err := codec.Marshal(sidecar{Nonce: meta.Nonce, Owner: meta.Owner, ContentType: meta.ContentType})
	if err != nil {
		return err
	}

	if err := s.writeAtomic(ctx, finalName+metaSuffix, metaBytes); err != nil {
		return err
	}
	return s.writeAtomic(ctx, finalName, body)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, blobstore.Meta, error) {
	name, err := s.path(key)
	if err != nil {
		return nil, blobstore.Meta{}, err
	}

	body, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blobstore.Meta{}, common.ErrorNotFound
	}
	if err != nil {
		return nil, blobstore.Meta{}, err
	}

	metaBytes, err := os.ReadFile(name + metaSuffix)
	if err != nil {
		return nil, blobstore.Meta{}, fmt.Errorf("read metadata for %s: %w", key, err)
	}

	var sc sidecar
	if err := codec.Unmarshal(metaBytes, &sc); err != nil {
		return nil, blobstore.Meta{}, fmt.Errorf("decode metadata for %s: %w", key, err)
	}

	return body, blobstore.Meta{Nonce: sc.Nonce, Owner: sc.Owner, ContentType: sc.ContentType}, nil
}

func (s *Store) writeAtomic(ctx context.Context, finalName string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(finalName), filepath.Base(finalName)+".*.temp")
	if err != nil {
		return err
	}
	tempName := tmp.Name()

	success := false
	defer func() {
		_ = tmp.Close()
		if !success {
			if err := os.Remove(tempName); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn(ctx, "temp file cleanup failed", "file", tempName, "error", err)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempName, finalName); err != nil {
		return err
	}

	success = true
	return nil
}

// path maps key below root and refuses keys escaping it.
func (s *Store) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", common.MalformedError(fmt.Sprintf("invalid blob key %q", key))
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
