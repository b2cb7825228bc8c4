package feed

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

// RemoteStore seals payloads before they leave the process and opens what
// comes back.
type RemoteStore struct {
	store ContentStore
}

func NewRemoteStore(store ContentStore) *RemoteStore {
	return &RemoteStore{store: store}
}

// Seal encrypts every payload under its own secret.
func Seal(payloads ...entity.Payload) ([]wire.Record, error) {
	records := make([]wire.Record, 0, len(payloads))
	for _, p := range payloads {
		ct, nonce, err := cryptox.Seal(p.Secret, p.Content)
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", common.EncodeID(p.StorageID), err)
		}
		records = append(records, wire.Record{
			Nonce:           nonce,
			ObjectID:        p.StorageID,
			ExpectedVersion: p.Version,
			Blob:            ct,
		})
	}
	return records, nil
}

// Store writes payloads as one batch. The batch is applied entirely or not
// at all.
func (r *RemoteStore) Store(ctx context.Context, payloads ...entity.Payload) error {
	if len(payloads) == 0 {
		return nil
	}
	records, err := Seal(payloads...)
	if err != nil {
		return err
	}
	return r.store.BatchPut(ctx, records)
}

// Opened is the decrypted content of one object with its current version.
type Opened struct {
	Content []byte
	Version uint64
}

// FetchRaw returns the decrypted content and current version of id.
func (r *RemoteStore) FetchRaw(ctx context.Context, id entity.StorageIdentifier) ([]byte, uint64, error) {
	out, err := r.FetchRawMany(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return out[0].Content, out[0].Version, nil
}

// FetchRawMany resolves ids in one request. Results follow the order of ids.
func (r *RemoteStore) FetchRawMany(ctx context.Context, ids ...entity.StorageIdentifier) ([]Opened, error) {
	raw := make([][]byte, 0, len(ids))
	for _, id := range ids {
		b, err := id.RawID()
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}

	objects, err := r.store.BatchGet(ctx, raw)
	if err != nil {
		return nil, err
	}

	out := make([]Opened, 0, len(ids))
	for _, id := range ids {
		obj, ok := objects[id.ObjectID]
		if !ok {
			return nil, &common.MissingError{ObjectIDs: []string{id.ObjectID}}
		}
		plain, err := cryptox.Open(id.Secret, obj.Nonce, obj.Body)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", id.ObjectID, err)
		}
		out = append(out, Opened{Content: plain, Version: obj.Version})
	}
	return out, nil
}

// Fetch loads and decodes the entity stored at id.
func Fetch[T any](ctx context.Context, r *RemoteStore, id entity.StorageIdentifier) (entity.Entity[T], error) {
	plain, version, err := r.FetchRaw(ctx, id)
	if err != nil {
		return entity.Entity[T]{}, err
	}

	var v T
	if err := codec.Unmarshal(plain, &v); err != nil {
		return entity.Entity[T]{}, fmt.Errorf("decode %s: %w", id.ObjectID, err)
	}
	return entity.Entity[T]{Value: v, Version: version, Storage: id}, nil
}

// FetchBlob loads raw bytes stored at id, such as post bodies.
func FetchBlob(ctx context.Context, r *RemoteStore, id entity.StorageIdentifier) (entity.Entity[[]byte], error) {
	plain, version, err := r.FetchRaw(ctx, id)
	if err != nil {
		return entity.Entity[[]byte]{}, err
	}
	return entity.Entity[[]byte]{Value: plain, Version: version, Storage: id}, nil
}
