// Package entity implements the versioned value model shared by every object
// a FeedKeeper client keeps in the content store.
//
// An Entity is what the client holds in memory, a Payload is what it hands to
// the store. Constructors return both: the Payload carries the version the
// store must check, the Entity carries the version the store will report once
// the Payload is durable. Callers must persist the Payload before relying on
// the Entity and must discard the Entity if the write is rejected.
package entity

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

// IDSize is the length in bytes of a randomly allocated object id.
const IDSize = 32

// StorageIdentifier locates an object and holds the secret it is sealed with.
type StorageIdentifier struct {
	ObjectID string `cbor:"objectId"`
	Secret   []byte `cbor:"secret"`
}

// NewStorageIdentifier allocates a fresh random object id bound to secret.
func NewStorageIdentifier(secret []byte) StorageIdentifier {
	return StorageIdentifier{
		ObjectID: common.EncodeID(common.GenerateRandByteArray(IDSize)),
		Secret:   secret,
	}
}

func (s StorageIdentifier) IsZero() bool {
	return s.ObjectID == ""
}

// RawID returns the object id as it travels on the wire.
func (s StorageIdentifier) RawID() ([]byte, error) {
	id, err := common.DecodeID(s.ObjectID)
	if err != nil {
		return nil, common.MalformedError(fmt.Sprintf("object id %q: %v", s.ObjectID, err))
	}
	return id, nil
}

// Equal reports whether both the object id and the secret match.
func (s StorageIdentifier) Equal(o StorageIdentifier) bool {
	return s.ObjectID == o.ObjectID && bytes.Equal(s.Secret, o.Secret)
}

// WithSecret returns the same object id bound to a different secret.
func (s StorageIdentifier) WithSecret(secret []byte) StorageIdentifier {
	return StorageIdentifier{ObjectID: s.ObjectID, Secret: secret}
}

// Entity is a decoded domain value together with its location and the
// version the store will accept for the next write.
type Entity[T any] struct {
	Value   T
	Version uint64
	Storage StorageIdentifier
}

// Payload is one pending write: plaintext content, where it goes, the secret
// to seal it with and the version the store must currently hold.
type Payload struct {
	Secret    []byte
	StorageID []byte
	Content   []byte
	Version   uint64
}

// Encoder turns a value into the plaintext bytes that get sealed.
type Encoder[T any] func(T) ([]byte, error)

// Encode is the default Encoder: deterministic CBOR.
func Encode[T any](v T) ([]byte, error) {
	return codec.Marshal(v)
}

// Raw passes byte content through untouched.
func Raw(b []byte) ([]byte, error) {
	return b, nil
}

// New places value at a freshly allocated object id sealed with secret.
func New[T any](value T, secret []byte, encode Encoder[T]) (Payload, Entity[T], error) {
	return NewAt(value, NewStorageIdentifier(secret), encode)
}

// NewAt places value at a known, not yet existing object id.
func NewAt[T any](value T, id StorageIdentifier, encode Encoder[T]) (Payload, Entity[T], error) {
	return build(value, id, 0, encode)
}

// Update replaces the value of an existing entity. The object id is kept;
// the secret is replaced when newSecret is given.
func Update[T any](old Entity[T], value T, encode Encoder[T], newSecret ...[]byte) (Payload, Entity[T], error) {
	id := old.Storage
	if len(newSecret) > 0 && newSecret[0] != nil {
		id = id.WithSecret(newSecret[0])
	}
	return build(value, id, old.Version, encode)
}

func build[T any](value T, id StorageIdentifier, version uint64, encode Encoder[T]) (Payload, Entity[T], error) {
	raw, err := id.RawID()
	if err != nil {
		return Payload{}, Entity[T]{}, err
	}

	content, err := encode(value)
	if err != nil {
		return Payload{}, Entity[T]{}, fmt.Errorf("encode %s: %w", id.ObjectID, err)
	}

	p := Payload{
		Secret:    id.Secret,
		StorageID: raw,
		Content:   content,
		Version:   version,
	}
	e := Entity[T]{
		Value:   value,
		Version: version + 1,
		Storage: id,
	}
	return p, e, nil
}
