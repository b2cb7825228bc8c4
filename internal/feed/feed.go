// Package feed is the client side of FeedKeeper: it keeps a user's encrypted
// post listing, follow relationships and interactions in the content store
// and distributes secrets to followers through per-poster groups.
//
// A Session is single-threaded. Every mutation builds a batch of entity
// payloads, stores it in one request and only then replaces the session's
// in-memory entities. A rejected batch leaves the session untouched; the
// caller reloads with Bootstrap and retries.
package feed

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/group"
	"github.com/dmitrijs2005/feedkeeper/internal/index"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

const (
	// PostLimit is how many posts a page holds before it is sealed.
	PostLimit = 20
	// SampleSize is how many recent likes and comments PostMeta carries.
	SampleSize = 3
	// FollowerManifestExtension tags the FollowerManifest carried in a welcome.
	FollowerManifestExtension uint16 = 0xF0F0

	manifestIDInfo = "manifest id"
	signingKeyInfo = "signing key"
)

type ContentStore interface {
	BatchPut(ctx context.Context, records []wire.Record) error
	BatchGet(ctx context.Context, ids [][]byte) (map[string]api.Object, error)
}

type Messenger interface {
	Send(ctx context.Context, recipients []string, payload []byte) (string, error)
	Receive(ctx context.Context) ([]api.Message, error)
	Ack(ctx context.Context, ids []string) error
}

// AccessGranter lets followers read this user's objects.
type AccessGranter interface {
	Grant(ctx context.Context, followerID string) error
}

type Config struct {
	UserID     string
	MasterKey  []byte
	SigningKey ed25519.PrivateKey
	Group      group.Group
	Store      ContentStore
	Messenger  Messenger
	Access     AccessGranter
	Logger     logging.Logger
	PostLimit  int
}

type Session struct {
	userID    string
	masterKey []byte
	signing   ed25519.PrivateKey
	group     group.Group
	remote    *RemoteStore
	messenger Messenger
	access    AccessGranter
	log       logging.Logger
	postLimit int
	now       func() time.Time

	manifest       entity.Entity[manifest.Manifest]
	posts          entity.Entity[manifest.PostManifest]
	page           entity.Entity[manifest.PostManifestPage]
	ownGroup       entity.Entity[manifest.FollowerGroupState]
	followRequests entity.Entity[manifest.FollowRequests]
	indexManifest  entity.Entity[manifest.IndexManifest]
	indexParts     map[string]entity.Entity[[]byte]
	indexes        *index.Collection
	loaded         bool
}

func NewSession(c Config) *Session {
	logger := c.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	limit := c.PostLimit
	if limit <= 0 {
		limit = PostLimit
	}

	return &Session{
		userID:    c.UserID,
		masterKey: c.MasterKey,
		signing:   c.SigningKey,
		group:     c.Group,
		remote:    NewRemoteStore(c.Store),
		messenger: c.Messenger,
		access:    c.Access,
		log:       logger.With("user", c.UserID),
		postLimit: limit,
		now:       time.Now,
	}
}

// ManifestID derives the object id of the root manifest from the master key.
func ManifestID(masterKey []byte) (entity.StorageIdentifier, error) {
	id, err := cryptox.DeriveKey(masterKey, manifestIDInfo, entity.IDSize)
	if err != nil {
		return entity.StorageIdentifier{}, err
	}
	return entity.StorageIdentifier{ObjectID: common.EncodeID(id), Secret: masterKey}, nil
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Manifest() manifest.Manifest { return s.manifest.Value }

func (s *Session) PostManifest() manifest.PostManifest { return s.posts.Value }

func (s *Session) CurrentPage() manifest.PostManifestPage { return s.page.Value }

func (s *Session) FollowRequests() manifest.FollowRequests { return s.followRequests.Value }

func (s *Session) Indexes() *index.Collection { return s.indexes }

func (s *Session) ensureLoaded() error {
	if !s.loaded {
		return errNotBootstrapped
	}
	return nil
}

func (s *Session) nowMillis() int64 {
	return s.now().UnixMilli()
}

// postSecret exports the secret the own post listing is sealed with.
func (s *Session) postSecret(ctx context.Context, state []byte) ([]byte, error) {
	return s.group.ExportSecret(ctx, state, group.PostSecretLabel, group.SecretSize)
}

func groupKey(userID string) string {
	return common.EncodeID(group.DeriveGroupID(userID))
}

func (s *Session) publicKey() ed25519.PublicKey {
	if len(s.signing) != ed25519.PrivateKeySize {
		return nil
	}
	return s.signing.Public().(ed25519.PublicKey)
}

// DeriveSigningKey returns the interaction signing key bound to masterKey.
func DeriveSigningKey(masterKey []byte) (ed25519.PrivateKey, error) {
	seed, err := cryptox.DeriveKey(masterKey, signingKeyInfo, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
