// Package group describes the group key agreement capability FeedKeeper
// relies on. A follower group exists per poster: its members are the poster
// and everyone allowed to follow them, and its exported secret keys the
// poster's post listing.
//
// States, key packages and protocol messages are opaque byte strings owned
// by the implementation. They are persisted inside encrypted entities and
// carried over the message channel.
package group

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
)

// PostSecretLabel is the exporter label for the post encryption secret.
const PostSecretLabel = "data encryption key"

// SecretSize is the length of exported secrets.
const SecretSize = 32

type KeyPackage struct {
	Public  []byte
	Private []byte
}

// Extension is out-of-band data delivered to a joining member together with
// the welcome.
type Extension struct {
	Type uint16
	Data []byte
}

// AddResult is the outcome of adding a member: the committer's next state,
// the commit for existing members and the welcome for the new one.
type AddResult struct {
	State   []byte
	Commit  []byte
	Welcome []byte
}

// Processed is the outcome of handling an incoming group message. Application
// is nil for handshake messages.
type Processed struct {
	State       []byte
	Sender      string
	Application []byte
}

type Group interface {
	GenerateKeyPackage(ctx context.Context, userID string, signingKey ed25519.PublicKey) (KeyPackage, error)
	CreateGroup(ctx context.Context, userID string, groupID []byte, signingKey ed25519.PublicKey) ([]byte, error)
	AddMember(ctx context.Context, state, keyPackage []byte, extensions []Extension) (AddResult, error)
	Join(ctx context.Context, welcome []byte, kp KeyPackage) (state []byte, extensions []Extension, err error)
	ExportSecret(ctx context.Context, state []byte, label string, length int) ([]byte, error)
	Encrypt(ctx context.Context, state, plaintext []byte) (next, message []byte, err error)
	Process(ctx context.Context, state, message []byte) (Processed, error)
	Members(state []byte) ([]string, error)
	MemberKey(state []byte, userID string) (ed25519.PublicKey, error)
	GroupID(state []byte) ([]byte, error)
}

// DeriveGroupID returns the id of the follower group owned by userID.
func DeriveGroupID(userID string) []byte {
	sum := sha256.Sum256([]byte(userID))
	return sum[:]
}
