// Package ratchet is a small group.Group implementation. Each add advances
// the epoch secret with a hash ratchet; the joiner receives the new state
// sealed to the X25519 key from its key package. Application messages are
// sealed under the epoch secret.
//
// The scheme has no member removal and no post-compromise security, and the
// sender of a message is authenticated only as some member of the group.
package ratchet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"slices"

	"golang.org/x/crypto/nacl/box"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/group"
)

// Rejections wrap common.ErrMalformed.
var (
	ErrWrongGroup = fmt.Errorf("%w: message for another group", common.ErrMalformed)
	ErrWrongEpoch = fmt.Errorf("%w: message for another epoch", common.ErrMalformed)
	ErrKeyPackage = fmt.Errorf("%w: key package mismatch", common.ErrMalformed)
)

const (
	kindCommit  = "commit"
	kindWelcome = "welcome"
	kindApp     = "app"
)

type member struct {
	UserID string `cbor:"userId"`
	Key    []byte `cbor:"key"`
}

type state struct {
	GroupID []byte   `cbor:"groupId"`
	Epoch   uint64   `cbor:"epoch"`
	Self    string   `cbor:"self"`
	Secret  []byte   `cbor:"secret"`
	Members []member `cbor:"members"`
}

type keyPackage struct {
	Member member `cbor:"member"`
	BoxKey []byte `cbor:"boxKey"`
}

type welcomeBody struct {
	State      state             `cbor:"state"`
	Extensions []group.Extension `cbor:"extensions"`
}

type envelope struct {
	Kind       string  `cbor:"kind"`
	GroupID    []byte  `cbor:"groupId"`
	Epoch      uint64  `cbor:"epoch"`
	Sender     string  `cbor:"sender"`
	Added      *member `cbor:"added,omitempty"`
	KeyPackage []byte  `cbor:"keyPackage,omitempty"`
	Nonce      []byte  `cbor:"nonce,omitempty"`
	Body       []byte  `cbor:"body,omitempty"`
}

// Group keeps no state of its own; everything lives in the byte strings it
// hands out.
type Group struct{}

func New() *Group { return &Group{} }

var _ group.Group = (*Group)(nil)

func (g *Group) GenerateKeyPackage(_ context.Context, userID string, signingKey ed25519.PublicKey) (group.KeyPackage, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return group.KeyPackage{}, err
	}

	public, err := codec.Marshal(keyPackage{Member: member{UserID: userID, Key: signingKey}, BoxKey: pub[:]})
	if err != nil {
		return group.KeyPackage{}, err
	}
	return group.KeyPackage{Public: public, Private: priv[:]}, nil
}

func (g *Group) CreateGroup(_ context.Context, userID string, groupID []byte, signingKey ed25519.PublicKey) ([]byte, error) {
	return codec.Marshal(state{
		GroupID: groupID,
		Self:    userID,
		Secret:  common.GenerateRandByteArray(32),
		Members: []member{{UserID: userID, Key: signingKey}},
	})
}

func (g *Group) AddMember(_ context.Context, raw, kp []byte, extensions []group.Extension) (group.AddResult, error) {
	s, err := decodeState(raw)
	if err != nil {
		return group.AddResult{}, err
	}

	var pkg keyPackage
	if err := codec.Unmarshal(kp, &pkg); err != nil {
		return group.AddResult{}, fmt.Errorf("%w: %v", ErrKeyPackage, err)
	}
	if len(pkg.BoxKey) != 32 {
		return group.AddResult{}, ErrKeyPackage
	}

	commit := envelope{Kind: kindCommit, GroupID: s.GroupID, Epoch: s.Epoch, Sender: s.Self, Added: &pkg.Member}
	next := advance(s, pkg.Member)

	joined := next
	joined.Self = pkg.Member.UserID
	body, err := codec.Marshal(welcomeBody{State: joined, Extensions: extensions})
	if err != nil {
		return group.AddResult{}, err
	}
	sealed, err := box.SealAnonymous(nil, body, (*[32]byte)(pkg.BoxKey), rand.Reader)
	if err != nil {
		return group.AddResult{}, err
	}
	welcome := envelope{
		Kind:       kindWelcome,
		GroupID:    s.GroupID,
		Epoch:      next.Epoch,
		Sender:     s.Self,
		KeyPackage: kp,
		Body:       sealed,
	}

	var res group.AddResult
	if res.State, err = codec.Marshal(next); err != nil {
		return group.AddResult{}, err
	}
	if res.Commit, err = codec.Marshal(commit); err != nil {
		return group.AddResult{}, err
	}
	if res.Welcome, err = codec.Marshal(welcome); err != nil {
		return group.AddResult{}, err
	}
	return res, nil
}

func (g *Group) Join(_ context.Context, welcome []byte, kp group.KeyPackage) ([]byte, []group.Extension, error) {
	var env envelope
	if err := codec.Unmarshal(welcome, &env); err != nil {
		return nil, nil, err
	}
	if env.Kind != kindWelcome {
		return nil, nil, fmt.Errorf("%w: not a welcome: %q", common.ErrMalformed, env.Kind)
	}
	if !bytes.Equal(env.KeyPackage, kp.Public) {
		return nil, nil, ErrKeyPackage
	}

	var pkg keyPackage
	if err := codec.Unmarshal(kp.Public, &pkg); err != nil {
		return nil, nil, err
	}
	if len(pkg.BoxKey) != 32 || len(kp.Private) != 32 {
		return nil, nil, ErrKeyPackage
	}
	plain, ok := box.OpenAnonymous(nil, env.Body, (*[32]byte)(pkg.BoxKey), (*[32]byte)(kp.Private))
	if !ok {
		return nil, nil, ErrKeyPackage
	}

	var wb welcomeBody
	if err := codec.Unmarshal(plain, &wb); err != nil {
		return nil, nil, err
	}
	raw, err := codec.Marshal(wb.State)
	if err != nil {
		return nil, nil, err
	}
	return raw, wb.Extensions, nil
}

func (g *Group) ExportSecret(_ context.Context, raw []byte, label string, length int) ([]byte, error) {
	s, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	return cryptox.DeriveKey(s.Secret, label, length)
}

func (g *Group) Encrypt(_ context.Context, raw, plaintext []byte) ([]byte, []byte, error) {
	s, err := decodeState(raw)
	if err != nil {
		return nil, nil, err
	}

	body, nonce, err := cryptox.Seal(s.Secret, plaintext)
	if err != nil {
		return nil, nil, err
	}

	msg, err := codec.Marshal(envelope{Kind: kindApp, GroupID: s.GroupID, Epoch: s.Epoch, Sender: s.Self, Nonce: nonce, Body: body})
	if err != nil {
		return nil, nil, err
	}
	return raw, msg, nil
}

func (g *Group) Process(_ context.Context, raw, message []byte) (group.Processed, error) {
	s, err := decodeState(raw)
	if err != nil {
		return group.Processed{}, err
	}

	var env envelope
	if err := codec.Unmarshal(message, &env); err != nil {
		return group.Processed{}, err
	}
	if !bytes.Equal(env.GroupID, s.GroupID) {
		return group.Processed{}, ErrWrongGroup
	}
	if env.Epoch != s.Epoch {
		return group.Processed{}, fmt.Errorf("%w: got %d, at %d", ErrWrongEpoch, env.Epoch, s.Epoch)
	}

	switch env.Kind {
	case kindCommit:
		if env.Added == nil {
			return group.Processed{}, fmt.Errorf("%w: commit without member", common.ErrMalformed)
		}
		next, err := codec.Marshal(advance(s, *env.Added))
		if err != nil {
			return group.Processed{}, err
		}
		return group.Processed{State: next, Sender: env.Sender}, nil
	case kindApp:
		plain, err := cryptox.Open(s.Secret, env.Nonce, env.Body)
		if err != nil {
			return group.Processed{}, err
		}
		return group.Processed{State: raw, Sender: env.Sender, Application: plain}, nil
	default:
		return group.Processed{}, fmt.Errorf("%w: unexpected group message %q", common.ErrMalformed, env.Kind)
	}
}

func (g *Group) Members(raw []byte) ([]string, error) {
	s, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		out = append(out, m.UserID)
	}
	return out, nil
}

func (g *Group) MemberKey(raw []byte, userID string) (ed25519.PublicKey, error) {
	s, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(s.Members, func(m member) bool { return m.UserID == userID })
	if i < 0 {
		return nil, fmt.Errorf("%w: member %s", common.ErrorNotFound, userID)
	}
	return ed25519.PublicKey(s.Members[i].Key), nil
}

func (g *Group) GroupID(raw []byte) ([]byte, error) {
	s, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	return s.GroupID, nil
}

// Epoch reports the epoch of a state.
func Epoch(raw []byte) (uint64, error) {
	s, err := decodeState(raw)
	if err != nil {
		return 0, err
	}
	return s.Epoch, nil
}

func advance(s state, m member) state {
	h := sha256.New()
	h.Write(s.Secret)
	h.Write([]byte(m.UserID))

	next := s
	next.Epoch++
	next.Secret = h.Sum(nil)
	next.Members = append(slices.Clone(s.Members), m)
	return next
}

func decodeState(raw []byte) (state, error) {
	var s state
	if err := codec.Unmarshal(raw, &s); err != nil {
		return state{}, fmt.Errorf("group state: %w", err)
	}
	return s, nil
}
