package feed

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// LikePost likes postID written by posterID.
func (s *Session) LikePost(ctx context.Context, posterID, postID string) error {
	return s.interact(ctx, posterID, manifest.KindLike, postID, "")
}

// UnlikePost withdraws this user's like of postID.
func (s *Session) UnlikePost(ctx context.Context, posterID, postID string) error {
	return s.interact(ctx, posterID, manifest.KindUnlike, postID, "")
}

// CommentPost comments on postID written by posterID.
func (s *Session) CommentPost(ctx context.Context, posterID, postID, text string) error {
	if text == "" {
		return common.MalformedError("empty comment")
	}
	return s.interact(ctx, posterID, manifest.KindComment, postID, text)
}

// interact applies the interaction directly to an own post, or sends it to
// the poster's group otherwise.
func (s *Session) interact(ctx context.Context, posterID string, kind manifest.InteractionKind, postID, text string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	in := manifest.Interaction{
		Kind:   kind,
		PostID: postID,
		Author: s.userID,
		Date:   s.nowMillis(),
		Text:   text,
	}
	sig, err := SignInteraction(s.signing, in)
	if err != nil {
		return err
	}
	in.Signature = sig

	b := &batch{}

	if posterID == s.userID {
		if err := s.stageOwnInteraction(ctx, b, in); err != nil {
			return err
		}
		return s.flush(ctx, b)
	}

	gs, err := s.followeeGroup(ctx, posterID)
	if err != nil {
		return err
	}
	gs.Value = gs.Value.Clone()
	gs.Value.CachedInteractions[postID] = append(gs.Value.CachedInteractions[postID], in)

	out, err := s.stageGroupBroadcast(ctx, b, posterID, gs, InteractionMessage{Interaction: in, PosterID: posterID}, func(entity.Entity[manifest.FollowerGroupState]) {})
	if err != nil {
		return err
	}
	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store interaction: %w", err)
	}
	return s.send(ctx, out)
}

// SignInteraction signs the to-be-signed form of in.
func SignInteraction(priv ed25519.PrivateKey, in manifest.Interaction) ([]byte, error) {
	tbs, err := codec.Marshal(in.TBS())
	if err != nil {
		return nil, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: no signing key", ErrBadSignature)
	}
	return cryptox.Sign(priv, tbs), nil
}

// VerifyInteraction checks in's signature against pub.
func VerifyInteraction(pub []byte, in manifest.Interaction) error {
	tbs, err := codec.Marshal(in.TBS())
	if err != nil {
		return err
	}
	if !cryptox.Verify(pub, tbs, in.Signature) {
		return fmt.Errorf("%w: %s on %s", ErrBadSignature, in.Author, in.PostID)
	}
	return nil
}

// stageOwnInteraction updates the likes or comments list of an own post and
// the post's meta.
func (s *Session) stageOwnInteraction(ctx context.Context, b *batch, in manifest.Interaction) error {
	secret, err := s.postSecret(ctx, s.ownGroup.Value.GroupState)
	if err != nil {
		return err
	}
	h, err := s.findPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	meta := h.page.Value.Posts[h.pos]

	ptr := meta.Likes
	if in.Kind == manifest.KindComment {
		ptr = meta.Comments
	}

	var list entity.Entity[manifest.InteractionList]
	if ptr != nil {
		if list, err = Fetch[manifest.InteractionList](ctx, s.remote, *ptr); err != nil {
			return fmt.Errorf("interactions of %s: %w", in.PostID, err)
		}
	}
	items := list.Value.Items

	byAuthor := func(x manifest.Interaction) bool { return x.Author == in.Author }

	switch in.Kind {
	case manifest.KindLike:
		if slices.ContainsFunc(items, byAuthor) {
			return nil
		}
		items = append([]manifest.Interaction{in}, items...)
	case manifest.KindUnlike:
		if !slices.ContainsFunc(items, byAuthor) {
			return nil
		}
		items = slices.DeleteFunc(slices.Clone(items), byAuthor)
	case manifest.KindComment:
		items = append([]manifest.Interaction{in}, items...)
	default:
		return common.MalformedError(fmt.Sprintf("interaction kind %q", in.Kind))
	}

	value := manifest.InteractionList{Items: items}
	var (
		p entity.Payload
		e entity.Entity[manifest.InteractionList]
	)
	if ptr == nil {
		p, e, err = entity.New(value, secret, entity.Encode[manifest.InteractionList])
	} else {
		p, e, err = entity.Update(list, value, entity.Encode[manifest.InteractionList], rekey(list.Storage, secret))
	}
	if err != nil {
		return err
	}
	b.add(p, nil)

	id := e.Storage
	switch in.Kind {
	case manifest.KindLike:
		meta.Likes = &id
		meta.TotalLikes = len(items)
		meta.SampleLikes = pushSample(slices.Clone(meta.SampleLikes), in)
	case manifest.KindUnlike:
		meta.Likes = &id
		meta.TotalLikes = len(items)
		meta.SampleLikes = slices.DeleteFunc(slices.Clone(meta.SampleLikes), byAuthor)
	case manifest.KindComment:
		meta.Comments = &id
		meta.TotalComments = len(items)
		meta.SampleComments = pushSample(slices.Clone(meta.SampleComments), in)
	}

	return s.stageReplace(b, h, meta, secret)
}

// ReceiveInteraction applies an interaction delivered through the group of
// msg.PosterID and sent by senderID.
func (s *Session) ReceiveInteraction(ctx context.Context, senderID string, msg InteractionMessage) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	b := &batch{}

	if msg.PosterID == s.userID {
		value := s.ownGroup.Value
		if err := s.receiveInteraction(ctx, b, senderID, msg, &value); err != nil {
			return err
		}
		return s.flush(ctx, b)
	}

	gs, err := s.followeeGroup(ctx, msg.PosterID)
	if err != nil {
		return err
	}
	value := gs.Value.Clone()
	if err := s.receiveInteraction(ctx, b, senderID, msg, &value); err != nil {
		return err
	}
	p, _, err := entity.Update(gs, value, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return err
	}
	b.add(p, nil)
	return s.flush(ctx, b)
}

// receiveInteraction verifies an interaction against the group it came
// through. Interactions on own posts are applied; others are cached in gs.
func (s *Session) receiveInteraction(
	ctx context.Context,
	b *batch,
	senderID string,
	msg InteractionMessage,
	gs *manifest.FollowerGroupState,
) error {
	in := msg.Interaction
	if in.Author != senderID {
		return fmt.Errorf("%w: author %s sent by %s", ErrBadSignature, in.Author, senderID)
	}
	key, err := s.group.MemberKey(gs.GroupState, in.Author)
	if err != nil {
		return err
	}
	if err := VerifyInteraction(key, in); err != nil {
		return err
	}

	if msg.PosterID == s.userID {
		return s.stageOwnInteraction(ctx, b, in)
	}

	if gs.CachedInteractions == nil {
		gs.CachedInteractions = map[string][]manifest.Interaction{}
	}
	gs.CachedInteractions[in.PostID] = append(gs.CachedInteractions[in.PostID], in)
	s.log.Debug(ctx, "interaction cached", "post", in.PostID, "author", in.Author)
	return nil
}
