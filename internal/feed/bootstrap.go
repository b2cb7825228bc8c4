package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/group"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// Bootstrap loads the user's manifest, creating the initial object set on
// first use.
func (s *Session) Bootstrap(ctx context.Context) error {
	id, err := ManifestID(s.masterKey)
	if err != nil {
		return err
	}

	m, err := Fetch[manifest.Manifest](ctx, s.remote, id)
	switch {
	case err == nil:
		return s.load(ctx, m)
	case errors.Is(err, common.ErrorNotFound):
		s.log.Info(ctx, "no manifest found, creating")
		return s.create(ctx, id)
	default:
		return fmt.Errorf("fetch manifest: %w", err)
	}
}

func (s *Session) load(ctx context.Context, m entity.Entity[manifest.Manifest]) error {
	gsID, ok := m.Value.GroupStates[groupKey(s.userID)]
	if !ok {
		return fmt.Errorf("%w: own group state", common.ErrorNotFound)
	}
	gs, err := Fetch[manifest.FollowerGroupState](ctx, s.remote, gsID)
	if err != nil {
		return fmt.Errorf("own group state: %w", err)
	}

	pm, err := Fetch[manifest.PostManifest](ctx, s.remote, m.Value.PostManifest)
	if err != nil {
		return fmt.Errorf("post manifest: %w", err)
	}
	page, err := Fetch[manifest.PostManifestPage](ctx, s.remote, pm.Value.CurrentPage)
	if err != nil {
		return fmt.Errorf("current page: %w", err)
	}
	fr, err := Fetch[manifest.FollowRequests](ctx, s.remote, m.Value.FollowRequests)
	if err != nil {
		return fmt.Errorf("follow requests: %w", err)
	}
	if err := s.loadIndexes(ctx, m.Value.Indexes); err != nil {
		return err
	}

	if m.Value.FollowerManifests == nil {
		m.Value.FollowerManifests = map[string]entity.StorageIdentifier{}
	}
	if gs.Value.CachedInteractions == nil {
		gs.Value.CachedInteractions = map[string][]manifest.Interaction{}
	}

	s.manifest = m
	s.ownGroup = gs
	s.posts = pm
	s.page = page
	s.followRequests = fr
	s.loaded = true

	s.log.Debug(ctx, "manifest loaded", "page", page.Value.PageIndex, "posts", pm.Value.Totals.TotalPosts)
	return nil
}

func (s *Session) create(ctx context.Context, id entity.StorageIdentifier) error {
	state, err := s.group.CreateGroup(ctx, s.userID, group.DeriveGroupID(s.userID), s.publicKey())
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	secret, err := s.postSecret(ctx, state)
	if err != nil {
		return err
	}

	b := &batch{}

	pageP, page, err := entity.New(manifest.PostManifestPage{Posts: []manifest.PostMeta{}}, secret, entity.Encode[manifest.PostManifestPage])
	if err != nil {
		return err
	}
	stage(b, pageP, page, &s.page)

	pmP, pm, err := entity.New(manifest.PostManifest{CurrentPage: page.Storage, Pages: []manifest.PageRef{}}, secret, entity.Encode[manifest.PostManifest])
	if err != nil {
		return err
	}
	stage(b, pmP, pm, &s.posts)

	indexes, err := s.newIndexes(b)
	if err != nil {
		return err
	}

	gsP, gs, err := entity.New(manifest.FollowerGroupState{
		GroupState:         state,
		CachedInteractions: map[string][]manifest.Interaction{},
	}, s.masterKey, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return err
	}
	stage(b, gsP, gs, &s.ownGroup)

	frP, fr, err := entity.New(manifest.FollowRequests{}, s.masterKey, entity.Encode[manifest.FollowRequests])
	if err != nil {
		return err
	}
	stage(b, frP, fr, &s.followRequests)

	root := manifest.NewManifest(pm.Storage, indexes, fr.Storage)
	root.GroupStates[groupKey(s.userID)] = gs.Storage
	mP, m, err := entity.NewAt(root, id, entity.Encode[manifest.Manifest])
	if err != nil {
		return err
	}
	stage(b, mP, m, &s.manifest)

	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store initial manifest: %w", err)
	}
	s.loaded = true
	return nil
}
