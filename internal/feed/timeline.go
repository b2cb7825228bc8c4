package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// TimelineItem is a post with the user who wrote it.
type TimelineItem struct {
	UserID string
	Post   manifest.PostMeta
}

// Timeline merges the own current page with the current page of every
// followee, newest first. Followees whose listing cannot be read are logged
// and skipped.
func (s *Session) Timeline(ctx context.Context) ([]TimelineItem, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	items := make([]TimelineItem, 0, len(s.page.Value.Posts))
	for _, p := range s.page.Value.Posts {
		items = append(items, TimelineItem{UserID: s.userID, Post: p})
	}

	for _, followee := range s.Following() {
		page, err := s.FolloweePage(ctx, followee, -1)
		if err != nil {
			s.log.Warn(ctx, "skipping followee", "followee", followee, "error", err)
			continue
		}
		for _, p := range page.Posts {
			items = append(items, TimelineItem{UserID: followee, Post: p})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Post.Date > items[j].Post.Date })
	return items, nil
}

// FolloweePage returns page n of followeeID's listing with cached
// interactions merged in. A negative n selects the current page.
func (s *Session) FolloweePage(ctx context.Context, followeeID string, n int) (manifest.PostManifestPage, error) {
	if err := s.ensureLoaded(); err != nil {
		return manifest.PostManifestPage{}, err
	}

	gs, err := s.followeeGroup(ctx, followeeID)
	if err != nil {
		return manifest.PostManifestPage{}, err
	}
	pm, err := s.followeePostManifest(ctx, followeeID, gs)
	if err != nil {
		return manifest.PostManifestPage{}, err
	}

	var page manifest.PostManifestPage
	if n < 0 || n == len(pm.Pages) {
		e, err := Fetch[manifest.PostManifestPage](ctx, s.remote, pm.CurrentPage)
		if err != nil {
			return manifest.PostManifestPage{}, fmt.Errorf("current page: %w", err)
		}
		page = e.Value
	} else {
		if page, err = s.fetchSealedPage(ctx, pm, n); err != nil {
			return manifest.PostManifestPage{}, err
		}
	}

	if page.Posts, err = s.mergeFolloweePosts(ctx, followeeID, gs, page.Posts); err != nil {
		return manifest.PostManifestPage{}, err
	}
	return page, nil
}

// mergeFolloweePosts merges the interactions cached in gs into posts.
// Cached entries the owner has already applied are dropped, and the pruned
// cache is stored back.
func (s *Session) mergeFolloweePosts(
	ctx context.Context,
	followeeID string,
	gs entity.Entity[manifest.FollowerGroupState],
	posts []manifest.PostMeta,
) ([]manifest.PostMeta, error) {
	var pruned *manifest.FollowerGroupState

	for i, meta := range posts {
		postID := manifest.PostID(meta)
		pending := gs.Value.CachedInteractions[postID]
		if len(pending) == 0 {
			continue
		}

		likes, err := s.appliedInteractions(ctx, meta.Likes)
		if err != nil {
			return nil, fmt.Errorf("likes of %s: %w", postID, err)
		}
		comments, err := s.appliedInteractions(ctx, meta.Comments)
		if err != nil {
			return nil, fmt.Errorf("comments of %s: %w", postID, err)
		}

		merged, keep := MergeCached(meta, likes, comments, pending)
		posts[i] = merged
		if len(keep) == len(pending) {
			continue
		}

		if pruned == nil {
			v := gs.Value.Clone()
			pruned = &v
		}
		if len(keep) == 0 {
			delete(pruned.CachedInteractions, postID)
		} else {
			pruned.CachedInteractions[postID] = keep
		}
	}

	if pruned == nil {
		return posts, nil
	}

	p, _, err := entity.Update(gs, *pruned, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return nil, err
	}
	b := &batch{}
	b.add(p, nil)
	if err := s.flush(ctx, b); err != nil {
		s.log.Warn(ctx, "interaction cache not pruned", "followee", followeeID, "error", err)
	}
	return posts, nil
}

func (s *Session) appliedInteractions(ctx context.Context, id *entity.StorageIdentifier) ([]manifest.Interaction, error) {
	if id == nil {
		return nil, nil
	}
	list, err := Fetch[manifest.InteractionList](ctx, s.remote, *id)
	if err != nil {
		return nil, err
	}
	return list.Value.Items, nil
}

// followeePostManifest reads the followee's post manifest with the secret
// exported from the shared group, falling back to the secret received at
// admission when the followee has not re-sealed yet.
func (s *Session) followeePostManifest(
	ctx context.Context,
	followeeID string,
	gs entity.Entity[manifest.FollowerGroupState],
) (manifest.PostManifest, error) {
	fmID := s.manifest.Value.FollowerManifests[followeeID]
	fm, err := Fetch[manifest.FollowerManifest](ctx, s.remote, fmID)
	if err != nil {
		return manifest.PostManifest{}, fmt.Errorf("follower manifest: %w", err)
	}

	secret, err := s.postSecret(ctx, gs.Value.GroupState)
	if err != nil {
		return manifest.PostManifest{}, err
	}

	pm, err := Fetch[manifest.PostManifest](ctx, s.remote, fm.Value.PostManifest.WithSecret(secret))
	if errors.Is(err, cryptox.ErrDecrypt) {
		pm, err = Fetch[manifest.PostManifest](ctx, s.remote, fm.Value.PostManifest)
	}
	if err != nil {
		return manifest.PostManifest{}, fmt.Errorf("post manifest: %w", err)
	}
	return pm.Value, nil
}

// MergeCached folds the pending interactions cached for meta's post into its
// totals and samples. likes and comments are the owner's applied lists; a
// pending entry they already reflect is dropped. It returns the merged meta
// and the entries still pending.
func MergeCached(meta manifest.PostMeta, likes, comments, pending []manifest.Interaction) (manifest.PostMeta, []manifest.Interaction) {
	if len(pending) == 0 {
		return meta, nil
	}

	meta.SampleLikes = slices.Clone(meta.SampleLikes)
	meta.SampleComments = slices.Clone(meta.SampleComments)

	likedAt := make(map[string]int64, len(likes))
	for _, l := range likes {
		likedAt[l.Author] = l.Date
	}

	keep := make([]manifest.Interaction, 0, len(pending))
	for _, in := range pending {
		switch in.Kind {
		case manifest.KindLike:
			// the owner keeps one like per author
			if _, ok := likedAt[in.Author]; ok {
				continue
			}
			likedAt[in.Author] = in.Date
			meta.TotalLikes++
			meta.SampleLikes = pushSample(meta.SampleLikes, in)
		case manifest.KindComment:
			if containsInteraction(comments, in) {
				continue
			}
			meta.TotalComments++
			meta.SampleComments = pushSample(meta.SampleComments, in)
		case manifest.KindUnlike:
			at, ok := likedAt[in.Author]
			if !ok || at >= in.Date {
				continue
			}
			delete(likedAt, in.Author)
			if meta.TotalLikes > 0 {
				meta.TotalLikes--
			}
			meta.SampleLikes = slices.DeleteFunc(meta.SampleLikes, func(l manifest.Interaction) bool { return l.Author == in.Author })
		default:
			continue
		}
		keep = append(keep, in)
	}
	return meta, keep
}

func containsInteraction(list []manifest.Interaction, in manifest.Interaction) bool {
	return slices.ContainsFunc(list, func(x manifest.Interaction) bool {
		return x.Author == in.Author && x.Date == in.Date && x.Kind == in.Kind
	})
}

// pushSample appends in and keeps the last SampleSize entries.
func pushSample(sample []manifest.Interaction, in manifest.Interaction) []manifest.Interaction {
	sample = append(sample, in)
	if len(sample) > SampleSize {
		sample = sample[len(sample)-SampleSize:]
	}
	return sample
}
