package feed

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

type Media struct {
	ContentType string
	Data        []byte
}

type PostInput struct {
	Title     string
	Date      time.Time
	Type      string
	Gear      string
	Metrics   manifest.DerivedMetrics
	Body      []byte
	Thumbnail *Media
	Media     []Media
}

// pageHandle is a page that holds a given post.
type pageHandle struct {
	page    entity.Entity[manifest.PostManifestPage]
	current bool
	ref     int
	pos     int
}

// rekey returns secret when id is sealed with something else.
func rekey(id entity.StorageIdentifier, secret []byte) []byte {
	if bytes.Equal(id.Secret, secret) {
		return nil
	}
	return secret
}

// CreatePost stores a post and lists it at the head of the current page,
// sealing the page first when it is full.
func (s *Session) CreatePost(ctx context.Context, in PostInput) (manifest.PostMeta, error) {
	if err := s.ensureLoaded(); err != nil {
		return manifest.PostMeta{}, err
	}

	secret, err := s.postSecret(ctx, s.ownGroup.Value.GroupState)
	if err != nil {
		return manifest.PostMeta{}, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	b := &batch{}

	mainP, main, err := entity.New(in.Body, secret, entity.Raw)
	if err != nil {
		return manifest.PostMeta{}, err
	}
	b.add(mainP, nil)

	meta := manifest.PostMeta{
		Title:          in.Title,
		Date:           date.UnixMilli(),
		Type:           in.Type,
		Gear:           in.Gear,
		Metrics:        in.Metrics,
		SampleLikes:    []manifest.Interaction{},
		SampleComments: []manifest.Interaction{},
		Main:           main.Storage,
		Media:          []entity.StorageIdentifier{},
	}

	if in.Thumbnail != nil {
		id, err := stageMedia(b, *in.Thumbnail, secret)
		if err != nil {
			return manifest.PostMeta{}, err
		}
		meta.Thumbnail = &id
	}
	for _, m := range in.Media {
		id, err := stageMedia(b, m, secret)
		if err != nil {
			return manifest.PostMeta{}, err
		}
		meta.Media = append(meta.Media, id)
	}

	pm := s.posts.Value.Clone()
	var pageIndex int

	if len(s.page.Value.Posts) >= s.postLimit {
		pm.Pages = append(pm.Pages, manifest.PageRef{UsedUntil: s.nowMillis(), Page: s.page.Storage})

		next := manifest.PostManifestPage{
			Posts:     []manifest.PostMeta{meta},
			PageIndex: s.page.Value.PageIndex + 1,
		}
		p, e, err := entity.New(next, secret, entity.Encode[manifest.PostManifestPage])
		if err != nil {
			return manifest.PostMeta{}, err
		}
		stage(b, p, e, &s.page)
		pm.CurrentPage = e.Storage
		pageIndex = next.PageIndex

		s.log.Info(ctx, "page sealed", "page", s.page.Value.PageIndex, "next", next.PageIndex)
	} else {
		next := manifest.PostManifestPage{
			Posts:     append([]manifest.PostMeta{meta}, s.page.Value.Posts...),
			PageIndex: s.page.Value.PageIndex,
		}
		p, e, err := entity.Update(s.page, next, entity.Encode[manifest.PostManifestPage], rekey(s.page.Storage, secret))
		if err != nil {
			return manifest.PostMeta{}, err
		}
		stage(b, p, e, &s.page)
		pm.CurrentPage = e.Storage
		pageIndex = next.PageIndex
	}

	pm.Totals.TotalPosts++
	pm.Totals.TotalDerivedMetrics = manifest.AddMetrics(pm.Totals.TotalDerivedMetrics, meta.Metrics)
	if err := s.stagePostManifest(b, pm, secret); err != nil {
		return manifest.PostMeta{}, err
	}

	idx := s.indexes.Clone()
	idx.AddPost(meta, pageIndex)
	if err := s.stageIndexes(b, idx); err != nil {
		return manifest.PostMeta{}, err
	}

	out, err := s.stageOwnBroadcast(ctx, b, PostMessage{Post: meta})
	if err != nil {
		return manifest.PostMeta{}, err
	}

	if err := s.flush(ctx, b); err != nil {
		return manifest.PostMeta{}, fmt.Errorf("store post: %w", err)
	}
	s.log.Info(ctx, "post created", "post", manifest.PostID(meta), "page", pageIndex)

	if err := s.send(ctx, out); err != nil {
		return meta, err
	}
	return meta, nil
}

func stageMedia(b *batch, m Media, secret []byte) (entity.StorageIdentifier, error) {
	blob, err := wire.EncodeBlobWithMime(m.ContentType, m.Data)
	if err != nil {
		return entity.StorageIdentifier{}, err
	}
	p, e, err := entity.New(blob, secret, entity.Raw)
	if err != nil {
		return entity.StorageIdentifier{}, err
	}
	b.add(p, nil)
	return e.Storage, nil
}

// stagePostManifest writes pm, re-keyed to secret if needed, and repoints
// the root manifest when the post manifest's identifier changes.
func (s *Session) stagePostManifest(b *batch, pm manifest.PostManifest, secret []byte) error {
	p, e, err := entity.Update(s.posts, pm, entity.Encode[manifest.PostManifest], rekey(s.posts.Storage, secret))
	if err != nil {
		return err
	}
	stage(b, p, e, &s.posts)

	if s.manifest.Value.PostManifest.Equal(e.Storage) {
		return nil
	}
	root := s.manifest.Value.Clone()
	root.PostManifest = e.Storage
	return s.stageManifest(b, root)
}

func (s *Session) stageManifest(b *batch, root manifest.Manifest) error {
	p, e, err := entity.Update(s.manifest, root, entity.Encode[manifest.Manifest])
	if err != nil {
		return err
	}
	stage(b, p, e, &s.manifest)
	return nil
}

// FindPostMeta looks the post up in the current page, then in sealed pages.
// It returns the meta and the index of the page holding it.
func (s *Session) FindPostMeta(ctx context.Context, postID string) (manifest.PostMeta, int, error) {
	if err := s.ensureLoaded(); err != nil {
		return manifest.PostMeta{}, 0, err
	}
	h, err := s.findPost(ctx, postID)
	if err != nil {
		return manifest.PostMeta{}, 0, err
	}
	return h.page.Value.Posts[h.pos], h.page.Value.PageIndex, nil
}

func (s *Session) findPost(ctx context.Context, postID string) (pageHandle, error) {
	match := func(m manifest.PostMeta) bool { return manifest.PostID(m) == postID }

	if i := slices.IndexFunc(s.page.Value.Posts, match); i >= 0 {
		return pageHandle{page: s.page, current: true, pos: i}, nil
	}

	pages := s.posts.Value.Pages
	for ref := len(pages) - 1; ref >= 0; ref-- {
		page, err := Fetch[manifest.PostManifestPage](ctx, s.remote, pages[ref].Page)
		if err != nil {
			return pageHandle{}, fmt.Errorf("sealed page %d: %w", ref, err)
		}
		if i := slices.IndexFunc(page.Value.Posts, match); i >= 0 {
			return pageHandle{page: page, ref: ref, pos: i}, nil
		}
	}
	return pageHandle{}, fmt.Errorf("%w: post %s", common.ErrorNotFound, postID)
}

// ReplaceInPage stores an updated meta in place of the post with the same id.
func (s *Session) ReplaceInPage(ctx context.Context, meta manifest.PostMeta) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	secret, err := s.postSecret(ctx, s.ownGroup.Value.GroupState)
	if err != nil {
		return err
	}
	h, err := s.findPost(ctx, manifest.PostID(meta))
	if err != nil {
		return err
	}

	b := &batch{}
	if err := s.stageReplace(b, h, meta, secret); err != nil {
		return err
	}
	return s.flush(ctx, b)
}

// stageReplace writes the page in h with meta at its position and
// propagates a changed page identifier to the post manifest.
func (s *Session) stageReplace(b *batch, h pageHandle, meta manifest.PostMeta, secret []byte) error {
	next := manifest.PostManifestPage{
		Posts:     slices.Clone(h.page.Value.Posts),
		PageIndex: h.page.Value.PageIndex,
	}
	next.Posts[h.pos] = meta

	p, e, err := entity.Update(h.page, next, entity.Encode[manifest.PostManifestPage], rekey(h.page.Storage, secret))
	if err != nil {
		return err
	}

	pm := s.posts.Value.Clone()
	if h.current {
		stage(b, p, e, &s.page)
		pm.CurrentPage = e.Storage
	} else {
		b.add(p, nil)
		pm.Pages[h.ref].Page = e.Storage
	}

	if e.Storage.Equal(h.page.Storage) && rekey(s.posts.Storage, secret) == nil {
		return nil
	}
	return s.stagePostManifest(b, pm, secret)
}

// GetPage returns page n of the own listing. A negative n selects the
// current page.
func (s *Session) GetPage(ctx context.Context, n int) (manifest.PostManifestPage, error) {
	if err := s.ensureLoaded(); err != nil {
		return manifest.PostManifestPage{}, err
	}
	if n < 0 || n == s.page.Value.PageIndex {
		return s.page.Value, nil
	}
	return s.fetchSealedPage(ctx, s.posts.Value, n)
}

func (s *Session) fetchSealedPage(ctx context.Context, pm manifest.PostManifest, n int) (manifest.PostManifestPage, error) {
	if n < 0 || n >= len(pm.Pages) {
		return manifest.PostManifestPage{}, fmt.Errorf("%w: page %d", common.ErrorNotFound, n)
	}
	page, err := Fetch[manifest.PostManifestPage](ctx, s.remote, pm.Pages[n].Page)
	if err != nil {
		return manifest.PostManifestPage{}, err
	}
	if page.Value.PageIndex != n {
		return manifest.PostManifestPage{}, fmt.Errorf("page %d stored at position %d", page.Value.PageIndex, n)
	}
	return page.Value, nil
}

// FetchPostBody returns the main content of a post.
func (s *Session) FetchPostBody(ctx context.Context, meta manifest.PostMeta) ([]byte, error) {
	body, _, err := s.remote.FetchRaw(ctx, meta.Main)
	return body, err
}

// FetchMedia returns a thumbnail or media item with its content type.
func (s *Session) FetchMedia(ctx context.Context, id entity.StorageIdentifier) (string, []byte, error) {
	blob, _, err := s.remote.FetchRaw(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return wire.DecodeBlobWithMime(blob)
}
