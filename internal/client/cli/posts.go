package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/feed"
	"github.com/dmitrijs2005/feedkeeper/internal/filex"
	"github.com/dmitrijs2005/feedkeeper/internal/index"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

const mediaDir = "media"

// Post prompts for a title, category, metrics, body and attachments and
// publishes the post to every follower.
func (a *App) Post(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	ask := a.ask()
	title, err := ask.Required("Title")
	if err != nil {
		return err
	}
	kind, err := ask.Field("Type (run, ride, swim...)")
	if err != nil {
		return err
	}
	gear, err := ask.Field("Gear (optional)")
	if err != nil {
		return err
	}
	metrics, err := ask.Metrics()
	if err != nil {
		return err
	}
	body, err := ask.Text("Description")
	if err != nil {
		return err
	}
	thumbPath, err := ask.Field("Thumbnail file (optional)")
	if err != nil {
		return err
	}
	mediaPaths, err := ask.Paths("Media files")
	if err != nil {
		return err
	}

	in := feed.PostInput{
		Title:   title,
		Date:    time.Now(),
		Type:    kind,
		Gear:    gear,
		Metrics: metrics,
		Body:    []byte(body),
	}
	if thumbPath != "" {
		m, err := readMedia(thumbPath)
		if err != nil {
			return err
		}
		in.Thumbnail = &m
	}
	for _, p := range mediaPaths {
		m, err := readMedia(p)
		if err != nil {
			return err
		}
		in.Media = append(in.Media, m)
	}

	var meta manifest.PostMeta
	err = a.withSession(func(s feedSession) error {
		meta, err = s.CreatePost(ctx, in)
		return err
	})
	if err != nil {
		return err
	}
	printlnFn("Posted", manifest.PostID(meta))
	return nil
}

func readMedia(path string) (feed.Media, error) {
	ct, data, err := filex.ReadAttachment(path)
	if err != nil {
		return feed.Media{}, err
	}
	return feed.Media{ContentType: ct, Data: data}, nil
}

// parseMetrics reads distance and elevation in meters and duration either as
// a Go duration or as seconds.
func parseMetrics(pairs []string) (manifest.DerivedMetrics, error) {
	var m manifest.DerivedMetrics
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return m, fmt.Errorf("bad metric %q, want name=value", p)
		}
		name, value = strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)

		if name == "duration" {
			if d, err := time.ParseDuration(value); err == nil {
				m.Duration = d.Seconds()
				continue
			}
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return m, fmt.Errorf("bad value for %s: %w", name, err)
		}
		switch name {
		case "distance":
			m.Distance = f
		case "elevation":
			m.Elevation = f
		case "duration":
			m.Duration = f
		default:
			return m, fmt.Errorf("unknown metric %q", name)
		}
	}
	return m, nil
}

// Timeline prints the newest posts of every followee.
func (a *App) Timeline(ctx context.Context) error {
	var items []feed.TimelineItem
	err := a.withSession(func(s feedSession) error {
		var err error
		items, err = s.Timeline(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("Timeline is empty")
		return nil
	}
	for _, it := range items {
		printlnFn(formatPost(it.UserID, it.Post))
	}
	return nil
}

// Page prints one page of the own listing ("page <n>") or of a followee's
// ("page <user> <n>"). Without a number the current page is shown.
func (a *App) Page(ctx context.Context, args []string) error {
	owner, n := "", -1
	switch len(args) {
	case 0:
	case 1:
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		} else {
			owner = args[0]
		}
	case 2:
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad page number %q", args[1])
		}
		owner, n = args[0], v
	default:
		return errors.New("usage: page [user] [n]")
	}

	var page manifest.PostManifestPage
	err := a.withSession(func(s feedSession) error {
		var err error
		if owner == "" {
			page, err = s.GetPage(ctx, n)
		} else {
			page, err = s.FolloweePage(ctx, owner, n)
		}
		return err
	})
	if err != nil {
		return err
	}

	who := owner
	if who == "" {
		who = "me"
	}
	printlnFn(fmt.Sprintf("Page %d of %s, %d post(s)", page.PageIndex, who, len(page.Posts)))
	for _, p := range page.Posts {
		printlnFn(formatPost(owner, p))
	}
	return nil
}

// Show prints the body of an own post and saves its attachments under the
// media directory.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <post>")
	}

	return a.withSession(func(s feedSession) error {
		meta, _, err := s.FindPostMeta(ctx, args[0])
		if err != nil {
			return err
		}
		body, err := s.FetchPostBody(ctx, meta)
		if err != nil {
			return err
		}
		printlnFn(formatPost("", meta))
		printlnFn(string(body))

		if meta.Thumbnail == nil && len(meta.Media) == 0 {
			return nil
		}
		dir, err := filex.EnsureSubDir(mediaDir)
		if err != nil {
			return err
		}
		ids := meta.Media
		if meta.Thumbnail != nil {
			ids = append([]entity.StorageIdentifier{*meta.Thumbnail}, ids...)
		}
		for i, id := range ids {
			ct, data, err := s.FetchMedia(ctx, id)
			if err != nil {
				return err
			}
			path, err := filex.SaveMedia(dir, fmt.Sprintf("%s-%d", args[0], i), ct, data)
			if err != nil {
				return err
			}
			printlnFn("Saved", path)
		}
		return nil
	})
}

// Search prints own posts whose titles contain every given word.
func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: search <words>")
	}

	var hits []index.Hit
	err := a.withSession(func(s feedSession) error {
		var err error
		hits, err = s.SearchByTitle(strings.Join(args, " "))
		return err
	})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		printlnFn("Nothing found")
		return nil
	}
	for _, h := range hits {
		printlnFn(fmt.Sprintf("%s  %s  %s  page %d", h.PostID, time.UnixMilli(h.Locator.Date).Format(time.DateOnly), h.Locator.Title, h.Locator.PageIndex))
	}
	return nil
}

func formatPost(owner string, p manifest.PostMeta) string {
	var b strings.Builder
	if owner != "" {
		b.WriteString(owner + "  ")
	}
	fmt.Fprintf(&b, "%s  %s  %q", manifest.PostID(p), time.UnixMilli(p.Date).Format(time.DateTime), p.Title)
	if p.Type != "" {
		fmt.Fprintf(&b, " [%s]", p.Type)
	}
	if p.Metrics.Distance > 0 {
		fmt.Fprintf(&b, " %.0fm", p.Metrics.Distance)
	}
	if p.Metrics.Duration > 0 {
		fmt.Fprintf(&b, " %s", time.Duration(p.Metrics.Duration*float64(time.Second)))
	}
	fmt.Fprintf(&b, "  likes %d, comments %d", p.TotalLikes, p.TotalComments)
	return b.String()
}
