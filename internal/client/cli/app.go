package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/client/cache"
	"github.com/dmitrijs2005/feedkeeper/internal/client/config"
	"github.com/dmitrijs2005/feedkeeper/internal/client/messaging"
	"github.com/dmitrijs2005/feedkeeper/internal/client/storage"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/feed"
	"github.com/dmitrijs2005/feedkeeper/internal/group/ratchet"
	"github.com/dmitrijs2005/feedkeeper/internal/index"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
	"github.com/dmitrijs2005/feedkeeper/internal/netx"
)

var errNotLoggedIn = errors.New("not logged in")

// feedSession is the part of feed.Session the commands drive.
type feedSession interface {
	Bootstrap(ctx context.Context) error
	CreatePost(ctx context.Context, in feed.PostInput) (manifest.PostMeta, error)
	Timeline(ctx context.Context) ([]feed.TimelineItem, error)
	GetPage(ctx context.Context, n int) (manifest.PostManifestPage, error)
	FolloweePage(ctx context.Context, followeeID string, n int) (manifest.PostManifestPage, error)
	FindPostMeta(ctx context.Context, postID string) (manifest.PostMeta, int, error)
	FetchPostBody(ctx context.Context, meta manifest.PostMeta) ([]byte, error)
	FetchMedia(ctx context.Context, id entity.StorageIdentifier) (string, []byte, error)
	RequestFollow(ctx context.Context, followeeID string) error
	AllowFollow(ctx context.Context, followerID string) error
	FollowRequests() manifest.FollowRequests
	Following() []string
	Followers() ([]string, error)
	ProcessIncoming(ctx context.Context) (int, error)
	LikePost(ctx context.Context, posterID, postID string) error
	UnlikePost(ctx context.Context, posterID, postID string) error
	CommentPost(ctx context.Context, posterID, postID, text string) error
	SearchByTitle(query string) ([]index.Hit, error)
}

// avatarStore reads and writes the public profile pictures.
type avatarStore interface {
	PutAvatar(ctx context.Context, contentType string, image []byte) error
	GetAvatar(ctx context.Context, userID string) (string, []byte, error)
}

type App struct {
	config     *config.Config
	log        logging.Logger
	newSession func(feed.Config) feedSession
	avatars    avatarStore
	closeFn    func() error

	mu       sync.Mutex
	session  feedSession
	userName string

	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the cached content store, the message broker client and the
// group implementation behind a session factory.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stderr, c.LogLevel)

	storageHTTP := netx.New(c.StorageURL, c.AccessToken, c.RequestTimeout, c.RetryMaxElapsed, netx.WithLogger(logger))
	messagesHTTP := netx.New(c.MessagesURL, c.AccessToken, c.RequestTimeout, c.RetryMaxElapsed, netx.WithLogger(logger))

	objects, err := cache.Open(ctx, c.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	remote := storage.New(storageHTTP)
	store := cache.NewCachingStore(remote, objects, logger)
	messenger := messaging.New(messagesHTTP)
	groups := ratchet.New()

	newSession := func(fc feed.Config) feedSession {
		fc.Group = groups
		fc.Store = store
		fc.Messenger = messenger
		fc.Access = remote
		fc.Logger = logger
		return feed.NewSession(fc)
	}

	return &App{
		config:     c,
		log:        logger,
		newSession: newSession,
		avatars:    remote,
		closeFn:    objects.Close,
		reader:     bufio.NewReader(os.Stdin),
		out:        os.Stdout,
	}, nil
}

// Run blocks in the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if a.closeFn != nil {
			_ = a.closeFn()
		}
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}

// withSession runs fn on the current session while holding the lock, so the
// background poller and the REPL never use it concurrently.
func (a *App) withSession(fn func(s feedSession) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return errNotLoggedIn
	}
	return fn(a.session)
}

// StartInboxPoller drains the inbox every interval until ctx is done.
func (a *App) StartInboxPoller(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.pollInbox(ctx)

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) pollInbox(ctx context.Context) {
	var n int
	err := a.withSession(func(s feedSession) error {
		pollCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
		var err error
		n, err = s.ProcessIncoming(pollCtx)
		return err
	})
	switch {
	case errors.Is(err, errNotLoggedIn):
	case err != nil:
		a.log.Warn(ctx, "inbox poll failed", "error", err)
	case n > 0:
		a.log.Info(ctx, "inbox processed", "messages", n)
	}
}
