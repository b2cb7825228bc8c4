// Package server wires the content server together: configuration, the
// Postgres pointer store and its migrations, the blob backend, the services
// and the HTTP API, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore/localfs"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore/s3blob"
	"github.com/dmitrijs2005/feedkeeper/internal/server/config"
	"github.com/dmitrijs2005/feedkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/feedkeeper/internal/server/services"
)

const sweepInterval = time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	messages *services.MessageService
	http     *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	ms := services.NewMessageService(db, rm, c.MessageTTL, logger)
	srv := httpapi.NewServer(c.EndpointAddr, httpapi.Services{
		Content:  services.NewContentService(db, rm, blobs, logger),
		Follows:  services.NewFollowService(db, rm, logger),
		Messages: ms,
		Avatars:  services.NewAvatarService(blobs, logger),
	}, c.SecretKey, c.MaxUploadBytes, logger)

	return &App{config: c, logger: logger, db: db, messages: ms, http: srv}, nil
}

func newBlobStore(ctx context.Context, c *config.Config, logger logging.Logger) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendLocalFS:
		return localfs.New(c.BlobRoot, logger)
	case config.BlobBackendS3:
		return s3blob.NewFromOptions(ctx, s3blob.Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// sweepLoop drops expired messages until ctx is done.
func sweepLoop(ctx context.Context, interval time.Duration, sweep func(context.Context) (int64, error), logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweep(ctx); err != nil {
				logger.Error(ctx, "message sweep failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		sweepLoop(ctx, sweepInterval, app.messages.Sweep, app.logger)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
