// Package httpapi exposes the content store, follow relation, message
// broker and avatars over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

const shutdownTimeout = 5 * time.Second

type ContentService interface {
	BatchPut(ctx context.Context, uploaderID string, records []wire.Record) error
	BatchGet(ctx context.Context, requesterID string, ids [][]byte) (map[string]api.Object, error)
}

type FollowService interface {
	Grant(ctx context.Context, followeeID, followerID string) error
	Revoke(ctx context.Context, followeeID, followerID string) error
}

type MessageService interface {
	Send(ctx context.Context, senderID string, payload []byte, recipients []string) (string, error)
	Receive(ctx context.Context, recipientID string) ([]*models.Message, error)
	Ack(ctx context.Context, recipientID string, ids []string) error
}

type AvatarService interface {
	Put(ctx context.Context, userID, contentType string, image []byte) error
	Get(ctx context.Context, userID string) (string, []byte, error)
}

// Services groups the use cases served by the API.
type Services struct {
	Content  ContentService
	Follows  FollowService
	Messages MessageService
	Avatars  AvatarService
}

type Server struct {
	address        string
	services       Services
	jwtSecret      []byte
	maxUploadBytes int64
	metrics        *metricsController
	logger         logging.Logger
}

func NewServer(address string, s Services, secretKey string, maxUploadBytes int64, l logging.Logger) *Server {
	return &Server{
		address:        address,
		services:       s,
		jwtSecret:      []byte(secretKey),
		maxUploadBytes: maxUploadBytes,
		metrics:        newMetricsController(),
		logger:         l.With("module", "http_server"),
	}
}

// Handler builds the routed and instrumented handler tree.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", s.metrics.MetricsHTTPHandler()).Methods(http.MethodGet)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/content/batch", s.handleBatchPut).Methods(http.MethodPut)
	authed.HandleFunc("/content/batch", s.handleBatchGet).Methods(http.MethodPost)

	authed.HandleFunc("/follows/{followerId}", s.handleGrant).Methods(http.MethodPut)
	authed.HandleFunc("/follows/{followerId}", s.handleRevoke).Methods(http.MethodDelete)

	authed.HandleFunc("/messages", s.handleSend).Methods(http.MethodPost)
	authed.HandleFunc("/messages", s.handleReceive).Methods(http.MethodGet)
	authed.HandleFunc("/messages/ack", s.handleAck).Methods(http.MethodPost)

	authed.HandleFunc("/avatar", s.handlePutAvatar).Methods(http.MethodPut)
	authed.HandleFunc("/avatar/{userId}", s.handleGetAvatar).Methods(http.MethodGet)

	return s.accessLog(router)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
