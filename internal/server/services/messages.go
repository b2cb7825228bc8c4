package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
	"github.com/dmitrijs2005/feedkeeper/internal/server/repositories/repomanager"
)

// MessageService is the store-and-forward channel between peers. Payloads
// are opaque to the server.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	now         func() time.Time
	log         logging.Logger
}

func NewMessageService(db *sql.DB, rm repomanager.RepositoryManager, ttl time.Duration, logger logging.Logger) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: rm,
		ttl:         ttl,
		now:         time.Now,
		log:         logger.With("module", "messages"),
	}
}

// Send queues payload for every distinct recipient and returns the message id.
func (s *MessageService) Send(ctx context.Context, senderID string, payload []byte, recipients []string) (string, error) {
	recipients = lo.Uniq(lo.Compact(recipients))
	if len(recipients) == 0 {
		return "", common.MalformedError("no recipients")
	}
	if len(payload) == 0 {
		return "", common.MalformedError("empty payload")
	}

	now := s.now()
	msg := &models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Messages(tx).Create(ctx, msg, recipients)
	})
	if err != nil {
		return "", err
	}

	s.log.Debug(ctx, "message queued", "id", msg.ID, "sender", senderID, "recipients", len(recipients))
	return msg.ID, nil
}

// Receive lists messages waiting for recipientID.
func (s *MessageService) Receive(ctx context.Context, recipientID string) ([]*models.Message, error) {
	return s.repomanager.Messages(s.db).Pending(ctx, recipientID, s.now())
}

// Ack acknowledges all ids or none. An id without a delivery row for
// recipientID fails the whole call with common.ErrorNotFound.
func (s *MessageService) Ack(ctx context.Context, recipientID string, ids []string) error {
	if len(ids) == 0 {
		return common.MalformedError("no message ids")
	}

	now := s.now()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Messages(tx)
		for _, id := range lo.Uniq(ids) {
			if err := repo.MarkReceived(ctx, recipientID, id, now); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("%w: %s", common.ErrorNotFound, id)
				}
				return err
			}
		}
		return nil
	})
}

// Sweep deletes expired messages.
func (s *MessageService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Messages(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(ctx, "expired messages removed", "count", n)
	}
	return n, nil
}
