package messages

import (
	"context"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
)

// Repository stores point-to-point messages and their per-recipient delivery state.
type Repository interface {
	// Create stores msg and one pending delivery row per recipient.
	Create(ctx context.Context, msg *models.Message, recipients []string) error

	// Pending lists unacknowledged, unexpired messages for recipientID, oldest first.
	Pending(ctx context.Context, recipientID string, now time.Time) ([]*models.Message, error)

	// MarkReceived acknowledges one delivery. Returns common.ErrorNotFound when
	// recipientID has no delivery row for messageID.
	MarkReceived(ctx context.Context, recipientID, messageID string, now time.Time) error

	// DeleteExpired removes messages whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
