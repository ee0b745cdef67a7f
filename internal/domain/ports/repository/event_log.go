package repository

import (
	"context"
	"time"

	"lms-enrollment-engine/internal/domain/model"
)

// EventLogRepository is the append-only provider event log. The storage layer
// carries a UNIQUE(provider, event_id) constraint: Record relies on it as the
// authoritative idempotency guard rather than an application-level
// check-then-act.
type EventLogRepository interface {
	// Record durably appends the event. Returns inserted=false (and no error)
	// when the (provider, event id) pair already exists.
	Record(ctx context.Context, tx Tx, ev *model.ProviderEvent) (inserted bool, err error)
	// FindForUpdate loads the event row, locking it when inside a transaction
	// so two concurrent deliveries cannot both apply side effects.
	FindForUpdate(ctx context.Context, tx Tx, provider, eventID string) (*model.ProviderEvent, error)
	MarkProcessed(ctx context.Context, tx Tx, provider, eventID string, at time.Time) error
	// MarkFailed stores both the classified kind and the human-readable reason
	// on the retained row.
	MarkFailed(ctx context.Context, tx Tx, provider, eventID string, kind model.ErrorKind, reason string) error
	ListUnprocessed(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.ProviderEvent, error)
	// ListOrphans filters in the query, so the limit bounds orphans and a page
	// of other unprocessed events can never hide one.
	ListOrphans(ctx context.Context, tx Tx, limit int) ([]*model.ProviderEvent, error)
}
