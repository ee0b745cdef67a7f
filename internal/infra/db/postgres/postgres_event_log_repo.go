package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/repository"
)

var _ repository.EventLogRepository = (*eventLogRepo)(nil)

type eventLogRepo struct{ pool *pgxpool.Pool }

func NewEventLogRepo(pool *pgxpool.Pool) *eventLogRepo {
	return &eventLogRepo{pool: pool}
}

const eventColumns = `event_id, provider, event_type, charge_ref, amount, enrollment_id, payload, received_at, processed_at, last_error, last_error_kind`

// Record appends the event, leaning on UNIQUE(provider, event_id) for
// idempotency. Zero rows affected means the pair was already logged.
func (r *eventLogRepo) Record(ctx context.Context, tx repository.Tx, ev *model.ProviderEvent) (bool, error) {
	const q = `
INSERT INTO provider_events (
  event_id, provider, event_type, charge_ref, amount, enrollment_id, payload, received_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (provider, event_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		ev.EventID, ev.Provider, ev.Type, ev.ChargeRef, ev.Amount, ev.EnrollmentID,
		ev.Payload, ev.ReceivedAt)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *eventLogRepo) FindForUpdate(ctx context.Context, tx repository.Tx, provider, eventID string) (*model.ProviderEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM provider_events WHERE provider=$1 AND event_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", provider, eventID)
	if err != nil {
		return nil, err
	}
	return scanEvent(row)
}

func (r *eventLogRepo) MarkProcessed(ctx context.Context, tx repository.Tx, provider, eventID string, at time.Time) error {
	const q = `UPDATE provider_events SET processed_at=$3, last_error=NULL, last_error_kind='' WHERE provider=$1 AND event_id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, provider, eventID, at)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventLogRepo) MarkFailed(ctx context.Context, tx repository.Tx, provider, eventID string, kind model.ErrorKind, reason string) error {
	const q = `UPDATE provider_events SET last_error=$3, last_error_kind=$4 WHERE provider=$1 AND event_id=$2 AND processed_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, provider, eventID, reason, kind)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *eventLogRepo) ListUnprocessed(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.ProviderEvent, error) {
	const q = `
SELECT ` + eventColumns + `
FROM provider_events
WHERE processed_at IS NULL AND received_at < $1
ORDER BY received_at
LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.ProviderEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *eventLogRepo) ListOrphans(ctx context.Context, tx repository.Tx, limit int) ([]*model.ProviderEvent, error) {
	const q = `
SELECT ` + eventColumns + `
FROM provider_events
WHERE processed_at IS NULL AND last_error_kind=$1
ORDER BY received_at
LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, model.ErrorKindOrphan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.ProviderEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (*model.ProviderEvent, error) {
	ev := &model.ProviderEvent{}
	err := row.Scan(&ev.EventID, &ev.Provider, &ev.Type, &ev.ChargeRef, &ev.Amount,
		&ev.EnrollmentID, &ev.Payload, &ev.ReceivedAt, &ev.ProcessedAt, &ev.LastError,
		&ev.LastErrorKind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return ev, nil
}
