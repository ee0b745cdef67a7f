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

var _ repository.ScheduleRepository = (*scheduleRepo)(nil)

type scheduleRepo struct{ pool *pgxpool.Pool }

func NewScheduleRepo(pool *pgxpool.Pool) *scheduleRepo {
	return &scheduleRepo{pool: pool}
}

const scheduleColumns = `id, enrollment_id, payment_number, payment_type, amount, currency, due_date, status, charge_ref, paid_at, created_at, updated_at`

func (r *scheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSchedule) error {
	const q = `
INSERT INTO payment_schedules (
  id, enrollment_id, payment_number, payment_type, amount, currency, due_date, status, charge_ref, paid_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$8, charge_ref=$9, paid_at=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.EnrollmentID, s.PaymentNumber, s.PaymentType, s.Amount, s.Currency,
		s.DueDate, s.Status, s.ChargeRef, s.PaidAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// (enrollment_id, payment_number) collision: another generator won.
			return domain.ErrScheduleExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *scheduleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentSchedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM payment_schedules WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanSchedule(row)
}

func (r *scheduleRepo) FindByChargeRef(ctx context.Context, tx repository.Tx, chargeRef string) (*model.PaymentSchedule, error) {
	if chargeRef == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + scheduleColumns + ` FROM payment_schedules WHERE charge_ref=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", chargeRef)
	if err != nil {
		return nil, err
	}
	return scanSchedule(row)
}

func (r *scheduleRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) ([]*model.PaymentSchedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM payment_schedules WHERE enrollment_id=$1 ORDER BY payment_number;`
	return r.list(ctx, tx, q, enrollmentID)
}

func (r *scheduleRepo) CountByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payment_schedules WHERE enrollment_id=$1;`, enrollmentID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *scheduleRepo) FindBestMatch(ctx context.Context, tx repository.Tx, enrollmentID string, amount int64, pt model.PaymentType) (*model.PaymentSchedule, error) {
	q := `SELECT ` + scheduleColumns + `
FROM payment_schedules
WHERE enrollment_id=$1 AND amount=$2 AND status IN ('pending','failed')`
	args := []interface{}{enrollmentID, amount}
	if pt != "" {
		q += ` AND payment_type=$3`
		args = append(args, pt)
	}
	q += ` ORDER BY payment_number;`

	matches, err := r.list(ctx, tx, q, args...)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, domain.ErrAmbiguousMatch
	}
}

func (r *scheduleRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ScheduleStatus, chargeRef string, paidAt *time.Time) error {
	const q = `
UPDATE payment_schedules
SET status=$2,
    charge_ref=CASE WHEN $3 <> '' THEN $3 ELSE charge_ref END,
    paid_at=COALESCE($4, paid_at),
    updated_at=NOW()
WHERE id=$1;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, chargeRef, paidAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *scheduleRepo) SumPaid(ctx context.Context, tx repository.Tx, enrollmentID string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount), 0)
FROM payment_schedules
WHERE enrollment_id=$1 AND status IN ('paid','partially_refunded','refunded');`

	row, err := pickRow(ctx, r.pool, tx, q, enrollmentID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *scheduleRepo) MaxPaymentNumber(ctx context.Context, tx repository.Tx, enrollmentID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT COALESCE(MAX(payment_number), 0) FROM payment_schedules WHERE enrollment_id=$1;`, enrollmentID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *scheduleRepo) ListPendingWithChargeRef(ctx context.Context, tx repository.Tx, enrollmentID string) ([]*model.PaymentSchedule, error) {
	q := `SELECT ` + scheduleColumns + `
FROM payment_schedules
WHERE enrollment_id=$1 AND status='pending' AND charge_ref <> ''
ORDER BY payment_number;`
	return r.list(ctx, tx, q, enrollmentID)
}

func (r *scheduleRepo) DeleteByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM payment_schedules WHERE enrollment_id=$1;`, enrollmentID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *scheduleRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentSchedule, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scanSchedule(row pgx.Row) (*model.PaymentSchedule, error) {
	s := &model.PaymentSchedule{}
	err := row.Scan(&s.ID, &s.EnrollmentID, &s.PaymentNumber, &s.PaymentType, &s.Amount,
		&s.Currency, &s.DueDate, &s.Status, &s.ChargeRef, &s.PaidAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
