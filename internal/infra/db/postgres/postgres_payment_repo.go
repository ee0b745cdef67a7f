package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, enrollment_id, schedule_id, amount, currency, status, refunded_amount, refunded_at, charge_ref, meta, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO payments (
  id, enrollment_id, schedule_id, amount, currency, status, refunded_amount, refunded_at, charge_ref, meta, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  schedule_id=$3, status=$6, refunded_amount=$7, refunded_at=$8, charge_ref=$9, meta=$10, updated_at=$12;`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.EnrollmentID, p.ScheduleID, p.Amount, p.Currency, p.Status,
		p.RefundedAmount, p.RefundedAt, p.ChargeRef, meta, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByChargeRef(ctx context.Context, tx repository.Tx, chargeRef string) (*model.Payment, error) {
	if chargeRef == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE charge_ref=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", chargeRef)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindInitialByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string, amount int64) (*model.Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE enrollment_id=$1 AND amount=$2 AND schedule_id IS NULL AND status='succeeded'
ORDER BY created_at
LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, enrollmentID, amount)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, enrollmentID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) SumRefunded(ctx context.Context, tx repository.Tx, enrollmentID string) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT COALESCE(SUM(refunded_amount), 0) FROM payments WHERE enrollment_id=$1;`, enrollmentID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *paymentRepo) DeleteByEnrollment(ctx context.Context, tx repository.Tx, enrollmentID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM payments WHERE enrollment_id=$1;`, enrollmentID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var meta []byte
	err := row.Scan(&p.ID, &p.EnrollmentID, &p.ScheduleID, &p.Amount, &p.Currency,
		&p.Status, &p.RefundedAmount, &p.RefundedAt, &p.ChargeRef, &meta, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}
