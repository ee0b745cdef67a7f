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

var _ repository.ProductRepository = (*productRepo)(nil)

type productRepo struct{ pool *pgxpool.Pool }

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

const productColumns = `id, name, currency, total_price, payment_model, requires_signature, deposit_percent_bp, deposit_amount, installment_count, installment_every, subscription_interval, trial_days, created_at, updated_at`

func (r *productRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (
  id, name, currency, total_price, payment_model, requires_signature, deposit_percent_bp, deposit_amount, installment_count, installment_every, subscription_interval, trial_days, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  name=$2, currency=$3, total_price=$4, payment_model=$5, requires_signature=$6, deposit_percent_bp=$7, deposit_amount=$8, installment_count=$9, installment_every=$10, subscription_interval=$11, trial_days=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Currency, p.TotalPrice, p.PaymentModel, p.RequiresSignature,
		p.DepositPercentBP, p.DepositAmount, p.InstallmentCount, int64(p.InstallmentEvery),
		int64(p.SubscriptionInterval), p.TrialDays, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *productRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProduct(row)
}

func (r *productRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	var every, interval int64
	err := row.Scan(&p.ID, &p.Name, &p.Currency, &p.TotalPrice, &p.PaymentModel,
		&p.RequiresSignature, &p.DepositPercentBP, &p.DepositAmount, &p.InstallmentCount,
		&every, &interval, &p.TrialDays, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.InstallmentEvery = time.Duration(every)
	p.SubscriptionInterval = time.Duration(interval)
	return p, nil
}
