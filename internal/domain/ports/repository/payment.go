package repository

import (
	"context"

	"lms-enrollment-engine/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByChargeRef(ctx context.Context, tx Tx, chargeRef string) (*model.Payment, error)
	// FindInitialByEnrollment locates a payment collected during checkout
	// before the schedule existed (repair path): enrollment + amount, no
	// schedule link yet.
	FindInitialByEnrollment(ctx context.Context, tx Tx, enrollmentID string, amount int64) (*model.Payment, error)
	ListByEnrollment(ctx context.Context, tx Tx, enrollmentID string) ([]*model.Payment, error)
	SumRefunded(ctx context.Context, tx Tx, enrollmentID string) (int64, error)
	DeleteByEnrollment(ctx context.Context, tx Tx, enrollmentID string) error
}
