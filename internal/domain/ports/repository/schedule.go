package repository

import (
	"context"
	"time"

	"lms-enrollment-engine/internal/domain/model"
)

type ScheduleRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PaymentSchedule) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentSchedule, error)
	FindByChargeRef(ctx context.Context, tx Tx, chargeRef string) (*model.PaymentSchedule, error)
	ListByEnrollment(ctx context.Context, tx Tx, enrollmentID string) ([]*model.PaymentSchedule, error)
	CountByEnrollment(ctx context.Context, tx Tx, enrollmentID string) (int, error)
	// FindBestMatch is the fallback resolution used only by recovery tooling:
	// enrollment + amount + type, pending/failed rows only. More than one
	// candidate is ErrAmbiguousMatch, never a silent pick.
	FindBestMatch(ctx context.Context, tx Tx, enrollmentID string, amount int64, pt model.PaymentType) (*model.PaymentSchedule, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ScheduleStatus, chargeRef string, paidAt *time.Time) error
	// SumPaid sums the amounts of all paid/partially_refunded/refunded rows;
	// refunds are subtracted from the payment side, not here.
	SumPaid(ctx context.Context, tx Tx, enrollmentID string) (int64, error)
	MaxPaymentNumber(ctx context.Context, tx Tx, enrollmentID string) (int, error)
	ListPendingWithChargeRef(ctx context.Context, tx Tx, enrollmentID string) ([]*model.PaymentSchedule, error)
	DeleteByEnrollment(ctx context.Context, tx Tx, enrollmentID string) error
}
