// File: internal/usecase/enrollment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/adapter"
	"lms-enrollment-engine/internal/domain/ports/repository"
	"lms-enrollment-engine/internal/infra/metrics"
	red "lms-enrollment-engine/internal/infra/redis"
)

// Compile-time check
var _ EnrollmentUseCase = (*enrollmentUC)(nil)

type EnrollmentUseCase interface {
	// CreateEnrollment resolves the product's payment model, persists the
	// enrollment with its full schedule atomically, and optionally initiates
	// the first charge with the provider. The caller receives either a fully
	// populated schedule or a typed failure, never a partial one.
	CreateEnrollment(ctx context.Context, userID, productID string, totalAmount int64, collectNow bool) (*model.Enrollment, []*model.PaymentSchedule, error)
	// GenerateSchedule generates schedule rows for an enrollment that has
	// none yet (repair path). A no-op if rows already exist.
	GenerateSchedule(ctx context.Context, enrollmentID string) ([]*model.PaymentSchedule, error)
	// RefreshSignature pulls the e-sign status and re-evaluates the gate.
	RefreshSignature(ctx context.Context, enrollmentID string) (*model.Enrollment, error)
	// CancelAbandoned voids initiated-but-unconfirmed charges with the
	// provider and cancels the enrollment.
	CancelAbandoned(ctx context.Context, enrollmentID string) error
	// DeleteEnrollment removes payments, schedules then the enrollment in one
	// transaction (data-deletion requests).
	DeleteEnrollment(ctx context.Context, enrollmentID string) error
}

type enrollmentUC struct {
	products    repository.ProductRepository
	enrollments repository.EnrollmentRepository
	schedules   repository.ScheduleRepository
	payments    repository.PaymentRepository
	gateway     adapter.PaymentGateway
	signatures  adapter.SignatureProvider
	reconciler  ReconcileUseCase
	tm          repository.TransactionManager
	locker      red.Locker
	log         *zerolog.Logger
}

func NewEnrollmentUseCase(
	products repository.ProductRepository,
	enrollments repository.EnrollmentRepository,
	schedules repository.ScheduleRepository,
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	signatures adapter.SignatureProvider,
	reconciler ReconcileUseCase,
	tm repository.TransactionManager,
	locker red.Locker,
	logger *zerolog.Logger,
) *enrollmentUC {
	return &enrollmentUC{
		products:    products,
		enrollments: enrollments,
		schedules:   schedules,
		payments:    payments,
		gateway:     gateway,
		signatures:  signatures,
		reconciler:  reconciler,
		tm:          tm,
		locker:      locker,
		log:         logger,
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func (u *enrollmentUC) CreateEnrollment(ctx context.Context, userID, productID string, totalAmount int64, collectNow bool) (*model.Enrollment, []*model.PaymentSchedule, error) {
	product, err := u.products.FindByID(ctx, nil, productID)
	if err != nil {
		return nil, nil, err
	}

	// Resolve before anything is persisted: invalid parameters abort checkout
	// with no partial schedule.
	now := time.Now()
	enr, err := model.NewEnrollment(uuid.NewString(), userID, product, totalAmount)
	if err != nil {
		return nil, nil, err
	}
	charges, err := model.ResolvePlan(product, enr.TotalAmount, now)
	if err != nil {
		return nil, nil, err
	}

	rows := buildScheduleRows(enr, charges, now)

	err = u.withEnrollmentLock(ctx, enr.ID, func(ctx context.Context, tx repository.Tx) error {
		if err := u.enrollments.Save(ctx, tx, enr); err != nil {
			return err
		}
		for _, s := range rows {
			if err := u.schedules.Save(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.IncEnrollmentCreated(string(product.PaymentModel))

	if collectNow && len(rows) > 0 {
		if err := u.initiateFirstCharge(ctx, enr, rows[0]); err != nil {
			// The schedule stays pending; a provider timeout here must never
			// optimistically mark anything paid.
			u.log.Error().Err(err).Str("enrollment_id", enr.ID).Msg("initial charge initiation failed")
			return enr, rows, err
		}
	}
	return enr, rows, nil
}

func (u *enrollmentUC) GenerateSchedule(ctx context.Context, enrollmentID string) ([]*model.PaymentSchedule, error) {
	enr, err := u.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, err
	}
	product, err := u.products.FindByID(ctx, nil, enr.ProductID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	charges, err := model.ResolvePlan(product, enr.TotalAmount, now)
	if err != nil {
		return nil, err
	}
	rows := buildScheduleRows(enr, charges, now)

	linked := false
	err = u.withEnrollmentLock(ctx, enrollmentID, func(ctx context.Context, tx repository.Tx) error {
		count, err := u.schedules.CountByEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrScheduleExists
		}
		for _, s := range rows {
			if err := u.schedules.Save(ctx, tx, s); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		// Match an already-collected initial payment (deposit charged during
		// the wizard, schedule created afterwards) to payment_number 1 by
		// enrollment and amount instead of leaving an orphan.
		initial, err := u.payments.FindInitialByEnrollment(ctx, tx, enrollmentID, rows[0].Amount)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		first := rows[0]
		first.MarkPaid(initial.ChargeRef, now)
		if err := u.schedules.UpdateStatus(ctx, tx, first.ID, first.Status, first.ChargeRef, first.PaidAt); err != nil {
			return err
		}
		initial.ScheduleID = &first.ID
		initial.UpdatedAt = now
		if err := u.payments.Save(ctx, tx, initial); err != nil {
			return err
		}
		linked = true
		return nil
	})
	if errors.Is(err, domain.ErrScheduleExists) {
		// Re-invocation is a guarded no-op, not a duplicate-insert risk.
		return u.schedules.ListByEnrollment(ctx, nil, enrollmentID)
	}
	if err != nil {
		return nil, err
	}
	if linked {
		if _, err := u.reconciler.Recompute(ctx, enrollmentID); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (u *enrollmentUC) RefreshSignature(ctx context.Context, enrollmentID string) (*model.Enrollment, error) {
	enr, err := u.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.SignatureStatus == model.SignatureNotRequired {
		return enr, nil
	}
	status, err := u.signatures.Status(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if status != enr.SignatureStatus {
		enr.SignatureStatus = status
		enr.UpdatedAt = time.Now()
		if err := u.enrollments.Save(ctx, nil, enr); err != nil {
			return nil, err
		}
		// Signature is a gate precondition; a change may complete the
		// enrollment.
		if _, err := u.reconciler.Recompute(ctx, enrollmentID); err != nil {
			return nil, err
		}
		return u.enrollments.FindByID(ctx, nil, enrollmentID)
	}
	return enr, nil
}

func (u *enrollmentUC) CancelAbandoned(ctx context.Context, enrollmentID string) error {
	enr, err := u.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		return err
	}
	if enr.Status != model.EnrollmentStatusPending {
		return fmt.Errorf("%w: enrollment is %s", domain.ErrInvalidArgument, enr.Status)
	}
	open, err := u.schedules.ListPendingWithChargeRef(ctx, nil, enrollmentID)
	if err != nil {
		return err
	}
	for _, s := range open {
		// An abandoned charge left open must not later surface as a stray
		// success.
		if err := u.gateway.Cancel(ctx, s.ChargeRef); err != nil {
			return fmt.Errorf("cancel charge %s: %w", s.ChargeRef, err)
		}
		u.log.Info().Str("schedule_id", s.ID).Str("charge_ref", s.ChargeRef).Msg("charge voided")
	}
	enr.Status = model.EnrollmentStatusCancelled
	enr.UpdatedAt = time.Now()
	return u.enrollments.Save(ctx, nil, enr)
}

func (u *enrollmentUC) DeleteEnrollment(ctx context.Context, enrollmentID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.enrollments.FindByID(ctx, tx, enrollmentID); err != nil {
			return err
		}
		// Referential order: payments, schedules, then the enrollment.
		if err := u.payments.DeleteByEnrollment(ctx, tx, enrollmentID); err != nil {
			return err
		}
		if err := u.schedules.DeleteByEnrollment(ctx, tx, enrollmentID); err != nil {
			return err
		}
		return u.enrollments.Delete(ctx, tx, enrollmentID)
	})
}

// withEnrollmentLock serializes schedule generation per enrollment: a redis
// SetNX lock as the cheap outer guard, and a pg advisory xact lock inside the
// transaction as the authoritative one.
func (u *enrollmentUC) withEnrollmentLock(ctx context.Context, enrollmentID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "enroll:sched:"+enrollmentID, 30*time.Second)
		if err != nil {
			return err
		}
		defer func() { _ = u.locker.Unlock(ctx, "enroll:sched:"+enrollmentID, token) }()
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if pgtx, ok := tx.(pgx.Tx); ok {
			if _, err := pgtx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(enrollmentID)); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
}

func (u *enrollmentUC) initiateFirstCharge(ctx context.Context, enr *model.Enrollment, first *model.PaymentSchedule) error {
	chargeID, err := u.gateway.CreateCharge(ctx, first.Amount, first.Currency, enr.ID)
	if err != nil {
		return err
	}
	return u.schedules.UpdateStatus(ctx, nil, first.ID, first.Status, chargeID, nil)
}

func buildScheduleRows(enr *model.Enrollment, charges []model.ScheduledCharge, now time.Time) []*model.PaymentSchedule {
	rows := make([]*model.PaymentSchedule, 0, len(charges))
	for _, c := range charges {
		rows = append(rows, &model.PaymentSchedule{
			ID:            uuid.NewString(),
			EnrollmentID:  enr.ID,
			PaymentNumber: c.Number,
			PaymentType:   c.Type,
			Amount:        c.Amount,
			Currency:      enr.Currency,
			DueDate:       c.DueDate,
			Status:        model.ScheduleStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return rows
}
