// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"errors"
	"fmt"
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/adapter"
	"lms-enrollment-engine/internal/domain/ports/repository"
	"lms-enrollment-engine/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileDiff is the before/after view returned to the admin recovery API
// for audit purposes.
type ReconcileDiff struct {
	EventID             string                 `json:"event_id,omitempty"`
	ScheduleID          string                 `json:"schedule_id,omitempty"`
	ScheduleBefore      model.ScheduleStatus   `json:"schedule_before,omitempty"`
	ScheduleAfter       model.ScheduleStatus   `json:"schedule_after,omitempty"`
	PaidBefore          int64                  `json:"paid_before"`
	PaidAfter           int64                  `json:"paid_after"`
	PaymentStatusBefore model.PaymentState     `json:"payment_status_before"`
	PaymentStatusAfter  model.PaymentState     `json:"payment_status_after"`
	StatusBefore        model.EnrollmentStatus `json:"enrollment_status_before"`
	StatusAfter         model.EnrollmentStatus `json:"enrollment_status_after"`
}

// ReconcileUseCase is the single owner of schedule/payment state transitions.
// The webhook handler and every recovery tool go through Apply/Process; no
// other code path mutates schedule or payment status.
type ReconcileUseCase interface {
	// Apply durably records the event and applies it. Recording and applying
	// are separate steps: once the event is in the log, a processing failure
	// leaves it retryable and the webhook may still acknowledge receipt.
	Apply(ctx context.Context, ev *model.ProviderEvent) error
	// Process re-runs reconciliation for an already-recorded event.
	Process(ctx context.Context, provider, eventID string) (*ReconcileDiff, error)
	// ProcessAgainstSchedule targets an explicit schedule, bypassing the
	// charge-ref lookup. Recovery tooling only.
	ProcessAgainstSchedule(ctx context.Context, provider, eventID, scheduleID string) (*ReconcileDiff, error)
	// Recompute repairs the enrollment's derived aggregates from source rows
	// without touching schedule rows.
	Recompute(ctx context.Context, enrollmentID string) (*ReconcileDiff, error)
}

type reconcileUC struct {
	events      repository.EventLogRepository
	schedules   repository.ScheduleRepository
	payments    repository.PaymentRepository
	enrollments repository.EnrollmentRepository
	products    repository.ProductRepository
	profiles    adapter.ProfileStore
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewReconcileUseCase(
	events repository.EventLogRepository,
	schedules repository.ScheduleRepository,
	payments repository.PaymentRepository,
	enrollments repository.EnrollmentRepository,
	products repository.ProductRepository,
	profiles adapter.ProfileStore,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		events:      events,
		schedules:   schedules,
		payments:    payments,
		enrollments: enrollments,
		products:    products,
		profiles:    profiles,
		tm:          tm,
		log:         logger,
	}
}

func (u *reconcileUC) Apply(ctx context.Context, ev *model.ProviderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	inserted, err := u.events.Record(ctx, nil, ev)
	if err != nil {
		return err
	}
	if !inserted {
		u.log.Debug().Str("event_id", ev.EventID).Str("provider", ev.Provider).
			Msg("event already recorded")
	}
	_, err = u.Process(ctx, ev.Provider, ev.EventID)
	return err
}

func (u *reconcileUC) Process(ctx context.Context, provider, eventID string) (*ReconcileDiff, error) {
	return u.process(ctx, provider, eventID, "")
}

func (u *reconcileUC) ProcessAgainstSchedule(ctx context.Context, provider, eventID, scheduleID string) (*ReconcileDiff, error) {
	if scheduleID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.process(ctx, provider, eventID, scheduleID)
}

// process applies a recorded event inside one transaction. Any failure rolls
// back every mutation and leaves the event unprocessed for the next delivery
// attempt or a manual replay.
func (u *reconcileUC) process(ctx context.Context, provider, eventID, scheduleID string) (*ReconcileDiff, error) {
	var diff *ReconcileDiff
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		stored, err := u.events.FindForUpdate(ctx, tx, provider, eventID)
		if err != nil {
			return err
		}
		if stored.Processed() {
			// Idempotency boundary: a retried delivery has no further effect.
			metrics.IncEventDuplicate(stored.Provider)
			return nil
		}
		d, err := u.applyLocked(ctx, tx, stored, scheduleID)
		if err != nil {
			return err
		}
		diff = d
		diff.EventID = eventID
		return u.events.MarkProcessed(ctx, tx, provider, eventID, time.Now())
	})
	if err != nil {
		// Best effort: keep the classified kind and reason on the retained row.
		kind := errorKind(err)
		if mErr := u.events.MarkFailed(ctx, nil, provider, eventID, kind, err.Error()); mErr != nil {
			u.log.Error().Err(mErr).Str("event_id", eventID).Msg("mark event failed")
		}
		metrics.IncEventFailed(provider, string(kind))
		return nil, err
	}
	if diff != nil {
		metrics.IncEventApplied(provider)
	}
	return diff, nil
}

func (u *reconcileUC) applyLocked(ctx context.Context, tx repository.Tx, ev *model.ProviderEvent, scheduleID string) (*ReconcileDiff, error) {
	sched, err := u.resolveSchedule(ctx, tx, ev, scheduleID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fullRefund := false
	var pay *model.Payment
	if ev.Type == model.EventRefundIssued || ev.Type == model.EventDisputeOpened {
		pay, err = u.payments.FindByChargeRef(ctx, tx, sched.ChargeRef)
		if errors.Is(err, domain.ErrNotFound) {
			// refund for a charge we never booked a payment for
			return nil, fmt.Errorf("%w: no payment for charge %s", domain.ErrInvalidTransition, sched.ChargeRef)
		}
		if err != nil {
			return nil, err
		}
		remaining := pay.Amount - pay.RefundedAmount
		fullRefund = ev.Amount == 0 || ev.Amount >= remaining
	}

	next, noop, err := model.Transition(sched.Status, ev.Type, fullRefund)
	if err != nil {
		metrics.IncInvalidTransition(string(sched.Status), string(ev.Type))
		return nil, fmt.Errorf("%w: %s + %s on schedule %s", domain.ErrInvalidTransition, sched.Status, ev.Type, sched.ID)
	}

	diff := &ReconcileDiff{ScheduleID: sched.ID, ScheduleBefore: sched.Status, ScheduleAfter: next}

	if !noop {
		var paidAt *time.Time
		if next == model.ScheduleStatusPaid {
			paidAt = &now
		}
		chargeRef := sched.ChargeRef
		if chargeRef == "" {
			chargeRef = ev.ChargeRef
		}
		if err := u.schedules.UpdateStatus(ctx, tx, sched.ID, next, chargeRef, paidAt); err != nil {
			return nil, err
		}
		sched.ChargeRef = chargeRef
		if next == model.ScheduleStatusPaid {
			metrics.AddRevenue(sched.Currency, sched.Amount)
		}
	}

	if err := u.upsertPayment(ctx, tx, ev, sched, pay, next, fullRefund, now); err != nil {
		return nil, err
	}

	if err := u.recomputeLocked(ctx, tx, sched.EnrollmentID, diff); err != nil {
		return nil, err
	}
	return diff, nil
}

// resolveSchedule finds the schedule the event refers to. Primary resolution
// is by charge reference; an explicit scheduleID (recovery path) wins. A
// charge_succeeded for a known subscription enrollment with no open row
// creates the cycle's row lazily.
func (u *reconcileUC) resolveSchedule(ctx context.Context, tx repository.Tx, ev *model.ProviderEvent, scheduleID string) (*model.PaymentSchedule, error) {
	if scheduleID != "" {
		return u.schedules.FindByID(ctx, tx, scheduleID)
	}
	sched, err := u.schedules.FindByChargeRef(ctx, tx, ev.ChargeRef)
	if err == nil {
		return sched, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if ev.Type == model.EventChargeSucceeded && ev.EnrollmentID != "" {
		if s, lazyErr := u.lazySubscriptionRow(ctx, tx, ev); lazyErr == nil && s != nil {
			return s, nil
		} else if lazyErr != nil {
			return nil, lazyErr
		}
	}
	u.log.Warn().Str("event_id", ev.EventID).Str("charge_ref", ev.ChargeRef).
		Msg("orphan event: no matching schedule, retained for manual reconciliation")
	metrics.IncEventOrphan(ev.Provider)
	return nil, domain.ErrOrphanEvent
}

// lazySubscriptionRow creates the next subscription_charge row for a cycle
// the provider just reported. Returns (nil, nil) when the enrollment is not a
// subscription, so the caller falls through to the orphan path.
func (u *reconcileUC) lazySubscriptionRow(ctx context.Context, tx repository.Tx, ev *model.ProviderEvent) (*model.PaymentSchedule, error) {
	enr, err := u.enrollments.FindByID(ctx, tx, ev.EnrollmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	product, err := u.products.FindByID(ctx, tx, enr.ProductID)
	if err != nil {
		return nil, err
	}
	if product.PaymentModel != model.PaymentModelSubscription {
		return nil, nil
	}
	last, err := u.schedules.MaxPaymentNumber(ctx, tx, enr.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	c := model.NextSubscriptionCharge(product, last, ev.Amount, now)
	s := &model.PaymentSchedule{
		ID:            uuid.NewString(),
		EnrollmentID:  enr.ID,
		PaymentNumber: c.Number,
		PaymentType:   c.Type,
		Amount:        c.Amount,
		Currency:      enr.Currency,
		DueDate:       c.DueDate,
		Status:        model.ScheduleStatusPending,
		ChargeRef:     ev.ChargeRef,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.schedules.Save(ctx, tx, s); err != nil {
		return nil, err
	}
	u.log.Info().Str("enrollment_id", enr.ID).Int("payment_number", c.Number).
		Msg("subscription cycle row created lazily")
	return s, nil
}

func (u *reconcileUC) upsertPayment(ctx context.Context, tx repository.Tx, ev *model.ProviderEvent, sched *model.PaymentSchedule, pay *model.Payment, next model.ScheduleStatus, fullRefund bool, now time.Time) error {
	if pay == nil {
		var err error
		pay, err = u.payments.FindByChargeRef(ctx, tx, sched.ChargeRef)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if pay == nil {
		sid := sched.ID
		pay = &model.Payment{
			ID:           uuid.NewString(),
			EnrollmentID: sched.EnrollmentID,
			ScheduleID:   &sid,
			Amount:       sched.Amount,
			Currency:     sched.Currency,
			ChargeRef:    sched.ChargeRef,
			Meta:         map[string]interface{}{"source_event": ev.EventID},
			CreatedAt:    now,
		}
	}

	switch ev.Type {
	case model.EventRefundIssued:
		amount := ev.Amount
		if amount == 0 {
			amount = pay.Amount - pay.RefundedAmount
		}
		if err := pay.ApplyRefund(amount, now); err != nil {
			return err
		}
	case model.EventDisputeOpened:
		if pay.Meta == nil {
			pay.Meta = map[string]interface{}{}
		}
		pay.Meta["dispute_event"] = ev.EventID
		u.log.Warn().Str("payment_id", pay.ID).Str("event_id", ev.EventID).Msg("dispute opened")
	default:
		pay.Status = model.PaymentStatusForSchedule(next)
	}
	pay.UpdatedAt = now
	return u.payments.Save(ctx, tx, pay)
}

// recomputeLocked recomputes the enrollment's paid_amount and payment_status
// from source rows, then re-evaluates the completion gate. The enrollment row
// is read FOR UPDATE so two concurrent events for the same enrollment cannot
// overwrite each other's recompute.
func (u *reconcileUC) recomputeLocked(ctx context.Context, tx repository.Tx, enrollmentID string, diff *ReconcileDiff) error {
	enr, err := u.enrollments.FindByID(ctx, tx, enrollmentID)
	if err != nil {
		return err
	}
	diff.PaidBefore = enr.PaidAmount
	diff.PaymentStatusBefore = enr.PaymentStatus
	diff.StatusBefore = enr.Status

	paid, err := u.schedules.SumPaid(ctx, tx, enrollmentID)
	if err != nil {
		return err
	}
	refunded, err := u.payments.SumRefunded(ctx, tx, enrollmentID)
	if err != nil {
		return err
	}
	enr.PaidAmount = paid - refunded
	enr.PaymentStatus = model.PaymentStateFor(enr.PaidAmount, enr.TotalAmount)

	product, err := u.products.FindByID(ctx, tx, enr.ProductID)
	if err != nil {
		return err
	}
	profile, err := u.profiles.Snapshot(ctx, enr.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if gate := model.EvaluateGate(enr, product, profile); gate.Passed() {
		if enr.Activate(time.Now()) {
			metrics.IncEnrollmentActivated()
			u.log.Info().Str("enrollment_id", enr.ID).Msg("enrollment activated")
		}
	}
	enr.UpdatedAt = time.Now()
	if err := u.enrollments.Save(ctx, tx, enr); err != nil {
		return err
	}

	diff.PaidAfter = enr.PaidAmount
	diff.PaymentStatusAfter = enr.PaymentStatus
	diff.StatusAfter = enr.Status
	return nil
}

func (u *reconcileUC) Recompute(ctx context.Context, enrollmentID string) (*ReconcileDiff, error) {
	diff := &ReconcileDiff{}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.recomputeLocked(ctx, tx, enrollmentID, diff)
	})
	if err != nil {
		return nil, err
	}
	if diff.PaidBefore != diff.PaidAfter || diff.PaymentStatusBefore != diff.PaymentStatusAfter {
		metrics.IncDriftRepaired()
		u.log.Warn().Str("enrollment_id", enrollmentID).
			Int64("paid_before", diff.PaidBefore).Int64("paid_after", diff.PaidAfter).
			Msg("aggregate drift repaired")
	}
	return diff, nil
}

// errorKind classifies via errors.Is, so wrapping an error anywhere along the
// path does not change how the event row is labeled.
func errorKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrOrphanEvent):
		return model.ErrorKindOrphan
	case errors.Is(err, domain.ErrInvalidTransition):
		return model.ErrorKindInvalidTransition
	case errors.Is(err, domain.ErrInvalidArgument):
		return model.ErrorKindInvalidArgument
	default:
		return model.ErrorKindTransient
	}
}
