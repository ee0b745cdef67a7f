// File: internal/usecase/recovery_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/repository"
)

// ManualProvider labels operator-synthesized events in the event log.
const ManualProvider = "manual"

// Compile-time check
var _ RecoveryUseCase = (*recoveryUC)(nil)

// RecoveryUseCase bundles the operator-invoked repair paths. Every one of
// them funnels through the reconciler's transition core; none re-implements a
// status update. Drift between the automatic and manual paths is the bug
// class these tools exist to avoid.
type RecoveryUseCase interface {
	// Replay re-runs reconciliation for a stored-but-unprocessed or failed
	// event. For orphan events it falls back to enrollment+amount+type best
	// match; an ambiguous match is surfaced, never applied.
	Replay(ctx context.Context, provider, eventID string) (*ReconcileDiff, error)
	// MarkPaid synthesizes an equivalent charge-succeeded event for an
	// externally-verified charge and applies it to the given schedule.
	MarkPaid(ctx context.Context, scheduleID, chargeRef string) (*ReconcileDiff, error)
	// RecomputeAggregates repairs paid_amount/payment_status from source rows
	// without touching schedule rows.
	RecomputeAggregates(ctx context.Context, enrollmentID string) (*ReconcileDiff, error)
	// ListOrphans returns retained events that never matched a schedule.
	ListOrphans(ctx context.Context, limit int) ([]*model.ProviderEvent, error)
}

type recoveryUC struct {
	events     repository.EventLogRepository
	schedules  repository.ScheduleRepository
	reconciler ReconcileUseCase
	log        *zerolog.Logger
}

func NewRecoveryUseCase(
	events repository.EventLogRepository,
	schedules repository.ScheduleRepository,
	reconciler ReconcileUseCase,
	logger *zerolog.Logger,
) *recoveryUC {
	return &recoveryUC{events: events, schedules: schedules, reconciler: reconciler, log: logger}
}

func (u *recoveryUC) Replay(ctx context.Context, provider, eventID string) (*ReconcileDiff, error) {
	diff, err := u.reconciler.Process(ctx, provider, eventID)
	if err == nil || !errors.Is(err, domain.ErrOrphanEvent) {
		return diff, err
	}

	// Fallback best match, recovery-only: enrollment id + amount + type.
	ev, findErr := u.events.FindForUpdate(ctx, nil, provider, eventID)
	if findErr != nil {
		return nil, findErr
	}
	if ev.EnrollmentID == "" {
		return nil, err
	}
	// Empty payment type matches any row; amount narrows it enough in
	// practice, and two same-amount candidates are reported as ambiguous.
	sched, matchErr := u.schedules.FindBestMatch(ctx, nil, ev.EnrollmentID, ev.Amount, "")
	if matchErr != nil {
		if errors.Is(matchErr, domain.ErrAmbiguousMatch) {
			u.log.Warn().Str("event_id", eventID).Str("enrollment_id", ev.EnrollmentID).
				Msg("fallback match ambiguous, operator must target a schedule explicitly")
		}
		return nil, matchErr
	}
	u.log.Info().Str("event_id", eventID).Str("schedule_id", sched.ID).
		Msg("replaying orphan event against fallback match")
	return u.reconciler.ProcessAgainstSchedule(ctx, provider, eventID, sched.ID)
}

func (u *recoveryUC) MarkPaid(ctx context.Context, scheduleID, chargeRef string) (*ReconcileDiff, error) {
	if scheduleID == "" || chargeRef == "" {
		return nil, domain.ErrInvalidArgument
	}
	sched, err := u.schedules.FindByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ev := &model.ProviderEvent{
		// ULIDs are time-sortable and visibly distinct from provider ids in
		// the event log.
		EventID:      ulid.Make().String(),
		Provider:     ManualProvider,
		Type:         model.EventChargeSucceeded,
		ChargeRef:    chargeRef,
		Amount:       sched.Amount,
		EnrollmentID: sched.EnrollmentID,
		ReceivedAt:   now,
	}
	if _, err := u.events.Record(ctx, nil, ev); err != nil {
		return nil, err
	}
	u.log.Info().Str("schedule_id", scheduleID).Str("charge_ref", chargeRef).
		Str("event_id", ev.EventID).Msg("manual mark-paid synthesized")
	return u.reconciler.ProcessAgainstSchedule(ctx, ev.Provider, ev.EventID, scheduleID)
}

func (u *recoveryUC) RecomputeAggregates(ctx context.Context, enrollmentID string) (*ReconcileDiff, error) {
	if enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.reconciler.Recompute(ctx, enrollmentID)
}

func (u *recoveryUC) ListOrphans(ctx context.Context, limit int) ([]*model.ProviderEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.events.ListOrphans(ctx, nil, limit)
}
