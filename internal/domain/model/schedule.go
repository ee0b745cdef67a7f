package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

type ScheduleStatus string

const (
	ScheduleStatusPending           ScheduleStatus = "pending"
	ScheduleStatusPaid              ScheduleStatus = "paid"
	ScheduleStatusFailed            ScheduleStatus = "failed"
	ScheduleStatusRefunded          ScheduleStatus = "refunded"
	ScheduleStatusPartiallyRefunded ScheduleStatus = "partially_refunded"
)

type PaymentType string

const (
	PaymentTypeDeposit            PaymentType = "deposit"
	PaymentTypeInstallment        PaymentType = "installment"
	PaymentTypeSubscriptionCharge PaymentType = "subscription_charge"
)

// PaymentSchedule is one dated monetary obligation within an enrollment's
// plan. PaymentNumber is 1-based and contiguous per enrollment; the deposit is
// always number 1.
type PaymentSchedule struct {
	ID            string // UUID
	EnrollmentID  string // UUID
	PaymentNumber int
	PaymentType   PaymentType
	Amount        int64
	Currency      string
	DueDate       time.Time
	Status        ScheduleStatus
	ChargeRef     string // opaque provider charge/intent id
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition is the single owner of the schedule status state machine. Both
// the webhook path and all recovery tooling go through it; nothing else may
// change a schedule's status.
//
//	pending --(charge succeeded)--> paid
//	pending --(charge failed)-----> failed
//	failed  --(charge succeeded)--> paid      (out-of-order tolerance)
//	paid    --(refund, full)------> refunded
//	paid    --(refund, partial)---> partially_refunded
//
// A charge-succeeded event for an already-paid schedule is an idempotent
// no-op, reported via noop=true. Every other combination is
// ErrInvalidTransition and must be surfaced, never coerced.
func Transition(cur ScheduleStatus, ev EventType, fullRefund bool) (next ScheduleStatus, noop bool, err error) {
	switch ev {
	case EventChargeSucceeded:
		switch cur {
		case ScheduleStatusPending, ScheduleStatusFailed:
			return ScheduleStatusPaid, false, nil
		case ScheduleStatusPaid:
			return ScheduleStatusPaid, true, nil
		}
	case EventChargeFailed:
		switch cur {
		case ScheduleStatusPending:
			return ScheduleStatusFailed, false, nil
		case ScheduleStatusFailed:
			return ScheduleStatusFailed, true, nil
		}
	case EventRefundIssued:
		switch cur {
		case ScheduleStatusPaid, ScheduleStatusPartiallyRefunded:
			if fullRefund {
				return ScheduleStatusRefunded, false, nil
			}
			return ScheduleStatusPartiallyRefunded, false, nil
		}
	case EventDisputeOpened:
		// A dispute does not move the schedule; it is recorded on the payment
		// and surfaced to operators.
		switch cur {
		case ScheduleStatusPaid, ScheduleStatusPartiallyRefunded:
			return cur, true, nil
		}
	}
	return cur, false, domain.ErrInvalidTransition
}

// MarkPaid applies a successful charge to the schedule row itself.
func (s *PaymentSchedule) MarkPaid(chargeRef string, at time.Time) {
	s.Status = ScheduleStatusPaid
	if chargeRef != "" {
		s.ChargeRef = chargeRef
	}
	s.PaidAt = &at
	s.UpdatedAt = at
}
