package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Payment is a realized monetary event tied to exactly one PaymentSchedule.
// ScheduleID is nullable only for legacy/manually-reconciled records. Rows are
// created and updated exclusively by the reconciler or an explicit operator
// recovery action; they are never deleted.
type Payment struct {
	ID             string  // UUID
	EnrollmentID   string  // UUID
	ScheduleID     *string // UUID -> PaymentSchedule
	Amount         int64   // minor units, avoids float errors
	Currency       string
	Status         PaymentStatus
	RefundedAmount int64
	RefundedAt     *time.Time
	ChargeRef      string
	Meta           map[string]interface{} // JSONB; carries replay/idempotency markers
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplyRefund records a refund against the payment and keeps the status
// invariant: refunded iff RefundedAmount == Amount, partially_refunded iff
// 0 < RefundedAmount < Amount.
func (p *Payment) ApplyRefund(amount int64, at time.Time) error {
	if amount <= 0 || p.RefundedAmount+amount > p.Amount {
		return domain.ErrInvalidArgument
	}
	p.RefundedAmount += amount
	p.RefundedAt = &at
	if p.RefundedAmount == p.Amount {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
	p.UpdatedAt = at
	return nil
}

// PaymentStatusForSchedule mirrors a schedule status onto its payment row.
func PaymentStatusForSchedule(s ScheduleStatus) PaymentStatus {
	switch s {
	case ScheduleStatusPaid:
		return PaymentStatusSucceeded
	case ScheduleStatusFailed:
		return PaymentStatusFailed
	case ScheduleStatusRefunded:
		return PaymentStatusRefunded
	case ScheduleStatusPartiallyRefunded:
		return PaymentStatusPartiallyRefunded
	default:
		return PaymentStatusPending
	}
}
