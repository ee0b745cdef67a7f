package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

type PaymentState string

const (
	PaymentStateNone    PaymentState = "none"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePaid    PaymentState = "paid"
)

type SignatureStatus string

const (
	SignatureNotRequired SignatureStatus = "not_required"
	SignatureSent        SignatureStatus = "sent"
	SignatureDelivered   SignatureStatus = "delivered"
	SignatureCompleted   SignatureStatus = "completed"
	SignatureDeclined    SignatureStatus = "declined"
	SignatureVoided      SignatureStatus = "voided"
)

// Enrollment is one user's relationship to one product. TotalAmount is a
// snapshot of the product price at enrollment time; PaidAmount is always
// recomputed from schedule/payment rows, never incremented in place.
type Enrollment struct {
	ID              string // UUID
	UserID          string // UUID
	ProductID       string // UUID
	Status          EnrollmentStatus
	PaymentStatus   PaymentState
	SignatureStatus SignatureStatus
	Currency        string
	TotalAmount     int64
	PaidAmount      int64
	EnrolledAt      *time.Time // set when the completion gate first passes
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEnrollment snapshots the product price and sets initial statuses.
// totalAmount overrides the list price when > 0 (discounts applied upstream).
func NewEnrollment(id, userID string, product *Product, totalAmount int64) (*Enrollment, error) {
	if id == "" || userID == "" || product == nil {
		return nil, domain.ErrInvalidArgument
	}
	if totalAmount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if totalAmount == 0 {
		totalAmount = product.TotalPrice
	}
	sig := SignatureNotRequired
	if product.RequiresSignature {
		sig = SignatureSent
	}
	pay := PaymentStateNone
	if product.PaymentModel == PaymentModelFree {
		// A free product has no obligations; its payment precondition is
		// satisfied from the start.
		pay = PaymentStatePaid
		totalAmount = 0
	}
	now := time.Now()
	return &Enrollment{
		ID:              id,
		UserID:          userID,
		ProductID:       product.ID,
		Status:          EnrollmentStatusPending,
		PaymentStatus:   pay,
		SignatureStatus: sig,
		Currency:        product.Currency,
		TotalAmount:     totalAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// PaymentStateFor derives the payment_status enum from a recomputed paid
// amount.
func PaymentStateFor(paid, total int64) PaymentState {
	switch {
	case total > 0 && paid >= total:
		return PaymentStatePaid
	case paid > 0:
		return PaymentStatePartial
	case total == 0:
		return PaymentStatePaid
	default:
		return PaymentStateNone
	}
}

// ProfileSnapshot is the read-only view of the user profile consulted by the
// completion gate.
type ProfileSnapshot struct {
	Name     string
	Contact  string
	Phone    string
	Address  string
	Locality string
	Country  string
}

// Complete reports whether every required profile field is non-empty.
func (p *ProfileSnapshot) Complete() bool {
	if p == nil {
		return false
	}
	return p.Name != "" && p.Contact != "" && p.Phone != "" &&
		p.Address != "" && p.Locality != "" && p.Country != ""
}
