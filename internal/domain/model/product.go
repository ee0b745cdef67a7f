package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

type PaymentModel string

const (
	PaymentModelFree         PaymentModel = "free"
	PaymentModelOneTime      PaymentModel = "one_time"
	PaymentModelDepositPlan  PaymentModel = "deposit_then_plan"
	PaymentModelSubscription PaymentModel = "subscription"
)

// Product is a purchasable offering. The payment model and its parameters are
// immutable once enrollments exist against it; already-generated schedules
// snapshot everything they need, so a later product edit never rewrites them.
type Product struct {
	ID                string // UUID
	Name              string
	Currency          string // ISO code, minor-unit amounts (e.g. "USD" in cents)
	TotalPrice        int64
	PaymentModel      PaymentModel
	RequiresSignature bool

	// deposit_then_plan parameters. Exactly one of DepositPercentBP (basis
	// points of the total) or DepositAmount (fixed, minor units) is set.
	DepositPercentBP int
	DepositAmount    int64
	InstallmentCount int
	InstallmentEvery time.Duration

	// subscription parameters
	SubscriptionInterval time.Duration
	TrialDays            int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct creates and validates a product.
func NewProduct(id, name, currency string, totalPrice int64, pm PaymentModel) (*Product, error) {
	if name == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	p := &Product{
		ID:           id,
		Name:         name,
		Currency:     currency,
		TotalPrice:   totalPrice,
		PaymentModel: pm,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return p, nil
}

// Validate checks that the model-specific parameters are present and
// internally consistent for the configured payment model. It must pass before
// any schedule row is persisted.
func (p *Product) Validate() error {
	if p.TotalPrice < 0 {
		return domain.ErrInvalidPaymentModel
	}
	switch p.PaymentModel {
	case PaymentModelFree:
		return nil
	case PaymentModelOneTime:
		if p.TotalPrice <= 0 {
			return domain.ErrInvalidPaymentModel
		}
		return nil
	case PaymentModelDepositPlan:
		if p.TotalPrice <= 0 || p.InstallmentCount <= 0 || p.InstallmentEvery <= 0 {
			return domain.ErrInvalidPaymentModel
		}
		switch {
		case p.DepositPercentBP > 0 && p.DepositAmount > 0:
			return domain.ErrInvalidPaymentModel // fixed amount XOR percentage
		case p.DepositPercentBP <= 0 && p.DepositAmount <= 0:
			return domain.ErrInvalidPaymentModel
		case p.DepositPercentBP >= 10_000:
			return domain.ErrInvalidPaymentModel // deposit must leave a remainder
		case p.DepositAmount >= p.TotalPrice:
			return domain.ErrInvalidPaymentModel
		}
		return nil
	case PaymentModelSubscription:
		if p.TotalPrice <= 0 || p.SubscriptionInterval <= 0 || p.TrialDays < 0 {
			return domain.ErrInvalidPaymentModel
		}
		return nil
	default:
		return domain.ErrInvalidPaymentModel
	}
}
