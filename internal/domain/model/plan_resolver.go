package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

// ScheduledCharge is one resolved obligation: sequence number, type, amount
// and when it falls due relative to enrollment creation.
type ScheduledCharge struct {
	Number  int
	Type    PaymentType
	Amount  int64
	DueDate time.Time
}

// ResolvePlan turns a product's payment model into the ordered list of dated
// obligations for one enrollment. totalAmount may differ from the product's
// list price (discounts); pass 0 to use the list price.
//
// deposit_then_plan: the deposit is a fixed amount or a banker's-rounded
// percentage of the total; the remainder is split evenly and the LAST
// installment absorbs the rounding difference so that the sum of all charges
// equals totalAmount exactly.
//
// subscription: a single recurring descriptor. Further cycle rows are created
// lazily as the provider reports each successful cycle charge, never
// pre-expanded.
func ResolvePlan(product *Product, totalAmount int64, now time.Time) ([]ScheduledCharge, error) {
	if product == nil {
		return nil, domain.ErrInvalidArgument
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}
	if totalAmount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if totalAmount == 0 {
		totalAmount = product.TotalPrice
	}

	switch product.PaymentModel {
	case PaymentModelFree:
		return nil, nil

	case PaymentModelOneTime:
		return []ScheduledCharge{{
			Number:  1,
			Type:    PaymentTypeDeposit,
			Amount:  totalAmount,
			DueDate: now,
		}}, nil

	case PaymentModelDepositPlan:
		deposit := product.DepositAmount
		if deposit == 0 {
			deposit = roundHalfEven(totalAmount*int64(product.DepositPercentBP), 10_000)
		}
		if deposit <= 0 || deposit >= totalAmount {
			return nil, domain.ErrInvalidPaymentModel
		}
		n := int64(product.InstallmentCount)
		remaining := totalAmount - deposit
		each := remaining / n

		out := make([]ScheduledCharge, 0, product.InstallmentCount+1)
		out = append(out, ScheduledCharge{Number: 1, Type: PaymentTypeDeposit, Amount: deposit, DueDate: now})
		allocated := int64(0)
		for k := 1; k <= product.InstallmentCount; k++ {
			amt := each
			if k == product.InstallmentCount {
				// last installment absorbs the rounding remainder
				amt = remaining - allocated
			}
			allocated += amt
			out = append(out, ScheduledCharge{
				Number:  k + 1,
				Type:    PaymentTypeInstallment,
				Amount:  amt,
				DueDate: now.Add(time.Duration(k) * product.InstallmentEvery),
			})
		}
		return out, nil

	case PaymentModelSubscription:
		due := now
		if product.TrialDays > 0 {
			due = now.Add(time.Duration(product.TrialDays) * 24 * time.Hour)
		}
		return []ScheduledCharge{{
			Number:  1,
			Type:    PaymentTypeSubscriptionCharge,
			Amount:  totalAmount,
			DueDate: due,
		}}, nil

	default:
		return nil, domain.ErrInvalidPaymentModel
	}
}

// NextSubscriptionCharge describes the lazily-created schedule row for the
// billing cycle the provider just reported.
func NextSubscriptionCharge(product *Product, lastNumber int, amount int64, now time.Time) ScheduledCharge {
	return ScheduledCharge{
		Number:  lastNumber + 1,
		Type:    PaymentTypeSubscriptionCharge,
		Amount:  amount,
		DueDate: now,
	}
}

// roundHalfEven divides num by den rounding half to even (banker's rounding).
// Both arguments must be non-negative, den > 0.
func roundHalfEven(num, den int64) int64 {
	q := num / den
	r := num % den
	switch {
	case 2*r < den:
		return q
	case 2*r > den:
		return q + 1
	case q%2 == 0:
		return q
	default:
		return q + 1
	}
}
