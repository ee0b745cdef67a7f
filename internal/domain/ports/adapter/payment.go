package adapter

import "context"

// PaymentGateway abstracts the single external payment provider. A timeout on
// any call must leave local state pending; confirmation only ever arrives via
// the asynchronous event feed.
type PaymentGateway interface {
	Name() string
	// CreateCharge initiates a charge and returns the provider charge id.
	CreateCharge(ctx context.Context, amount int64, currency, reference string) (string, error)
	// Refund issues a refund; amount nil means full refund.
	Refund(ctx context.Context, chargeID string, amount *int64) (string, error)
	// Cancel voids an initiated-but-unconfirmed charge so an abandoned
	// checkout is never later interpreted as a stray success.
	Cancel(ctx context.Context, chargeID string) error
}
