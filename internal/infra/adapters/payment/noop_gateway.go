package payment

import (
	"context"
	"fmt"
	"sync"

	"lms-enrollment-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway to use in tests and dev mode.
type NoopGateway struct {
	mu        sync.Mutex
	seq       int64
	charges   map[string]int64 // charge id -> amount
	cancelled map[string]bool
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{
		charges:   make(map[string]int64),
		cancelled: make(map[string]bool),
	}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateCharge(ctx context.Context, amount int64, currency, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-ch-%d", g.seq)
	g.charges[id] = amount
	return id, nil
}

func (g *NoopGateway) Refund(ctx context.Context, chargeID string, amount *int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[chargeID]; !ok {
		return "", fmt.Errorf("noop: charge %s not found", chargeID)
	}
	g.seq++
	return fmt.Sprintf("noop-re-%d", g.seq), nil
}

func (g *NoopGateway) Cancel(ctx context.Context, chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[chargeID]; !ok {
		return fmt.Errorf("noop: charge %s not found", chargeID)
	}
	g.cancelled[chargeID] = true
	return nil
}

// Cancelled reports whether the charge was voided. Test hook.
func (g *NoopGateway) Cancelled(chargeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled[chargeID]
}
