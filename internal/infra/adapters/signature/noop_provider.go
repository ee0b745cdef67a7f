package signature

import (
	"context"
	"sync"

	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/adapter"
)

var _ adapter.SignatureProvider = (*NoopProvider)(nil)

// NoopProvider is an in-memory signature provider for tests and dev mode.
type NoopProvider struct {
	mu       sync.Mutex
	statuses map[string]model.SignatureStatus
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{statuses: make(map[string]model.SignatureStatus)}
}

func (p *NoopProvider) Name() string { return "noop" }

func (p *NoopProvider) Status(ctx context.Context, enrollmentID string) (model.SignatureStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.statuses[enrollmentID]; ok {
		return s, nil
	}
	return model.SignatureSent, nil
}

// SetStatus primes the status returned for an enrollment. Test hook.
func (p *NoopProvider) SetStatus(enrollmentID string, s model.SignatureStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[enrollmentID] = s
}
