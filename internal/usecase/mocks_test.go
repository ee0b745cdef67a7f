// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/repository"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// mockTxManager runs the callback directly; the in-memory repos below ignore
// the tx handle.
type mockTxManager struct{ beginErr error }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx, nil)
}

type mockLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	lockErr error
}

func newMockLocker() *mockLocker { return &mockLocker{held: make(map[string]bool)} }

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.lockErr != nil {
		return "", m.lockErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = true
	return "tok-" + key, nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// ---------------- in-memory repositories ----------------

type memProductRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{store: make(map[string]*model.Product)}
}

func (m *memProductRepo) Save(ctx context.Context, _ repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memProductRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) ListAll(ctx context.Context, _ repository.Tx) ([]*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Product, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type memEnrollmentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Enrollment
	saveErr error
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{store: make(map[string]*model.Enrollment)}
}

func (m *memEnrollmentRepo) Save(ctx context.Context, _ repository.Tx, e *model.Enrollment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *memEnrollmentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEnrollmentRepo) ListByUser(ctx context.Context, _ repository.Tx, userID string) ([]*model.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Enrollment
	for _, e := range m.store {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEnrollmentRepo) Delete(ctx context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memScheduleRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.PaymentSchedule
	saveErr error
}

func newMemScheduleRepo() *memScheduleRepo {
	return &memScheduleRepo{store: make(map[string]*model.PaymentSchedule)}
}

func (m *memScheduleRepo) Save(ctx context.Context, _ repository.Tx, s *model.PaymentSchedule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.store {
		if other.ID != s.ID && other.EnrollmentID == s.EnrollmentID && other.PaymentNumber == s.PaymentNumber {
			return domain.ErrScheduleExists
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memScheduleRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memScheduleRepo) FindByChargeRef(ctx context.Context, _ repository.Tx, chargeRef string) (*model.PaymentSchedule, error) {
	if chargeRef == "" {
		return nil, domain.ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.ChargeRef == chargeRef {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memScheduleRepo) ListByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string) ([]*model.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentSchedule
	for _, s := range m.store {
		if s.EnrollmentID == enrollmentID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memScheduleRepo) CountByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.store {
		if s.EnrollmentID == enrollmentID {
			n++
		}
	}
	return n, nil
}

func (m *memScheduleRepo) FindBestMatch(ctx context.Context, _ repository.Tx, enrollmentID string, amount int64, pt model.PaymentType) (*model.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []*model.PaymentSchedule
	for _, s := range m.store {
		if s.EnrollmentID != enrollmentID || s.Amount != amount {
			continue
		}
		if s.Status != model.ScheduleStatusPending && s.Status != model.ScheduleStatusFailed {
			continue
		}
		if pt != "" && s.PaymentType != pt {
			continue
		}
		cp := *s
		matches = append(matches, &cp)
	}
	switch len(matches) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, domain.ErrAmbiguousMatch
	}
}

func (m *memScheduleRepo) UpdateStatus(ctx context.Context, _ repository.Tx, id string, status model.ScheduleStatus, chargeRef string, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	if chargeRef != "" {
		s.ChargeRef = chargeRef
	}
	if paidAt != nil {
		s.PaidAt = paidAt
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memScheduleRepo) SumPaid(ctx context.Context, _ repository.Tx, enrollmentID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, s := range m.store {
		if s.EnrollmentID != enrollmentID {
			continue
		}
		switch s.Status {
		case model.ScheduleStatusPaid, model.ScheduleStatusPartiallyRefunded, model.ScheduleStatusRefunded:
			sum += s.Amount
		}
	}
	return sum, nil
}

func (m *memScheduleRepo) MaxPaymentNumber(ctx context.Context, _ repository.Tx, enrollmentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, s := range m.store {
		if s.EnrollmentID == enrollmentID && s.PaymentNumber > max {
			max = s.PaymentNumber
		}
	}
	return max, nil
}

func (m *memScheduleRepo) ListPendingWithChargeRef(ctx context.Context, _ repository.Tx, enrollmentID string) ([]*model.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentSchedule
	for _, s := range m.store {
		if s.EnrollmentID == enrollmentID && s.Status == model.ScheduleStatusPending && s.ChargeRef != "" {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memScheduleRepo) DeleteByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.store {
		if s.EnrollmentID == enrollmentID {
			delete(m.store, id)
		}
	}
	return nil
}

type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, _ repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByChargeRef(ctx context.Context, _ repository.Tx, chargeRef string) (*model.Payment, error) {
	if chargeRef == "" {
		return nil, domain.ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.ChargeRef == chargeRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindInitialByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string, amount int64) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.EnrollmentID == enrollmentID && p.Amount == amount && p.ScheduleID == nil && p.Status == model.PaymentStatusSucceeded {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ListByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.EnrollmentID == enrollmentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SumRefunded(ctx context.Context, _ repository.Tx, enrollmentID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.EnrollmentID == enrollmentID {
			sum += p.RefundedAmount
		}
	}
	return sum, nil
}

func (m *memPaymentRepo) DeleteByEnrollment(ctx context.Context, _ repository.Tx, enrollmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.store {
		if p.EnrollmentID == enrollmentID {
			delete(m.store, id)
		}
	}
	return nil
}

type memEventLogRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.ProviderEvent // key provider|event_id
	recordErr error
}

func newMemEventLogRepo() *memEventLogRepo {
	return &memEventLogRepo{store: make(map[string]*model.ProviderEvent)}
}

func eventKey(provider, eventID string) string { return provider + "|" + eventID }

func (m *memEventLogRepo) Record(ctx context.Context, _ repository.Tx, ev *model.ProviderEvent) (bool, error) {
	if m.recordErr != nil {
		return false, m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := eventKey(ev.Provider, ev.EventID)
	if _, ok := m.store[k]; ok {
		return false, nil
	}
	cp := *ev
	m.store[k] = &cp
	return true, nil
}

func (m *memEventLogRepo) FindForUpdate(ctx context.Context, _ repository.Tx, provider, eventID string) (*model.ProviderEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.store[eventKey(provider, eventID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *memEventLogRepo) MarkProcessed(ctx context.Context, _ repository.Tx, provider, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.store[eventKey(provider, eventID)]
	if !ok {
		return domain.ErrNotFound
	}
	ev.ProcessedAt = &at
	ev.LastError = nil
	ev.LastErrorKind = ""
	return nil
}

func (m *memEventLogRepo) MarkFailed(ctx context.Context, _ repository.Tx, provider, eventID string, kind model.ErrorKind, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.store[eventKey(provider, eventID)]
	if !ok {
		return domain.ErrNotFound
	}
	if ev.ProcessedAt == nil {
		ev.LastError = &reason
		ev.LastErrorKind = kind
	}
	return nil
}

func (m *memEventLogRepo) ListUnprocessed(ctx context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.ProviderEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ProviderEvent
	for _, ev := range m.store {
		if ev.ProcessedAt == nil && ev.ReceivedAt.Before(olderThan) {
			cp := *ev
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memEventLogRepo) ListOrphans(ctx context.Context, _ repository.Tx, limit int) ([]*model.ProviderEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ProviderEvent
	for _, ev := range m.store {
		if ev.ProcessedAt == nil && ev.Orphaned() {
			cp := *ev
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---------------- adapter mocks ----------------

type mockGateway struct {
	mu        sync.Mutex
	seq       int
	charges   []string
	cancelled []string
	createErr error
	cancelErr error
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateCharge(ctx context.Context, amount int64, currency, reference string) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("ch_mock_%d", g.seq)
	g.charges = append(g.charges, id)
	return id, nil
}

func (g *mockGateway) Refund(ctx context.Context, chargeID string, amount *int64) (string, error) {
	return "re_mock", nil
}

func (g *mockGateway) Cancel(ctx context.Context, chargeID string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, chargeID)
	return nil
}

type mockSignatureProvider struct {
	status    model.SignatureStatus
	statusErr error
}

func (p *mockSignatureProvider) Name() string { return "mock" }

func (p *mockSignatureProvider) Status(ctx context.Context, enrollmentID string) (model.SignatureStatus, error) {
	if p.statusErr != nil {
		return "", p.statusErr
	}
	return p.status, nil
}

type mockProfileStore struct {
	snapshot *model.ProfileSnapshot
}

func completeProfile() *model.ProfileSnapshot {
	return &model.ProfileSnapshot{
		Name:     "Jordan Smith",
		Contact:  "jordan@example.com",
		Phone:    "+15550100",
		Address:  "1 Main St",
		Locality: "Springfield",
		Country:  "US",
	}
}

func (m *mockProfileStore) Snapshot(ctx context.Context, userID string) (*model.ProfileSnapshot, error) {
	if m.snapshot == nil {
		return &model.ProfileSnapshot{}, nil
	}
	return m.snapshot, nil
}
