package model

import "time"

// GateResult carries the three independent completion preconditions. The gate
// never errors: a missing precondition is a normal, re-checked state.
type GateResult struct {
	Signature bool
	Profile   bool
	Payment   bool
}

func (g GateResult) Passed() bool { return g.Signature && g.Profile && g.Payment }

// EvaluateGate decides whether an enrollment may move from pending to active.
// It is a pure function over the enrollment, its product and a profile
// snapshot, and is re-evaluated after every mutation that could change any
// precondition (payment event, signature webhook, profile edit).
func EvaluateGate(e *Enrollment, p *Product, profile *ProfileSnapshot) GateResult {
	g := GateResult{}
	if p == nil || e == nil {
		return g
	}
	g.Signature = !p.RequiresSignature || e.SignatureStatus == SignatureCompleted
	g.Profile = profile.Complete()
	g.Payment = p.PaymentModel == PaymentModelFree || e.PaidAmount >= e.TotalAmount
	return g
}

// Activate transitions a pending enrollment to active, setting EnrolledAt.
// Re-activating an already-active enrollment is a no-op, not an error.
func (e *Enrollment) Activate(at time.Time) bool {
	if e.Status != EnrollmentStatusPending {
		return false
	}
	e.Status = EnrollmentStatusActive
	e.EnrolledAt = &at
	e.UpdatedAt = at
	return true
}
