package model

import (
	"time"

	"lms-enrollment-engine/internal/domain"
)

type EventType string

const (
	EventChargeSucceeded EventType = "charge_succeeded"
	EventChargeFailed    EventType = "charge_failed"
	EventRefundIssued    EventType = "refund_issued"
	EventDisputeOpened   EventType = "dispute_opened"
)

// ErrorKind classifies why an event failed to apply. It is stored on the
// event row next to the human-readable message so that callers branch on the
// kind, never on error-string contents.
type ErrorKind string

const (
	ErrorKindOrphan            ErrorKind = "orphan"
	ErrorKindInvalidTransition ErrorKind = "invalid_transition"
	ErrorKindInvalidArgument   ErrorKind = "invalid_argument"
	ErrorKindTransient         ErrorKind = "transient"
)

// ProviderEvent is an inbound notification from the payment provider, kept in
// an append-only log keyed by (provider, event id). The log is the
// deduplication boundary and the replay source: an orphan or failed event is
// retained here, never discarded, because the provider will not resend it
// indefinitely.
type ProviderEvent struct {
	EventID   string
	Provider  string
	Type      EventType
	ChargeRef string
	Amount    int64
	// EnrollmentID is set when the provider metadata carries our reference
	// (subscription cycle charges, manual synthesis). Empty otherwise.
	EnrollmentID string
	Payload     []byte // raw provider payload, for audit and replay
	ReceivedAt  time.Time
	ProcessedAt *time.Time
	LastError   *string
	// LastErrorKind is empty while the event has never failed.
	LastErrorKind ErrorKind
}

// Orphaned reports whether the last application attempt found no matching
// schedule. Orphans are operator-owned; automated retries skip them.
func (e *ProviderEvent) Orphaned() bool { return e.LastErrorKind == ErrorKindOrphan }

func (e *ProviderEvent) Validate() error {
	if e.EventID == "" || e.Provider == "" {
		return domain.ErrInvalidArgument
	}
	switch e.Type {
	case EventChargeSucceeded, EventChargeFailed, EventRefundIssued, EventDisputeOpened:
	default:
		return domain.ErrInvalidArgument
	}
	if e.Type != EventDisputeOpened && e.Amount < 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Processed reports whether the event's side effects were already applied.
func (e *ProviderEvent) Processed() bool { return e.ProcessedAt != nil }
