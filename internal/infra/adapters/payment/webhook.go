package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the raw body.
const WebhookSignatureHeader = "X-Provider-Signature"

var ErrBadSignature = errors.New("webhook signature mismatch")

// VerifySignature checks the provider's HMAC over the raw request body.
func VerifySignature(secret string, body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// webhookPayload is the provider's event envelope. enrollment_id arrives in
// metadata on subscription cycle charges, where the charge ref alone cannot
// be matched to a pre-generated schedule row.
type webhookPayload struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Data     struct {
		Charge   string `json:"charge"`
		Amount   int64  `json:"amount"`
		Metadata struct {
			Reference    string `json:"reference"`
			EnrollmentID string `json:"enrollment_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// ParseWebhook decodes the raw body into a domain event. The raw payload is
// retained verbatim for audit and replay.
func ParseWebhook(provider string, body []byte, receivedAt time.Time) (*model.ProviderEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, domain.ErrInvalidArgument
	}
	ev := &model.ProviderEvent{
		EventID:      p.ID,
		Provider:     provider,
		Type:         model.EventType(p.Type),
		ChargeRef:    p.Data.Charge,
		Amount:       p.Data.Amount,
		EnrollmentID: p.Data.Metadata.EnrollmentID,
		Payload:      body,
		ReceivedAt:   receivedAt,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
