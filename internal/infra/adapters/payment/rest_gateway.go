package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lms-enrollment-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RESTGateway)(nil)

// RESTGateway implements adapter.PaymentGateway against the provider's REST
// API. Confirmation of a charge never comes from these calls; the event feed
// is the only source of truth for money movement.
type RESTGateway struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTGateway(name, baseURL, apiKey string, timeout time.Duration) (*RESTGateway, error) {
	if name == "" || apiKey == "" {
		return nil, errors.New("gateway name and api key required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTGateway{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *RESTGateway) Name() string { return g.name }

func (g *RESTGateway) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider http %d on %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateCharge initiates a charge and returns the provider charge id. The
// reference travels in metadata so asynchronous events can be tied back to
// the enrollment even when the charge ref alone is not enough.
func (g *RESTGateway) CreateCharge(ctx context.Context, amount int64, currency, reference string) (string, error) {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"metadata": map[string]string{"reference": reference},
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.post(ctx, "/v1/charges", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("provider returned empty charge id")
	}
	return out.ID, nil
}

// Refund issues a refund; amount nil means full refund.
func (g *RESTGateway) Refund(ctx context.Context, chargeID string, amount *int64) (string, error) {
	payload := map[string]interface{}{"charge": chargeID}
	if amount != nil {
		payload["amount"] = *amount
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/v1/refunds", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("provider returned empty refund id")
	}
	return out.ID, nil
}

// Cancel voids an initiated-but-unconfirmed charge.
func (g *RESTGateway) Cancel(ctx context.Context, chargeID string) error {
	var out struct {
		Status string `json:"status"`
	}
	return g.post(ctx, "/v1/charges/"+chargeID+"/cancel", map[string]string{}, &out)
}
