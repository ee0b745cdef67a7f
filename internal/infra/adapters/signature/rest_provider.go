package signature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/adapter"
)

var _ adapter.SignatureProvider = (*RESTProvider)(nil)

// RESTProvider queries the e-sign service for agreement status. Status is
// pulled on demand; the engine never caches it beyond the enrollment row.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTProvider(baseURL, apiKey string) (*RESTProvider, error) {
	if apiKey == "" {
		return nil, errors.New("signature api key required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid signature base url: %w", err)
	}
	return &RESTProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *RESTProvider) Name() string { return "esign" }

func (p *RESTProvider) Status(ctx context.Context, enrollmentID string) (model.SignatureStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/v1/agreements/"+enrollmentID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// No agreement created yet; the enrollment keeps its sent state.
		return model.SignatureSent, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("esign http %d", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	switch out.Status {
	case "signed", "completed":
		return model.SignatureCompleted, nil
	case "delivered":
		return model.SignatureDelivered, nil
	case "declined":
		return model.SignatureDeclined, nil
	case "voided":
		return model.SignatureVoided, nil
	default:
		return model.SignatureSent, nil
	}
}
