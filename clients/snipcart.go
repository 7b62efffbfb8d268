package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
)

const DefaultSnipcartURL = "https://payment.snipcart.com/api"

// UpstreamError is a non-2xx answer from the checkout gateway. Body is for logs only.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("snipcart %s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// SnipcartClient talks to Snipcart's custom payment gateway API.
type SnipcartClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSnipcartClient(baseURL, apiKey string, timeout time.Duration) *SnipcartClient {
	if baseURL == "" {
		baseURL = DefaultSnipcartURL
	}
	return &SnipcartClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetPaymentSession looks up the checkout session behind a public token.
func (s *SnipcartClient) GetPaymentSession(ctx context.Context, publicToken string) (*models.CheckoutSession, error) {
	query := url.Values{"publicToken": []string{publicToken}}
	resp, err := s.Do(ctx, http.MethodGet, "/public/custom-payment-gateway/payment-session", query, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("snipcart GetPaymentSession: %w", err)
	}

	var session models.CheckoutSession
	if err := DecodeJSON(resp, "GetPaymentSession", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ValidatePublicToken checks that a public token was issued by Snipcart.
func (s *SnipcartClient) ValidatePublicToken(ctx context.Context, publicToken string) error {
	query := url.Values{"publicToken": []string{publicToken}}
	resp, err := s.Do(ctx, http.MethodGet, "/public/custom-payment-gateway/validate", query, nil, nil)
	if err != nil {
		return fmt.Errorf("snipcart ValidatePublicToken: %w", err)
	}
	return DecodeJSON(resp, "ValidatePublicToken", nil)
}

// UpdatePaymentStatus pushes a payment state for a session.
func (s *SnipcartClient) UpdatePaymentStatus(ctx context.Context, update models.PaymentStatusUpdate) (*models.PaymentStatusResult, error) {
	b, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("marshal status update: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+s.apiKey)
	headers.Set("Content-Type", "application/json")

	resp, err := s.Do(ctx, http.MethodPost, "/private/custom-payment-gateway/payment", nil, headers, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("snipcart UpdatePaymentStatus: %w", err)
	}

	var result models.PaymentStatusResult
	if err := DecodeJSON(resp, "UpdatePaymentStatus", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *SnipcartClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	for k, v := range headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	return s.client.Do(req)
}

// DecodeJSON closes resp and decodes its body into out. An empty body leaves out untouched.
func DecodeJSON(resp *http.Response, op string, out interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("snipcart %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("snipcart %s: decode response: %w", op, err)
	}
	return nil
}
