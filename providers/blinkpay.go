package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBlinkPayURL = "https://sandbox.debit.blinkpay.co.nz"

	tokenPath         = "/oauth2/token"
	quickPaymentsPath = "/payments/v1/quick-payments"

	// tokens are refreshed this long before they expire
	tokenExpirySkew      = 60 * time.Second
	defaultRevokeTimeout = 10 * time.Second
)

var (
	ErrConsentTimeout     = errors.New("timed out waiting for quick payment consent")
	ErrConsentRejected    = errors.New("quick payment consent was not authorised")
	ErrMissingRedirectURI = errors.New("quick payment response has no redirect uri")
)

// APIError is a non-2xx answer from BlinkPay.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("blinkpay %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth repeating.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// BlinkDebitConfig holds the settings for a BlinkDebitClient. RevokeTimeout
// bounds the revoke sent after a confirmation timeout.
type BlinkDebitConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	PollInterval  time.Duration
	RevokeTimeout time.Duration
	HTTPClient    *http.Client
}

// BlinkDebitClient implements PaymentProvider against the Blink Debit API.
type BlinkDebitClient struct {
	baseURL       string
	clientID      string
	clientSecret  string
	pollInterval  time.Duration
	revokeTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewBlinkDebitClient creates a new BlinkDebitClient.
func NewBlinkDebitClient(cfg BlinkDebitConfig, logger *zap.Logger) *BlinkDebitClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBlinkPayURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RevokeTimeout <= 0 {
		cfg.RevokeTimeout = defaultRevokeTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &BlinkDebitClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		pollInterval:  cfg.PollInterval,
		revokeTimeout: cfg.RevokeTimeout,
		httpClient:    cfg.HTTPClient,
		logger:        logger,
	}
}

// ---- Blink Debit API request/response structs ----

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ---- PaymentProvider implementation ----

// CreateQuickPayment creates a quick payment and returns its id and the bank redirect.
func (c *BlinkDebitClient) CreateQuickPayment(ctx context.Context, req models.QuickPaymentRequest) (*models.CreateQuickPaymentResponse, error) {
	var resp models.CreateQuickPaymentResponse
	if err := c.doRequest(ctx, "CreateQuickPayment", http.MethodPost, quickPaymentsPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.RedirectURI == "" {
		return &resp, ErrMissingRedirectURI
	}
	return &resp, nil
}

// GetQuickPayment returns the current state of a quick payment.
func (c *BlinkDebitClient) GetQuickPayment(ctx context.Context, quickPaymentID string) (*models.QuickPaymentResponse, error) {
	var resp models.QuickPaymentResponse
	path := quickPaymentsPath + "/" + url.PathEscape(quickPaymentID)
	if err := c.doRequest(ctx, "GetQuickPayment", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RevokeQuickPayment revokes a quick payment that has not been authorised yet.
func (c *BlinkDebitClient) RevokeQuickPayment(ctx context.Context, quickPaymentID string) error {
	path := quickPaymentsPath + "/" + url.PathEscape(quickPaymentID)
	return c.doRequest(ctx, "RevokeQuickPayment", http.MethodDelete, path, nil, nil)
}

// AwaitSuccessfulQuickPayment polls the quick payment until its consent is
// Authorised or Consumed. Rejected, Revoked and GatewayTimeout consents return
// ErrConsentRejected. When ctx is done the payment is revoked and ErrConsentTimeout
// is returned. 5xx and network errors are polled through; other errors end the wait.
func (c *BlinkDebitClient) AwaitSuccessfulQuickPayment(ctx context.Context, quickPaymentID string) (*models.QuickPaymentResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		qp, err := c.GetQuickPayment(ctx, quickPaymentID)
		switch {
		case err == nil:
			switch qp.Consent.Status {
			case models.ConsentStatusAuthorised, models.ConsentStatusConsumed:
				return qp, nil
			case models.ConsentStatusRejected, models.ConsentStatusRevoked, models.ConsentStatusGatewayTimeout:
				return qp, fmt.Errorf("%w: consent %s", ErrConsentRejected, qp.Consent.Status)
			}
			c.logger.Debug("Quick payment not yet authorised",
				zap.String("quick_payment_id", quickPaymentID),
				zap.String("status", qp.Consent.Status),
			)
		case ctx.Err() != nil:
			// request was cut short by the deadline, handled below
		case isTransient(err):
			c.logger.Warn("Transient error polling quick payment",
				zap.String("quick_payment_id", quickPaymentID),
				zap.Error(err),
			)
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			c.revokeAfterTimeout(ctx, quickPaymentID)
			return nil, fmt.Errorf("%w: %w", ErrConsentTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *BlinkDebitClient) revokeAfterTimeout(ctx context.Context, quickPaymentID string) {
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.revokeTimeout)
	defer cancel()

	if err := c.RevokeQuickPayment(revokeCtx, quickPaymentID); err != nil {
		c.logger.Warn("Failed to revoke timed out quick payment",
			zap.String("quick_payment_id", quickPaymentID),
			zap.Error(err),
		)
	}
}

func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// ---- Token handling ----

// accessToken returns the cached client-credentials token, fetching a new one
// when it is close to expiry. BlinkPay's token endpoint takes a JSON body, so
// this cannot be an x/oauth2 clientcredentials TokenSource, which posts a form.
//
// c.mu is held across the fetch: concurrent callers wait for the one
// in-flight request (bounded by the HTTP client timeout) instead of each
// fetching their own token.
func (c *BlinkDebitClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySkew)) {
		return c.token, nil
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var tok tokenResponse
	if err := c.send(req, "FetchToken", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("blinkpay FetchToken: empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = tokenExpiry(tok)
	return c.token, nil
}

func (c *BlinkDebitClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// tokenExpiry prefers expires_in and falls back to the JWT exp claim.
// The signature is not checked; the token is only ever sent back to BlinkPay.
func tokenExpiry(tok tokenResponse) time.Time {
	if tok.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	// unknown lifetime, use once
	return time.Now()
}

// ---- HTTP helper ----

func (c *BlinkDebitClient) doRequest(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("request-id", uuid.NewString())
	req.Header.Set("x-correlation-id", uuid.NewString())

	err = c.send(req, op, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	return err
}

func (c *BlinkDebitClient) send(req *http.Request, op string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blinkpay %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("blinkpay %s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("blinkpay %s: decode response: %w", op, err)
		}
	}
	return nil
}
