package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/shopspring/decimal"
)

// ---- config ----

func testConfig(overrides map[string]string) *config.Config {
	env := map[string]string{
		"SNIPCART_GATEWAY_API_KEY": "gateway-key",
		"BLINKPAY_CLIENT_ID":       "client-id",
		"BLINKPAY_CLIENT_SECRET":   "client-secret",
		"PUBLIC_BUSINESS_NAME":     "Kiwi Shop",
		"CONFIRM_TIMEOUT":          "1s",
		"NOTIFY_TIMEOUT":           "1s",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.Load(func(k string) string { return env[k] })
	if err != nil {
		panic(err)
	}
	return cfg
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// ---- mock checkout gateway ----

type mockGateway struct {
	mu sync.Mutex

	session    *models.CheckoutSession
	sessionErr error
	validErr   error
	updateErr  error
	returnURL  string

	sessionCalls  int
	validateCalls int
	updateCalls   int
	updates       []models.PaymentStatusUpdate
	updateCtxErrs []error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		session:   &models.CheckoutSession{ID: "sess-1", Invoice: models.Invoice{Amount: amount("12.5"), Currency: "NZD"}},
		returnURL: "https://shop.example/order/complete",
	}
}

func (m *mockGateway) GetPaymentSession(_ context.Context, _ string) (*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCalls++
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockGateway) ValidatePublicToken(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validateCalls++
	return m.validErr
}

func (m *mockGateway) UpdatePaymentStatus(ctx context.Context, update models.PaymentStatusUpdate) (*models.PaymentStatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	m.updates = append(m.updates, update)
	m.updateCtxErrs = append(m.updateCtxErrs, ctx.Err())
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.PaymentStatusResult{ReturnURL: m.returnURL}, nil
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionCalls + m.validateCalls + m.updateCalls
}

// ---- mock payment provider ----

type mockProvider struct {
	mu sync.Mutex

	createResp *models.CreateQuickPaymentResponse
	createErr  error
	lastCreate models.QuickPaymentRequest

	awaitFn func(ctx context.Context, id string) (*models.QuickPaymentResponse, error)

	createCalls int
	awaitCalls  int
	hadDeadline bool
}

func (m *mockProvider) CreateQuickPayment(_ context.Context, req models.QuickPaymentRequest) (*models.CreateQuickPaymentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.lastCreate = req
	return m.createResp, m.createErr
}

func (m *mockProvider) AwaitSuccessfulQuickPayment(ctx context.Context, id string) (*models.QuickPaymentResponse, error) {
	m.mu.Lock()
	m.awaitCalls++
	_, m.hadDeadline = ctx.Deadline()
	fn := m.awaitFn
	m.mu.Unlock()
	if fn == nil {
		return authorised(id, "PAY-123456"), nil
	}
	return fn(ctx, id)
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls + m.awaitCalls
}

func authorised(id, reference string) *models.QuickPaymentResponse {
	return &models.QuickPaymentResponse{
		QuickPaymentID: id,
		Consent: models.Consent{
			ConsentID: id,
			Status:    models.ConsentStatusAuthorised,
			Detail: &models.ConsentDetail{
				Type: models.ConsentDetailTypeSingle,
				Pcr:  &models.Pcr{Particulars: "Kiwi Shop", Code: "BlinkPay", Reference: reference},
			},
		},
	}
}

// ---- mock publisher and recorder ----

type mockPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (m *mockPublisher) Publish(_ context.Context, e models.PaymentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

type mockRecorder struct {
	checkouts    int
	dispositions []models.Disposition
}

func (m *mockRecorder) RecordCheckout(_ context.Context) { m.checkouts++ }

func (m *mockRecorder) RecordReconciliation(_ context.Context, d models.Disposition, _ models.ReconciliationState, _ time.Duration) {
	m.dispositions = append(m.dispositions, d)
}

// slowTelemetry stands in for an unreachable metrics or event backend: every
// call blocks until its context ends.
type slowTelemetry struct {
	mu       sync.Mutex
	deadline []bool
}

func (s *slowTelemetry) wait(ctx context.Context) {
	_, ok := ctx.Deadline()
	s.mu.Lock()
	s.deadline = append(s.deadline, ok)
	s.mu.Unlock()
	<-ctx.Done()
}

func (s *slowTelemetry) Publish(ctx context.Context, _ models.PaymentEvent) { s.wait(ctx) }

func (s *slowTelemetry) RecordCheckout(ctx context.Context) { s.wait(ctx) }

func (s *slowTelemetry) RecordReconciliation(ctx context.Context, _ models.Disposition, _ models.ReconciliationState, _ time.Duration) {
	s.wait(ctx)
}
