package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/providers"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reconcileFixture struct {
	svc       services.ReconciliationService
	gateway   *mockGateway
	provider  *mockProvider
	publisher *mockPublisher
	recorder  *mockRecorder
}

func newReconcile(cfgOverrides map[string]string) *reconcileFixture {
	f := &reconcileFixture{
		gateway:   newMockGateway(),
		provider:  &mockProvider{},
		publisher: &mockPublisher{},
		recorder:  &mockRecorder{},
	}
	f.svc = services.NewReconciliationService(
		testConfig(cfgOverrides),
		f.provider,
		services.NewGatewayNotifier(f.gateway),
		f.publisher,
		f.recorder,
		zap.NewNop(),
	)
	return f
}

func failWith(err error) func(context.Context, string) (*models.QuickPaymentResponse, error) {
	return func(context.Context, string) (*models.QuickPaymentResponse, error) { return nil, err }
}

func TestReconcile_MissingParameters(t *testing.T) {
	cases := map[string][2]string{
		"no token":      {"", "qp-1"},
		"no identifier": {"tok", ""},
		"nothing":       {"", ""},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newReconcile(nil)

			res, err := f.svc.Reconcile(context.Background(), in[0], in[1])

			assert.Nil(t, res)
			appErr := requireAppError(t, err)
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Equal(t, 0, f.provider.calls())
			assert.Equal(t, 0, f.gateway.calls())
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestReconcile_MissingGatewayKey(t *testing.T) {
	f := newReconcile(nil)
	cfg := testConfig(nil)
	cfg.SnipcartGatewayAPIKey = ""
	f.svc = services.NewReconciliationService(cfg, f.provider, services.NewGatewayNotifier(f.gateway), f.publisher, f.recorder, zap.NewNop())

	_, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	assert.Equal(t, 0, f.provider.calls())
	assert.Equal(t, 0, f.gateway.calls())
}

func TestReconcile_ConfirmedAndAccepted(t *testing.T) {
	f := newReconcile(nil)

	res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.DispositionSuccess, res.Disposition)
	assert.Equal(t, "PAY-123456", res.Reference)
	assert.Equal(t, "https://shop.example/order/complete", res.ReturnURL)
	assert.Equal(t, []models.ReconciliationState{
		models.StateAwaitingConfirmation, models.StateConfirmed, models.StateNotifySucceeded, models.StateDone,
	}, res.Trace)

	require.Equal(t, 1, f.gateway.updateCalls)
	assert.Equal(t, "sess-1", f.gateway.updates[0].PaymentSessionID)
	assert.Equal(t, models.PaymentStateProcessed, f.gateway.updates[0].State)
	assert.Nil(t, f.gateway.updates[0].Error)
	assert.True(t, f.provider.hadDeadline)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.EventPaymentSucceeded, f.publisher.events[0].Type)
	assert.Equal(t, "qp-1", f.publisher.events[0].QuickPaymentID)
	assert.Equal(t, []models.Disposition{models.DispositionSuccess}, f.recorder.dispositions)
}

func TestReconcile_ConfirmedButRejectedIsPartialFailure(t *testing.T) {
	f := newReconcile(nil)
	f.gateway.updateErr = errors.New("status 500")

	res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, models.DispositionPartialFailure, res.Disposition)
	assert.Equal(t, "PAY-123456", res.Reference)
	assert.Equal(t, models.StatePartialFailure, res.Trace[len(res.Trace)-1])

	// the failure is not re-pushed as a failed payment
	require.Equal(t, 1, f.gateway.updateCalls)
	assert.Equal(t, models.PaymentStateProcessed, f.gateway.updates[0].State)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.EventPaymentPartialFailure, f.publisher.events[0].Type)
	assert.Equal(t, "PAY-123456", f.publisher.events[0].Reference)
}

func TestReconcile_PartialFailureStatusIsConfigurable(t *testing.T) {
	f := newReconcile(map[string]string{"PARTIAL_FAILURE_STATUS": "502"})
	f.gateway.updateErr = errors.New("status 500")

	res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.NotEqual(t, http.StatusOK, res.StatusCode)
}

func TestReconcile_SessionLookupFailureOnSuccessIsPartialFailure(t *testing.T) {
	f := newReconcile(nil)
	f.gateway.sessionErr = errors.New("status 503")

	res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Equal(t, models.DispositionPartialFailure, res.Disposition)
	assert.Equal(t, "PAY-123456", res.Reference)
	assert.Equal(t, 0, f.gateway.updateCalls)
}

func TestReconcile_FailureOutcomes(t *testing.T) {
	cases := map[string]struct {
		await      func(context.Context, string) (*models.QuickPaymentResponse, error)
		diagnostic models.ReconciliationState
	}{
		"timeout": {
			await:      failWith(fmt.Errorf("%w: %w", providers.ErrConsentTimeout, context.DeadlineExceeded)),
			diagnostic: models.StateTimedOut,
		},
		"rejected": {
			await:      failWith(fmt.Errorf("%w: consent Rejected", providers.ErrConsentRejected)),
			diagnostic: models.StateProviderError,
		},
		"transport": {
			await:      failWith(errors.New("connection reset")),
			diagnostic: models.StateProviderError,
		},
		"panic": {
			await: func(context.Context, string) (*models.QuickPaymentResponse, error) {
				panic("boom")
			},
			diagnostic: models.StateProviderError,
		},
		"malformed": {
			await: func(_ context.Context, id string) (*models.QuickPaymentResponse, error) {
				return &models.QuickPaymentResponse{QuickPaymentID: id, Consent: models.Consent{Status: models.ConsentStatusAuthorised}}, nil
			},
			diagnostic: models.StateProviderError,
		},
	}

	for name, tc := range cases {
		for _, gatewayRejects := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/gateway_rejects=%v", name, gatewayRejects), func(t *testing.T) {
				f := newReconcile(nil)
				f.provider.awaitFn = tc.await
				if gatewayRejects {
					f.gateway.updateErr = errors.New("status 500")
				}

				res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

				require.NoError(t, err)
				assert.Equal(t, http.StatusBadRequest, res.StatusCode)
				assert.Empty(t, res.Reference)
				assert.False(t, res.Outcome.Succeeded)
				assert.Equal(t, tc.diagnostic, res.Trace[1])

				require.Equal(t, 1, f.gateway.updateCalls)
				assert.Equal(t, models.PaymentStateFailed, f.gateway.updates[0].State)
				require.NotNil(t, f.gateway.updates[0].Error)
				assert.Equal(t, "payment_failed", f.gateway.updates[0].Error.Code)

				if gatewayRejects {
					assert.Equal(t, models.DispositionUnreconciled, res.Disposition)
				} else {
					assert.Equal(t, models.DispositionFailed, res.Disposition)
				}
				require.Len(t, f.publisher.events, 1)
				assert.Equal(t, models.EventPaymentFailed, f.publisher.events[0].Type)
				assert.Empty(t, f.publisher.events[0].Reference)
			})
		}
	}
}

func TestReconcile_ConfirmTimeoutBoundsTheWait(t *testing.T) {
	f := newReconcile(map[string]string{"CONFIRM_TIMEOUT": "20ms"})
	f.provider.awaitFn = func(ctx context.Context, _ string) (*models.QuickPaymentResponse, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", providers.ErrConsentTimeout, ctx.Err())
	}

	start := time.Now()
	res, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.StateTimedOut, res.Trace[1])
	assert.Equal(t, models.DispositionFailed, res.Disposition)
}

func TestReconcile_SlowTelemetryDoesNotWithholdPartialFailure(t *testing.T) {
	gateway := newMockGateway()
	gateway.updateErr = errors.New("snipcart down")
	slow := &slowTelemetry{}
	svc := services.NewReconciliationService(
		testConfig(map[string]string{"TELEMETRY_TIMEOUT": "50ms"}),
		&mockProvider{},
		services.NewGatewayNotifier(gateway),
		slow,
		slow,
		zap.NewNop(),
	)

	start := time.Now()
	res, err := svc.Reconcile(context.Background(), "tok", "qp-1")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.DispositionPartialFailure, res.Disposition)
	assert.Equal(t, "PAY-123456", res.Reference)
	assert.Equal(t, []bool{true, true}, slow.deadline)
}

func TestReconcile_NotificationSurvivesCallerCancellation(t *testing.T) {
	f := newReconcile(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Reconcile(ctx, "tok", "qp-1")

	require.NoError(t, err)
	assert.Equal(t, models.DispositionSuccess, res.Disposition)
	require.Len(t, f.gateway.updateCtxErrs, 1)
	assert.NoError(t, f.gateway.updateCtxErrs[0])
}

func TestReconcile_RepeatedCallsGiveSameDisposition(t *testing.T) {
	f := newReconcile(nil)

	first, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")
	require.NoError(t, err)
	second, err := f.svc.Reconcile(context.Background(), "tok", "qp-1")
	require.NoError(t, err)

	assert.Equal(t, first.Disposition, second.Disposition)
	assert.Equal(t, first.StatusCode, second.StatusCode)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, 2, f.gateway.updateCalls)
	assert.Equal(t, f.gateway.updates[0], f.gateway.updates[1])
}
