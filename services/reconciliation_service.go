package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/logger"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/providers"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var failedPaymentError = &models.PaymentError{Code: "payment_failed", Message: "Payment processing failed"}

// ReconcileResult is the final disposition of one reconciliation.
type ReconcileResult struct {
	Disposition models.Disposition
	StatusCode  int
	Reference   string // set only when the bank confirmed the payment
	ReturnURL   string
	Message     string
	Outcome     models.PaymentOutcome
	Trace       []models.ReconciliationState
}

// ReconciliationService settles a returning payment with the checkout gateway.
type ReconciliationService interface {
	// Reconcile waits for the bank outcome of quickPaymentID and reports it to
	// the checkout gateway exactly once per call.
	//
	// Calling it again for the same payment queries the provider again and pushes
	// the same state again. That is only safe because Snipcart's payment status
	// endpoint treats a repeated (session, state) pair as a no-op; nothing here
	// deduplicates.
	Reconcile(ctx context.Context, publicToken, quickPaymentID string) (*ReconcileResult, error)
}

type reconciliationServiceImpl struct {
	cfg       *config.Config
	provider  providers.PaymentProvider
	notifier  Notifier
	publisher EventPublisher
	recorder  Recorder
	logger    *zap.Logger
}

func NewReconciliationService(cfg *config.Config, provider providers.PaymentProvider, notifier Notifier, publisher EventPublisher, recorder Recorder, logger *zap.Logger) ReconciliationService {
	return &reconciliationServiceImpl{
		cfg:       cfg,
		provider:  provider,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
	}
}

func (s *reconciliationServiceImpl) Reconcile(ctx context.Context, publicToken, quickPaymentID string) (*ReconcileResult, error) {
	if publicToken == "" || quickPaymentID == "" {
		return nil, apperrors.Validation("missing_parameters", "Missing required parameters")
	}
	if s.cfg.SnipcartGatewayAPIKey == "" {
		logger.For(ctx, s.logger).Error("Reconciliation refused, SNIPCART_GATEWAY_API_KEY not configured")
		return nil, apperrors.Configuration("gateway_not_configured", "Payment gateway is not configured")
	}

	log := logger.For(ctx, s.logger).With(zap.String("quick_payment_id", quickPaymentID))
	trace := []models.ReconciliationState{models.StateAwaitingConfirmation}

	// The shopper closing the tab must not abandon a payment the bank may already have taken.
	detached := context.WithoutCancel(ctx)

	start := time.Now()
	outcome := s.awaitOutcome(detached, quickPaymentID, log)
	wait := time.Since(start)
	trace = append(trace, outcome.Diagnostic)

	log.Info("Payment outcome derived",
		zap.Bool("succeeded", outcome.Succeeded),
		zap.String("diagnostic", string(outcome.Diagnostic)),
		zap.String("reason", outcome.Reason),
		zap.Duration("wait", wait),
	)

	notifyResult, notifyErr := s.notify(detached, publicToken, outcome)
	result := s.dispose(outcome, notifyResult, notifyErr, trace, log)

	// telemetry must not hold back the response
	telemetryCtx, cancel := context.WithTimeout(detached, s.cfg.TelemetryTimeout)
	defer cancel()
	s.recorder.RecordReconciliation(telemetryCtx, result.Disposition, outcome.Diagnostic, wait)
	s.publisher.Publish(telemetryCtx, paymentEvent(quickPaymentID, result))

	return result, nil
}

// awaitOutcome never panics and never returns a success without a reference.
func (s *reconciliationServiceImpl) awaitOutcome(ctx context.Context, quickPaymentID string, log *zap.Logger) (outcome models.PaymentOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while deriving payment outcome", zap.Any("panic", r))
			outcome = models.Failed("outcome_derivation_failed", models.StateProviderError)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	qp, err := s.provider.AwaitSuccessfulQuickPayment(waitCtx, quickPaymentID)
	switch {
	case errors.Is(err, providers.ErrConsentTimeout), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Timed out waiting for payment confirmation", zap.Error(err))
		return models.Failed("confirmation_timed_out", models.StateTimedOut)
	case errors.Is(err, providers.ErrConsentRejected):
		log.Warn("Payment consent was not authorised", zap.Error(err))
		return models.Failed("consent_rejected", models.StateProviderError)
	case err != nil:
		log.Error("Payment provider error", zap.Error(err))
		return models.Failed("provider_error", models.StateProviderError)
	}

	reference, err := paymentReference(qp)
	if err != nil {
		log.Error("Malformed quick payment response", zap.Error(err))
		return models.Failed("malformed_provider_response", models.StateProviderError)
	}
	return models.Succeeded(reference)
}

func paymentReference(qp *models.QuickPaymentResponse) (string, error) {
	if qp == nil {
		return "", errors.New("empty quick payment response")
	}
	if qp.Consent.Detail == nil || qp.Consent.Detail.Pcr == nil {
		return "", fmt.Errorf("quick payment %s has no pcr", qp.QuickPaymentID)
	}
	if qp.Consent.Detail.Pcr.Reference == "" {
		return "", fmt.Errorf("quick payment %s has no reference", qp.QuickPaymentID)
	}
	return qp.Consent.Detail.Pcr.Reference, nil
}

// notify makes the single status push for this reconciliation.
func (s *reconciliationServiceImpl) notify(ctx context.Context, publicToken string, outcome models.PaymentOutcome) (*models.PaymentStatusResult, error) {
	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	if outcome.Succeeded {
		return s.notifier.Notify(notifyCtx, publicToken, models.PaymentStateProcessed, nil)
	}
	return s.notifier.Notify(notifyCtx, publicToken, models.PaymentStateFailed, failedPaymentError)
}

func (s *reconciliationServiceImpl) dispose(outcome models.PaymentOutcome, notifyResult *models.PaymentStatusResult, notifyErr error, trace []models.ReconciliationState, log *zap.Logger) *ReconcileResult {
	result := &ReconcileResult{Outcome: outcome}
	if notifyErr == nil && notifyResult != nil {
		result.ReturnURL = notifyResult.ReturnURL
	}

	switch {
	case outcome.Succeeded && notifyErr == nil:
		trace = append(trace, models.StateNotifySucceeded, models.StateDone)
		result.Disposition = models.DispositionSuccess
		result.StatusCode = http.StatusOK
		result.Reference = outcome.Reference
		result.Message = "Payment processed successfully"
		log.Info("Payment reconciled", zap.String("reference", outcome.Reference))

	case outcome.Succeeded:
		trace = append(trace, models.StateNotifyFailed, models.StatePartialFailure)
		result.Disposition = models.DispositionPartialFailure
		// PARTIAL_FAILURE_STATUS, 400 unless overridden
		result.StatusCode = s.cfg.PartialFailureStatus
		result.Reference = outcome.Reference
		result.Message = "Payment was taken but the order could not be updated. Please contact us with your payment reference."
		log.Error("Payment succeeded but checkout gateway was not informed",
			zap.String("reference", outcome.Reference),
			zap.Error(notifyErr),
		)

	case notifyErr == nil:
		trace = append(trace, models.StateNotifySucceeded, models.StateDone)
		result.Disposition = models.DispositionFailed
		result.StatusCode = http.StatusBadRequest
		result.Message = "Payment processing failed"
		log.Info("Payment failure reported to checkout gateway")

	default:
		trace = append(trace, models.StateNotifyFailed, models.StateDone)
		result.Disposition = models.DispositionUnreconciled
		result.StatusCode = http.StatusBadRequest
		result.Message = "Payment processing failed"
		log.Error("Payment failed and checkout gateway was not informed",
			zap.String("reason", outcome.Reason),
			zap.Error(notifyErr),
		)
	}

	result.Trace = trace
	return result
}

func paymentEvent(quickPaymentID string, result *ReconcileResult) models.PaymentEvent {
	eventType := models.EventPaymentFailed
	switch result.Disposition {
	case models.DispositionSuccess:
		eventType = models.EventPaymentSucceeded
	case models.DispositionPartialFailure:
		eventType = models.EventPaymentPartialFailure
	}

	return models.PaymentEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		QuickPaymentID: quickPaymentID,
		Reference:      result.Reference,
		State:          string(result.Trace[len(result.Trace)-1]),
		Disposition:    string(result.Disposition),
		Reason:         result.Outcome.Reason,
		Timestamp:      time.Now().UTC(),
	}
}
