package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/logger"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/providers"
	"go.uber.org/zap"
)

// ReturnPath is where the bank sends the shopper back to.
const ReturnPath = "/payments/payment-return"

// CheckoutResult is what the checkout page needs to continue.
type CheckoutResult struct {
	RedirectURI    string
	QuickPaymentID string
	Reference      string
}

// CheckoutService starts payments.
type CheckoutService interface {
	// CreateCheckout creates one quick payment for the session behind publicToken.
	// There is no idempotency key: every call is a new payment attempt.
	CreateCheckout(ctx context.Context, publicToken, baseURL string) (*CheckoutResult, error)
}

type checkoutServiceImpl struct {
	cfg         *config.Config
	gateway     CheckoutGateway
	provider    providers.PaymentProvider
	recorder    Recorder
	logger      *zap.Logger
	orderNumber func() int
}

func NewCheckoutService(cfg *config.Config, gateway CheckoutGateway, provider providers.PaymentProvider, recorder Recorder, logger *zap.Logger) CheckoutService {
	return &checkoutServiceImpl{
		cfg:         cfg,
		gateway:     gateway,
		provider:    provider,
		recorder:    recorder,
		logger:      logger,
		orderNumber: randomOrderNumber,
	}
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, publicToken, baseURL string) (*CheckoutResult, error) {
	log := logger.For(ctx, s.logger)

	if missing := s.cfg.MissingCheckoutCredentials(); len(missing) > 0 {
		log.Error("Checkout refused, credentials not configured", zap.Strings("missing", missing))
		return nil, apperrors.Configuration("gateway_not_configured", "Payment gateway is not configured")
	}
	if publicToken == "" {
		return nil, apperrors.Validation("missing_public_token", "Invalid request or missing publicToken")
	}

	session, err := s.gateway.GetPaymentSession(ctx, publicToken)
	if err != nil {
		log.Error("Failed to fetch payment session", zap.Error(err))
		return nil, apperrors.Gateway("session_lookup_failed", "Failed to fetch payment session", err)
	}

	amount := session.Invoice.Amount
	if amount == nil || !amount.IsPositive() {
		log.Error("Payment session has no usable amount", zap.String("session_id", session.ID))
		return nil, apperrors.Gateway("invalid_session_amount", "Payment session has no valid amount", nil)
	}
	if cur := session.Invoice.Currency; cur != "" && !strings.EqualFold(cur, s.cfg.PaymentCurrency) {
		return nil, apperrors.Validation("unsupported_currency",
			fmt.Sprintf("Currency %s is not supported", strings.ToUpper(cur)))
	}

	descriptor := BuildDescriptor(*amount, s.cfg.PaymentCurrency, s.cfg.PublicBusinessName, s.cfg.PaymentCode, s.orderNumber())
	redirectURI := paymentReturnURL(baseURL, publicToken)

	log.Info("Creating quick payment",
		zap.String("session_id", session.ID),
		zap.String("amount", descriptor.Amount),
		zap.String("reference", descriptor.Reference),
	)

	resp, err := s.provider.CreateQuickPayment(ctx, models.NewQuickPaymentRequest(descriptor, redirectURI))
	if errors.Is(err, providers.ErrMissingRedirectURI) {
		log.Error("Quick payment created without redirect URI", zap.Error(err))
		return nil, apperrors.Provider("provider_redirect_missing", "Payment provider returned no redirect URL", err)
	}
	if err != nil {
		log.Error("Failed to create quick payment", zap.Error(err))
		return nil, apperrors.Provider("quick_payment_failed", "Failed to create payment", err)
	}

	s.recorder.RecordCheckout(ctx)
	log.Info("Quick payment created", zap.String("quick_payment_id", resp.QuickPaymentID))

	return &CheckoutResult{
		RedirectURI:    resp.RedirectURI,
		QuickPaymentID: resp.QuickPaymentID,
		Reference:      descriptor.Reference,
	}, nil
}

// paymentReturnURL carries the public token through the bank redirect; BlinkPay appends cid.
func paymentReturnURL(baseURL, publicToken string) string {
	return strings.TrimRight(baseURL, "/") + ReturnPath + "?" + url.Values{"publicToken": []string{publicToken}}.Encode()
}
