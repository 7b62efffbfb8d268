package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/clients"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/logger"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"go.uber.org/zap"
)

const (
	PaymentMethodID   = "blinkpay"
	PaymentMethodName = "BlinkPay"
	CheckoutPath      = "/payments/checkout"
)

// PaymentMethodService tells Snipcart which payment methods to offer.
type PaymentMethodService interface {
	ListPaymentMethods(ctx context.Context, publicToken, baseURL string) ([]models.PaymentMethod, error)
}

type paymentMethodServiceImpl struct {
	cfg     *config.Config
	gateway CheckoutGateway
	logger  *zap.Logger
}

func NewPaymentMethodService(cfg *config.Config, gateway CheckoutGateway, logger *zap.Logger) PaymentMethodService {
	return &paymentMethodServiceImpl{cfg: cfg, gateway: gateway, logger: logger}
}

func (s *paymentMethodServiceImpl) ListPaymentMethods(ctx context.Context, publicToken, baseURL string) ([]models.PaymentMethod, error) {
	if publicToken == "" {
		return nil, apperrors.Validation("missing_public_token", "Missing PublicToken")
	}

	if err := s.gateway.ValidatePublicToken(ctx, publicToken); err != nil {
		var upErr *clients.UpstreamError
		if errors.As(err, &upErr) {
			logger.For(ctx, s.logger).Warn("Snipcart token validation failed", zap.Int("status", upErr.StatusCode))
			return nil, apperrors.New(apperrors.KindGateway, http.StatusUnauthorized, "unauthorized", "Unauthorized", err)
		}
		logger.For(ctx, s.logger).Error("Snipcart token validation errored", zap.Error(err))
		return nil, apperrors.Gateway("token_validation_failed", "Internal Server Error", err)
	}

	checkoutURL := s.cfg.CheckoutPageURL
	if checkoutURL == "" {
		checkoutURL = strings.TrimRight(baseURL, "/") + CheckoutPath
	}

	return []models.PaymentMethod{{
		ID:          PaymentMethodID,
		Name:        PaymentMethodName,
		CheckoutURL: checkoutURL,
	}}, nil
}
