package services

import (
	"context"
	"fmt"

	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
)

// Notifier pushes a payment state to the checkout gateway.
type Notifier interface {
	Notify(ctx context.Context, publicToken string, state models.PaymentState, paymentErr *models.PaymentError) (*models.PaymentStatusResult, error)
}

// GatewayNotifier resolves the gateway session from the public token and
// pushes the state once. Every failure is an *errors.Error of KindGateway.
type GatewayNotifier struct {
	gateway CheckoutGateway
}

func NewGatewayNotifier(gateway CheckoutGateway) *GatewayNotifier {
	return &GatewayNotifier{gateway: gateway}
}

func (n *GatewayNotifier) Notify(ctx context.Context, publicToken string, state models.PaymentState, paymentErr *models.PaymentError) (result *models.PaymentStatusResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.Gateway("status_update_failed", "Failed to update payment status", fmt.Errorf("panic: %v", r))
		}
	}()

	// the bank callback only carries the public token
	session, err := n.gateway.GetPaymentSession(ctx, publicToken)
	if err != nil {
		return nil, apperrors.Gateway("session_lookup_failed", "Failed to resolve payment session", err)
	}
	if session.ID == "" {
		return nil, apperrors.Gateway("session_id_missing", "Payment session has no identifier", nil)
	}

	result, err = n.gateway.UpdatePaymentStatus(ctx, models.PaymentStatusUpdate{
		PaymentSessionID: session.ID,
		State:            state,
		Error:            paymentErr,
	})
	if err != nil {
		return nil, apperrors.Gateway("status_update_rejected", "Checkout gateway rejected the payment status", err)
	}
	return result, nil
}
