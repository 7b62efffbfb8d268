package providers

import (
	"context"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
)

// PaymentProvider defines what the bridge needs from a bank payment provider.
type PaymentProvider interface {
	// CreateQuickPayment starts a single redirect based payment and returns where to send the shopper.
	CreateQuickPayment(ctx context.Context, req models.QuickPaymentRequest) (*models.CreateQuickPaymentResponse, error)

	// AwaitSuccessfulQuickPayment blocks until the payment is authorised, fails, or ctx is done.
	// The caller owns the deadline.
	AwaitSuccessfulQuickPayment(ctx context.Context, quickPaymentID string) (*models.QuickPaymentResponse, error)
}
