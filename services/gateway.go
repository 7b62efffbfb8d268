package services

import (
	"context"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
)

// CheckoutGateway is the part of the Snipcart API the services call.
type CheckoutGateway interface {
	GetPaymentSession(ctx context.Context, publicToken string) (*models.CheckoutSession, error)
	ValidatePublicToken(ctx context.Context, publicToken string) error
	UpdatePaymentStatus(ctx context.Context, update models.PaymentStatusUpdate) (*models.PaymentStatusResult, error)
}

// EventPublisher receives one event per finished reconciliation.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent)
}

// Recorder collects business metrics.
type Recorder interface {
	RecordCheckout(ctx context.Context)
	RecordReconciliation(ctx context.Context, disposition models.Disposition, outcome models.ReconciliationState, wait time.Duration)
}
