package models

import "github.com/shopspring/decimal"

// CheckoutSession is the Snipcart payment session a public token points to.
type CheckoutSession struct {
	ID                              string  `json:"id"`
	Invoice                         Invoice `json:"invoice"`
	PaymentAuthorizationRedirectURL string  `json:"paymentAuthorizationRedirectUrl,omitempty"`
}

// Invoice is the part of the session the bridge reads. Amount is a pointer so a
// missing amount can be told apart from zero.
type Invoice struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency"`
	Language string           `json:"language"`
	TargetID string           `json:"targetId"` // opaque cart reference
}

// PaymentState is the state pushed to the checkout gateway.
type PaymentState string

const (
	PaymentStateProcessed PaymentState = "processed"
	PaymentStateFailed    PaymentState = "failed"
)

// PaymentError describes why a payment failed, as Snipcart expects it.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentStatusUpdate is the body of the private payment endpoint.
type PaymentStatusUpdate struct {
	PaymentSessionID string        `json:"paymentSessionId"`
	State            PaymentState  `json:"state"`
	Error            *PaymentError `json:"error,omitempty"`
}

// PaymentStatusResult is Snipcart's answer to a status update.
type PaymentStatusResult struct {
	ReturnURL string `json:"returnUrl"`
}

// PaymentMethod is one entry of the payment-method list served to Snipcart.
type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CheckoutURL string `json:"checkoutUrl"`
	IconURL     string `json:"iconUrl,omitempty"`
}
