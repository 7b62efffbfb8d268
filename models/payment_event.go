package models

import "time"

// PaymentEvent is published after every reconciliation.
type PaymentEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"` // payment_succeeded, payment_failed, payment_partial_failure
	QuickPaymentID string    `json:"quick_payment_id"`
	Reference      string    `json:"reference,omitempty"`
	State          string    `json:"state"`       // final reconciliation state
	Disposition    string    `json:"disposition"` // what the shopper was told
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"` // UTC event time
}

const (
	EventPaymentSucceeded      = "payment_succeeded"
	EventPaymentFailed         = "payment_failed"
	EventPaymentPartialFailure = "payment_partial_failure"
)
