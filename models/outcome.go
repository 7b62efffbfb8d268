package models

// ReconciliationState is a step of the reconciliation state machine.
type ReconciliationState string

const (
	StateAwaitingConfirmation ReconciliationState = "AWAITING_CONFIRMATION"
	StateConfirmed            ReconciliationState = "CONFIRMED"
	StateTimedOut             ReconciliationState = "TIMED_OUT"
	StateProviderError        ReconciliationState = "PROVIDER_ERROR"
	StateNotifySucceeded      ReconciliationState = "NOTIFY_SUCCEEDED"
	StateNotifyFailed         ReconciliationState = "NOTIFY_FAILED"
	StateDone                 ReconciliationState = "DONE"
	StatePartialFailure       ReconciliationState = "PARTIAL_FAILURE"
)

// Disposition is what the shopper is told at the end of reconciliation.
type Disposition string

const (
	DispositionSuccess        Disposition = "success"
	DispositionPartialFailure Disposition = "partial_failure"
	DispositionFailed         Disposition = "failed"       // checkout informed
	DispositionUnreconciled   Disposition = "unreconciled" // neither side agrees, needs a human
)

// PaymentOutcome is the derived result of waiting on the provider.
// Reference is only set when Succeeded is true.
type PaymentOutcome struct {
	Succeeded  bool
	Reference  string
	Reason     string
	Diagnostic ReconciliationState
}

// Succeeded returns a confirmed outcome.
func Succeeded(reference string) PaymentOutcome {
	return PaymentOutcome{Succeeded: true, Reference: reference, Diagnostic: StateConfirmed}
}

// Failed returns a failure outcome. diagnostic is TIMED_OUT or PROVIDER_ERROR.
func Failed(reason string, diagnostic ReconciliationState) PaymentOutcome {
	return PaymentOutcome{Reason: reason, Diagnostic: diagnostic}
}
