package models

import "time"

// PCRMaxLength is the bank statement limit for particulars, code and reference.
const PCRMaxLength = 12

// PaymentDescriptor is what ends up on the shopper's bank statement.
type PaymentDescriptor struct {
	Particulars string
	Code        string
	Reference   string
	Amount      string // fixed point, two decimals
	Currency    string
}

// Pcr converts the descriptor to the provider's particulars/code/reference block.
func (d PaymentDescriptor) Pcr() Pcr {
	return Pcr{Particulars: d.Particulars, Code: d.Code, Reference: d.Reference}
}

type ConsentDetailType string

const ConsentDetailTypeSingle ConsentDetailType = "single"

type AuthFlowDetailType string

const AuthFlowDetailTypeGateway AuthFlowDetailType = "gateway"

// QuickPaymentRequest is sent to BlinkPay to start a single, redirect based payment.
type QuickPaymentRequest struct {
	Type   ConsentDetailType `json:"type"`
	Flow   AuthFlow          `json:"flow"`
	Amount Amount            `json:"amount"`
	Pcr    Pcr               `json:"pcr"`
}

type AuthFlow struct {
	Detail AuthFlowDetail `json:"detail"`
}

type AuthFlowDetail struct {
	Type        AuthFlowDetailType `json:"type"`
	RedirectURI string             `json:"redirect_uri"`
}

type Amount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type Pcr struct {
	Particulars string `json:"particulars"`
	Code        string `json:"code,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// NewQuickPaymentRequest builds the only request shape the bridge supports.
func NewQuickPaymentRequest(d PaymentDescriptor, redirectURI string) QuickPaymentRequest {
	return QuickPaymentRequest{
		Type: ConsentDetailTypeSingle,
		Flow: AuthFlow{Detail: AuthFlowDetail{
			Type:        AuthFlowDetailTypeGateway,
			RedirectURI: redirectURI,
		}},
		Amount: Amount{Currency: d.Currency, Total: d.Amount},
		Pcr:    d.Pcr(),
	}
}

// CreateQuickPaymentResponse is BlinkPay's answer to a quick payment request.
type CreateQuickPaymentResponse struct {
	QuickPaymentID string `json:"quick_payment_id"`
	RedirectURI    string `json:"redirect_uri"`
}

// Consent statuses reported by BlinkPay.
const (
	ConsentStatusGatewayAwaitingSubmission = "GatewayAwaitingSubmission"
	ConsentStatusAwaitingAuthorisation     = "AwaitingAuthorisation"
	ConsentStatusAuthorised                = "Authorised"
	ConsentStatusConsumed                  = "Consumed"
	ConsentStatusRejected                  = "Rejected"
	ConsentStatusRevoked                   = "Revoked"
	ConsentStatusGatewayTimeout            = "GatewayTimeout"
)

// QuickPaymentResponse is the state of a quick payment as returned by BlinkPay.
type QuickPaymentResponse struct {
	QuickPaymentID string  `json:"quick_payment_id"`
	Consent        Consent `json:"consent"`
}

type Consent struct {
	ConsentID              string           `json:"consent_id"`
	Status                 string           `json:"status"`
	CreationTimestamp      *time.Time       `json:"creation_timestamp,omitempty"`
	StatusUpdatedTimestamp *time.Time       `json:"status_updated_timestamp,omitempty"`
	Detail                 *ConsentDetail   `json:"detail,omitempty"`
	Payments               []ConsentPayment `json:"payments,omitempty"`
}

type ConsentDetail struct {
	Type   ConsentDetailType `json:"type"`
	Amount *Amount           `json:"amount,omitempty"`
	Pcr    *Pcr              `json:"pcr,omitempty"`
}

type ConsentPayment struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}
