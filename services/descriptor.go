package services

import (
	"fmt"
	"math/rand"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/shopspring/decimal"
)

// BuildDescriptor fills in what the shopper's bank statement will show.
// Every PCR field is cut to models.PCRMaxLength runes.
func BuildDescriptor(amount decimal.Decimal, currency, businessName, code string, orderNumber int) models.PaymentDescriptor {
	particulars := businessName
	if particulars == "" {
		particulars = code
	}
	return models.PaymentDescriptor{
		Particulars: truncate(particulars, models.PCRMaxLength),
		Code:        truncate(code, models.PCRMaxLength),
		Reference:   truncate(fmt.Sprintf("PAY-%d", orderNumber), models.PCRMaxLength),
		Amount:      amount.StringFixed(2),
		Currency:    currency,
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// randomOrderNumber returns a six digit number.
func randomOrderNumber() int {
	return rand.Intn(900000) + 100000
}
