package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/clients"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListPaymentMethods_Success(t *testing.T) {
	gw := newMockGateway()
	svc := services.NewPaymentMethodService(testConfig(nil), gw, zap.NewNop())

	methods, err := svc.ListPaymentMethods(context.Background(), "tok", "https://shop.example")

	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "blinkpay", methods[0].ID)
	assert.Equal(t, "BlinkPay", methods[0].Name)
	assert.Equal(t, "https://shop.example/payments/checkout", methods[0].CheckoutURL)
	assert.Equal(t, 1, gw.validateCalls)
}

func TestListPaymentMethods_ConfiguredCheckoutPage(t *testing.T) {
	svc := services.NewPaymentMethodService(testConfig(map[string]string{
		"CHECKOUT_PAGE_URL": "https://store.example/pay",
	}), newMockGateway(), zap.NewNop())

	methods, err := svc.ListPaymentMethods(context.Background(), "tok", "https://api.example")

	require.NoError(t, err)
	assert.Equal(t, "https://store.example/pay", methods[0].CheckoutURL)
}

func TestListPaymentMethods_Errors(t *testing.T) {
	cases := map[string]struct {
		token    string
		validErr error
		status   int
	}{
		"missing token":     {token: "", status: http.StatusBadRequest},
		"rejected token":    {token: "tok", validErr: &clients.UpstreamError{Op: "ValidatePublicToken", StatusCode: 404}, status: http.StatusUnauthorized},
		"transport failure": {token: "tok", validErr: errors.New("dial tcp: refused"), status: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gw := newMockGateway()
			gw.validErr = tc.validErr
			svc := services.NewPaymentMethodService(testConfig(nil), gw, zap.NewNop())

			_, err := svc.ListPaymentMethods(context.Background(), tc.token, "https://shop.example")

			assert.Equal(t, tc.status, requireAppError(t, err).Code)
		})
	}
}
