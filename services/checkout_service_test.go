package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/providers"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCheckout(cfgOverrides map[string]string) (services.CheckoutService, *mockGateway, *mockProvider, *mockRecorder) {
	gw := newMockGateway()
	prov := &mockProvider{createResp: &models.CreateQuickPaymentResponse{
		QuickPaymentID: "qp-1",
		RedirectURI:    "https://bank.example/authorise/qp-1",
	}}
	rec := &mockRecorder{}
	svc := services.NewCheckoutService(testConfig(cfgOverrides), gw, prov, rec, zap.NewNop())
	return svc, gw, prov, rec
}

func requireAppError(t *testing.T, err error) *apperrors.Error {
	t.Helper()
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func TestCreateCheckout_Success(t *testing.T) {
	svc, gw, prov, rec := newCheckout(nil)

	res, err := svc.CreateCheckout(context.Background(), "tok 1", "https://shop.example/")

	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/authorise/qp-1", res.RedirectURI)
	assert.Equal(t, "qp-1", res.QuickPaymentID)
	assert.Equal(t, 1, gw.sessionCalls)
	assert.Equal(t, 1, prov.createCalls)
	assert.Equal(t, 1, rec.checkouts)

	req := prov.lastCreate
	assert.Equal(t, models.ConsentDetailTypeSingle, req.Type)
	assert.Equal(t, models.AuthFlowDetailTypeGateway, req.Flow.Detail.Type)
	assert.Equal(t, "https://shop.example/payments/payment-return?publicToken=tok+1", req.Flow.Detail.RedirectURI)
	assert.Equal(t, "12.50", req.Amount.Total)
	assert.Equal(t, "NZD", req.Amount.Currency)
	assert.Equal(t, "Kiwi Shop", req.Pcr.Particulars)
	assert.Equal(t, "BlinkPay", req.Pcr.Code)
	assert.Regexp(t, `^PAY-[1-9][0-9]{5}$`, req.Pcr.Reference)
	assert.Equal(t, req.Pcr.Reference, res.Reference)
}

func TestCreateCheckout_MissingConfiguration(t *testing.T) {
	for _, key := range []string{"SNIPCART_GATEWAY_API_KEY", "BLINKPAY_CLIENT_ID", "BLINKPAY_CLIENT_SECRET"} {
		t.Run(key, func(t *testing.T) {
			svc, gw, prov, _ := newCheckout(nil)
			svc = services.NewCheckoutService(testConfigWithout(key), gw, prov, &mockRecorder{}, zap.NewNop())

			_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

			appErr := requireAppError(t, err)
			assert.Equal(t, apperrors.KindConfiguration, appErr.Kind)
			assert.Equal(t, http.StatusInternalServerError, appErr.Code)
			assert.Equal(t, 0, gw.calls())
			assert.Equal(t, 0, prov.calls())
		})
	}
}

func testConfigWithout(key string) *config.Config {
	cfg := testConfig(nil)
	switch key {
	case "SNIPCART_GATEWAY_API_KEY":
		cfg.SnipcartGatewayAPIKey = ""
	case "BLINKPAY_CLIENT_ID":
		cfg.BlinkPayClientID = ""
	case "BLINKPAY_CLIENT_SECRET":
		cfg.BlinkPayClientSecret = ""
	}
	return cfg
}

func TestCreateCheckout_MissingToken(t *testing.T) {
	svc, gw, prov, _ := newCheckout(nil)

	_, err := svc.CreateCheckout(context.Background(), "", "https://shop.example")

	appErr := requireAppError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, 0, gw.calls())
	assert.Equal(t, 0, prov.calls())
}

func TestCreateCheckout_SessionLookupFails(t *testing.T) {
	svc, gw, prov, _ := newCheckout(nil)
	gw.sessionErr = errors.New("status 404")

	_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

	appErr := requireAppError(t, err)
	assert.Equal(t, "session_lookup_failed", appErr.Reason)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGateway))
	assert.Equal(t, 0, prov.calls())
}

func TestCreateCheckout_InvalidAmount(t *testing.T) {
	cases := map[string]*models.CheckoutSession{
		"missing":  {ID: "s", Invoice: models.Invoice{}},
		"zero":     {ID: "s", Invoice: models.Invoice{Amount: amount("0")}},
		"negative": {ID: "s", Invoice: models.Invoice{Amount: amount("-3")}},
	}
	for name, session := range cases {
		t.Run(name, func(t *testing.T) {
			svc, gw, prov, _ := newCheckout(nil)
			gw.session = session

			_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

			assert.Equal(t, "invalid_session_amount", requireAppError(t, err).Reason)
			assert.Equal(t, 0, prov.calls())
		})
	}
}

func TestCreateCheckout_UnsupportedCurrency(t *testing.T) {
	svc, gw, prov, _ := newCheckout(nil)
	gw.session.Invoice.Currency = "usd"

	_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

	appErr := requireAppError(t, err)
	assert.Equal(t, "unsupported_currency", appErr.Reason)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, 0, prov.calls())
}

func TestCreateCheckout_MissingRedirectIsDistinct(t *testing.T) {
	svc, _, prov, rec := newCheckout(nil)
	prov.createResp = &models.CreateQuickPaymentResponse{QuickPaymentID: "qp-1"}
	prov.createErr = providers.ErrMissingRedirectURI

	_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

	appErr := requireAppError(t, err)
	assert.Equal(t, "provider_redirect_missing", appErr.Reason)
	assert.Equal(t, apperrors.KindProvider, appErr.Kind)
	assert.Equal(t, 0, rec.checkouts)
}

func TestCreateCheckout_ProviderError(t *testing.T) {
	svc, _, prov, _ := newCheckout(nil)
	prov.createResp = nil
	prov.createErr = &providers.APIError{Op: "CreateQuickPayment", StatusCode: 422, Body: "bad pcr"}

	_, err := svc.CreateCheckout(context.Background(), "tok", "https://shop.example")

	appErr := requireAppError(t, err)
	assert.Equal(t, "quick_payment_failed", appErr.Reason)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}
