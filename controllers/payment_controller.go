package controllers

import (
	"net/http"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/services"
	"github.com/gin-gonic/gin"
)

// PaymentController handles the Snipcart facing payment endpoints.
type PaymentController struct {
	cfg            *config.Config
	checkout       services.CheckoutService
	reconciliation services.ReconciliationService
	paymentMethods services.PaymentMethodService
}

func NewPaymentController(cfg *config.Config, checkout services.CheckoutService, reconciliation services.ReconciliationService, paymentMethods services.PaymentMethodService) *PaymentController {
	return &PaymentController{
		cfg:            cfg,
		checkout:       checkout,
		reconciliation: reconciliation,
		paymentMethods: paymentMethods,
	}
}

type publicTokenRequest struct {
	PublicToken string `json:"publicToken"`
}

// Checkout handles POST /payments/checkout
func (pc *PaymentController) Checkout(c *gin.Context) {
	var req publicTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Validation("invalid_request_body", "Invalid request or missing publicToken"))
		return
	}

	result, err := pc.checkout.CreateCheckout(c.Request.Context(), req.PublicToken, publicBaseURL(c, pc.cfg))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirectUri": result.RedirectURI})
}

// PaymentReturn handles GET|POST /payments/payment-return, where the bank sends the shopper back.
func (pc *PaymentController) PaymentReturn(c *gin.Context) {
	publicToken := param(c, "publicToken")
	quickPaymentID := param(c, "cid")
	if quickPaymentID == "" {
		quickPaymentID = param(c, "paymentIdentifier")
	}

	result, err := pc.reconciliation.Reconcile(c.Request.Context(), publicToken, quickPaymentID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	body := gin.H{
		"status":  responseStatus(result.Disposition),
		"message": result.Message,
	}
	if result.Reference != "" {
		body["reference"] = result.Reference
	}
	if result.ReturnURL != "" {
		body["returnUrl"] = result.ReturnURL
	}
	c.JSON(result.StatusCode, body)
}

// PaymentMethods handles POST /payments/payment-methods
func (pc *PaymentController) PaymentMethods(c *gin.Context) {
	var req publicTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Validation("invalid_request_body", "Invalid request body"))
		return
	}

	methods, err := pc.paymentMethods.ListPaymentMethods(c.Request.Context(), req.PublicToken, publicBaseURL(c, pc.cfg))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, methods)
}

func responseStatus(d models.Disposition) string {
	switch d {
	case models.DispositionSuccess:
		return "success"
	case models.DispositionPartialFailure:
		return "partial_failure"
	default:
		return "error"
	}
}
