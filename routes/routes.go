package routes

import (
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/controllers"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes sets up the payment endpoints.
//
// payment-return has no request timeout: the reconciliation detaches from the
// request and is bounded by CONFIRM_TIMEOUT, BLINKPAY_REVOKE_TIMEOUT,
// NOTIFY_TIMEOUT and TELEMETRY_TIMEOUT instead (see config.ReconcileTimeout).
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, requestTimeout time.Duration) {
	payments := r.Group("/payments")

	payments.POST("/checkout", middleware.Timeout(requestTimeout), pc.Checkout)
	payments.POST("/payment-methods", middleware.Timeout(requestTimeout), pc.PaymentMethods)

	payments.GET("/payment-return", pc.PaymentReturn)
	payments.POST("/payment-return", pc.PaymentReturn)
}
