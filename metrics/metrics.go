package metrics

import (
	"context"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	aws_pkg "github.com/BlinkPay/BlinkPay-Snipcart-Demo/pkg/aws"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	ServiceName = "snipcart-blinkpay"

	defaultCloudWatchTimeout = 5 * time.Second
)

var (
	// service label lets one dashboard compare deployments
	PaymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "requests_total",
			Help:      "HTTP requests handled by the payment bridge",
		},
		[]string{"service", "status", "method"},
	)

	PaymentRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			// payment-return waits on the bank, so the tail is long
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)

	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "reconciliations_total",
			Help:      "Reconciliations by final disposition",
		},
		[]string{"disposition"},
	)

	ConfirmationWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for the bank to confirm a payment",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 240, 300},
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(PaymentRequestsTotal, PaymentRequestDuration, ReconciliationsTotal, ConfirmationWait)
}

func IncRequest(service, status, method string) {
	PaymentRequestsTotal.WithLabelValues(service, status, method).Inc()
}

func ObserveDuration(service, status string, seconds float64) {
	PaymentRequestDuration.WithLabelValues(service, status).Observe(seconds)
}

// Recorder reports reconciliation results to Prometheus and CloudWatch.
type Recorder struct {
	cloudWatch *aws_pkg.MetricsClient
	timeout    time.Duration
	logger     *zap.Logger
}

// NewRecorder creates a Recorder. cloudWatch may be nil.
func NewRecorder(cloudWatch *aws_pkg.MetricsClient, logger *zap.Logger) *Recorder {
	return &Recorder{cloudWatch: cloudWatch, timeout: defaultCloudWatchTimeout, logger: logger}
}

// RecordReconciliation counts one finished reconciliation.
func (r *Recorder) RecordReconciliation(ctx context.Context, disposition models.Disposition, outcome models.ReconciliationState, wait time.Duration) {
	ReconciliationsTotal.WithLabelValues(string(disposition)).Inc()
	ConfirmationWait.WithLabelValues(string(outcome)).Observe(wait.Seconds())

	if !r.cloudWatch.IsEnabled() {
		return
	}

	metric := aws_pkg.MetricPaymentFailed
	switch disposition {
	case models.DispositionSuccess:
		metric = aws_pkg.MetricPaymentSucceeded
	case models.DispositionPartialFailure:
		metric = aws_pkg.MetricPaymentPartialFailure
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	dims := map[string]string{"Service": ServiceName, "Outcome": string(outcome)}
	if err := r.cloudWatch.Put(ctx, dims, aws_pkg.Count(metric), aws_pkg.Latency(aws_pkg.MetricConfirmationWait, wait)); err != nil {
		r.logger.Warn("Failed to record CloudWatch metrics", zap.String("metric", metric), zap.Error(err))
	}
}

// RecordCheckout counts one created quick payment.
func (r *Recorder) RecordCheckout(ctx context.Context) {
	if !r.cloudWatch.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.cloudWatch.Put(ctx, map[string]string{"Service": ServiceName}, aws_pkg.Count(aws_pkg.MetricCheckoutsCreated)); err != nil {
		r.logger.Warn("Failed to record CloudWatch metric", zap.String("metric", aws_pkg.MetricCheckoutsCreated), zap.Error(err))
	}
}
