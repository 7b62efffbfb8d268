package middleware

import (
	"context"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/metrics"
	aws_pkg "github.com/BlinkPay/BlinkPay-Snipcart-Demo/pkg/aws"
	"github.com/gin-gonic/gin"
)

// Metrics records every request in Prometheus and, when enabled, CloudWatch.
// /metrics itself is not counted.
func Metrics(cloudWatch *aws_pkg.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		statusLabel := "FAILED"
		if statusCode >= 200 && statusCode < 400 {
			statusLabel = "SUCCESS"
		}
		metrics.IncRequest(metrics.ServiceName, statusLabel, c.Request.Method)
		metrics.ObserveDuration(metrics.ServiceName, statusLabel, duration.Seconds())

		if !cloudWatch.IsEnabled() {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		dimensions := map[string]string{
			"Service": metrics.ServiceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  statusCodeToRange(statusCode),
		}

		// off the request path
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			data := []aws_pkg.Datum{
				aws_pkg.Count(aws_pkg.MetricHTTPRequests),
				aws_pkg.Latency(aws_pkg.MetricHTTPLatency, duration),
			}
			switch {
			case statusCode >= 500:
				data = append(data, aws_pkg.Count(aws_pkg.MetricHTTP5xx))
			case statusCode >= 400:
				data = append(data, aws_pkg.Count(aws_pkg.MetricHTTP4xx))
			}
			_ = cloudWatch.Put(ctx, dimensions, data...)
		}()
	}
}

func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
