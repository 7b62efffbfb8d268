package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/clients"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/controllers"
	apperrors "github.com/BlinkPay/BlinkPay-Snipcart-Demo/errors"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/events"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/kafka"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/logger"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/metrics"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/middleware"
	aws_pkg "github.com/BlinkPay/BlinkPay-Snipcart-Demo/pkg/aws"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/providers"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/routes"
	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const serviceName = "snipcart-blinkpay"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)
	awsReady := awsErr == nil

	var cwWriter io.Writer
	if cfg.CloudWatchEnabled && awsReady {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName, true)
		if err != nil {
			log.Printf("CloudWatch Logs unavailable, logging to stdout only: %v", err)
		} else if cwLogs.IsEnabled() {
			cwWriter = cwLogs
		}
	}

	zlog, err := logger.New(cfg.Env, cwWriter)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if !awsReady {
		zlog.Warn("AWS config unavailable, SNS, SQS and CloudWatch disabled", zap.Error(awsErr))
	}
	if missing := cfg.MissingCheckoutCredentials(); len(missing) > 0 {
		// not fatal: requests fail with a configuration error instead
		zlog.Warn("Payment credentials missing", zap.Strings("missing", missing))
	}

	var cwMetrics *aws_pkg.MetricsClient
	if awsReady {
		cwMetrics = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}
	recorder := metrics.NewRecorder(cwMetrics, zlog)

	publisher, closeSinks := buildPublisher(cfg, awsCfg, awsReady, zlog)
	defer closeSinks()

	// Provider, gateway and DI chain
	provider := providers.NewBlinkDebitClient(providers.BlinkDebitConfig{
		BaseURL:       cfg.BlinkPayAPIURL,
		ClientID:      cfg.BlinkPayClientID,
		ClientSecret:  cfg.BlinkPayClientSecret,
		PollInterval:  cfg.BlinkPayPollInterval,
		RevokeTimeout: cfg.BlinkPayRevokeTimeout,
	}, zlog)
	snipcart := clients.NewSnipcartClient(cfg.SnipcartAPIURL, cfg.SnipcartGatewayAPIKey, cfg.NotifyTimeout)

	checkoutService := services.NewCheckoutService(cfg, snipcart, provider, recorder, zlog)
	reconciliationService := services.NewReconciliationService(cfg, provider, services.NewGatewayNotifier(snipcart), publisher, recorder, zlog)
	paymentMethodService := services.NewPaymentMethodService(cfg, snipcart, zlog)
	paymentController := controllers.NewPaymentController(cfg, checkoutService, reconciliationService, paymentMethodService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		apperrors.Recovery(zlog),
		middleware.RequestID(),
		middleware.RequestLogger(zlog),
		middleware.Metrics(cwMetrics),
		middleware.SecurityHeaders(),
		middleware.RateLimit(middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, cfg.RateLimitBurst, 5*time.Minute)),
		apperrors.ErrorMiddleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.RegisterPaymentRoutes(r, paymentController, cfg.RequestTimeout)
	r.NoRoute(func(c *gin.Context) {
		apperrors.HandleError(c.Writer, apperrors.New(apperrors.KindValidation, http.StatusNotFound, "not_found", "Not found", nil))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler(cfg).Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		// payment-return holds the connection while the bank confirms
		WriteTimeout: cfg.ReconcileTimeout() + 5*time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Payment bridge started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	<-quit
	zlog.Info("Shutting down payment bridge...")

	// in-flight reconciliations get their full wait
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ReconcileTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}

// buildPublisher wires every configured event sink.
func buildPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsReady bool, zlog *zap.Logger) (*events.Publisher, func()) {
	var sinks []events.Sink
	closeFn := func() {}

	if awsReady && cfg.PaymentSNSTopicARN != "" {
		sinks = append(sinks, events.NewSNSSink(aws_pkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN))
	}
	if awsReady && cfg.PartialFailureQueueURL != "" {
		sinks = append(sinks, events.NewPartialFailureSink(aws_pkg.NewSQSSender(awsCfg, cfg.PartialFailureQueueURL)))
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.KafkaPaymentTopic, zlog)
		sinks = append(sinks, producer)
		closeFn = producer.Close
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	zlog.Info("Payment event sinks configured", zap.Strings("sinks", names))

	return events.NewPublisher(zlog, sinks...), closeFn
}

func corsHandler(cfg *config.Config) *cors.Cors {
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})
}
