package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/BlinkPay/BlinkPay-Snipcart-Demo/pkg/aws"
	"github.com/joho/godotenv"
)

// CredentialsSecret is the Secrets Manager secret read when AWS_USE_SECRETS=true.
const CredentialsSecret = "payments/GATEWAY_CREDENTIALS"

// Config holds all configuration for the payment bridge.
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string // empty means derive from the request host
	// Page Snipcart sends the shopper to when BlinkPay is picked
	CheckoutPageURL string

	SnipcartAPIURL        string
	SnipcartGatewayAPIKey string

	BlinkPayAPIURL        string
	BlinkPayClientID      string
	BlinkPayClientSecret  string
	BlinkPayPollInterval  time.Duration
	BlinkPayRevokeTimeout time.Duration

	PublicBusinessName string
	PaymentCode        string
	PaymentCurrency    string

	ConfirmTimeout       time.Duration
	NotifyTimeout        time.Duration
	RequestTimeout       time.Duration
	TelemetryTimeout     time.Duration // metrics and event sinks, after the outcome is known
	PartialFailureStatus int

	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int

	PaymentSNSTopicARN     string
	PartialFailureQueueURL string
	KafkaBrokers           []string
	KafkaPaymentTopic      string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	UseSecrets          bool
}

// SecretGetter reads a JSON object secret.
type SecretGetter interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from an optional .env file and the environment,
// then applies the Secrets Manager override when AWS_USE_SECRETS=true.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(os.Getenv)
	if err != nil {
		return nil, err
	}

	if cfg.UseSecrets {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(context.Background(), aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load builds a Config from getenv. Malformed numbers and durations are errors;
// missing credentials are not.
func Load(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:            p.str("PORT", "8087"),
		Env:             p.str("APP_ENV", "development"),
		PublicBaseURL:   strings.TrimRight(getenv("PUBLIC_BASE_URL"), "/"),
		CheckoutPageURL: getenv("CHECKOUT_PAGE_URL"),

		SnipcartAPIURL:        p.str("SNIPCART_API_URL", "https://payment.snipcart.com/api"),
		SnipcartGatewayAPIKey: getenv("SNIPCART_GATEWAY_API_KEY"),

		BlinkPayAPIURL:        p.str("BLINKPAY_API_URL", "https://sandbox.debit.blinkpay.co.nz"),
		BlinkPayClientID:      getenv("BLINKPAY_CLIENT_ID"),
		BlinkPayClientSecret:  getenv("BLINKPAY_CLIENT_SECRET"),
		BlinkPayPollInterval:  p.duration("BLINKPAY_POLL_INTERVAL", time.Second),
		BlinkPayRevokeTimeout: p.duration("BLINKPAY_REVOKE_TIMEOUT", 10*time.Second),

		PublicBusinessName: getenv("PUBLIC_BUSINESS_NAME"),
		PaymentCode:        p.str("PAYMENT_CODE", "BlinkPay"),
		PaymentCurrency:    strings.ToUpper(p.str("PAYMENT_CURRENCY", "NZD")),

		ConfirmTimeout:       p.duration("CONFIRM_TIMEOUT", 300*time.Second),
		NotifyTimeout:        p.duration("NOTIFY_TIMEOUT", 15*time.Second),
		RequestTimeout:       p.duration("REQUEST_TIMEOUT", 30*time.Second),
		TelemetryTimeout:     p.duration("TELEMETRY_TIMEOUT", 5*time.Second),
		PartialFailureStatus: p.integer("PARTIAL_FAILURE_STATUS", 400),

		AllowedOrigins:     p.list("ALLOWED_ORIGINS"),
		RateLimitPerMinute: p.integer("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     p.integer("RATE_LIMIT_BURST", 50),

		PaymentSNSTopicARN:     getenv("PAYMENT_SNS_TOPIC_ARN"),
		PartialFailureQueueURL: getenv("PARTIAL_FAILURE_QUEUE_URL"),
		KafkaBrokers:           p.list("KAFKA_BROKERS"),
		KafkaPaymentTopic:      p.str("KAFKA_PAYMENT_TOPIC", "payment-events"),

		CloudWatchEnabled:   getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: p.str("CLOUDWATCH_NAMESPACE", "BlinkPaySnipcart"),
		CloudWatchLogGroup:  p.str("CLOUDWATCH_LOG_GROUP", "/payments/snipcart-bridge"),
		UseSecrets:          getenv("AWS_USE_SECRETS") == "true",
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.PartialFailureStatus < 400 || cfg.PartialFailureStatus > 599 {
		return nil, fmt.Errorf("PARTIAL_FAILURE_STATUS must be a 4xx or 5xx code, got %d", cfg.PartialFailureStatus)
	}
	if cfg.ConfirmTimeout <= 0 || cfg.NotifyTimeout <= 0 || cfg.RequestTimeout <= 0 ||
		cfg.TelemetryTimeout <= 0 || cfg.BlinkPayRevokeTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}
	return cfg, nil
}

// ApplySecrets overrides credentials with the values found in CredentialsSecret.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretGetter) error {
	m, err := sm.GetSecretMap(ctx, CredentialsSecret)
	if err != nil {
		return fmt.Errorf("load %s: %w", CredentialsSecret, err)
	}
	if v := m["SNIPCART_GATEWAY_API_KEY"]; v != "" {
		c.SnipcartGatewayAPIKey = v
	}
	if v := m["BLINKPAY_CLIENT_ID"]; v != "" {
		c.BlinkPayClientID = v
	}
	if v := m["BLINKPAY_CLIENT_SECRET"]; v != "" {
		c.BlinkPayClientSecret = v
	}
	return nil
}

// MissingCheckoutCredentials lists the credentials a checkout needs but does not have.
func (c *Config) MissingCheckoutCredentials() []string {
	var missing []string
	if c.SnipcartGatewayAPIKey == "" {
		missing = append(missing, "SNIPCART_GATEWAY_API_KEY")
	}
	if c.BlinkPayClientID == "" {
		missing = append(missing, "BLINKPAY_CLIENT_ID")
	}
	if c.BlinkPayClientSecret == "" {
		missing = append(missing, "BLINKPAY_CLIENT_SECRET")
	}
	return missing
}

// ReconcileTimeout is the longest a payment-return request can take: the
// confirmation wait, the revoke that follows a timeout, the status push and
// telemetry, plus slack for the handler itself.
func (c *Config) ReconcileTimeout() time.Duration {
	return c.ConfirmTimeout + c.BlinkPayRevokeTimeout + c.NotifyTimeout + c.TelemetryTimeout + 10*time.Second
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, fallback string) string {
	if val := p.getenv(key); val != "" {
		return val
	}
	return fallback
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	val := p.getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// bare numbers are seconds
		secs, convErr := strconv.Atoi(val)
		if convErr != nil {
			p.fail(fmt.Errorf("invalid duration for %s: %q", key, val))
			return fallback
		}
		d = time.Duration(secs) * time.Second
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	val := p.getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.fail(fmt.Errorf("invalid integer for %s: %q", key, val))
		return fallback
	}
	return n
}

func (p *parser) list(key string) []string {
	var out []string
	for _, v := range strings.Split(p.getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
