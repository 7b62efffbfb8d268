package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/models"
	aws_pkg "github.com/BlinkPay/BlinkPay-Snipcart-Demo/pkg/aws"
	"go.uber.org/zap"
)

const defaultSinkTimeout = 5 * time.Second

// Sink is one destination for payment events.
type Sink interface {
	Name() string
	Send(ctx context.Context, event models.PaymentEvent) error
}

// Publisher fans a payment event out to every sink. Sink failures are logged
// and never returned: events are informational.
type Publisher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(logger *zap.Logger, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, timeout: defaultSinkTimeout, logger: logger}
}

// Publish sends event to all sinks concurrently and waits for them. The
// caller's cancellation does not cut sinks short, but its deadline does; each
// sink also gets its own timeout.
func (p *Publisher) Publish(ctx context.Context, event models.PaymentEvent) {
	if len(p.sinks) == 0 {
		return
	}

	base := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		base, cancel = context.WithDeadline(base, deadline)
		defer cancel()
	}

	var wg sync.WaitGroup
	for _, sink := range p.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(base, p.timeout)
			defer cancel()

			if err := sink.Send(sctx, event); err != nil {
				p.logger.Warn("Failed to publish payment event",
					zap.String("sink", sink.Name()),
					zap.String("event_id", event.ID),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		}(sink)
	}
	wg.Wait()
}

// SNSSink publishes every event to an SNS topic.
type SNSSink struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSSink(client aws_pkg.SNSPublisher, topicArn string) *SNSSink {
	return &SNSSink{client: client, topicArn: topicArn}
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Send(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return s.client.Publish(ctx, s.topicArn, event.Type, payload)
}

// MessageSender sends a message to a queue.
type MessageSender interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// PartialFailureSink queues partial failures for manual reconciliation and
// ignores every other event.
type PartialFailureSink struct {
	sender MessageSender
}

func NewPartialFailureSink(sender MessageSender) *PartialFailureSink {
	return &PartialFailureSink{sender: sender}
}

func (s *PartialFailureSink) Name() string { return "sqs:partial-failures" }

func (s *PartialFailureSink) Send(ctx context.Context, event models.PaymentEvent) error {
	if event.Type != models.EventPaymentPartialFailure {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return s.sender.SendMessage(ctx, string(payload), map[string]string{
		"event_type":       event.Type,
		"quick_payment_id": event.QuickPaymentID,
	})
}
