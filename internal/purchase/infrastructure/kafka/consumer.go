package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/application"
	"github.com/dmehra2102/Raffle-Reservation-System/internal/purchase/domain"
	reservation "github.com/dmehra2102/Raffle-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Raffle-Reservation-System/pkg/tracing"
)

// PaymentConfirmer is the slice of the orchestrator the consumer drives.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, paymentID string) (application.ConfirmResult, error)
}

// Dedupe marks handled messages and payments so redeliveries are skipped.
type Dedupe interface {
	MessageKey(topic string, partition int, offset int64) string
	PaymentKey(paymentID string) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, keys ...string) error
}

// Consumer drives the commit step from the payment provider's
// confirmation topic. Confirmations are deduplicated twice: per message
// offset and per payment id, since providers redeliver on both axes.
// The dedupe markers are an optimization only; ConfirmPayment itself is
// idempotent, so a marker-store outage degrades to duplicate no-op
// commits instead of stalling the partition.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    PaymentConfirmer
	idem   Dedupe
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc PaymentConfirmer, idem Dedupe) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("confirmation-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		c.process(ctx, msg)
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	key := c.idem.MessageKey(msg.Topic, msg.Partition, msg.Offset)
	if c.seen(ctx, key) {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentConfirmed")
	defer span.End()

	var event domain.PaymentConfirmed
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return
	}

	pkey := c.idem.PaymentKey(event.PaymentID)
	if c.seen(msgCtx, pkey) {
		c.log.Info("duplicate confirmation skipped", "payment_id", event.PaymentID)
		return
	}

	if err := c.handle(msgCtx, event.PaymentID); err != nil {
		c.log.Error("confirmation failed", "payment_id", event.PaymentID, "err", err)
		// Drop both markers so a redelivery can retry the commit.
		_ = c.idem.Forget(ctx, key, pkey)
	}
}

// seen treats a marker-store error as not seen: the commit downstream is
// idempotent, and skipping here would defer the confirmation until a
// rebalance or restart.
func (c *Consumer) seen(ctx context.Context, key string) bool {
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Warn("idempotency check failed, processing anyway", "key", key, "err", err)
		return false
	}
	return seen
}

func (c *Consumer) handle(ctx context.Context, paymentID string) error {
	_, err := c.svc.ConfirmPayment(ctx, paymentID)
	switch {
	case err == nil:
		c.log.Info("payment committed from confirmation event", "payment_id", paymentID)
		return nil
	case errors.Is(err, domain.ErrAlreadyCommitted):
		c.log.Info("confirmation replay ignored", "payment_id", paymentID)
		return nil
	case errors.Is(err, reservation.ErrReservationInvalidOrExpired):
		// Terminal for this attempt: the claims lapsed before the
		// confirmation arrived. Retrying cannot revive them.
		c.log.Warn("confirmation arrived after reservation expiry", "payment_id", paymentID)
		return nil
	default:
		return err
	}
}
