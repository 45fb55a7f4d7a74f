// Package event binds inbound bus topics to the notification service.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/go-notification-service/internal/application/eventmap"
	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/infrastructure/mq"
	"github.com/go-notification-service/internal/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type notifier interface {
	Create(ctx context.Context, userID string, kind domain.Kind, title, body string) (*domain.Notification, error)
	CreateForAllUsers(ctx context.Context, kind domain.Kind, title, body string) domain.BroadcastResult
}

type deadLetterArchive interface {
	Archive(ctx context.Context, topic, reason string, body []byte) (string, error)
}

// Observer receives one outcome per handled message.
type Observer interface {
	EventConsumed(event, outcome string, took time.Duration)
}

type noopObserver struct{}

func (noopObserver) EventConsumed(string, string, time.Duration) {}

type DispatcherDeps struct {
	Service     notifier
	DeadLetters deadLetterArchive // optional
	Observer    Observer
	Logger      *zap.Logger
	TopicPrefix string
}

// Dispatcher implements mq.Handler. Every message is acknowledged once the service call
// returns, whatever its outcome, except when the context ends before the work is done.
type Dispatcher struct {
	svc    notifier
	dlq    deadLetterArchive
	obs    Observer
	log    *zap.Logger
	topics map[string]domain.EventKind
	tracer trace.Tracer
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		svc:    deps.Service,
		dlq:    deps.DeadLetters,
		obs:    deps.Observer,
		log:    deps.Logger,
		topics: make(map[string]domain.EventKind, len(domain.EventKinds)),
		tracer: otel.Tracer("github.com/go-notification-service/internal/transport/event"),
	}
	if d.obs == nil {
		d.obs = noopObserver{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	for _, k := range domain.EventKinds {
		d.topics[deps.TopicPrefix+string(k)] = k
	}
	return d
}

// Topics lists the topics the dispatcher handles.
func (d *Dispatcher) Topics() []string {
	out := make([]string, 0, len(domain.EventKinds))
	for topic := range d.topics {
		out = append(out, topic)
	}
	return out
}

func (d *Dispatcher) Handle(ctx context.Context, msg mq.Message) error {
	start := time.Now()
	kind, ok := d.topics[msg.Topic]
	if !ok {
		d.log.Warn("message on unknown topic ignored", zap.String("topic", msg.Topic))
		d.obs.EventConsumed(msg.Topic, metrics.OutcomeIgnored, time.Since(start))
		return nil
	}

	if msg.Headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	}
	ctx, span := d.tracer.Start(ctx, "consume "+string(kind),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", int(msg.Partition)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	outcome, err := d.handle(ctx, kind, msg)
	span.SetAttributes(attribute.String("notification.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	d.obs.EventConsumed(string(kind), outcome, time.Since(start))
	return err
}

func (d *Dispatcher) handle(ctx context.Context, kind domain.EventKind, msg mq.Message) (string, error) {
	log := d.log.With(zap.String("event", string(kind)), zap.Int64("offset", msg.Offset))

	payload, err := eventmap.Decode(msg.Value)
	if err != nil {
		d.deadLetter(ctx, log, msg, err.Error())
		return metrics.OutcomeDeadLetter, nil
	}
	content, _ := eventmap.Map(kind, payload)

	if ctx.Err() != nil {
		return metrics.OutcomeRetry, ctx.Err()
	}

	if kind.Broadcast() {
		res := d.svc.CreateForAllUsers(ctx, content.Kind, content.Title, content.Body)
		log.Info("broadcast event handled",
			zap.String("id", payload.Text("id", "")),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed))
		return metrics.OutcomeHandled, nil
	}

	userID, ok := payload.RecipientID()
	if !ok {
		d.deadLetter(ctx, log, msg, "missing userId")
		return metrics.OutcomeDeadLetter, nil
	}
	n, err := d.svc.Create(ctx, userID, content.Kind, content.Title, content.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return metrics.OutcomeRetry, ctxErr
		}
		log.Error("notification not created",
			zap.String("user_id", userID),
			zap.String("booking_id", payload.Text("id", "")),
			zap.Error(err))
		return metrics.OutcomeFailed, nil
	}
	log.Info("notification created",
		zap.String("notification_id", n.NotificationID),
		zap.String("user_id", userID),
		zap.Bool("email_sent", n.EmailSent))
	return metrics.OutcomeHandled, nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, log *zap.Logger, msg mq.Message, reason string) {
	if d.dlq == nil {
		log.Warn("event dropped", zap.String("reason", reason), zap.ByteString("body", msg.Value))
		return
	}
	// Archive even when shutting down; the message is acknowledged either way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	url, err := d.dlq.Archive(ctx, msg.Topic, reason, msg.Value)
	if err != nil {
		log.Error("dead-letter archive failed",
			zap.String("reason", reason),
			zap.ByteString("body", msg.Value),
			zap.Error(fmt.Errorf("archive %s: %w", msg.Topic, err)))
		return
	}
	log.Warn("event dead-lettered", zap.String("reason", reason), zap.String("location", url))
}

var _ mq.Handler = (*Dispatcher)(nil)
