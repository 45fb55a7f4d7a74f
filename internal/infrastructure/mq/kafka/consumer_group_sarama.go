package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-notification-service/internal/infrastructure/mq"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	ClientID string
}

type saramaConsumer struct {
	cg     sarama.ConsumerGroup
	topics []string
	log    *zap.Logger
}

func newSaramaConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = strings.TrimSpace(clientID)
	return sc
}

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) (mq.Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer group id is empty")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka topics is empty")
	}

	sc := newSaramaConfig(cfg.ClientID)
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.Consumer.Return.Errors = true

	cg, err := sarama.NewConsumerGroup(cfg.Brokers, strings.TrimSpace(cfg.GroupID), sc)
	if err != nil {
		return nil, err
	}
	return &saramaConsumer{cg: cg, topics: cfg.Topics, log: log}, nil
}

// Run consumes until ctx is cancelled, rejoining the group after every rebalance.
func (c *saramaConsumer) Run(ctx context.Context, handler mq.Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	go func() {
		for err := range c.cg.Errors() {
			c.log.Warn("kafka consumer error", zap.Error(err))
		}
	}()

	h := &consumerGroupHandler{h: handler, log: c.log}
	for {
		if err := c.cg.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *saramaConsumer) Close() error {
	if c == nil {
		return nil
	}
	return c.cg.Close()
}

type consumerGroupHandler struct {
	h   mq.Handler
	log *zap.Logger
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only when the handler accepts it. Offsets are cumulative,
// so after a rejection the claim stops instead of marking later messages past it.
func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.h.Handle(sess.Context(), toMessage(m)); err != nil {
				h.log.Info("message left unacknowledged",
					zap.String("topic", m.Topic),
					zap.Int32("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
				return nil
			}
			sess.MarkMessage(m, "")
		}
	}
}

func toMessage(m *sarama.ConsumerMessage) mq.Message {
	msg := mq.Message{
		Topic:     m.Topic,
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}
