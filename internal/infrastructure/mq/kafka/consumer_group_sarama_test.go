package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/go-notification-service/internal/infrastructure/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32              { return nil }
func (s *fakeSession) MemberID() string                        { return "member" }
func (s *fakeSession) GenerationID() int32                     { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                 {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                { return s.ctx }
func (s *fakeSession) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, m.Offset)
}

type fakeClaim struct{ ch chan *sarama.ConsumerMessage }

func (c fakeClaim) Topic() string                            { return "booking.created" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(msgs ...*sarama.ConsumerMessage) fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return fakeClaim{ch: ch}
}

func TestConsumeClaim_MarksAcceptedMessages(t *testing.T) {
	var seen []mq.Message
	h := &consumerGroupHandler{
		h: mq.HandlerFunc(func(_ context.Context, msg mq.Message) error {
			seen = append(seen, msg)
			return nil
		}),
		log: zap.NewNop(),
	}
	sess := &fakeSession{ctx: context.Background()}
	claim := claimOf(
		&sarama.ConsumerMessage{Topic: "booking.created", Offset: 1, Value: []byte(`{"id":1}`),
			Headers: []*sarama.RecordHeader{{Key: []byte("trace"), Value: []byte("abc")}, nil}},
		&sarama.ConsumerMessage{Topic: "booking.created", Offset: 2, Value: []byte(`{"id":2}`)},
	)

	require.NoError(t, h.ConsumeClaim(sess, claim))
	assert.Equal(t, []int64{1, 2}, sess.marked)
	require.Len(t, seen, 2)
	assert.Equal(t, "abc", seen[0].Headers["trace"])
	assert.Equal(t, int64(2), seen[1].Offset)
}

func TestConsumeClaim_StopsAtRejectedMessage(t *testing.T) {
	h := &consumerGroupHandler{
		h: mq.HandlerFunc(func(_ context.Context, msg mq.Message) error {
			if msg.Offset == 2 {
				return context.Canceled
			}
			return nil
		}),
		log: zap.NewNop(),
	}
	sess := &fakeSession{ctx: context.Background()}
	claim := claimOf(
		&sarama.ConsumerMessage{Offset: 1},
		&sarama.ConsumerMessage{Offset: 2},
		&sarama.ConsumerMessage{Offset: 3},
	)

	require.NoError(t, h.ConsumeClaim(sess, claim))
	assert.Equal(t, []int64{1}, sess.marked)
}

func TestConsumeClaim_ReturnsWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &consumerGroupHandler{
		h: mq.HandlerFunc(func(context.Context, mq.Message) error {
			return errors.New("must not be called")
		}),
		log: zap.NewNop(),
	}
	sess := &fakeSession{ctx: ctx}
	require.NoError(t, h.ConsumeClaim(sess, fakeClaim{ch: make(chan *sarama.ConsumerMessage)}))
	assert.Empty(t, sess.marked)
}

func TestNewConsumer_ValidatesConfig(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{GroupID: "g", Topics: []string{"t"}}, zap.NewNop())
	assert.ErrorContains(t, err, "brokers")
	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"b:9092"}, Topics: []string{"t"}}, zap.NewNop())
	assert.ErrorContains(t, err, "group id")
	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"b:9092"}, GroupID: "g"}, zap.NewNop())
	assert.ErrorContains(t, err, "topics")
}

func TestTopicDetail_Defaults(t *testing.T) {
	td := topicDetail(TopicAdminConfig{})
	assert.Equal(t, int32(1), td.NumPartitions)
	assert.Equal(t, int16(1), td.ReplicationFactor)
	assert.Equal(t, "604800000", *td.ConfigEntries["retention.ms"])
}
