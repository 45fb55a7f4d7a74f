package sns

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSend_PublishesWithRecipientAttribute(t *testing.T) {
	m := &mockSNS{}
	m.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr := in.MessageAttributes[recipientAttr]
		return aws.ToString(in.TopicArn) == "arn:topic" &&
			aws.ToString(in.Subject) == "Booking Confirmed" &&
			aws.ToString(in.Message) == "body" &&
			aws.ToString(attr.StringValue) == "3"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	require.NoError(t, NewPublisher(m, "arn:topic").Send(context.Background(), "3", "Booking Confirmed", "body"))
	m.AssertExpectations(t)
}

func TestSend_Error(t *testing.T) {
	m := &mockSNS{}
	m.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	err := NewPublisher(m, "arn:topic").Send(context.Background(), "3", "s", "b")
	assert.ErrorContains(t, err, "sns publish")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 100))
	long := strings.Repeat("é", 150)
	assert.Len(t, []rune(truncate(long, 100)), 100)
}
