package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// recipientAttr lets email subscriptions filter on the recipient.
const recipientAttr = "recipient_id"

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher delivers notifications through an SNS topic.
type Publisher struct {
	client   publishAPI
	topicARN string
}

// NewClient creates an SNS client, pointing at LocalStack when endpoint is set.
func NewClient(awsCfg aws.Config, endpoint string) *sns.Client {
	var opts []func(*sns.Options)
	if endpoint != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return sns.NewFromConfig(awsCfg, opts...)
}

func NewPublisher(client publishAPI, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

func (p *Publisher) Send(ctx context.Context, recipientID, subject, body string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(truncate(subject, 100)),
		Message:  aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			recipientAttr: {DataType: aws.String("String"), StringValue: aws.String(recipientID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// truncate keeps s within SNS's subject limit without splitting a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
