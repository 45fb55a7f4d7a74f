package s3infra

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-notification-service/internal/pkg/id"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DeadLetters archives event bodies the service could not act on.
type DeadLetters struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When endpoint is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpoint string) *s3.Client {
	clientOpts := []func(*s3.Options){}
	if endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...)
}

func NewDeadLetters(client putObjectAPI, bucket string) *DeadLetters {
	return &DeadLetters{client: client, bucket: bucket, now: time.Now}
}

// Archive stores body under dead-letter/<topic>/<ulid>.json and returns the object URL.
func (d *DeadLetters) Archive(ctx context.Context, topic, reason string, body []byte) (string, error) {
	key := fmt.Sprintf("dead-letter/%s/%s.json", topic, id.NewAt(d.now()))
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"topic":  topic,
			"reason": reason,
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", d.bucket, key), nil
}
