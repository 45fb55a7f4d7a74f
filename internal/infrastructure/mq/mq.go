// Package mq is the transport-neutral view of the event bus.
package mq

import "context"

type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// Handler processes one message. A nil error acknowledges it; a non-nil error leaves it
// for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}
