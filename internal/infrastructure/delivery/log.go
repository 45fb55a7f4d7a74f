// Package delivery holds the delivery channel used when outbound email is disabled.
package delivery

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel records the would-be message and reports success, so notifications
// created while email is disabled are marked as sent.
type LogChannel struct {
	log *zap.Logger
}

func NewLogChannel(log *zap.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (c *LogChannel) Send(_ context.Context, recipientID, subject, _ string) error {
	c.log.Info("email delivery disabled, skipping send",
		zap.String("recipient_id", recipientID),
		zap.String("subject", subject))
	return nil
}
