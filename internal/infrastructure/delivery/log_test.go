package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogChannel_ReportsSuccessAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewLogChannel(zap.New(core))

	require.NoError(t, ch.Send(context.Background(), "3", "Booking Confirmed", "body"))
	entries := logs.FilterField(zap.String("recipient_id", "3")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Booking Confirmed", entries[0].ContextMap()["subject"])
}
