package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-notification-service/internal/application/notification"
	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/infrastructure/delivery"
	"github.com/go-notification-service/internal/infrastructure/mq"
	"github.com/go-notification-service/internal/infrastructure/sqlite"
	"github.com/go-notification-service/internal/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- mocks ---

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Create(ctx context.Context, userID string, kind domain.Kind, title, body string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, kind, title, body)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotifier) CreateForAllUsers(ctx context.Context, kind domain.Kind, title, body string) domain.BroadcastResult {
	return m.Called(ctx, kind, title, body).Get(0).(domain.BroadcastResult)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) Archive(ctx context.Context, topic, reason string, body []byte) (string, error) {
	args := m.Called(ctx, topic, reason, body)
	return args.String(0), args.Error(1)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) EventConsumed(event, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, event+"="+outcome)
}

func newDispatcher(svc notifier, dlq deadLetterArchive, obs Observer) *Dispatcher {
	deps := DispatcherDeps{Service: svc, Observer: obs, Logger: zap.NewNop(), TopicPrefix: "library."}
	if dlq != nil {
		deps.DeadLetters = dlq
	}
	return NewDispatcher(deps)
}

func msg(topic, body string) mq.Message {
	return mq.Message{Topic: topic, Value: []byte(body)}
}

// --- tests ---

func TestTopics(t *testing.T) {
	d := newDispatcher(&mockNotifier{}, nil, nil)
	assert.ElementsMatch(t, []string{
		"library.booking.created", "library.booking.canceled", "library.booking.checked_in",
		"library.booking.no_show", "library.resource.created", "library.resource.deleted",
		"library.policy.created", "library.policy.updated", "library.policy.deleted",
	}, d.Topics())
}

func TestHandle_BookingCreatesForRecipient(t *testing.T) {
	svc := &mockNotifier{}
	svc.On("Create", mock.Anything, "3", domain.KindBookingConfirmed, "Booking Confirmed",
		mock.MatchedBy(func(body string) bool { return assert.Contains(t, body, "QR-1") })).
		Return(&domain.Notification{NotificationID: "n1", UserID: "3"}, nil).Once()
	obs := &recordingObserver{}

	err := newDispatcher(svc, nil, obs).Handle(context.Background(),
		msg("library.booking.created", `{"id":1,"resourceId":2,"userId":3,"qrCode":"QR-1"}`))
	require.NoError(t, err)
	svc.AssertExpectations(t)
	assert.Equal(t, []string{"booking.created=" + metrics.OutcomeHandled}, obs.outcomes)
}

func TestHandle_BroadcastEvents(t *testing.T) {
	svc := &mockNotifier{}
	svc.On("CreateForAllUsers", mock.Anything, domain.KindResourceDeleted, "Resource Removed",
		mock.MatchedBy(func(body string) bool { return assert.Contains(t, body, "Resource ID: 12") })).
		Return(domain.BroadcastResult{Attempted: 2, Succeeded: 2}).Once()

	require.NoError(t, newDispatcher(svc, nil, nil).Handle(context.Background(), msg("library.resource.deleted", `12`)))
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UnknownTopicIsAcknowledged(t *testing.T) {
	svc := &mockNotifier{}
	obs := &recordingObserver{}
	require.NoError(t, newDispatcher(svc, nil, obs).Handle(context.Background(), msg("booking.created", `{}`)))
	assert.Equal(t, []string{"booking.created=" + metrics.OutcomeIgnored}, obs.outcomes)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UndecodableGoesToDeadLetter(t *testing.T) {
	svc := &mockNotifier{}
	dlq := &mockArchive{}
	dlq.On("Archive", mock.Anything, "library.policy.created", mock.AnythingOfType("string"), []byte(`{not json`)).
		Return("s3://dlq/x.json", nil).Once()
	obs := &recordingObserver{}

	require.NoError(t, newDispatcher(svc, dlq, obs).Handle(context.Background(), msg("library.policy.created", `{not json`)))
	dlq.AssertExpectations(t)
	assert.Equal(t, []string{"policy.created=" + metrics.OutcomeDeadLetter}, obs.outcomes)
}

func TestHandle_BookingWithoutRecipient(t *testing.T) {
	svc := &mockNotifier{}
	dlq := &mockArchive{}
	dlq.On("Archive", mock.Anything, "library.booking.no_show", "missing userId", mock.Anything).
		Return("", errors.New("bucket missing")).Once()

	require.NoError(t, newDispatcher(svc, dlq, nil).Handle(context.Background(), msg("library.booking.no_show", `{"id":1}`)))
	dlq.AssertExpectations(t)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_DeadLetterDisabled(t *testing.T) {
	svc := &mockNotifier{}
	require.NoError(t, newDispatcher(svc, nil, nil).Handle(context.Background(), msg("library.booking.no_show", `null`)))
}

func TestHandle_EngineErrorIsAcknowledged(t *testing.T) {
	svc := &mockNotifier{}
	svc.On("Create", mock.Anything, "3", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("table missing"))
	obs := &recordingObserver{}

	err := newDispatcher(svc, nil, obs).Handle(context.Background(), msg("library.booking.canceled", `{"id":1,"userId":3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"booking.canceled=" + metrics.OutcomeFailed}, obs.outcomes)
}

func TestHandle_CancelledContextIsNotAcknowledged(t *testing.T) {
	svc := &mockNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newDispatcher(svc, nil, nil).Handle(ctx, msg("library.booking.created", `{"id":1,"userId":3}`))
	assert.ErrorIs(t, err, context.Canceled)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_CancelledDuringCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &mockNotifier{}
	svc.On("Create", mock.Anything, "3", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	err := newDispatcher(svc, nil, nil).Handle(ctx, msg("library.booking.created", `{"id":1,"userId":3}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandle_CheckInEndToEnd(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := notification.NewService(notification.ServiceDeps{
		Repo:    store,
		Channel: delivery.NewLogChannel(zap.NewNop()),
		Logger:  zap.NewNop(),
	})
	d := NewDispatcher(DispatcherDeps{Service: svc, Logger: zap.NewNop()})

	ctx := context.Background()
	require.NoError(t, d.Handle(ctx, msg("booking.checked_in",
		`{"id":55,"resourceId":12,"userId":3,"checkedInAt":"2024-01-01T10:00:00"}`)))

	list, err := svc.ListByUser(ctx, "3")
	require.NoError(t, err)
	require.Len(t, list, 1)
	n := list[0]
	assert.Equal(t, "3", n.UserID)
	assert.Equal(t, domain.KindCheckInReminder, n.Kind)
	assert.Contains(t, n.Message, "55")
	assert.Contains(t, n.Message, "12")
	assert.Contains(t, n.Message, "2024-01-01T10:00:00")
	assert.False(t, n.IsRead)
	assert.True(t, n.EmailSent)

	count, err := svc.UnreadCount(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
