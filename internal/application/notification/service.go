package notification

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/go-notification-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDeliveryTimeout  = 10 * time.Second
	defaultBroadcastWorkers = 8
)

type Service interface {
	Create(ctx context.Context, userID string, kind domain.Kind, title, body string) (*domain.Notification, error)
	CreateForAllUsers(ctx context.Context, kind domain.Kind, title, body string) domain.BroadcastResult
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) error
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type deliveryChannel interface {
	Send(ctx context.Context, recipientID, subject, body string) error
}

type userDirectory interface {
	Users(ctx context.Context) iter.Seq2[domain.DirectoryUser, error]
}

// Observer receives delivery and broadcast outcomes for metrics.
type Observer interface {
	DeliveryAttempted(kind domain.Kind, ok bool)
	BroadcastFinished(kind domain.Kind, res domain.BroadcastResult)
}

type noopObserver struct{}

func (noopObserver) DeliveryAttempted(domain.Kind, bool)                   {}
func (noopObserver) BroadcastFinished(domain.Kind, domain.BroadcastResult) {}

type service struct {
	repo            notificationStore
	channel         deliveryChannel
	directory       userDirectory
	observer        Observer
	log             *zap.Logger
	deliveryTimeout time.Duration
	workers         int
	now             func() time.Time
}

type ServiceDeps struct {
	Repo             notificationStore
	Channel          deliveryChannel
	Directory        userDirectory
	Observer         Observer
	Logger           *zap.Logger
	DeliveryTimeout  time.Duration
	BroadcastWorkers int
	Now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:            deps.Repo,
		channel:         deps.Channel,
		directory:       deps.Directory,
		observer:        deps.Observer,
		log:             deps.Logger,
		deliveryTimeout: deps.DeliveryTimeout,
		workers:         deps.BroadcastWorkers,
		now:             deps.Now,
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.deliveryTimeout <= 0 {
		s.deliveryTimeout = defaultDeliveryTimeout
	}
	if s.workers <= 0 {
		s.workers = defaultBroadcastWorkers
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create persists a notification for userID and then pushes it once to the delivery
// channel. Delivery failure is logged and leaves EmailSent false; it never fails the call.
func (s *service) Create(ctx context.Context, userID string, kind domain.Kind, title, body string) (*domain.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("recipient is required: %w", domain.ErrBadRequest)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown notification kind %q: %w", kind, domain.ErrBadRequest)
	}
	n := &domain.Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	if err := s.deliver(ctx, n); err != nil {
		s.observer.DeliveryAttempted(kind, false)
		s.log.Warn("notification delivery failed",
			zap.String("notification_id", n.NotificationID),
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return n, nil
	}
	s.observer.DeliveryAttempted(kind, true)

	sent := *n
	sent.EmailSent = true
	if err := s.repo.Put(ctx, &sent); err != nil {
		s.log.Warn("failed to record delivery outcome",
			zap.String("notification_id", n.NotificationID),
			zap.Error(err))
		return n, nil
	}
	return &sent, nil
}

func (s *service) deliver(ctx context.Context, n *domain.Notification) error {
	if s.channel == nil {
		return fmt.Errorf("no delivery channel configured: %w", domain.ErrDeliveryFailure)
	}
	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()
	if err := s.channel.Send(ctx, n.UserID, n.Title, n.Message); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// CreateForAllUsers creates one notification per eligible directory user. The directory
// is consumed lazily; recipients run on a bounded pool and one recipient's failure never
// affects another. A directory failure stops enumeration but recipients already read are
// still processed.
func (s *service) CreateForAllUsers(ctx context.Context, kind domain.Kind, title, body string) domain.BroadcastResult {
	var attempted, succeeded, failed, skipped atomic.Int64
	log := s.log.With(zap.String("kind", string(kind)))

	var g errgroup.Group
	g.SetLimit(s.workers)

	if s.directory != nil {
		for u, err := range s.directory.Users(ctx) {
			if err != nil {
				log.Warn("user directory unavailable, broadcast truncated",
					zap.Int64("recipients_seen", attempted.Load()+skipped.Load()),
					zap.Error(fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)))
				break
			}
			if ctx.Err() != nil {
				break
			}
			if kind.SystemConfiguration() && domain.IsAdmin(u.Role) {
				skipped.Add(1)
				continue
			}
			attempted.Add(1)
			g.Go(func() error {
				if err := s.createIsolated(ctx, u.ID, kind, title, body); err != nil {
					failed.Add(1)
					log.Error("broadcast recipient failed", zap.String("user_id", u.ID), zap.Error(err))
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	res := domain.BroadcastResult{
		Attempted: int(attempted.Load()),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	if res.Attempted == 0 {
		log.Info("broadcast had no recipients", zap.Int("skipped", res.Skipped))
	} else {
		log.Info("broadcast finished",
			zap.Int("attempted", res.Attempted),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped))
	}
	s.observer.BroadcastFinished(kind, res)
	return res
}

func (s *service) createIsolated(ctx context.Context, userID string, kind domain.Kind, title, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic creating notification: %v", r)
		}
	}()
	_, err = s.Create(ctx, userID, kind, title, body)
	return err
}

func (s *service) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead is idempotent: an already read notification is returned without a write.
func (s *service) MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) error {
	unread, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return err
	}
	var errs []error
	for i := range unread {
		n := unread[i]
		if n.UserID != userID {
			continue
		}
		n.IsRead = true
		if err := s.repo.Put(ctx, &n); err != nil {
			errs = append(errs, fmt.Errorf("notification %s: %w", n.NotificationID, err))
		}
	}
	return errors.Join(errs...)
}
