// Package cache fronts a notification store with a Redis-held unread counter per user.
package cache

import (
	"context"
	"time"

	"github.com/go-notification-service/internal/domain"
	"go.uber.org/zap"
)

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type counters interface {
	Fill(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (int, error)) (int, error)
	Invalidate(ctx context.Context, key string) error
}

// UnreadCountStore caches CountUnread and invalidates the cached value on every write for
// that user. A count loaded concurrently with a write is never cached. Cache errors fall
// through to the store.
type UnreadCountStore struct {
	notificationStore
	counters counters
	ttl      time.Duration
	log      *zap.Logger
}

func NewUnreadCountStore(store notificationStore, c counters, ttl time.Duration, log *zap.Logger) *UnreadCountStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &UnreadCountStore{notificationStore: store, counters: c, ttl: ttl, log: log}
}

func unreadKey(userID string) string { return "notif:unread:" + userID }

func (s *UnreadCountStore) Put(ctx context.Context, n *domain.Notification) error {
	if err := s.notificationStore.Put(ctx, n); err != nil {
		return err
	}
	if err := s.counters.Invalidate(ctx, unreadKey(n.UserID)); err != nil {
		s.log.Warn("unread counter invalidation failed", zap.String("user_id", n.UserID), zap.Error(err))
	}
	return nil
}

func (s *UnreadCountStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var storeErr error
	n, err := s.counters.Fill(ctx, unreadKey(userID), s.ttl, func(ctx context.Context) (int, error) {
		n, err := s.notificationStore.CountUnread(ctx, userID)
		storeErr = err
		return n, err
	})
	switch {
	case storeErr != nil:
		return 0, storeErr
	case err != nil:
		s.log.Warn("unread counter unavailable", zap.String("user_id", userID), zap.Error(err))
		return s.notificationStore.CountUnread(ctx, userID)
	}
	return n, nil
}
