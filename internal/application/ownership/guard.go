// Package ownership decides whether a caller may read or mutate notifications.
// Handlers call the guard explicitly before reaching the notification service.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-notification-service/internal/domain"
)

// Caller is the identity resolved from the request.
type Caller struct {
	UserID string
	Role   string
}

type notificationLookup interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
}

type Guard struct {
	repo notificationLookup
}

func NewGuard(repo notificationLookup) *Guard {
	return &Guard{repo: repo}
}

// AuthorizeUser gates operations scoped to a user id.
func (g *Guard) AuthorizeUser(caller Caller, targetUserID string) error {
	if err := resolved(caller); err != nil {
		return err
	}
	if domain.IsAdmin(caller.Role) || caller.UserID == targetUserID {
		return nil
	}
	return fmt.Errorf("user %s may not access notifications of user %s: %w", caller.UserID, targetUserID, domain.ErrForbidden)
}

// AuthorizeNotification gates operations scoped to one notification. A missing notification
// yields ErrNotFound, even for administrators.
func (g *Guard) AuthorizeNotification(ctx context.Context, caller Caller, notificationID string) error {
	if err := resolved(caller); err != nil {
		return err
	}
	n, err := g.repo.Get(ctx, notificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return err
	}
	if domain.IsAdmin(caller.Role) || caller.UserID == n.UserID {
		return nil
	}
	return fmt.Errorf("user %s does not own notification %s: %w", caller.UserID, notificationID, domain.ErrForbidden)
}

func resolved(c Caller) error {
	if c.UserID == "" || c.Role == "" {
		return domain.ErrUnauthenticated
	}
	return nil
}
