// Package sqlite is the relational NotificationStore, backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/pkg/id"
)

// createdAtLayout is fixed width so created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the notification store on SQLite.
type Store struct {
	db *sqlx.DB
}

type row struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Kind      string `db:"kind"`
	Title     string `db:"title"`
	Message   string `db:"message"`
	IsRead    bool   `db:"is_read"`
	EmailSent bool   `db:"email_sent"`
	CreatedAt string `db:"created_at"`
}

// Open opens (or creates) the database at path, enables WAL mode and runs any
// pending schema migrations. ":memory:" gives a private in-process database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	current := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Put inserts n when it has no id yet, assigning one. Updates only ever raise the
// read and delivery flags.
func (s *Store) Put(ctx context.Context, n *domain.Notification) error {
	if n.NotificationID == "" {
		nid := id.NewAt(n.CreatedAt)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, kind, title, message, is_read, email_sent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nid, n.UserID, string(n.Kind), n.Title, n.Message,
			boolToInt(n.IsRead), boolToInt(n.EmailSent), n.CreatedAt.UTC().Format(createdAtLayout),
		)
		if err != nil {
			return fmt.Errorf("creating notification: %w", err)
		}
		n.NotificationID = nid
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = MAX(is_read, ?), email_sent = MAX(email_sent, ?)
		WHERE id = ?`,
		boolToInt(n.IsRead), boolToInt(n.EmailSent), n.NotificationID,
	)
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", n.NotificationID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("notification %s: %w", n.NotificationID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT * FROM notifications WHERE id = ?", notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading notification %s: %w", notificationID, err)
	}
	n, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns every notification of the user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.list(ctx,
		"SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
}

func (s *Store) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.list(ctx,
		"SELECT * FROM notifications WHERE user_id = ? AND is_read = 0 ORDER BY created_at DESC, id DESC", userID)
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r row) toDomain() (domain.Notification, error) {
	createdAt, err := time.Parse(createdAtLayout, r.CreatedAt)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("parsing created_at of %s: %w", r.ID, err)
	}
	return domain.Notification{
		NotificationID: r.ID,
		UserID:         r.UserID,
		Kind:           domain.Kind(r.Kind),
		Title:          r.Title,
		Message:        r.Message,
		IsRead:         r.IsRead,
		EmailSent:      r.EmailSent,
		CreatedAt:      createdAt,
	}, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
