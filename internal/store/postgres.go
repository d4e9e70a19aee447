package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store is the PostgreSQL Repository.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ Repository = (*Store)(nil)

// New creates a Store with a pgx connection pool.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations
// directory in name order.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

const entryColumns = `
	e.id, e.title, e.text, e.content_json, e.status, e.created_at,
	(SELECT count(*) FROM notifications n WHERE n.journal_entry_id = e.id)`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Title, &e.Text, &e.ContentJSON, &e.Status, &e.CreatedAt, &e.ActionsTriggered)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e *Entry) error {
	if e.Status == "" {
		e.Status = EntryQueued
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO journal_entries (title, text, content_json, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Title, e.Text, e.ContentJSON, string(e.Status),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries e WHERE e.id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, page Page) ([]*Entry, error) {
	page = page.normalize()
	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+`
		FROM journal_entries e
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SetEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE journal_entries SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("set entry %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry relies on ON DELETE SET NULL to detach notifications.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const notificationColumns = `id, journal_entry_id, skill_id, title, message, action, status,
	links, journal_excerpt, created_at, is_read`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var links []byte
	err := row.Scan(&n.ID, &n.EntryID, &n.SkillID, &n.Title, &n.Message, &n.Action,
		&n.Status, &links, &n.Excerpt, &n.CreatedAt, &n.IsRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &n.Links); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
	}
	return &n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	var links []byte
	if len(n.Links) > 0 {
		var err error
		if links, err = json.Marshal(n.Links); err != nil {
			return fmt.Errorf("marshal links: %w", err)
		}
	}
	// An entry deleted while its job ran resolves to NULL here instead of
	// failing the foreign key.
	var entryID *int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO notifications (journal_entry_id, skill_id, title, message, action, status, links, journal_excerpt)
		VALUES ((SELECT id FROM journal_entries WHERE id = $1), $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, journal_entry_id, created_at, is_read`,
		n.EntryID, n.SkillID, n.Title, n.Message, n.Action, n.Status, links, n.Excerpt,
	).Scan(&n.ID, &entryID, &n.CreatedAt, &n.IsRead)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.EntryID = entryID
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id int64) (*Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get notification %d: %w", id, err)
	}
	return n, err
}

func (s *Store) ListNotifications(ctx context.Context, page Page) ([]*Notification, error) {
	page = page.normalize()
	rows, err := s.db.Query(ctx, `SELECT `+notificationColumns+`
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UpdateNotification(ctx context.Context, id int64, u NotificationUpdate) (*Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `
		UPDATE notifications
		SET title = COALESCE($2, title), message = COALESCE($3, message),
		    action = COALESCE($4, action), status = COALESCE($5, status)
		WHERE id = $1
		RETURNING `+notificationColumns, id, u.Title, u.Message, u.Action, u.Status))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update notification %d: %w", id, err)
	}
	return n, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) (*Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1
		RETURNING `+notificationColumns, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return n, err
}

func (s *Store) DeleteNotification(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
