//go:build e2e

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// startPostgres starts a PostgreSQL testcontainer and returns a migrated
// Store.
func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("tappy_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgresRepository(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	e := &Entry{Title: "Monday", Text: "Need to schedule dentist", ContentJSON: "{}"}
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := s.SetEntryStatus(ctx, e.ID, EntryProcessing); err != nil {
		t.Fatalf("set status: %v", err)
	}

	n := &Notification{
		EntryID: &e.ID,
		SkillID: "cal",
		Title:   "📅 Calendar Event Ready",
		Message: "click",
		Status:  "needs_confirmation",
		Links:   []Link{{Label: "Add to Calendar", URL: "https://calendar.google.com/x"}},
		Excerpt: "Need to schedule dentist",
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("create notification: %v", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil || got.Status != EntryProcessing || got.ActionsTriggered != 1 {
		t.Fatalf("get entry = %+v, %v", got, err)
	}

	read, err := s.MarkNotificationRead(ctx, n.ID)
	if err != nil || !read.IsRead || len(read.Links) != 1 {
		t.Fatalf("mark read = %+v, %v", read, err)
	}
	msg := "edited"
	upd, err := s.UpdateNotification(ctx, n.ID, NotificationUpdate{Message: &msg})
	if err != nil || upd.Message != "edited" || upd.Title != n.Title {
		t.Fatalf("update = %+v, %v", upd, err)
	}

	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	kept, err := s.GetNotification(ctx, n.ID)
	if err != nil || kept.EntryID != nil {
		t.Fatalf("notification after entry delete = %+v, %v", kept, err)
	}

	list, err := s.ListNotifications(ctx, Page{})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if _, err := s.GetEntry(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresNotificationForDeletedEntry(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	e := &Entry{Text: "Post that I finally shipped the release"}
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	gone := e.ID
	if err := s.DeleteEntry(ctx, gone); err != nil {
		t.Fatalf("delete entry: %v", err)
	}

	n := &Notification{EntryID: &gone, SkillID: "x", Title: "𝕏 Posted Successfully", Message: "posted", Status: "completed"}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("create notification for deleted entry: %v", err)
	}
	if n.ID == 0 || n.EntryID != nil {
		t.Fatalf("notification = %+v, want stored with no entry", n)
	}

	got, err := s.GetNotification(ctx, n.ID)
	if err != nil || got.EntryID != nil || got.Title != n.Title {
		t.Fatalf("get notification = %+v, %v", got, err)
	}

	var none *int64
	orphan := &Notification{EntryID: none, Title: "no entry", Message: "m", Status: "pending"}
	if err := s.CreateNotification(ctx, orphan); err != nil || orphan.EntryID != nil {
		t.Fatalf("nil entry notification = %+v, %v", orphan, err)
	}
}
