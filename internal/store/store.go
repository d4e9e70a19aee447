// Package store persists journal entries and the notifications produced
// from them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// EntryStatus tracks an entry through the processing queue.
type EntryStatus string

const (
	EntryQueued     EntryStatus = "queued"
	EntryProcessing EntryStatus = "processing"
	EntryCompleted  EntryStatus = "completed"
	EntryFailed     EntryStatus = "failed"
)

// Entry is a journal entry.
type Entry struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title,omitempty"`
	Text             string      `json:"text"`
	ContentJSON      string      `json:"content_json,omitempty"`
	Status           EntryStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	ActionsTriggered int         `json:"actions_triggered"`
}

// Link is a structured link stored with a notification.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notification is an inbox item created from an executed skill.
type Notification struct {
	ID        int64     `json:"id"`
	EntryID   *int64    `json:"journal_entry_id"`
	SkillID   string    `json:"skill_id,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Action    string    `json:"action,omitempty"`
	Status    string    `json:"status"`
	Links     []Link    `json:"links,omitempty"`
	Excerpt   string    `json:"journal_excerpt"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}

// NotificationUpdate carries the editable fields of a notification. Nil
// fields are left unchanged.
type NotificationUpdate struct {
	Title   *string `json:"title"`
	Message *string `json:"message"`
	Action  *string `json:"action"`
	Status  *string `json:"status"`
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Repository is the persistence boundary used by the API and the worker.
// Lists are newest first.
type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListEntries(ctx context.Context, page Page) ([]*Entry, error)
	SetEntryStatus(ctx context.Context, id int64, status EntryStatus) error
	// DeleteEntry keeps the entry's notifications and clears their entry id.
	DeleteEntry(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id int64) (*Notification, error)
	ListNotifications(ctx context.Context, page Page) ([]*Notification, error)
	UpdateNotification(ctx context.Context, id int64, u NotificationUpdate) (*Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) (*Notification, error)
	DeleteNotification(ctx context.Context, id int64) error

	Close()
}
