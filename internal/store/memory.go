package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Repository used when no database is configured
// and in tests.
type Memory struct {
	mu            sync.RWMutex
	entries       map[int64]*Entry
	notifications map[int64]*Notification
	nextEntry     int64
	nextNotif     int64
	now           func() time.Time
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries:       make(map[int64]*Entry),
		notifications: make(map[int64]*Notification),
		now:           time.Now,
	}
}

func (m *Memory) CreateEntry(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEntry++
	e.ID = m.nextEntry
	e.CreatedAt = m.now().UTC()
	if e.Status == "" {
		e.Status = EntryQueued
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id int64) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withCount(e), nil
}

func (m *Memory) ListEntries(_ context.Context, page Page) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.withCount(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, page), nil
}

// withCount copies e with its notification count. Callers hold mu.
func (m *Memory) withCount(e *Entry) *Entry {
	cp := *e
	cp.ActionsTriggered = 0
	for _, n := range m.notifications {
		if n.EntryID != nil && *n.EntryID == e.ID {
			cp.ActionsTriggered++
		}
	}
	return &cp
}

func (m *Memory) SetEntryStatus(_ context.Context, id int64, status EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	for _, n := range m.notifications {
		if n.EntryID != nil && *n.EntryID == id {
			n.EntryID = nil
		}
	}
	return nil
}

func (m *Memory) CreateNotification(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNotif++
	n.ID = m.nextNotif
	n.CreatedAt = m.now().UTC()
	n.IsRead = false
	if n.EntryID != nil {
		if _, ok := m.entries[*n.EntryID]; !ok {
			n.EntryID = nil
		}
	}
	m.notifications[n.ID] = copyNotification(n)
	return nil
}

func (m *Memory) GetNotification(_ context.Context, id int64) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNotification(n), nil
}

func (m *Memory) ListNotifications(_ context.Context, page Page) ([]*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, copyNotification(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, page), nil
}

func (m *Memory) UpdateNotification(_ context.Context, id int64, u NotificationUpdate) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Message != nil {
		n.Message = *u.Message
	}
	if u.Action != nil {
		n.Action = *u.Action
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	return copyNotification(n), nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id int64) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.IsRead = true
	return copyNotification(n), nil
}

func (m *Memory) DeleteNotification(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) Close() {}

func copyNotification(n *Notification) *Notification {
	cp := *n
	if n.EntryID != nil {
		id := *n.EntryID
		cp.EntryID = &id
	}
	cp.Links = append([]Link(nil), n.Links...)
	return &cp
}

func paginate[T any](items []T, page Page) []T {
	page = page.normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end]
}
