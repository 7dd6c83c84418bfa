package dataservice

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/pkg/models"
)

// Memory is an in-process Service backed by a map. It is used when no server
// is reachable in tests and demos, and can be told to fail.
type Memory struct {
	mu            sync.Mutex
	notifications map[int64]models.Notification
	failures      map[string]error
	calls         []string
}

// NewMemory creates a Memory service holding list.
func NewMemory(list ...models.Notification) *Memory {
	m := &Memory{
		notifications: make(map[int64]models.Notification),
		failures:      make(map[string]error),
	}
	for _, n := range list {
		m.Put(n)
	}
	return m
}

// Put inserts or replaces a notification.
func (m *Memory) Put(n models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.Normalize()
	m.notifications[n.ID] = n.Clone()
}

// FailWith makes every call to op ("FetchAll", "MarkRead", ...) return err.
// A nil err clears the failure.
func (m *Memory) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns the operations invoked so far, in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// recordLocked logs the call and returns the injected failure for op, if any.
func (m *Memory) recordLocked(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

// FetchAll implements Service.
func (m *Memory) FetchAll(ctx context.Context) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("FetchAll"); err != nil {
		return nil, err
	}
	return m.listLocked(func(models.Notification) bool { return true }), nil
}

// FetchUnread implements Service.
func (m *Memory) FetchUnread(ctx context.Context) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("FetchUnread"); err != nil {
		return nil, err
	}
	return m.listLocked(func(n models.Notification) bool { return !n.IsRead }), nil
}

// FetchUnreadCount implements Service.
func (m *Memory) FetchUnreadCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("FetchUnreadCount"); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range m.notifications {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkRead implements Service.
func (m *Memory) MarkRead(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("MarkRead"); err != nil {
		return err
	}
	n, ok := m.notifications[id]
	if !ok {
		return errors.RequestFailed("PUT", "/api/notifications/{id}/read", 404).WithDetail("id", id)
	}
	n.MarkRead(time.Now())
	m.notifications[id] = n
	return nil
}

// MarkAllRead implements Service.
func (m *Memory) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("MarkAllRead"); err != nil {
		return err
	}
	now := time.Now()
	for id, n := range m.notifications {
		n.MarkRead(now)
		m.notifications[id] = n
	}
	return nil
}

// Delete implements Service.
func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordLocked("Delete"); err != nil {
		return err
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) listLocked(keep func(models.Notification) bool) []models.Notification {
	out := make([]models.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
