package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/notifsync/internal/effect"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Store is the single writer of the notification collection and unread counter.
// Every mutating operation runs under one mutex and leaves
// unread == count(!IsRead) satisfied. Subscribers are notified with a
// non-blocking send after each change.
type Store struct {
	mu            sync.RWMutex
	notifications []models.Notification // newest first, unique IDs
	unread        int
	epoch         uint64
	subscribers   map[chan Update]struct{}

	effect  effect.Effect
	effects sync.WaitGroup
	now     func() time.Time
	logger  *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithEffect sets the effect fired for every net-new unread notification.
func WithEffect(e effect.Effect) Option {
	return func(s *Store) { s.effect = e }
}

// WithClock overrides the clock used for read timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store at epoch 1.
func New(opts ...Option) *Store {
	s := &Store{
		epoch:       1,
		subscribers: make(map[chan Update]struct{}),
		now:         time.Now,
		logger:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a deep copy of the current state.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// UnreadCount returns the current counter.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Epoch returns the current session epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// IsLive reports whether epoch is still the current session epoch. Async
// completions captured under an older epoch must be discarded.
func (s *Store) IsLive(epoch uint64) bool {
	return s.Epoch() == epoch
}

// Seed replaces the collection wholesale. Duplicate IDs keep their first
// occurrence and the result is ordered newest first. The counter is derived
// from the list; a disagreeing server count is logged and ignored.
func (s *Store) Seed(list []models.Notification, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedLocked(list, count)
}

// SeedIfLive seeds only while epoch is current. It reports whether it seeded.
func (s *Store) SeedIfLive(epoch uint64, list []models.Notification, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.seedLocked(list, count)
	return true
}

func (s *Store) seedLocked(list []models.Notification, count int) {
	seen := make(map[int64]struct{}, len(list))
	next := make([]models.Notification, 0, len(list))
	unread := 0
	for _, n := range list {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		n = n.Clone()
		n.Normalize()
		if !n.IsRead {
			unread++
		}
		next = append(next, n)
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].CreatedAt.After(next[j].CreatedAt)
	})

	if count != unread {
		s.logger.WithFields(logrus.Fields{
			"server_count":  count,
			"derived_count": unread,
		}).Warn("Unread count disagrees with snapshot, using derived count")
	}

	s.notifications = next
	s.unread = unread
	s.broadcastLocked(UpdateSeed, 0)
}

// Ingest inserts a pushed notification at the head if its ID is absent.
// It reports whether the notification was inserted. The effect fires only
// for a net-new unread notification.
func (s *Store) Ingest(n models.Notification) bool {
	s.mu.Lock()
	if s.indexLocked(n.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	n = n.Clone()
	n.Normalize()
	s.notifications = append([]models.Notification{n}, s.notifications...)
	if !n.IsRead {
		s.unread++
	}
	s.broadcastLocked(UpdateIngest, n.ID)
	fire := !n.IsRead && s.effect != nil
	s.mu.Unlock()

	if fire {
		s.fire(n.Clone())
	}
	return true
}

// MarkRead marks one notification read. It is a no-op when the ID is absent
// or already read, and reports whether anything changed.
func (s *Store) MarkRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	if !s.notifications[i].MarkRead(s.now()) {
		return false
	}
	s.decrementLocked()
	s.broadcastLocked(UpdateMarkRead, id)
	return true
}

// MarkAllRead marks every notification read and zeroes the counter in one
// step. It returns how many notifications changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changed := 0
	for i := range s.notifications {
		if s.notifications[i].MarkRead(now) {
			changed++
		}
	}
	if changed == 0 && s.unread == 0 {
		return 0
	}
	s.unread = 0
	s.broadcastLocked(UpdateMarkAllRead, 0)
	return changed
}

// Remove deletes a notification by ID and reports whether it was present.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	wasUnread := !s.notifications[i].IsRead
	s.notifications = append(s.notifications[:i:i], s.notifications[i+1:]...)
	if wasUnread {
		s.decrementLocked()
	}
	s.broadcastLocked(UpdateRemove, id)
	return true
}

// Clear empties the store at session end and starts a new epoch.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = nil
	s.unread = 0
	s.epoch++
	s.broadcastLocked(UpdateClear, 0)
	return s.epoch
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 16)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// WaitEffects blocks until every effect started so far has returned.
func (s *Store) WaitEffects() {
	s.effects.Wait()
}

func (s *Store) fire(n models.Notification) {
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		_ = effect.Safe(context.Background(), s.effect, n, s.logger)
	}()
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) decrementLocked() {
	if s.unread > 0 {
		s.unread--
	}
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]models.Notification, len(s.notifications))
	for i, n := range s.notifications {
		list[i] = n.Clone()
	}
	return Snapshot{Notifications: list, UnreadCount: s.unread, Epoch: s.epoch}
}

func (s *Store) broadcastLocked(t UpdateType, id int64) {
	if len(s.subscribers) == 0 {
		return
	}
	u := Update{Type: t, ID: id, Snapshot: s.snapshotLocked()}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send; slow subscribers can always call Get
		}
	}
}
