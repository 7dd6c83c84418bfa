package reconciler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/notifsync/internal/effect"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func unread(id int64, minutes int) models.Notification {
	return models.Notification{ID: id, Kind: models.KindOrderCreated, CreatedAt: base.Add(time.Duration(minutes) * time.Minute)}
}

func read(id int64, minutes int) models.Notification {
	n := unread(id, minutes)
	at := n.CreatedAt.Add(time.Minute)
	n.IsRead = true
	n.ReadAt = &at
	return n
}

func ids(s Snapshot) []int64 {
	out := make([]int64, len(s.Notifications))
	for i, n := range s.Notifications {
		out[i] = n.ID
	}
	return out
}

// assertInvariants checks the counter and uniqueness invariants.
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Get()
	count := 0
	seen := map[int64]bool{}
	for _, n := range snap.Notifications {
		assert.False(t, seen[n.ID], "duplicate id %d", n.ID)
		seen[n.ID] = true
		assert.Equal(t, n.IsRead, n.ReadAt != nil, "read state of %d", n.ID)
		if !n.IsRead {
			count++
		}
	}
	assert.Equal(t, count, snap.UnreadCount, "unread counter drifted")
	assert.GreaterOrEqual(t, snap.UnreadCount, 0)
}

// seeded returns a store holding one unread and one read notification.
func seeded(opts ...Option) *Store {
	s := New(opts...)
	s.Seed([]models.Notification{unread(1, 2), read(2, 1)}, 1)
	return s
}

func TestSeedCountsUnread(t *testing.T) {
	s := seeded()
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, []int64{1, 2}, ids(s.Get()))
	assertInvariants(t, s)
}

func TestIngestPrependsNewest(t *testing.T) {
	s := seeded()
	require.True(t, s.Ingest(unread(3, 3)))

	snap := s.Get()
	assert.Equal(t, []int64{3, 1, 2}, ids(snap))
	assert.Equal(t, 2, snap.UnreadCount)
	assertInvariants(t, s)
}

func TestMarkAllReadZeroesCounter(t *testing.T) {
	s := seeded()
	s.Ingest(unread(3, 3))

	assert.Equal(t, 2, s.MarkAllRead())
	snap := s.Get()
	assert.Equal(t, 0, snap.UnreadCount)
	for _, n := range snap.Notifications {
		assert.True(t, n.IsRead, "notification %d", n.ID)
		assert.NotNil(t, n.ReadAt)
	}
	assert.Equal(t, 0, s.MarkAllRead(), "second MarkAllRead changes nothing")
	assertInvariants(t, s)
}

func TestIngestDuplicateIsNoop(t *testing.T) {
	s := seeded()
	assert.False(t, s.Ingest(unread(1, 5)))

	snap := s.Get()
	assert.Equal(t, []int64{1, 2}, ids(snap))
	assert.Equal(t, 1, snap.UnreadCount)
	assertInvariants(t, s)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := seeded()
	assert.True(t, s.Remove(1))
	assert.Equal(t, []int64{2}, ids(s.Get()))
	assert.Equal(t, 0, s.UnreadCount())

	assert.NotPanics(t, func() {
		assert.False(t, s.Remove(1))
	})
	assert.Equal(t, []int64{2}, ids(s.Get()))
	assertInvariants(t, s)
}

func TestSeedDerivesCounter(t *testing.T) {
	s := New()
	s.Seed([]models.Notification{unread(1, 1), unread(2, 2)}, 7)
	assert.Equal(t, 2, s.UnreadCount(), "derived count wins over server count")
	assertInvariants(t, s)
}

func TestSeedDeduplicatesAndSorts(t *testing.T) {
	s := New()
	first := unread(1, 1)
	first.Title = "first"
	dup := read(1, 9)
	dup.Title = "dup"
	s.Seed([]models.Notification{first, unread(3, 3), dup, unread(2, 2)}, 3)

	snap := s.Get()
	assert.Equal(t, []int64{3, 2, 1}, ids(snap))
	assert.Equal(t, "first", snap.Notifications[2].Title)
	assert.Equal(t, 3, snap.UnreadCount)
	assertInvariants(t, s)
}

func TestSeedIsIdempotentAndLastWins(t *testing.T) {
	list := []models.Notification{unread(1, 2), read(2, 1)}
	s := New()
	s.Seed(list, 1)
	once := s.Get()
	s.Seed(list, 1)
	assert.Equal(t, once, s.Get())

	s.Seed([]models.Notification{unread(9, 1)}, 1)
	assert.Equal(t, []int64{9}, ids(s.Get()))
	assertInvariants(t, s)
}

func TestSeedNormalizesReadState(t *testing.T) {
	flagged := unread(1, 1)
	flagged.IsRead = true

	s := New()
	s.Seed([]models.Notification{flagged}, 0)
	n := s.Get().Notifications[0]
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, 0, s.UnreadCount())
}

func TestIngestReadDoesNotCount(t *testing.T) {
	s := seeded()
	require.True(t, s.Ingest(read(3, 3)))
	assert.Equal(t, 1, s.UnreadCount())
	assertInvariants(t, s)
}

func TestMarkRead(t *testing.T) {
	at := base.Add(time.Hour)
	s := seeded(WithClock(func() time.Time { return at }))

	assert.True(t, s.MarkRead(1))
	assert.Equal(t, 0, s.UnreadCount())
	n := s.Get().Notifications[0]
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, at, *n.ReadAt)

	assert.False(t, s.MarkRead(1), "already read")
	assert.False(t, s.MarkRead(2), "seeded read")
	assert.False(t, s.MarkRead(404), "unknown id")
	assert.Equal(t, 0, s.UnreadCount())
	assertInvariants(t, s)
}

func TestMarkAllReadThenMarkRead(t *testing.T) {
	s := seeded()
	s.Ingest(unread(3, 3))
	s.MarkAllRead()
	for _, id := range []int64{1, 2, 3, 4} {
		s.MarkRead(id)
		assert.Equal(t, 0, s.UnreadCount())
	}
	assertInvariants(t, s)
}

func TestGetReturnsCopy(t *testing.T) {
	s := seeded()
	snap := s.Get()
	snap.Notifications[0].IsRead = true
	snap.Notifications[0].Title = "mutated"

	fresh := s.Get()
	assert.False(t, fresh.Notifications[0].IsRead)
	assert.Empty(t, fresh.Notifications[0].Title)
}

func TestClearBumpsEpoch(t *testing.T) {
	s := seeded()
	epoch := s.Epoch()
	assert.True(t, s.IsLive(epoch))

	next := s.Clear()
	assert.Equal(t, epoch+1, next)
	assert.False(t, s.IsLive(epoch))
	assert.Empty(t, s.Get().Notifications)
	assert.Equal(t, 0, s.UnreadCount())

	assert.False(t, s.SeedIfLive(epoch, []models.Notification{unread(1, 1)}, 1), "stale seed is ignored")
	assert.Empty(t, s.Get().Notifications)
	assert.True(t, s.SeedIfLive(next, []models.Notification{unread(1, 1)}, 1))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestSubscribe(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	s.Seed([]models.Notification{unread(1, 1)}, 1)
	u := <-ch
	assert.Equal(t, UpdateSeed, u.Type)
	assert.Equal(t, 1, u.Snapshot.UnreadCount)

	s.MarkRead(1)
	u = <-ch
	assert.Equal(t, UpdateMarkRead, u.Type)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, 0, u.Snapshot.UnreadCount)

	// No-ops broadcast nothing
	s.MarkRead(1)
	s.Remove(99)
	select {
	case u := <-ch:
		t.Fatalf("unexpected update %s", u.Type)
	default:
	}

	s.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { s.Unsubscribe(ch) })
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	_ = s.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := int64(1); i <= 100; i++ {
			s.Ingest(unread(i, int(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("store blocked on a slow subscriber")
	}
	assert.Equal(t, 100, s.UnreadCount())
}

func TestEffectFiresOnNetNewUnread(t *testing.T) {
	var fired []int64
	var mu sync.Mutex
	s := seeded(WithEffect(effect.Func(func(ctx context.Context, n models.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, n.ID)
		return nil
	})))

	s.Ingest(unread(3, 3))
	s.Ingest(unread(3, 3)) // duplicate
	s.Ingest(read(4, 4))   // already read
	s.Ingest(unread(1, 9)) // present from seed
	s.WaitEffects()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{3}, fired)
}

func TestEffectFailureNeverTouchesState(t *testing.T) {
	s := seeded(WithEffect(effect.Func(func(ctx context.Context, n models.Notification) error {
		panic("playback blocked")
	})))

	assert.NotPanics(t, func() { s.Ingest(unread(3, 3)) })
	s.WaitEffects()
	assert.Equal(t, 2, s.UnreadCount())
	assertInvariants(t, s)
}

func TestConcurrentInterleaving(t *testing.T) {
	var effects atomic.Int32
	s := New(WithEffect(effect.Func(func(ctx context.Context, n models.Notification) error {
		effects.Add(1)
		return nil
	})))
	s.Seed([]models.Notification{unread(1, 1), unread(2, 2), read(3, 3)}, 2)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				id := int64(r.Intn(20))
				switch r.Intn(5) {
				case 0:
					s.Ingest(unread(id, r.Intn(100)))
				case 1:
					s.MarkRead(id)
				case 2:
					s.Remove(id)
				case 3:
					if r.Intn(20) == 0 {
						s.MarkAllRead()
					}
				default:
					_ = s.Get()
				}
			}
		}(int64(w))
	}
	wg.Wait()
	s.WaitEffects()

	assertInvariants(t, s)
	assert.Positive(t, effects.Load())
}
