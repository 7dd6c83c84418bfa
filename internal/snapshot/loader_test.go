package snapshot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixture() *dataservice.Memory {
	at := base.Add(time.Minute)
	return dataservice.NewMemory(
		models.Notification{ID: 1, CreatedAt: base.Add(2 * time.Minute)},
		models.Notification{ID: 2, CreatedAt: base.Add(time.Minute), ReadAt: &at},
	)
}

func TestLoad(t *testing.T) {
	l := New(fixture(), reconciler.New(), time.Second, nil)
	list, count, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 1, count)
}

func TestRefreshSeedsStore(t *testing.T) {
	store := reconciler.New()
	l := New(fixture(), store, time.Second, nil)

	var statuses []Status
	var mu sync.Mutex
	l.OnChange(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	})

	require.NoError(t, l.Refresh(context.Background()))
	snap := store.Get()
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Len(t, snap.Notifications, 2)
	assert.Equal(t, Status{}, l.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{{Loading: true}, {Loading: false}}, statuses)
}

func TestRefreshFailureKeepsState(t *testing.T) {
	service := fixture()
	store := reconciler.New()
	l := New(service, store, time.Second, nil)
	require.NoError(t, l.Refresh(context.Background()))
	store.Ingest(models.Notification{ID: 3, CreatedAt: base.Add(time.Hour)})

	service.FailWith("FetchUnreadCount", fmt.Errorf("connection reset"))
	err := l.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSnapshotFailed))

	assert.Equal(t, UnavailableMessage, l.Status().LastError)
	assert.False(t, l.Status().Loading)
	assert.Len(t, store.Get().Notifications, 3, "existing state is kept")
	assert.Equal(t, 2, store.UnreadCount())

	// A later success clears the error
	service.FailWith("FetchUnreadCount", nil)
	require.NoError(t, l.Refresh(context.Background()))
	assert.Empty(t, l.Status().LastError)
}

// blockingService holds FetchAll until released.
type blockingService struct {
	*dataservice.Memory
	release chan struct{}
	started chan struct{}
}

func (b *blockingService) FetchAll(ctx context.Context) ([]models.Notification, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Memory.FetchAll(ctx)
}

func TestRefreshAfterClearIsDiscarded(t *testing.T) {
	service := &blockingService{Memory: fixture(), release: make(chan struct{}), started: make(chan struct{})}
	store := reconciler.New()
	l := New(service, store, time.Second, nil)

	done := make(chan error, 1)
	go func() { done <- l.Refresh(context.Background()) }()

	<-service.started
	assert.True(t, l.Status().Loading)
	store.Clear()
	close(service.release)

	require.NoError(t, <-done)
	assert.Empty(t, store.Get().Notifications, "a snapshot from an ended session is not applied")
	assert.False(t, l.Status().Loading)
}

func TestLoadTimeout(t *testing.T) {
	service := &blockingService{Memory: fixture(), release: make(chan struct{}), started: make(chan struct{})}
	l := New(service, reconciler.New(), 20*time.Millisecond, nil)

	_, _, err := l.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSnapshotFailed))
}

func TestReset(t *testing.T) {
	service := fixture()
	service.FailWith("FetchAll", fmt.Errorf("down"))
	l := New(service, reconciler.New(), time.Second, nil)
	_ = l.Refresh(context.Background())
	require.NotEmpty(t, l.Status().LastError)

	l.Reset()
	assert.Empty(t, l.Status().LastError)
}
