package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/internal/snapshot"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*reconciler.Store, *dataservice.Memory) {
	t.Helper()
	list := []models.Notification{
		{ID: 1, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 2, CreatedAt: base.Add(time.Minute)},
	}
	store := reconciler.New()
	store.Seed(list, 2)
	return store, dataservice.NewMemory(list...)
}

func TestCommandsApplyLocallyAndRemotely(t *testing.T) {
	store, service := setup(t)
	d := New(store, service)
	ctx := context.Background()

	require.NoError(t, d.MarkRead(ctx, 1))
	assert.Equal(t, 1, store.UnreadCount())

	require.NoError(t, d.Delete(ctx, 2))
	assert.Len(t, store.Get().Notifications, 1)
	assert.Equal(t, 0, store.UnreadCount())

	store.Ingest(models.Notification{ID: 3, CreatedAt: base.Add(time.Hour)})
	service.Put(models.Notification{ID: 3, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, d.MarkAllRead(ctx))
	assert.Equal(t, 0, store.UnreadCount())

	assert.Equal(t, []string{"MarkRead", "Delete", "MarkAllRead"}, service.Calls())
	count, err := service.FetchUnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFailedCommandKeepsOptimisticState(t *testing.T) {
	store, service := setup(t)
	service.FailWith("MarkRead", fmt.Errorf("503 service unavailable"))
	d := New(store, service)

	err := d.MarkRead(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandFailed))
	assert.Equal(t, errors.ErrCodeCommandFailed, errors.GetCode(err))

	assert.Equal(t, 1, store.UnreadCount(), "no rollback")
	assert.True(t, store.Get().Notifications[0].IsRead)
}

func TestFailedCommandResync(t *testing.T) {
	store, service := setup(t)
	service.FailWith("Delete", fmt.Errorf("conflict"))
	loader := snapshot.New(service, store, time.Second, nil)
	d := New(store, service, WithResync(loader))

	err := d.Delete(context.Background(), 1)
	require.Error(t, err)

	// The server still has the notification, so the resync brings it back
	assert.Len(t, store.Get().Notifications, 2)
	assert.Equal(t, 2, store.UnreadCount())
}

// clearingService clears the store while a command is in flight.
type clearingService struct {
	*dataservice.Memory
	store *reconciler.Store
}

func (c clearingService) MarkAllRead(ctx context.Context) error {
	c.store.Clear()
	return fmt.Errorf("connection closed")
}

func TestCompletionAfterClearIsIgnored(t *testing.T) {
	store, service := setup(t)
	d := New(store, clearingService{Memory: service, store: store})

	assert.NoError(t, d.MarkAllRead(context.Background()))
	assert.Empty(t, store.Get().Notifications)
}

func TestUnknownIDIsNoop(t *testing.T) {
	store, service := setup(t)
	d := New(store, service)

	err := d.MarkRead(context.Background(), 404)
	require.Error(t, err, "server rejects the unknown id")
	assert.Equal(t, 2, store.UnreadCount())
	assert.Len(t, store.Get().Notifications, 2)
}
