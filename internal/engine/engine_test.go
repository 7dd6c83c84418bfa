package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/notifsync/internal/engine"
	"github.com/grovetools/notifsync/internal/push"
	"github.com/grovetools/notifsync/internal/push/pushtest"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/internal/snapshot"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func notification(id int64) models.Notification {
	return models.Notification{
		ID:        id,
		Kind:      models.KindStockLow,
		Title:     "Stock faible",
		CreatedAt: base.Add(time.Duration(id) * time.Minute),
	}
}

type fixture struct {
	broker  *pushtest.Broker
	service *dataservice.Memory
	store   *reconciler.Store
	manager *push.Manager
	changes atomic.Int32
	cancel  context.CancelFunc
	done    chan struct{}
}

func run(t *testing.T, list ...models.Notification) *fixture {
	t.Helper()
	f := &fixture{
		broker:  pushtest.NewBroker(),
		service: dataservice.NewMemory(list...),
		store:   reconciler.New(),
		done:    make(chan struct{}),
	}
	loader := snapshot.New(f.service, f.store, time.Second, nil)
	registry := push.NewRegistry("", func(n models.Notification) { f.store.Ingest(n) }, nil)
	f.manager = push.NewManager(push.Config{
		ReconnectDelay: 20 * time.Millisecond,
		ConnectTimeout: time.Second,
	}, dataservice.StaticToken("tok"), registry, push.WithDialer(f.broker))

	e := engine.New(f.store, loader, f.manager, func() { f.changes.Add(1) }, nil)
	require.Same(t, f.store, e.Store())

	var ctx context.Context
	ctx, f.cancel = context.WithCancel(context.Background())
	go func() {
		defer close(f.done)
		e.Run(ctx)
	}()
	t.Cleanup(f.stop)
	return f
}

func (f *fixture) stop() {
	f.cancel()
	<-f.done
}

func (f *fixture) waitConnected(t *testing.T, subscriptions int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.manager.State() == push.StateConnected && len(f.broker.Subscriptions()) == subscriptions
	}, waitFor, tick)
}

func countCalls(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestRunSeedsAndIngests(t *testing.T) {
	f := run(t, notification(1), notification(2))
	f.waitConnected(t, 1)
	require.Eventually(t, func() bool { return f.store.UnreadCount() == 2 }, waitFor, tick)

	require.Equal(t, 1, f.broker.PublishNotification(notification(3)))
	require.Eventually(t, func() bool { return f.store.UnreadCount() == 3 }, waitFor, tick)

	snap := f.store.Get()
	require.Len(t, snap.Notifications, 3)
	assert.Equal(t, int64(3), snap.Notifications[0].ID, "pushed notification goes first")
	assert.Positive(t, f.changes.Load())
}

// After an outage, events pushed while disconnected are not backfilled and
// the counter keeps its pre-outage value until a new push arrives.
func TestReconnectDoesNotBackfill(t *testing.T) {
	f := run(t, notification(1), notification(2))
	f.waitConnected(t, 1)
	require.Eventually(t, func() bool { return f.store.UnreadCount() == 2 }, waitFor, tick)

	f.broker.SetDown(true)
	f.broker.Drop()
	require.Eventually(t, func() bool { return f.manager.State() != push.StateConnected }, waitFor, tick)

	for _, id := range []int64{3, 4, 5} {
		assert.Zero(t, f.broker.PublishNotification(notification(id)), "nobody is subscribed during the outage")
	}

	f.broker.SetDown(false)
	f.waitConnected(t, 2)

	assert.Equal(t, 2, f.store.UnreadCount())
	assert.Len(t, f.store.Get().Notifications, 2)
	assert.Equal(t, 1, countCalls(f.service.Calls(), "FetchAll"), "no snapshot after reconnect")

	require.Equal(t, 1, f.broker.PublishNotification(notification(6)))
	require.Eventually(t, func() bool { return f.store.UnreadCount() == 3 }, waitFor, tick)
	snap := f.store.Get()
	require.Len(t, snap.Notifications, 3, "outage events stay missing")
	assert.Equal(t, int64(6), snap.Notifications[0].ID)
}

func TestRunStopsManagerOnCancel(t *testing.T) {
	f := run(t)
	f.waitConnected(t, 1)

	f.stop()
	assert.Equal(t, push.StateDisconnected, f.manager.State())
	require.Eventually(t, func() bool {
		cmds := f.broker.Commands()
		return len(cmds) > 0 && cmds[len(cmds)-1] == "DISCONNECT"
	}, waitFor, tick)
}

func TestSnapshotFailureDoesNotBlockPush(t *testing.T) {
	broker := pushtest.NewBroker()
	service := dataservice.NewMemory()
	service.FailWith("FetchAll", assert.AnError)
	store := reconciler.New()
	loader := snapshot.New(service, store, time.Second, nil)
	registry := push.NewRegistry("", func(n models.Notification) { store.Ingest(n) }, nil)
	manager := push.NewManager(push.Config{ReconnectDelay: 20 * time.Millisecond}, dataservice.StaticToken("tok"), registry, push.WithDialer(broker))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.New(store, loader, manager, nil, nil).Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return loader.Status().LastError == snapshot.UnavailableMessage }, waitFor, tick)
	require.Eventually(t, func() bool {
		return manager.State() == push.StateConnected && len(broker.Subscriptions()) == 1
	}, waitFor, tick)

	require.Equal(t, 1, broker.PublishNotification(notification(7)))
	require.Eventually(t, func() bool { return store.UnreadCount() == 1 }, waitFor, tick)
}
