// Package engine runs one authenticated session: the snapshot load, the push
// connection, and the fan-in of their state changes.
package engine

import (
	"context"
	"sync"

	"github.com/grovetools/notifsync/internal/push"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/internal/snapshot"
	"github.com/sirupsen/logrus"
)

// Engine wires the store, the loader and the push manager for a session.
type Engine struct {
	store    *reconciler.Store
	loader   *snapshot.Loader
	manager  *push.Manager
	logger   *logrus.Entry
	onChange func()
}

// New creates a new Engine instance. onChange is called after every store
// update and connection state change while a session runs; it may be nil.
func New(store *reconciler.Store, loader *snapshot.Loader, manager *push.Manager, onChange func(), logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Engine{
		store:    store,
		loader:   loader,
		manager:  manager,
		logger:   logger,
		onChange: onChange,
	}
}

// Run starts the session and blocks until ctx is canceled. The snapshot is
// loaded once, concurrently with the push connection. When Run returns the
// manager is stopped; a snapshot still in flight is discarded by the store
// once the session epoch ends.
func (e *Engine) Run(ctx context.Context) {
	updates := e.store.Subscribe()
	defer e.store.Unsubscribe(updates)
	states := e.manager.Subscribe()
	defer e.manager.Unsubscribe(states)

	epoch := e.store.Epoch()
	e.logger.WithField("epoch", epoch).Info("Session started")

	var wg sync.WaitGroup

	// 1. Start update consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				e.onChange()
			case s, ok := <-states:
				if !ok {
					return
				}
				e.logger.WithField("state", s).Debug("Push connection state changed")
				e.onChange()
			}
		}
	}()

	// 2. Load the snapshot without holding up the push path
	go func() {
		if err := e.loader.Refresh(ctx); err != nil {
			e.logger.WithError(err).Debug("Initial snapshot failed")
		}
	}()

	// 3. Connect
	e.manager.Start(ctx)

	<-ctx.Done()
	e.manager.Stop()
	wg.Wait()
	e.logger.WithField("epoch", epoch).Info("Session ended")
}

// Store returns the engine's state store.
func (e *Engine) Store() *reconciler.Store {
	return e.store
}
