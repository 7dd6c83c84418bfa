// Package snapshot performs the one-shot request/reply read that seeds the store.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// UnavailableMessage is shown to the user when the snapshot could not be loaded.
const UnavailableMessage = "could not load notifications"

// Status is the loader's presentation state.
type Status struct {
	Loading   bool
	LastError string
}

// Loader fetches the full list and the unread count concurrently and seeds
// the store with the result.
type Loader struct {
	service dataservice.Service
	store   *reconciler.Store
	timeout time.Duration
	logger  *logrus.Entry

	mu       sync.Mutex
	inflight int
	lastErr  string
	onChange func(Status)
}

// New creates a Loader. A zero timeout means 30s.
func New(service dataservice.Service, store *reconciler.Store, timeout time.Duration, logger *logrus.Entry) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{service: service, store: store, timeout: timeout, logger: logger}
}

// OnChange registers a callback invoked after every status change.
func (l *Loader) OnChange(fn func(Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Status returns the current loading flag and error message.
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{Loading: l.inflight > 0, LastError: l.lastErr}
}

// Load fetches the snapshot without touching the store.
func (l *Loader) Load(ctx context.Context) ([]models.Notification, int, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var (
		list  []models.Notification
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = l.service.FetchAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = l.service.FetchUnreadCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, errors.SnapshotFailed(err)
	}
	return list, count, nil
}

// Refresh loads the snapshot and seeds the store if the session epoch that
// was current when the call started is still live. On failure the store keeps
// its state and the error is recorded for presentation.
func (l *Loader) Refresh(ctx context.Context) error {
	epoch := l.store.Epoch()
	l.begin()

	list, count, err := l.Load(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Snapshot load failed")
		l.end(epoch, err)
		return err
	}

	if !l.store.SeedIfLive(epoch, list, count) {
		l.logger.WithField("epoch", epoch).Debug("Discarding snapshot for ended session")
		l.end(epoch, nil)
		return nil
	}
	l.logger.WithFields(logrus.Fields{
		"notifications": len(list),
		"unread":        count,
	}).Debug("Snapshot loaded")
	l.end(epoch, nil)
	return nil
}

// Reset clears the error at session end.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.lastErr = ""
	fn := l.onChange
	status := Status{Loading: l.inflight > 0}
	l.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}

func (l *Loader) begin() {
	l.mu.Lock()
	l.inflight++
	fn := l.onChange
	status := Status{Loading: true, LastError: l.lastErr}
	l.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}

func (l *Loader) end(epoch uint64, err error) {
	l.mu.Lock()
	l.inflight--
	// Results from an ended session must not leak an error into the next one
	if l.store.IsLive(epoch) {
		if err != nil {
			l.lastErr = UnavailableMessage
		} else {
			l.lastErr = ""
		}
	}
	fn := l.onChange
	status := Status{Loading: l.inflight > 0, LastError: l.lastErr}
	l.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}
