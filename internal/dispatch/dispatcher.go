// Package dispatch applies local intents to the store first and to the server second.
package dispatch

import (
	"context"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/sirupsen/logrus"
)

// Command names used in logs and errors.
const (
	CommandMarkRead    = "mark-read"
	CommandMarkAllRead = "mark-all-read"
	CommandDelete      = "delete"
)

// Resyncer reloads the snapshot after a command the server rejected.
type Resyncer interface {
	Refresh(ctx context.Context) error
}

// Dispatcher runs the two-phase commands. A failed server call is logged and
// returned; the optimistic local change is kept.
type Dispatcher struct {
	store   *reconciler.Store
	service dataservice.Service
	resync  Resyncer
	logger  *logrus.Entry
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResync reloads the snapshot through r after a failed command, as long
// as the session that issued the command is still live.
func WithResync(r Resyncer) Option {
	return func(d *Dispatcher) { d.resync = r }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher.
func New(store *reconciler.Store, service dataservice.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		service: service,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MarkRead marks id read locally, then on the server.
func (d *Dispatcher) MarkRead(ctx context.Context, id int64) error {
	epoch := d.store.Epoch()
	d.store.MarkRead(id)
	return d.complete(ctx, epoch, CommandMarkRead, id, d.service.MarkRead(ctx, id))
}

// MarkAllRead marks everything read locally, then on the server.
func (d *Dispatcher) MarkAllRead(ctx context.Context) error {
	epoch := d.store.Epoch()
	d.store.MarkAllRead()
	return d.complete(ctx, epoch, CommandMarkAllRead, 0, d.service.MarkAllRead(ctx))
}

// Delete removes id locally, then on the server.
func (d *Dispatcher) Delete(ctx context.Context, id int64) error {
	epoch := d.store.Epoch()
	d.store.Remove(id)
	return d.complete(ctx, epoch, CommandDelete, id, d.service.Delete(ctx, id))
}

func (d *Dispatcher) complete(ctx context.Context, epoch uint64, command string, id int64, err error) error {
	if err == nil {
		return nil
	}

	entry := d.logger.WithField("command", command)
	if id != 0 {
		entry = entry.WithField("id", id)
	}

	if !d.store.IsLive(epoch) {
		// The session ended while the request was in flight
		entry.WithError(err).Debug("Ignoring command failure for ended session")
		return nil
	}

	entry.WithError(err).Error("Command failed, keeping local state")
	if d.resync != nil {
		if rerr := d.resync.Refresh(ctx); rerr != nil {
			entry.WithError(rerr).Warn("Resync after command failure failed")
		}
	}
	return errors.CommandFailed(command, id, err)
}
