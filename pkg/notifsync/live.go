package notifsync

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/grovetools/notifsync/config"
	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/internal/dispatch"
	"github.com/grovetools/notifsync/internal/effect"
	"github.com/grovetools/notifsync/internal/engine"
	"github.com/grovetools/notifsync/internal/push"
	"github.com/grovetools/notifsync/internal/reconciler"
	"github.com/grovetools/notifsync/internal/snapshot"
	"github.com/grovetools/notifsync/logging"
	"github.com/grovetools/notifsync/pkg/dataservice"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/grovetools/notifsync/pkg/session"
	"github.com/sirupsen/logrus"
)

type options struct {
	service   dataservice.Service
	dialer    push.Dialer
	effect    effect.Effect
	effectSet bool
	logger    *logrus.Entry
}

// Option configures a Live client.
type Option func(*options)

// WithService replaces the REST data service.
func WithService(s dataservice.Service) Option {
	return func(o *options) { o.service = s }
}

// WithDialer replaces the websocket dialer of the push channel.
func WithDialer(d push.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithEffect replaces the effect configured in the "effect" section. A nil
// effect disables it.
func WithEffect(e effect.Effect) Option {
	return func(o *options) {
		o.effect = e
		o.effectSet = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) { o.logger = logger }
}

// New returns a Disabled client when provider is nil, and a running Live
// client otherwise. The capability is selected once.
func New(cfg *config.Config, provider session.Provider, opts ...Option) Client {
	if provider == nil {
		return Disabled{}
	}
	return NewLive(cfg, provider, opts...)
}

// Live is the client of an application that has an admin session. A gate
// goroutine follows the provider: on login it starts a session with a fresh
// epoch, on logout it stops the push channel and clears all state.
type Live struct {
	provider   session.Provider
	store      *reconciler.Store
	loader     *snapshot.Loader
	manager    *push.Manager
	dispatcher *dispatch.Dispatcher
	engine     *engine.Engine
	logger     *logrus.Entry

	mu            sync.Mutex
	subscribers   map[chan View]struct{}
	sessionCancel context.CancelFunc
	sessionDone   chan struct{}

	gateCancel context.CancelFunc
	gateDone   chan struct{}
	closeOnce  sync.Once
}

var _ Client = (*Live)(nil)

// NewLive creates a Live client and starts its gate. The provider stays owned
// by the caller.
func NewLive(cfg *config.Config, provider session.Provider, opts ...Option) *Live {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("notifsync")
	}
	if !o.effectSet {
		var effCfg effect.Config
		if err := cfg.UnmarshalExtension("effect", &effCfg); err != nil {
			o.logger.WithError(err).Warn("Ignoring invalid effect configuration")
		}
		o.effect = effect.FromConfig(effCfg, os.Stderr)
	}

	l := &Live{
		provider:    provider,
		logger:      o.logger,
		subscribers: make(map[chan View]struct{}),
	}

	storeOpts := []reconciler.Option{reconciler.WithLogger(o.logger.WithField("module", "reconciler"))}
	if o.effect != nil {
		storeOpts = append(storeOpts, reconciler.WithEffect(o.effect))
	}
	l.store = reconciler.New(storeOpts...)

	service := o.service
	if service == nil {
		service = dataservice.NewRemote(cfg.API.BaseURL, provider, cfg.API.Timeout,
			dataservice.WithStatusHook(l.onStatus))
	}

	l.loader = snapshot.New(service, l.store, cfg.Sync.SnapshotTimeout, o.logger.WithField("module", "snapshot"))
	l.loader.OnChange(func(snapshot.Status) { l.publish() })

	registry := push.NewRegistry(cfg.Push.Destination, func(n models.Notification) {
		l.store.Ingest(n)
	}, o.logger.WithField("module", "push"))
	pushOpts := []push.Option{push.WithLogger(o.logger.WithField("module", "push"))}
	if o.dialer != nil {
		pushOpts = append(pushOpts, push.WithDialer(o.dialer))
	}
	l.manager = push.NewManager(push.ConfigFrom(cfg.Push), provider, registry, pushOpts...)

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(o.logger.WithField("module", "dispatch"))}
	if cfg.Sync.ResyncOnCommandFailure {
		dispatchOpts = append(dispatchOpts, dispatch.WithResync(l.loader))
	}
	l.dispatcher = dispatch.New(l.store, service, dispatchOpts...)

	l.engine = engine.New(l.store, l.loader, l.manager, l.publish, o.logger.WithField("module", "engine"))

	ctx, cancel := context.WithCancel(context.Background())
	l.gateCancel = cancel
	l.gateDone = make(chan struct{})
	go l.gate(ctx)
	return l
}

// gate follows the session provider until ctx is canceled.
func (l *Live) gate(ctx context.Context) {
	defer close(l.gateDone)

	// Drop a stale transition; the current flag is read right after
	select {
	case <-l.provider.Changes():
	default:
	}
	if l.provider.IsAuthenticated() {
		l.startSession(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			l.endSession()
			return
		case authenticated := <-l.provider.Changes():
			running := l.running()
			switch {
			case authenticated && running:
				// Only flips are reported, so a logout was coalesced away
				l.logger.Debug("Session replaced, restarting")
				l.endSession()
				l.startSession(ctx)
			case authenticated:
				l.startSession(ctx)
			case running:
				l.endSession()
			}
		}
	}
}

func (l *Live) startSession(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	l.mu.Lock()
	l.sessionCancel = cancel
	l.sessionDone = done
	l.mu.Unlock()

	go func() {
		defer close(done)
		l.engine.Run(ctx)
	}()
	l.publish()
}

// endSession stops the push channel, clears the store and resets the loader.
func (l *Live) endSession() {
	l.mu.Lock()
	cancel, done := l.sessionCancel, l.sessionDone
	l.sessionCancel, l.sessionDone = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.store.Clear()
	l.loader.Reset()
	l.publish()
}

func (l *Live) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionCancel != nil
}

func (l *Live) onStatus(status int) {
	if status != http.StatusUnauthorized {
		return
	}
	l.logger.Warn("Server rejected the session credential, logging out")
	l.provider.Invalidate()
}

// View implements Client.
func (l *Live) View() View {
	snap := l.store.Get()
	state := l.manager.State()
	status := l.loader.Status()
	return View{
		Notifications: snap.Notifications,
		UnreadCount:   snap.UnreadCount,
		Connection:    state,
		IsConnected:   state.IsConnected(),
		IsLoading:     status.Loading,
		LastError:     status.LastError,
	}
}

// Subscribe implements Client.
func (l *Live) Subscribe() <-chan View {
	ch := make(chan View, 16)

	l.mu.Lock()
	defer l.mu.Unlock()
	ch <- l.View()
	l.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe implements Client.
func (l *Live) Unsubscribe(ch <-chan View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subscribers {
		if (<-chan View)(sub) == ch {
			delete(l.subscribers, sub)
			close(sub)
			return
		}
	}
}

// publish reads the view under l.mu so concurrent publishers deliver in the
// order their views were taken and the last delivered view is the newest.
func (l *Live) publish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.View()
	for ch := range l.subscribers {
		select {
		case ch <- v:
		default:
			// Full: replace the oldest view so the latest one always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// MarkAsRead implements Client.
func (l *Live) MarkAsRead(ctx context.Context, id int64) error {
	if !l.running() {
		return errors.NotAuthenticated()
	}
	return l.dispatcher.MarkRead(ctx, id)
}

// MarkAllAsRead implements Client.
func (l *Live) MarkAllAsRead(ctx context.Context) error {
	if !l.running() {
		return errors.NotAuthenticated()
	}
	return l.dispatcher.MarkAllRead(ctx)
}

// DeleteNotification implements Client.
func (l *Live) DeleteNotification(ctx context.Context, id int64) error {
	if !l.running() {
		return errors.NotAuthenticated()
	}
	return l.dispatcher.Delete(ctx, id)
}

// Refresh implements Client.
func (l *Live) Refresh(ctx context.Context) error {
	if !l.running() {
		return errors.NotAuthenticated()
	}
	return l.loader.Refresh(ctx)
}

// WaitEffects blocks until every fired notification effect has returned.
func (l *Live) WaitEffects() {
	l.store.WaitEffects()
}

// Close implements Client. It is idempotent.
func (l *Live) Close() error {
	l.closeOnce.Do(func() {
		l.gateCancel()
		<-l.gateDone
		l.store.WaitEffects()

		l.mu.Lock()
		defer l.mu.Unlock()
		for ch := range l.subscribers {
			delete(l.subscribers, ch)
			close(ch)
		}
	})
	return nil
}
