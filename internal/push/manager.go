package push

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/grovetools/notifsync/config"
	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/version"
	"github.com/sirupsen/logrus"
)

// Config tunes the connection lifecycle.
type Config struct {
	Endpoint          string
	ReconnectDelay    time.Duration
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration
	HeartbeatGrace    float64
	ConnectTimeout    time.Duration
}

// ConfigFrom maps the push section of notifsync.yml.
func ConfigFrom(c config.PushConfig) Config {
	return Config{
		Endpoint:          c.Endpoint,
		ReconnectDelay:    c.ReconnectDelay,
		HeartbeatOutgoing: c.HeartbeatOutgoing,
		HeartbeatIncoming: c.HeartbeatIncoming,
		HeartbeatGrace:    c.HeartbeatGrace,
		ConnectTimeout:    c.ConnectTimeout,
	}
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = config.DefaultEndpoint
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = config.DefaultReconnectDelay
	}
	if c.HeartbeatGrace < 1 {
		c.HeartbeatGrace = config.DefaultHeartbeatGrace
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = config.DefaultConnectTimeout
	}
}

// TokenSource supplies the bearer token presented on every connect.
type TokenSource interface {
	Token() string
}

// Manager owns the push transport. It connects, subscribes through the
// Registry, keeps the link alive with heart-beats and reconnects after a
// constant delay until Stop.
type Manager struct {
	cfg      Config
	dialer   Dialer
	tokens   TokenSource
	registry *Registry
	logger   *logrus.Entry

	mu          sync.Mutex
	state       State
	subscribers map[chan State]struct{}
	cancel      context.CancelFunc
	done        chan struct{}
	attempts    int
	lastErr     error
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the websocket dialer, e.g. with an in-memory transport.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a stopped Manager.
func NewManager(cfg Config, tokens TokenSource, registry *Registry, opts ...Option) *Manager {
	cfg.setDefaults()
	m := &Manager{
		cfg:         cfg,
		dialer:      WebsocketDialer{Dialer: &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}},
		tokens:      tokens,
		registry:    registry,
		logger:      logrus.NewEntry(logrus.StandardLogger()),
		state:       StateDisconnected,
		subscribers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves the Manager from DISCONNECTED to CONNECTING and runs the
// connection loop in the background. Calling Start on a running Manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(ctx, done)
}

// Stop closes the transport, cancels any pending reconnect and waits for the
// loop to exit. The Manager is DISCONNECTED when Stop returns. Stop is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns how many connects were tried since creation.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastError returns the most recent transport failure.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Subscribe creates a channel receiving every state change.
func (m *Manager) Subscribe() chan State {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan State, 16)
	m.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(ch chan State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[ch]; !ok {
		return
	}
	delete(m.subscribers, ch)
	close(ch)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == s {
		return
	}
	m.state = s
	for ch := range m.subscribers {
		select {
		case ch <- s:
		default:
			// Non-blocking send; observers are never required for correctness
		}
	}
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.setState(StateDisconnected)

	for {
		m.setState(StateConnecting)
		err := m.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.setState(StateError)

		entry := m.logger.WithField("retry_in", m.cfg.ReconnectDelay)
		if errors.Is(err, errors.ErrCodeHandshakeRejected) {
			entry.WithError(err).Warn("Push handshake rejected")
		} else {
			entry.WithError(err).Info("Push connection lost")
		}

		timer := time.NewTimer(m.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectOnce runs one connection from dial to teardown. It always returns a
// non-nil error describing why the connection ended.
func (m *Manager) connectOnce(ctx context.Context) error {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()

	token := ""
	if m.tokens != nil {
		token = m.tokens.Token()
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	conn, err := m.dialer.Dial(dialCtx, m.cfg.Endpoint, header)
	cancel()
	if err != nil {
		if errors.GetCode(err) != "" {
			return err
		}
		return errors.TransportFailed(m.cfg.Endpoint, err)
	}

	l := &link{conn: conn, stop: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			// Clean shutdown: leave the subscription and say goodbye before closing
			if m.registry != nil {
				_ = m.registry.Unsubscribe(l.send)
			}
			_ = l.send(frame.New(frame.DISCONNECT))
		case <-l.stop:
		}
		_ = conn.Close()
	}()
	defer func() {
		close(l.stop)
		wg.Wait()
		if m.registry != nil {
			m.registry.Reset()
		}
	}()

	outgoing, incoming, err := m.handshake(conn, l, token)
	if err != nil {
		return err
	}
	if outgoing > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.heartbeat(outgoing)
		}()
	}

	m.logger.WithFields(logrus.Fields{
		"endpoint":           m.cfg.Endpoint,
		"heartbeat_outgoing": outgoing,
		"heartbeat_incoming": incoming,
	}).Info("Push connected")
	m.setState(StateConnected)

	if m.registry != nil {
		if _, err := m.registry.Subscribe(l.send); err != nil {
			return errors.TransportFailed(m.cfg.Endpoint, err)
		}
	}

	return m.readLoop(ctx, conn, incoming)
}

// handshake sends CONNECT and waits for CONNECTED. It returns the negotiated
// heart-beat intervals: how often to send, and how often the server promised traffic.
func (m *Manager) handshake(conn Conn, l *link, token string) (outgoing, incoming time.Duration, err error) {
	connect := frame.New(frame.CONNECT,
		frame.AcceptVersion, "1.2",
		frame.Host, hostOf(m.cfg.Endpoint),
		frame.HeartBeat, formatHeartBeat(m.cfg.HeartbeatOutgoing, m.cfg.HeartbeatIncoming),
	)
	if token != "" {
		connect.Header.Set("Authorization", "Bearer "+token)
	}
	if err := l.send(connect); err != nil {
		return 0, 0, errors.TransportFailed(m.cfg.Endpoint, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(m.cfg.ConnectTimeout)); err != nil {
		return 0, 0, errors.TransportFailed(m.cfg.Endpoint, err)
	}
	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			return 0, 0, errors.TransportFailed(m.cfg.Endpoint, readErr)
		}
		frames, decodeErr := decodeFrames(data)
		if decodeErr != nil {
			return 0, 0, errors.TransportFailed(m.cfg.Endpoint, decodeErr)
		}
		for _, f := range frames {
			switch f.Command {
			case frame.CONNECTED:
				sx, sy, hbErr := parseHeartBeat(f.Header.Get(frame.HeartBeat))
				if hbErr != nil {
					m.logger.WithError(hbErr).Warn("Ignoring server heart-beat header")
				}
				return negotiate(m.cfg.HeartbeatOutgoing, sy), negotiate(m.cfg.HeartbeatIncoming, sx), nil
			case frame.ERROR:
				return 0, 0, errors.HandshakeRejected(m.cfg.Endpoint, errorMessage(f))
			}
		}
	}
}

// readLoop delivers MESSAGE frames until the connection fails. With a
// negotiated incoming interval, silence longer than interval*grace is fatal.
func (m *Manager) readLoop(ctx context.Context, conn Conn, incoming time.Duration) error {
	silence := time.Duration(float64(incoming) * m.cfg.HeartbeatGrace)
	for {
		deadline := time.Time{}
		if silence > 0 {
			deadline = time.Now().Add(silence)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return errors.TransportFailed(m.cfg.Endpoint, err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				return errors.HeartbeatTimeout(silence.String())
			}
			return errors.TransportFailed(m.cfg.Endpoint, err)
		}

		frames, err := decodeFrames(data)
		if err != nil {
			// One bad frame must not take the channel down
			m.logger.WithError(err).Warn("Dropping undecodable frame")
			continue
		}
		for _, f := range frames {
			switch f.Command {
			case frame.MESSAGE:
				if m.registry != nil {
					m.registry.Dispatch(f)
				}
			case frame.ERROR:
				return errors.TransportFailed(m.cfg.Endpoint, fmt.Errorf("server error: %s", errorMessage(f)))
			default:
				m.logger.WithField("command", f.Command).Debug("Ignoring frame")
			}
		}
	}
}

// link serializes writes to a Conn, which allows a single concurrent writer.
type link struct {
	conn   Conn
	stop   chan struct{}
	mu     sync.Mutex
	closed bool
}

func (l *link) send(f *frame.Frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return l.write(data)
}

func (l *link) write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return net.ErrClosed
	}
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		l.closed = true
		return err
	}
	return nil
}

// heartbeat sends an EOL every interval until the link stops or a write fails.
func (l *link) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.write(heartbeatEOL); err != nil {
				return
			}
		}
	}
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

func errorMessage(f *frame.Frame) string {
	if msg := f.Header.Get(frame.Message); msg != "" {
		return msg
	}
	if len(f.Body) > 0 {
		return string(f.Body)
	}
	return "ERROR frame"
}
