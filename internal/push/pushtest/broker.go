// Package pushtest provides an in-memory STOMP broker for exercising the push
// client without a network, plus an HTTP handler serving the same broker over
// real websockets.
package pushtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/notifsync/internal/push"
	"github.com/grovetools/notifsync/pkg/models"
)

// serverConn is the broker's view of a client connection.
type serverConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// session is one accepted client connection.
type session struct {
	conn          serverConn
	mu            sync.Mutex
	subscriptions map[string]string // id -> destination
}

func (s *session) send(f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

func (s *session) writeRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Broker is a minimal STOMP 1.2 server. It implements push.Dialer for
// in-memory connections and http.Handler for websocket connections.
type Broker struct {
	// Heartbeat is advertised in CONNECTED as the server's send interval and
	// used to send heart-beats unless Mute is set.
	Heartbeat time.Duration

	mu         sync.Mutex
	sessions   map[*session]struct{}
	down       bool
	reject     string
	mute       bool
	tokens     []string
	connects   int
	commands   []string
	subscribed []string
	upgrader   websocket.Upgrader
	messageSeq int
}

// NewBroker creates a broker accepting every connection.
func NewBroker() *Broker {
	return &Broker{sessions: make(map[*session]struct{})}
}

// Dial implements push.Dialer.
func (b *Broker) Dial(ctx context.Context, endpoint string, header http.Header) (push.Conn, error) {
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		return nil, fmt.Errorf("dial %s: connection refused", endpoint)
	}
	client, server := Pipe()
	go b.serve(server)
	return client, nil
}

// ServeHTTP upgrades the request to a websocket and serves STOMP on it.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	down := b.down
	b.mu.Unlock()
	if down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.serve(conn)
}

// SetDown makes new connections fail while true.
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// Reject answers every CONNECT with an ERROR frame carrying reason. An empty
// reason accepts connections again.
func (b *Broker) Reject(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reject = reason
}

// Mute stops the broker from sending heart-beats.
func (b *Broker) Mute(mute bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mute = mute
}

// Drop closes every open connection, simulating an outage.
func (b *Broker) Drop() {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		_ = s.conn.Close()
	}
}

// Publish sends body to every subscription on destination and returns how
// many subscriptions received it.
func (b *Broker) Publish(destination string, body []byte) int {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	delivered := 0
	for _, s := range sessions {
		s.mu.Lock()
		var ids []string
		for id, dest := range s.subscriptions {
			if dest == destination {
				ids = append(ids, id)
			}
		}
		s.mu.Unlock()
		for _, id := range ids {
			if err := s.send(b.message(destination, id, body)); err == nil {
				delivered++
			}
		}
	}
	return delivered
}

// PublishNotification publishes n in wire form to the admin topic.
func (b *Broker) PublishNotification(n models.Notification) int {
	body, err := json.Marshal(n.ToWire())
	if err != nil {
		panic(err)
	}
	return b.Publish(push.DefaultDestination, body)
}

// SendToSubscription sends body with an explicit subscription header to every
// session, whether or not that subscription exists.
func (b *Broker) SendToSubscription(subscription string, body []byte) {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		_ = s.send(b.message(push.DefaultDestination, subscription, body))
	}
}

func (b *Broker) message(destination, subscription string, body []byte) *frame.Frame {
	b.mu.Lock()
	b.messageSeq++
	seq := b.messageSeq
	b.mu.Unlock()
	f := frame.New(frame.MESSAGE,
		frame.Destination, destination,
		frame.Subscription, subscription,
		frame.MessageId, fmt.Sprintf("msg-%d", seq),
		frame.ContentType, "application/json",
	)
	f.Body = body
	return f
}

// Connects returns how many CONNECT frames were accepted.
func (b *Broker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Sessions returns how many connections are open.
func (b *Broker) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Commands returns every client frame command received, in order.
func (b *Broker) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commands...)
}

// Subscriptions returns every subscription id ever created, in order.
func (b *Broker) Subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.subscribed...)
}

// Tokens returns the Authorization values presented on CONNECT.
func (b *Broker) Tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tokens...)
}

func (b *Broker) serve(conn serverConn) {
	s := &session{conn: conn, subscriptions: make(map[string]string)}
	stop := make(chan struct{})
	defer func() {
		close(stop)
		b.mu.Lock()
		delete(b.sessions, s)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r := frame.NewReader(bytes.NewReader(data))
		for {
			f, err := r.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return
				}
				break
			}
			if f == nil {
				continue
			}
			if !b.handle(s, f, stop) {
				return
			}
		}
	}
}

// handle processes one client frame and reports whether to keep the session.
func (b *Broker) handle(s *session, f *frame.Frame, stop chan struct{}) bool {
	b.mu.Lock()
	b.commands = append(b.commands, f.Command)
	b.mu.Unlock()

	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		b.mu.Lock()
		reject := b.reject
		b.tokens = append(b.tokens, f.Header.Get("Authorization"))
		b.mu.Unlock()
		if reject != "" {
			_ = s.send(frame.New(frame.ERROR, frame.Message, reject))
			return false
		}

		b.mu.Lock()
		b.connects++
		b.sessions[s] = struct{}{}
		b.mu.Unlock()

		_, clientWants, _ := parseHeartBeat(f.Header.Get(frame.HeartBeat))
		sendEvery := b.Heartbeat
		if clientWants == 0 {
			sendEvery = 0
		} else if sendEvery > 0 && clientWants > sendEvery {
			sendEvery = clientWants
		}
		_ = s.send(frame.New(frame.CONNECTED,
			frame.Version, "1.2",
			frame.HeartBeat, fmt.Sprintf("%d,%d", b.Heartbeat.Milliseconds(), b.Heartbeat.Milliseconds()),
			frame.Session, uuid.NewString(),
		))
		if sendEvery > 0 {
			go b.heartbeat(s, sendEvery, stop)
		}
	case frame.SUBSCRIBE:
		id := f.Header.Get(frame.Id)
		s.mu.Lock()
		s.subscriptions[id] = f.Header.Get(frame.Destination)
		s.mu.Unlock()
		b.mu.Lock()
		b.subscribed = append(b.subscribed, id)
		b.mu.Unlock()
	case frame.UNSUBSCRIBE:
		s.mu.Lock()
		delete(s.subscriptions, f.Header.Get(frame.Id))
		s.mu.Unlock()
	case frame.DISCONNECT:
		return false
	}
	return true
}

func (b *Broker) heartbeat(s *session, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			mute := b.mute
			b.mu.Unlock()
			if mute {
				continue
			}
			if err := s.writeRaw([]byte("\n")); err != nil {
				return
			}
		}
	}
}

func parseHeartBeat(value string) (time.Duration, time.Duration, error) {
	var cx, cy int64
	if value == "" {
		return 0, 0, nil
	}
	if _, err := fmt.Sscanf(strings.ReplaceAll(value, " ", ""), "%d,%d", &cx, &cy); err != nil {
		return 0, 0, err
	}
	return time.Duration(cx) * time.Millisecond, time.Duration(cy) * time.Millisecond, nil
}
