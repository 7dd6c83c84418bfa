package push

import (
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultDestination is the admin notification topic.
const DefaultDestination = "/topic/notifications/admin"

// Registry owns the single subscription of the current connection. A fresh
// subscription id is minted on every connect and never reused.
type Registry struct {
	destination string
	onEvent     func(models.Notification)
	logger      *logrus.Entry

	mu      sync.Mutex
	current string
	dropped int
}

// NewRegistry creates a registry that delivers decoded notifications to onEvent.
func NewRegistry(destination string, onEvent func(models.Notification), logger *logrus.Entry) *Registry {
	if destination == "" {
		destination = DefaultDestination
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{destination: destination, onEvent: onEvent, logger: logger}
}

// Destination returns the subscribed channel.
func (r *Registry) Destination() string {
	return r.destination
}

// Subscribe sends one SUBSCRIBE frame through send and records its id.
func (r *Registry) Subscribe(send func(*frame.Frame) error) (string, error) {
	id := "sub-" + uuid.NewString()
	f := frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, r.destination,
		frame.Ack, "auto",
	)
	// Recorded before sending so a MESSAGE racing the SUBSCRIBE is accepted
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()

	if err := send(f); err != nil {
		r.Reset()
		return "", err
	}

	r.logger.WithFields(logrus.Fields{
		"subscription": id,
		"destination":  r.destination,
	}).Debug("Subscribed")
	return id, nil
}

// Unsubscribe sends UNSUBSCRIBE for the current subscription, if any.
func (r *Registry) Unsubscribe(send func(*frame.Frame) error) error {
	r.mu.Lock()
	id := r.current
	r.current = ""
	r.mu.Unlock()

	if id == "" {
		return nil
	}
	return send(frame.New(frame.UNSUBSCRIBE, frame.Id, id))
}

// Reset forgets the current subscription after the transport went away.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
}

// Current returns the live subscription id, empty when not subscribed.
func (r *Registry) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Dropped returns how many MESSAGE frames were discarded.
func (r *Registry) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Dispatch decodes a MESSAGE frame and hands the notification to onEvent. It
// reports whether the frame was delivered. Frames for another subscription and
// malformed bodies are dropped.
func (r *Registry) Dispatch(f *frame.Frame) bool {
	sub := f.Header.Get(frame.Subscription)

	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == "" || sub != current {
		r.drop()
		r.logger.WithFields(logrus.Fields{
			"subscription": sub,
			"current":      current,
		}).Debug("Dropping message for stale subscription")
		return false
	}

	n, err := models.DecodeNotification(f.Body)
	if err != nil {
		r.drop()
		r.logger.WithError(errors.MalformedPayload(err)).
			WithField("message_id", f.Header.Get(frame.MessageId)).
			Warn("Dropping malformed notification")
		return false
	}

	if r.onEvent != nil {
		r.onEvent(n)
	}
	return true
}

func (r *Registry) drop() {
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
}
