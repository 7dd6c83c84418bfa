// Package effect implements the best-effort side effects fired when a new
// unread notification arrives.
package effect

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/grovetools/notifsync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Effect is notified once per net-new unread notification. Implementations
// must not assume they run on any particular goroutine.
type Effect interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Func adapts a function to Effect.
type Func func(ctx context.Context, n models.Notification) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// Config is the `effect` section of notifsync.yml.
type Config struct {
	// Bell rings the terminal bell. Enabled when unset.
	Bell *bool `yaml:"bell"`
	// Command is executed for every new notification, e.g. ["paplay", "ding.oga"].
	Command []string `yaml:"command"`
	// Timeout bounds Command. Defaults to 5s.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultCommandTimeout bounds a notification command when none is configured.
const DefaultCommandTimeout = 5 * time.Second

// Bell writes the BEL control character.
type Bell struct {
	Out io.Writer
}

// Notify rings the bell.
func (b Bell) Notify(ctx context.Context, n models.Notification) error {
	out := b.Out
	if out == nil {
		out = os.Stderr
	}
	_, err := io.WriteString(out, "\a")
	return err
}

// Command runs an external program. The notification is exposed to it through
// NOTIFSYNC_ID, NOTIFSYNC_KIND, NOTIFSYNC_TITLE and NOTIFSYNC_BODY.
type Command struct {
	Argv    []string
	Timeout time.Duration
}

// Notify runs the command and waits for it.
func (c Command) Notify(ctx context.Context, n models.Notification) error {
	if len(c.Argv) == 0 {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Env = append(os.Environ(),
		"NOTIFSYNC_ID="+strconv.FormatInt(n.ID, 10),
		"NOTIFSYNC_KIND="+string(n.Kind),
		"NOTIFSYNC_TITLE="+n.Title,
		"NOTIFSYNC_BODY="+n.Body,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notification command %q failed: %w (output: %s)", c.Argv[0], err, out)
	}
	return nil
}

// Multi fans a notification out to several effects. Every effect runs even
// when an earlier one fails; the first error is returned.
type Multi []Effect

// Notify calls every effect in order.
func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var first error
	for _, e := range m {
		if err := e.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FromConfig builds the effect chain described by cfg. It returns nil when
// every effect is disabled.
func FromConfig(cfg Config, out io.Writer) Effect {
	var chain Multi
	if cfg.Bell == nil || *cfg.Bell {
		chain = append(chain, Bell{Out: out})
	}
	if len(cfg.Command) > 0 {
		chain = append(chain, Command{Argv: cfg.Command, Timeout: cfg.Timeout})
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// Safe runs e and converts a panic into an error, logging any failure.
// It is the only way the store invokes an effect.
func Safe(ctx context.Context, e Effect, n models.Notification, logger *logrus.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification effect panicked: %v", r)
		}
		if err != nil && logger != nil {
			logger.WithError(err).WithField("id", n.ID).Warn("Notification effect failed")
		}
	}()
	return e.Notify(ctx, n)
}
