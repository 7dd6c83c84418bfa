package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grovetools/notifsync/errors"
)

// Validate checks if the configuration is valid. It expects defaults to be applied.
func (c *Config) Validate() error {
	if err := validateURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("push.endpoint", c.Push.Endpoint, "ws", "wss"); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Push.Destination, "/") {
		return errors.New(errors.ErrCodeConfigValidation, "push.destination must start with '/'").
			WithDetail("destination", c.Push.Destination)
	}
	if c.Push.ReconnectDelay < 0 || c.Push.HeartbeatOutgoing < 0 || c.Push.HeartbeatIncoming < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "push durations cannot be negative")
	}
	if c.Push.HeartbeatGrace < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "push.heartbeat_grace must be at least 1").
			WithDetail("heartbeat_grace", c.Push.HeartbeatGrace)
	}

	switch c.Session.Source {
	case SessionSourceFile, SessionSourceKeyring, SessionSourceEnv:
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("session.source must be one of file, keyring, env (got %q)", c.Session.Source))
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("%s is not a valid URL", field)).
			WithDetail(field, raw)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return errors.New(errors.ErrCodeConfigValidation,
		fmt.Sprintf("%s must be a %s URL", field, strings.Join(schemes, "/"))).
		WithDetail(field, raw)
}
