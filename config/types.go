package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the notifsync configuration loaded from notifsync.yml or notifsync.toml.
type Config struct {
	Version string        `yaml:"version" json:"version"`
	API     APIConfig     `yaml:"api" json:"api"`
	Push    PushConfig    `yaml:"push" json:"push"`
	Session SessionConfig `yaml:"session" json:"session"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`

	// Extensions holds the remaining top-level sections (logging, effect, ...),
	// decoded on demand with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:",inline" json:"-"`
}

// APIConfig configures the request/reply data service.
type APIConfig struct {
	// BaseURL is the root of the REST API, e.g. http://localhost:8085.
	BaseURL string        `yaml:"base_url" json:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// PushConfig configures the push channel.
type PushConfig struct {
	// Endpoint is the websocket URL of the STOMP broker.
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
	// Destination is the channel subscribed to after every connect.
	Destination string `yaml:"destination" json:"destination,omitempty"`
	// ReconnectDelay is the constant wait between a failure and the next attempt.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay,omitempty"`
	// HeartbeatOutgoing is how often the client sends a heartbeat.
	HeartbeatOutgoing time.Duration `yaml:"heartbeat_outgoing" json:"heartbeat_outgoing,omitempty"`
	// HeartbeatIncoming is how often the client expects traffic from the server.
	HeartbeatIncoming time.Duration `yaml:"heartbeat_incoming" json:"heartbeat_incoming,omitempty"`
	// HeartbeatGrace multiplies HeartbeatIncoming to get the silence tolerated
	// before the connection is declared dead.
	HeartbeatGrace float64 `yaml:"heartbeat_grace" json:"heartbeat_grace,omitempty"`
	// ConnectTimeout bounds the websocket dial and the STOMP handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout,omitempty"`
}

// Session sources.
const (
	SessionSourceFile    = "file"
	SessionSourceKeyring = "keyring"
	SessionSourceEnv     = "env"
)

// SessionConfig selects where the bearer token comes from.
type SessionConfig struct {
	Source         string        `yaml:"source" json:"source,omitempty"`
	TokenFile      string        `yaml:"token_file" json:"token_file,omitempty"`
	KeyringService string        `yaml:"keyring_service" json:"keyring_service,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval,omitempty"`
}

// SyncConfig tunes the snapshot and command paths.
type SyncConfig struct {
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout" json:"snapshot_timeout,omitempty"`
	// ResyncOnCommandFailure reloads the snapshot after a command the server rejected.
	ResyncOnCommandFailure bool `yaml:"resync_on_command_failure" json:"resync_on_command_failure,omitempty"`
}

// Defaults.
const (
	DefaultVersion         = "1.0"
	DefaultBaseURL         = "http://localhost:8085"
	DefaultEndpoint        = "ws://localhost:8085/ws/websocket"
	DefaultDestination     = "/topic/notifications/admin"
	DefaultReconnectDelay  = 5 * time.Second
	DefaultHeartbeat       = 4 * time.Second
	DefaultHeartbeatGrace  = 2.0
	DefaultConnectTimeout  = 10 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultSnapshotTimeout = 30 * time.Second
	DefaultPollInterval    = 10 * time.Second
	DefaultKeyringService  = "notifsync"
	DefaultSessionSource   = SessionSourceFile
)

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultRequestTimeout
	}
	if c.Push.Endpoint == "" {
		c.Push.Endpoint = DefaultEndpoint
	}
	if c.Push.Destination == "" {
		c.Push.Destination = DefaultDestination
	}
	if c.Push.ReconnectDelay == 0 {
		c.Push.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Push.HeartbeatOutgoing == 0 {
		c.Push.HeartbeatOutgoing = DefaultHeartbeat
	}
	if c.Push.HeartbeatIncoming == 0 {
		c.Push.HeartbeatIncoming = DefaultHeartbeat
	}
	if c.Push.HeartbeatGrace == 0 {
		c.Push.HeartbeatGrace = DefaultHeartbeatGrace
	}
	if c.Push.ConnectTimeout == 0 {
		c.Push.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Session.Source == "" {
		c.Session.Source = DefaultSessionSource
	}
	if c.Session.KeyringService == "" {
		c.Session.KeyringService = DefaultKeyringService
	}
	if c.Session.PollInterval == 0 {
		c.Session.PollInterval = DefaultPollInterval
	}
	if c.Sync.SnapshotTimeout == 0 {
		c.Sync.SnapshotTimeout = DefaultSnapshotTimeout
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded notifsync.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
