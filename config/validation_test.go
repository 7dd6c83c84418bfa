package config

import (
	"testing"

	"github.com/grovetools/notifsync/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"https api", func(c *Config) { c.API.BaseURL = "https://admin.example.com" }, true},
		{"wss push", func(c *Config) { c.Push.Endpoint = "wss://admin.example.com/ws/websocket" }, true},
		{"api without host", func(c *Config) { c.API.BaseURL = "http://" }, false},
		{"ws api", func(c *Config) { c.API.BaseURL = "ws://localhost" }, false},
		{"http push", func(c *Config) { c.Push.Endpoint = "http://localhost/ws" }, false},
		{"relative destination", func(c *Config) { c.Push.Destination = "topic" }, false},
		{"negative heartbeat", func(c *Config) { c.Push.HeartbeatIncoming = -1 }, false},
		{"grace below one", func(c *Config) { c.Push.HeartbeatGrace = 0.9 }, false},
		{"env source", func(c *Config) { c.Session.Source = SessionSourceEnv }, true},
		{"unknown source", func(c *Config) { c.Session.Source = "ldap" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigValidation, errors.GetCode(err))
		})
	}
}
