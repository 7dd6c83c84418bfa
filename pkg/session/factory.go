package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/grovetools/notifsync/config"
	"github.com/grovetools/notifsync/pkg/paths"
	"github.com/sirupsen/logrus"
)

// TokenEnv holds the bearer token when session.source is "env".
const TokenEnv = "NOTIFSYNC_TOKEN"

// TokenFile resolves the configured token file, defaulting to the state dir.
func TokenFile(cfg config.SessionConfig) string {
	if cfg.TokenFile != "" {
		return cfg.TokenFile
	}
	return paths.TokenFile()
}

func keyringDir() string {
	return filepath.Join(paths.StateDir(), "keyring")
}

// Open builds the Provider selected by cfg.Source.
func Open(cfg config.SessionConfig, logger *logrus.Entry) (Provider, error) {
	switch cfg.Source {
	case config.SessionSourceEnv:
		return NewStatic(os.Getenv(TokenEnv)), nil
	case config.SessionSourceKeyring:
		ring, err := OpenKeyring(cfg.KeyringService, keyringDir())
		if err != nil {
			return nil, err
		}
		return NewKeyringProvider(ring, cfg.PollInterval, logger)
	case config.SessionSourceFile, "":
		return NewFileProvider(TokenFile(cfg), logger)
	default:
		return nil, fmt.Errorf("unknown session source %q", cfg.Source)
	}
}

// Store persists token for the configured source so running clients pick it up.
func Store(cfg config.SessionConfig, token string) error {
	switch cfg.Source {
	case config.SessionSourceEnv:
		return fmt.Errorf("session source %q is read-only; export %s instead", cfg.Source, TokenEnv)
	case config.SessionSourceKeyring:
		ring, err := OpenKeyring(cfg.KeyringService, keyringDir())
		if err != nil {
			return err
		}
		if err := ring.Set(keyring.Item{Key: keyringItem, Data: []byte(token)}); err != nil {
			return fmt.Errorf("setting credential %q: %w", keyringItem, err)
		}
		return nil
	default:
		path := TokenFile(cfg)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return err
		}
		// Write then rename so the watcher never observes a half-written token
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(token), 0600); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	}
}

// Clear removes the stored token. Clearing an absent token is not an error.
func Clear(cfg config.SessionConfig) error {
	switch cfg.Source {
	case config.SessionSourceEnv:
		return fmt.Errorf("session source %q is read-only; unset %s instead", cfg.Source, TokenEnv)
	case config.SessionSourceKeyring:
		ring, err := OpenKeyring(cfg.KeyringService, keyringDir())
		if err != nil {
			return err
		}
		if err := ring.Remove(keyringItem); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", keyringItem, err)
		}
		return nil
	default:
		if err := os.Remove(TokenFile(cfg)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
}
