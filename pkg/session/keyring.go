package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/sirupsen/logrus"
)

// keyringItem is the key the bearer token is stored under.
const keyringItem = "admin-token"

// OpenKeyring opens the OS keyring for service, falling back to an encrypted
// file under fileDir on systems without a keyring daemon.
func OpenKeyring(service, fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringProvider polls a keyring for the token.
type KeyringProvider struct {
	state
	ring     keyring.Keyring
	interval time.Duration
	logger   *logrus.Entry
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// NewKeyringProvider reads the token once and polls ring every interval.
func NewKeyringProvider(ring keyring.Keyring, interval time.Duration, logger *logrus.Entry) (*KeyringProvider, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	token, err := keyringToken(ring)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &KeyringProvider{
		ring:     ring,
		interval: interval,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	p.init(token)
	go p.poll(ctx)
	return p, nil
}

func (p *KeyringProvider) poll(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			token, err := keyringToken(p.ring)
			if err != nil {
				p.logger.WithError(err).Warn("Failed to read session token from keyring")
				continue
			}
			if p.set(token) {
				p.logger.WithField("authenticated", token != "").Info("Session changed")
			}
		}
	}
}

// Invalidate removes the token from the keyring.
func (p *KeyringProvider) Invalidate() {
	if err := p.ring.Remove(keyringItem); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		p.logger.WithError(err).Warn("Failed to remove session token from keyring")
	}
	p.set("")
}

// Close stops polling.
func (p *KeyringProvider) Close() error {
	p.once.Do(func() {
		p.cancel()
		<-p.done
	})
	return nil
}

func keyringToken(ring keyring.Keyring) (string, error) {
	item, err := ring.Get(keyringItem)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting credential %q: %w", keyringItem, err)
	}
	return string(item.Data), nil
}
