package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileProvider reads the token from a file and watches it with fsnotify.
// A missing or empty file means unauthenticated.
type FileProvider struct {
	state
	path    string
	watcher *fsnotify.Watcher
	logger  *logrus.Entry
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewFileProvider loads path and starts watching its directory. The
// directory is created if needed because fsnotify cannot watch a missing one.
func NewFileProvider(path string, logger *logrus.Entry) (*FileProvider, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	token, err := readToken(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &FileProvider{
		path:    filepath.Clean(path),
		watcher: watcher,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	p.init(token)
	go p.watch(ctx)
	return p, nil
}

// Path returns the watched token file.
func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) watch(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			p.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			p.reload()
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			return
		}
	}
}

func (p *FileProvider) reload() {
	token, err := readToken(p.path)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to read session token")
		return
	}
	if p.set(token) {
		p.logger.WithField("authenticated", token != "").Info("Session changed")
	}
}

// Invalidate removes the token file.
func (p *FileProvider) Invalidate() {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		p.logger.WithError(err).Warn("Failed to remove session token")
	}
	p.set("")
}

// Close stops the watcher and releases resources.
func (p *FileProvider) Close() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		err = p.watcher.Close()
		<-p.done
	})
	return err
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	return string(data), nil
}
