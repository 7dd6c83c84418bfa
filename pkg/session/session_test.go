package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/grovetools/notifsync/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for authenticated=%v", want)
	}
}

func TestStatic(t *testing.T) {
	p := NewStatic("")
	assert.False(t, p.IsAuthenticated())

	p.SetToken("abc")
	waitFor(t, p.Changes(), true)
	assert.Equal(t, "abc", p.Token())

	// Token rotation keeps the session and emits nothing
	p.SetToken("def")
	select {
	case v := <-p.Changes():
		t.Fatalf("unexpected change %v", v)
	default:
	}

	p.Invalidate()
	waitFor(t, p.Changes(), false)
	assert.Empty(t, p.Token())
	assert.NoError(t, p.Close())
}

func TestChangesCoalesce(t *testing.T) {
	p := NewStatic("")
	p.SetToken("a")
	p.SetToken("")
	p.SetToken("b")

	waitFor(t, p.Changes(), true)
	select {
	case v := <-p.Changes():
		t.Fatalf("expected one coalesced change, got another: %v", v)
	default:
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session", "token")

	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.False(t, p.IsAuthenticated())

	require.NoError(t, os.WriteFile(path, []byte("tok-1\n"), 0600))
	waitFor(t, p.Changes(), true)
	assert.Equal(t, "tok-1", p.Token())

	require.NoError(t, os.Remove(path))
	waitFor(t, p.Changes(), false)

	require.NoError(t, os.WriteFile(path, []byte("tok-2"), 0600))
	waitFor(t, p.Changes(), true)

	p.Invalidate()
	waitFor(t, p.Changes(), false)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Invalidate removes the token file")

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close(), "Close is idempotent")
}

func TestFileProviderExistingToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("present"), 0600))

	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.IsAuthenticated())
	assert.Equal(t, "present", p.Token())
}

// lockedRing guards ArrayKeyring, which is not safe for concurrent use.
type lockedRing struct {
	mu   sync.Mutex
	ring *keyring.ArrayKeyring
}

func (l *lockedRing) Get(key string) (keyring.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Get(key)
}

func (l *lockedRing) GetMetadata(key string) (keyring.Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.GetMetadata(key)
}

func (l *lockedRing) Set(item keyring.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Set(item)
}

func (l *lockedRing) Remove(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Remove(key)
}

func (l *lockedRing) Keys() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Keys()
}

func TestKeyringProvider(t *testing.T) {
	ring := &lockedRing{ring: keyring.NewArrayKeyring(nil)}

	p, err := NewKeyringProvider(ring, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.False(t, p.IsAuthenticated())

	require.NoError(t, ring.Set(keyring.Item{Key: keyringItem, Data: []byte("from-ring")}))
	waitFor(t, p.Changes(), true)
	assert.Equal(t, "from-ring", p.Token())

	p.Invalidate()
	waitFor(t, p.Changes(), false)
	_, err = ring.Get(keyringItem)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestStoreAndClearFile(t *testing.T) {
	t.Setenv("NOTIFSYNC_HOME", t.TempDir())
	cfg := config.SessionConfig{Source: config.SessionSourceFile}

	require.NoError(t, Store(cfg, "stored"))
	data, err := os.ReadFile(TokenFile(cfg))
	require.NoError(t, err)
	assert.Equal(t, "stored", string(data))

	p, err := Open(cfg, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.IsAuthenticated())

	require.NoError(t, Clear(cfg))
	require.NoError(t, Clear(cfg), "clearing twice is fine")
	waitFor(t, p.Changes(), false)
}

func TestOpenEnv(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	p, err := Open(config.SessionConfig{Source: config.SessionSourceEnv}, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-token", p.Token())

	assert.Error(t, Store(config.SessionConfig{Source: config.SessionSourceEnv}, "x"))

	_, err = Open(config.SessionConfig{Source: "ldap"}, nil)
	assert.Error(t, err)
}
