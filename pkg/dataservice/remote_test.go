package dataservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	auth   string
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, recorded{r.Method, r.URL.Path, r.Header.Get("Authorization")})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRemoteFetchAll(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":2,"type":"RUPTURE_STOCK","titre":"Rupture","lu":false,"dateCreation":"2026-03-01T11:00:00"},
			{"id":1,"type":"PROMOTION","titre":"Promo","lu":true,"dateCreation":"2026-03-01T10:00:00","dateLecture":"2026-03-01T10:05:00"}
		]`))
	})

	remote := NewRemote(srv.URL+"/", StaticToken("secret"), time.Second)
	list, err := remote.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.KindStockOut, list[0].Kind)
	assert.True(t, list[1].IsRead)

	require.Len(t, *calls, 1)
	assert.Equal(t, recorded{"GET", "/api/notifications/admin", "Bearer secret"}, (*calls)[0])
}

func TestRemoteFetchUnreadCount(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/admin/count", r.URL.Path)
		_, _ = w.Write([]byte(`{"count": 4}`))
	})

	count, err := NewRemote(srv.URL, nil, time.Second).FetchUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRemoteCommands(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	remote := NewRemote(srv.URL, StaticToken("t"), time.Second)
	ctx := context.Background()

	require.NoError(t, remote.MarkRead(ctx, 7))
	require.NoError(t, remote.MarkAllRead(ctx))
	require.NoError(t, remote.Delete(ctx, 9))
	_, err := remote.FetchUnread(ctx)
	require.Error(t, err, "empty body is not a list")

	want := []recorded{
		{"PUT", "/api/notifications/7/read", "Bearer t"},
		{"PUT", "/api/notifications/admin/read-all", "Bearer t"},
		{"DELETE", "/api/notifications/9", "Bearer t"},
		{"GET", "/api/notifications/admin/unread", "Bearer t"},
	}
	assert.Equal(t, want, *calls)
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   errors.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, ``, errors.ErrCodeUnauthorized},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, errors.ErrCodeRequestFailed},
		{"not found", http.StatusNotFound, `not json`, errors.ErrCodeRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			var seen int
			remote := NewRemote(srv.URL, nil, time.Second, WithStatusHook(func(status int) { seen = status }))

			err := remote.MarkRead(context.Background(), 1)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Equal(t, tt.status, seen)
		})
	}
}

func TestRemoteMalformed(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/notifications/admin/count" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`[{"titre":"no id","dateCreation":"2026-03-01T10:00:00"}]`))
	})
	remote := NewRemote(srv.URL, nil, time.Second)

	_, err := remote.FetchAll(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeMalformedPayload))

	_, err = remote.FetchUnreadCount(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeMalformedPayload))
}

func TestRemoteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemote(url, nil, time.Second).FetchAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRequestFailed, errors.GetCode(err))
}

func TestMemory(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(
		models.Notification{ID: 1, CreatedAt: base},
		models.Notification{ID: 2, CreatedAt: base.Add(time.Minute)},
	)
	ctx := context.Background()

	list, err := m.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)

	require.NoError(t, m.MarkRead(ctx, 1))
	count, err := m.FetchUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Error(t, m.MarkRead(ctx, 404))

	boom := errors.New(errors.ErrCodeRequestFailed, "boom")
	m.FailWith("Delete", boom)
	assert.ErrorIs(t, m.Delete(ctx, 2), boom)
	m.FailWith("Delete", nil)
	require.NoError(t, m.Delete(ctx, 2))

	unread, err := m.FetchUnread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.Equal(t, []string{"FetchAll", "MarkRead", "FetchUnreadCount", "MarkRead", "Delete", "Delete", "FetchUnread"}, m.Calls())
}
