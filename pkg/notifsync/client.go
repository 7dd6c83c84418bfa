// Package notifsync keeps an admin's notification list and unread counter in
// sync with the server. It combines a one-shot snapshot with a push stream and
// applies read/delete intents locally before sending them to the server.
//
// New returns a Live client when a session provider is configured and a
// Disabled client otherwise. Callers use the same API in both modes.
package notifsync

import (
	"context"

	"github.com/grovetools/notifsync/internal/push"
	"github.com/grovetools/notifsync/pkg/models"
)

// Client is the presentation surface of the sync layer.
type Client interface {
	// View returns the current state.
	View() View

	// Subscribe returns a channel receiving a View after every change. A slow
	// reader only misses intermediate views, never the latest one.
	Subscribe() <-chan View

	// Unsubscribe stops delivery and closes the channel.
	Unsubscribe(ch <-chan View)

	// MarkAsRead marks one notification read, locally first.
	MarkAsRead(ctx context.Context, id int64) error

	// MarkAllAsRead marks every notification read, locally first.
	MarkAllAsRead(ctx context.Context) error

	// DeleteNotification removes one notification, locally first.
	DeleteNotification(ctx context.Context, id int64) error

	// Refresh reloads the snapshot from the server.
	Refresh(ctx context.Context) error

	// Close ends the session and releases the client's goroutines.
	Close() error
}

// View is what a consumer renders.
type View struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	Connection    push.State            `json:"connection"`
	IsConnected   bool                  `json:"is_connected"`
	IsLoading     bool                  `json:"is_loading"`
	LastError     string                `json:"last_error,omitempty"`
}

// Disabled is the client used when no admin session can exist. It is always
// empty and disconnected, and every command succeeds without doing anything.
type Disabled struct{}

var _ Client = Disabled{}

// View implements Client.
func (Disabled) View() View {
	return View{Connection: push.StateDisconnected}
}

// Subscribe implements Client. The channel holds the single empty view.
func (d Disabled) Subscribe() <-chan View {
	ch := make(chan View, 1)
	ch <- d.View()
	return ch
}

func (Disabled) Unsubscribe(<-chan View) {}

func (Disabled) MarkAsRead(context.Context, int64) error { return nil }

func (Disabled) MarkAllAsRead(context.Context) error { return nil }

func (Disabled) DeleteNotification(context.Context, int64) error { return nil }

func (Disabled) Refresh(context.Context) error { return nil }

func (Disabled) Close() error { return nil }
