// Package dataservice is the request/reply side of notification sync: the
// snapshot reads and the mark-read, mark-all-read and delete commands.
package dataservice

import (
	"context"

	"github.com/grovetools/notifsync/pkg/models"
)

// Service is the external system of record for admin notifications.
type Service interface {
	// FetchAll returns every admin notification, newest first.
	FetchAll(ctx context.Context) ([]models.Notification, error)
	// FetchUnread returns only the unread admin notifications.
	FetchUnread(ctx context.Context) ([]models.Notification, error)
	// FetchUnreadCount returns the server's unread counter.
	FetchUnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
}

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token() string { return string(t) }
