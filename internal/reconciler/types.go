// Package reconciler owns the authoritative in-memory notification collection
// and its unread counter for one client.
package reconciler

import "github.com/grovetools/notifsync/pkg/models"

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Notifications []models.Notification `json:"notifications"` // newest first
	UnreadCount   int                   `json:"unread_count"`
	Epoch         uint64                `json:"epoch"`
}

// UpdateType defines which operation changed the state.
type UpdateType string

const (
	UpdateSeed        UpdateType = "seed"
	UpdateIngest      UpdateType = "ingest"
	UpdateMarkRead    UpdateType = "mark_read"
	UpdateMarkAllRead UpdateType = "mark_all_read"
	UpdateRemove      UpdateType = "remove"
	UpdateClear       UpdateType = "clear"
)

// Update is broadcast to subscribers after every operation that changed state.
type Update struct {
	Type     UpdateType
	ID       int64 // zero for collection-wide operations
	Snapshot Snapshot
}
