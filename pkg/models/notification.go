package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Audience identifies who a notification is addressed to.
type Audience string

const (
	AudienceAdmin   Audience = "ADMIN"
	AudienceClient  Audience = "CLIENT"
	AudienceCompany Audience = "SOCIETE"
	AudienceAll     Audience = "ALL"
)

// Notification is one event directed at the admin audience.
// CreatedAt never changes once the record exists; IsRead always mirrors ReadAt.
type Notification struct {
	ID          int64      `json:"id"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	IsRead      bool       `json:"is_read"`
	TargetLink  string     `json:"target_link,omitempty"`
	Audience    Audience   `json:"audience,omitempty"`
	RecipientID *int64     `json:"recipient_id,omitempty"`
	KindLabel   string     `json:"kind_label,omitempty"`
	RelativeAge string     `json:"relative_age,omitempty"`
}

// Normalize enforces IsRead == (ReadAt != nil) and fills presentation fields
// the server left empty.
func (n *Notification) Normalize() {
	switch {
	case n.ReadAt != nil:
		n.IsRead = true
	case n.IsRead:
		readAt := n.CreatedAt
		n.ReadAt = &readAt
	}
	if n.KindLabel == "" {
		n.KindLabel = n.Kind.Label()
	}
}

// MarkRead sets the read timestamp. It reports false if the record was already read.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	n.ReadAt = &at
	return true
}

// Age returns a human friendly age relative to now, e.g. "3 minutes ago".
func (n *Notification) Age(now time.Time) string {
	return humanize.RelTime(n.CreatedAt, now, "ago", "from now")
}

// Detail returns the kind-specific view of this notification.
func (n *Notification) Detail() Detail {
	return detailFor(n.Kind, n.TargetLink)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (n Notification) Clone() Notification {
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		n.ReadAt = &readAt
	}
	if n.RecipientID != nil {
		id := *n.RecipientID
		n.RecipientID = &id
	}
	return n
}

// Wire is the JSON shape used by the REST API and the push channel.
type Wire struct {
	ID               *int64   `json:"id"`
	Type             string   `json:"type"`
	Title            string   `json:"titre"`
	Message          string   `json:"message"`
	RecipientID      *int64   `json:"destinataireId"`
	RecipientType    Audience `json:"destinataireType"`
	Link             string   `json:"lien"`
	Read             bool     `json:"lu"`
	CreatedAt        string   `json:"dateCreation"`
	ReadAt           *string  `json:"dateLecture"`
	TypeLabel        string   `json:"typeLabel"`
	ElapsedFormatted string   `json:"tempsEcoule"`
}

// timeLayouts lists the timestamp forms accepted on the wire. The server emits
// zone-less local date-times; RFC3339 is accepted as well.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ToNotification converts a wire record, rejecting records without identity
// or creation time.
func (w Wire) ToNotification() (Notification, error) {
	if w.ID == nil {
		return Notification{}, fmt.Errorf("notification has no id")
	}
	createdAt, err := ParseTime(w.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("notification %d: invalid dateCreation: %w", *w.ID, err)
	}

	n := Notification{
		ID:          *w.ID,
		Kind:        ParseKind(w.Type),
		Title:       w.Title,
		Body:        w.Message,
		CreatedAt:   createdAt,
		IsRead:      w.Read,
		TargetLink:  w.Link,
		Audience:    w.RecipientType,
		RecipientID: w.RecipientID,
		KindLabel:   w.TypeLabel,
		RelativeAge: w.ElapsedFormatted,
	}
	if w.ReadAt != nil && *w.ReadAt != "" {
		readAt, err := ParseTime(*w.ReadAt)
		if err != nil {
			return Notification{}, fmt.Errorf("notification %d: invalid dateLecture: %w", *w.ID, err)
		}
		n.ReadAt = &readAt
	}
	n.Normalize()
	return n, nil
}

// ToWire converts n to its wire form. Timestamps are written as RFC3339 so
// they survive a round trip regardless of the local zone.
func (n Notification) ToWire() Wire {
	id := n.ID
	w := Wire{
		ID:               &id,
		Type:             string(n.Kind),
		Title:            n.Title,
		Message:          n.Body,
		RecipientID:      n.RecipientID,
		RecipientType:    n.Audience,
		Link:             n.TargetLink,
		Read:             n.IsRead,
		CreatedAt:        n.CreatedAt.Format(time.RFC3339Nano),
		TypeLabel:        n.KindLabel,
		ElapsedFormatted: n.RelativeAge,
	}
	if n.ReadAt != nil {
		readAt := n.ReadAt.Format(time.RFC3339Nano)
		w.ReadAt = &readAt
	}
	return w
}

// DecodeNotification parses one push payload.
func DecodeNotification(data []byte) (Notification, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Notification{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	return w.ToNotification()
}

// DecodeNotifications parses a list payload. Malformed entries fail the whole list.
func DecodeNotifications(data []byte) ([]Notification, error) {
	var wires []Wire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	result := make([]Notification, 0, len(wires))
	for _, w := range wires {
		n, err := w.ToNotification()
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}
