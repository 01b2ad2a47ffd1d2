package project

import (
	"context"
	"time"
)

// EventType names a project lifecycle change.
type EventType string

// Lifecycle events published after successful mutations.
const (
	EventCreated        EventType = "created"
	EventRenamed        EventType = "renamed"
	EventVerified       EventType = "verified"
	EventDeleted        EventType = "deleted"
	EventPurged         EventType = "purged"
	EventDownloadsReset EventType = "reset"
)

// Event describes a completed mutation.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId,omitempty"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers lifecycle events. Publish failures never fail the
// operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
