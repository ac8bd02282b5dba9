// Package store persists threads and their messages. Thread metadata and
// individual messages live under separate keys so appends never rewrite
// message history.
package store

import (
	"errors"

	"animbridge/pkg/models"
)

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("thread not found")

// ThreadStore is the persistence surface the HTTP layer and the orchestrator
// talk to. Implementations must keep appends loss-free under concurrent use
// and must never reorder a thread's messages.
type ThreadStore interface {
	// Create stores a new thread's metadata and any seed messages.
	Create(t models.Thread) error
	// Get returns the full thread, messages in append order. ErrNotFound when
	// the id is unknown.
	Get(id string) (models.Thread, error)
	// AppendMessage adds one message to an existing thread.
	AppendMessage(threadID string, msg models.Message) error
	// SetStatus updates the thread's lifecycle status.
	SetStatus(threadID, status string) error
	// SetArtifact records the signed artifact URL on the thread.
	SetArtifact(threadID, url string) error
	// Delete removes a thread and all its messages. ErrNotFound when the id
	// is unknown.
	Delete(id string) error
	// DeleteAll removes every thread and returns how many were deleted.
	DeleteAll() (int, error)
	// List returns metadata (no messages) for every thread.
	List() ([]models.Thread, error)
	// Ready reports whether the store can serve requests.
	Ready() bool
	Close() error
}
