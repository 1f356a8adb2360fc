// Package memory provides the durable, cross-session memory bank.
//
// The bank keeps two things per subject: a profile, a flat set of fields
// where each field is last-write-wins on its own, and an append-only history
// of past run summaries. Subjects are addressed by a normalized key (see
// NormalizeKey), so "Acme  Corp" and "acme corp" share one record.
//
// Drivers are pluggable via configuration:
//
//	[storage]
//	driver = "sqlite"   # or "postgres", "memory"
package memory

import (
	"context"
	"time"
)

// Driver persists profiles and history. A write that returned nil must
// survive a process restart for durable drivers.
type Driver interface {
	// GetProfile returns the profile for key, or ErrNotFound.
	GetProfile(ctx context.Context, key string) (*Profile, error)

	// UpsertProfile merges fields into the profile for key, creating it if
	// needed. Each field is written independently; fields not named are left
	// untouched.
	UpsertProfile(ctx context.Context, key string, fields map[string]any, at time.Time) error

	// AppendHistory stores entry and assigns its Seq.
	AppendHistory(ctx context.Context, entry *HistoryEntry) error

	// QueryHistory returns up to limit entries for key, most recent first.
	// A non-positive limit means no limit. When since is set only entries
	// recorded at or after it are returned.
	QueryHistory(ctx context.Context, key string, limit int, since *time.Time) ([]*HistoryEntry, error)

	// Close releases driver resources.
	Close() error
}

// Profile is the mutable, field-level last-write-wins view of a subject.
type Profile struct {
	SubjectKey string         `json:"subject_key"`
	Fields     map[string]any `json:"fields"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HistoryEntry is an immutable record of one past run for a subject.
type HistoryEntry struct {
	Seq        int64          `json:"seq"`
	SubjectKey string         `json:"subject_key"`
	SessionID  string         `json:"session_id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Summary    string         `json:"summary"`
	Data       map[string]any `json:"data,omitempty"`
}
