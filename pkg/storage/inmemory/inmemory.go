// Package inmemory provides a process-local storage driver. It is not
// durable and is meant for tests and throwaway runs.
package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/memory"
)

type field struct {
	value     []byte
	updatedAt time.Time
}

// Driver implements storage.Driver using in-memory maps. Values are kept in
// their JSON form so callers never share memory with stored records.
type Driver struct {
	// mu guards every map and the sequence counters below.
	mu sync.RWMutex

	checkpointSeq int64
	checkpoints   map[string][]checkpoint.Checkpoint

	profiles   map[string]map[string]field
	historySeq int64
	history    map[string][]memory.HistoryEntry
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		checkpoints: make(map[string][]checkpoint.Checkpoint),
		profiles:    make(map[string]map[string]field),
		history:     make(map[string][]memory.HistoryEntry),
	}
}

func cloneCheckpoint(cp checkpoint.Checkpoint) (*checkpoint.Checkpoint, error) {
	snapshot, err := cp.Session.Clone()
	if err != nil {
		return nil, err
	}
	cp.Session = *snapshot
	return &cp, nil
}

// SaveCheckpoint appends a copy of cp.
func (d *Driver) SaveCheckpoint(_ context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return errors.New("cannot store nil checkpoint")
	}
	stored, err := cloneCheckpoint(*cp)
	if err != nil {
		return fmt.Errorf("failed to copy checkpoint: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.checkpointSeq++
	stored.Seq = d.checkpointSeq
	cp.Seq = stored.Seq
	d.checkpoints[cp.SessionID] = append(d.checkpoints[cp.SessionID], *stored)
	return nil
}

// GetCheckpoint returns one checkpoint of a session.
func (d *Driver) GetCheckpoint(_ context.Context, sessionID, id string) (*checkpoint.Checkpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, cp := range d.checkpoints[sessionID] {
		if cp.ID == id {
			return cloneCheckpoint(cp)
		}
	}
	return nil, checkpoint.ErrNotFound
}

// LatestCheckpoint returns the most recently saved checkpoint of a session.
func (d *Driver) LatestCheckpoint(_ context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cps := d.checkpoints[sessionID]
	if len(cps) == 0 {
		return nil, checkpoint.ErrNotFound
	}
	return cloneCheckpoint(cps[len(cps)-1])
}

// ListCheckpoints returns a session's checkpoints in save order.
func (d *Driver) ListCheckpoints(_ context.Context, sessionID string) ([]*checkpoint.Checkpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cps := d.checkpoints[sessionID]
	out := make([]*checkpoint.Checkpoint, 0, len(cps))
	for _, cp := range cps {
		c, err := cloneCheckpoint(cp)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetProfile returns the stored fields for key.
func (d *Driver) GetProfile(_ context.Context, key string) (*memory.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields, ok := d.profiles[key]
	if !ok || len(fields) == 0 {
		return nil, memory.ErrNotFound
	}

	profile := &memory.Profile{SubjectKey: key, Fields: make(map[string]any, len(fields))}
	for name, f := range fields {
		var v any
		if err := json.Unmarshal(f.value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode profile field %s: %w", name, err)
		}
		profile.Fields[name] = v
		if f.updatedAt.After(profile.UpdatedAt) {
			profile.UpdatedAt = f.updatedAt
		}
	}
	return profile, nil
}

// UpsertProfile overwrites each named field.
func (d *Driver) UpsertProfile(_ context.Context, key string, fields map[string]any, at time.Time) error {
	encoded := make(map[string][]byte, len(fields))
	for name, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode profile field %s: %w", name, err)
		}
		encoded[name] = raw
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	profile, ok := d.profiles[key]
	if !ok {
		profile = make(map[string]field, len(encoded))
		d.profiles[key] = profile
	}
	for name, raw := range encoded {
		profile[name] = field{value: raw, updatedAt: at.UTC()}
	}
	return nil
}

// AppendHistory stores a copy of entry and sets entry.Seq.
func (d *Driver) AppendHistory(_ context.Context, entry *memory.HistoryEntry) error {
	if entry == nil {
		return errors.New("cannot store nil history entry")
	}
	stored, err := cloneEntry(*entry)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.historySeq++
	stored.Seq = d.historySeq
	entry.Seq = stored.Seq
	d.history[entry.SubjectKey] = append(d.history[entry.SubjectKey], stored)
	return nil
}

// QueryHistory returns a subject's history, most recent first.
func (d *Driver) QueryHistory(_ context.Context, key string, limit int, since *time.Time) ([]*memory.HistoryEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := d.history[key]
	out := make([]*memory.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if since != nil && e.RecordedAt.Before(*since) {
			continue
		}
		c, err := cloneEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func cloneEntry(e memory.HistoryEntry) (memory.HistoryEntry, error) {
	if e.Data == nil {
		return e, nil
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return e, fmt.Errorf("failed to encode history data: %w", err)
	}
	e.Data = nil
	if err := json.Unmarshal(raw, &e.Data); err != nil {
		return e, fmt.Errorf("failed to decode history data: %w", err)
	}
	return e, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
