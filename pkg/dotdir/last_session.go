package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastSessionFile = "last_session.json"
)

// LastSession records the most recent session started from this machine.
type LastSession struct {
	SessionID string    `json:"session_id"`
	APITarget string    `json:"api_target,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// LoadLastSession loads the record from a target .landscape/last_session.json.
// Returns nil, nil if no session has been recorded.
func (m *Manager) LoadLastSession(overrideDir string) (*LastSession, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastSessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last session: %w", err)
	}

	last := &LastSession{}
	if err := json.Unmarshal(data, last); err != nil {
		return nil, fmt.Errorf("parsing last session: %w", err)
	}
	return last, nil
}

// SaveLastSession persists the record to a target .landscape/last_session.json.
func (m *Manager) SaveLastSession(last *LastSession, overrideDir string) error {
	if last == nil || last.SessionID == "" {
		return errors.New("cannot save empty last session")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last session: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastSessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last session: %w", err)
	}
	return nil
}

// ClearLastSession removes the record. Returns nil if none exists.
func (m *Manager) ClearLastSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, lastSessionFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last session: %w", err)
	}
	return nil
}
