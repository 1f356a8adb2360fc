// Package sqlstore implements checkpoint and memory persistence over
// database/sql. Queries are built with ent's dialect-aware SQL builder so the
// same code serves SQLite and PostgreSQL; only the schema DDL differs.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/memory"
)

const (
	tableCheckpoints = "checkpoints"
	tableProfiles    = "profile_fields"
	tableHistory     = "history"
)

// Store is a SQL-backed checkpoint and memory driver.
type Store struct {
	db      *sql.DB
	dialect string
}

// New wraps db and applies schema, a list of idempotent DDL statements.
func New(ctx context.Context, db *sql.DB, dialect string, schema []string) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- checkpoints ---

// SaveCheckpoint inserts cp and sets cp.Seq from the table's sequence.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	snapshot, err := json.Marshal(cp.Session)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query, args := s.builder().Insert(tableCheckpoints).
		Columns("id", "session_id", "created_at", "reason", "snapshot").
		Values(cp.ID, cp.SessionID, cp.CreatedAt.UnixNano(), cp.Reason, string(snapshot)).
		Returning("seq").
		Query()

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&cp.Seq); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

func (s *Store) selectCheckpoints() *entsql.Selector {
	return s.builder().
		Select("seq", "id", "session_id", "created_at", "reason", "snapshot").
		From(entsql.Table(tableCheckpoints))
}

// GetCheckpoint returns one checkpoint of a session.
func (s *Store) GetCheckpoint(ctx context.Context, sessionID, id string) (*checkpoint.Checkpoint, error) {
	query, args := s.selectCheckpoints().
		Where(entsql.And(entsql.EQ("session_id", sessionID), entsql.EQ("id", id))).
		Query()
	return s.queryCheckpoint(ctx, query, args)
}

// LatestCheckpoint returns the most recently written checkpoint of a session.
func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	query, args := s.selectCheckpoints().
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("seq")).
		Limit(1).
		Query()
	return s.queryCheckpoint(ctx, query, args)
}

func (s *Store) queryCheckpoint(ctx context.Context, query string, args []any) (*checkpoint.Checkpoint, error) {
	cps, err := s.queryCheckpoints(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, checkpoint.ErrNotFound
	}
	return cps[0], nil
}

// ListCheckpoints returns a session's checkpoints in write order.
func (s *Store) ListCheckpoints(ctx context.Context, sessionID string) ([]*checkpoint.Checkpoint, error) {
	query, args := s.selectCheckpoints().
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("seq").
		Query()
	return s.queryCheckpoints(ctx, query, args)
}

func (s *Store) queryCheckpoints(ctx context.Context, query string, args []any) ([]*checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []*checkpoint.Checkpoint
	for rows.Next() {
		var (
			cp        checkpoint.Checkpoint
			createdAt int64
			snapshot  string
		)
		if err := rows.Scan(&cp.Seq, &cp.ID, &cp.SessionID, &createdAt, &cp.Reason, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &cp.Session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", cp.ID, err)
		}
		cp.CreatedAt = time.Unix(0, createdAt).UTC()
		cps = append(cps, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoints: %w", err)
	}
	return cps, nil
}

// --- memory ---

// GetProfile assembles a subject's profile from its field rows.
func (s *Store) GetProfile(ctx context.Context, key string) (*memory.Profile, error) {
	query, args := s.builder().
		Select("field", "value", "updated_at").
		From(entsql.Table(tableProfiles)).
		Where(entsql.EQ("subject_key", key)).
		OrderBy("field").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	defer rows.Close()

	profile := &memory.Profile{SubjectKey: key, Fields: map[string]any{}}
	var latest int64
	for rows.Next() {
		var (
			field, raw string
			updatedAt  int64
			value      any
		)
		if err := rows.Scan(&field, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile field: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile field %s: %w", field, err)
		}
		profile.Fields[field] = value
		latest = max(latest, updatedAt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if len(profile.Fields) == 0 {
		return nil, memory.ErrNotFound
	}
	profile.UpdatedAt = time.Unix(0, latest).UTC()
	return profile, nil
}

// UpsertProfile writes one row per field; a field that already exists is
// overwritten.
func (s *Store) UpsertProfile(ctx context.Context, key string, fields map[string]any, at time.Time) error {
	if len(fields) == 0 {
		return nil
	}

	insert := s.builder().Insert(tableProfiles).
		Columns("subject_key", "field", "value", "updated_at")
	for field, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal profile field %s: %w", field, err)
		}
		insert.Values(key, field, string(raw), at.UnixNano())
	}
	query, args := insert.
		OnConflict(
			entsql.ConflictColumns("subject_key", "field"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// AppendHistory inserts entry and sets entry.Seq.
func (s *Store) AppendHistory(ctx context.Context, entry *memory.HistoryEntry) error {
	if entry == nil {
		return errors.New("cannot store nil history entry")
	}
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal history data: %w", err)
	}

	query, args := s.builder().Insert(tableHistory).
		Columns("subject_key", "session_id", "recorded_at", "summary", "data").
		Values(entry.SubjectKey, entry.SessionID, entry.RecordedAt.UnixNano(), entry.Summary, string(data)).
		Returning("seq").
		Query()

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&entry.Seq); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// QueryHistory returns a subject's history, most recent first.
func (s *Store) QueryHistory(ctx context.Context, key string, limit int, since *time.Time) ([]*memory.HistoryEntry, error) {
	where := entsql.EQ("subject_key", key)
	if since != nil {
		where = entsql.And(where, entsql.GTE("recorded_at", since.UnixNano()))
	}
	sel := s.builder().
		Select("seq", "subject_key", "session_id", "recorded_at", "summary", "data").
		From(entsql.Table(tableHistory)).
		Where(where).
		OrderBy(entsql.Desc("seq"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*memory.HistoryEntry
	for rows.Next() {
		var (
			e          memory.HistoryEntry
			recordedAt int64
			data       string
		)
		if err := rows.Scan(&e.Seq, &e.SubjectKey, &e.SessionID, &recordedAt, &e.Summary, &data); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history data: %w", err)
		}
		e.RecordedAt = time.Unix(0, recordedAt).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}
