package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

// Weights of recalled fragments. Profiles outrank individual past runs.
const (
	ProfileWeight = 2.0
	HistoryWeight = 1.0
)

// SourceMemory marks fragments produced by Recall.
const SourceMemory = "memory"

// defaultWriteConcurrency bounds concurrent subject write-backs in Finalize.
const defaultWriteConcurrency = 4

// NormalizeKey trims s, lower-cases it and collapses inner whitespace.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BankConfig configures a Bank.
type BankConfig struct {
	Driver Driver

	// WriteConcurrency bounds concurrent per-subject writes in Finalize.
	WriteConcurrency int

	Logger *slog.Logger
	Now    func() time.Time
}

// Bank is the memory bank: key normalization and recall on top of a Driver.
type Bank struct {
	driver      Driver
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewBank returns a Bank over c.Driver.
func NewBank(c BankConfig) (*Bank, error) {
	if c.Driver == nil {
		return nil, ErrNotConfigured
	}
	if c.WriteConcurrency <= 0 {
		c.WriteConcurrency = defaultWriteConcurrency
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Bank{
		driver:      c.Driver,
		concurrency: c.WriteConcurrency,
		logger:      c.Logger,
		now:         c.Now,
	}, nil
}

func normalize(key string) (string, error) {
	k := NormalizeKey(key)
	if k == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}

// GetProfile returns the profile for subject, or ErrNotFound.
func (b *Bank) GetProfile(ctx context.Context, subject string) (*Profile, error) {
	key, err := normalize(subject)
	if err != nil {
		return nil, err
	}
	return b.driver.GetProfile(ctx, key)
}

// UpsertProfile merges partial into the subject's profile.
func (b *Bank) UpsertProfile(ctx context.Context, subject string, partial map[string]any) error {
	key, err := normalize(subject)
	if err != nil {
		return err
	}
	if len(partial) == 0 {
		return nil
	}
	return b.driver.UpsertProfile(ctx, key, partial, b.now().UTC())
}

// AppendHistory records entry under subject. RecordedAt defaults to now.
func (b *Bank) AppendHistory(ctx context.Context, subject string, entry HistoryEntry) (*HistoryEntry, error) {
	key, err := normalize(subject)
	if err != nil {
		return nil, err
	}
	entry.SubjectKey = key
	entry.Seq = 0
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = b.now().UTC()
	}
	if err := b.driver.AppendHistory(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// QueryHistory returns up to limit entries for subject, most recent first.
func (b *Bank) QueryHistory(ctx context.Context, subject string, limit int, since *time.Time) ([]*HistoryEntry, error) {
	key, err := normalize(subject)
	if err != nil {
		return nil, err
	}
	return b.driver.QueryHistory(ctx, key, limit, since)
}

// Recall gathers what the bank knows about subjects as compaction fragments:
// one per existing profile and one per recent history entry, in subject order.
func (b *Bank) Recall(ctx context.Context, subjects []string, historyLimit int) ([]compaction.Fragment, error) {
	var frags []compaction.Fragment
	for _, subject := range subjects {
		key := NormalizeKey(subject)
		if key == "" {
			continue
		}

		profile, err := b.driver.GetProfile(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("recall profile %q: %w", key, err)
		default:
			frags = append(frags, compaction.Fragment{
				Text:      fmt.Sprintf("%s profile: %s", subject, formatFields(profile.Fields)),
				Weight:    ProfileWeight,
				Timestamp: profile.UpdatedAt,
				Source:    SourceMemory,
			})
		}

		if historyLimit <= 0 {
			continue
		}
		entries, err := b.driver.QueryHistory(ctx, key, historyLimit, nil)
		if err != nil {
			return nil, fmt.Errorf("recall history %q: %w", key, err)
		}
		for _, e := range entries {
			frags = append(frags, compaction.Fragment{
				Text:      fmt.Sprintf("%s (%s): %s", subject, e.RecordedAt.Format(time.DateOnly), e.Summary),
				Weight:    HistoryWeight,
				Timestamp: e.RecordedAt,
				Source:    SourceMemory,
			})
		}
	}
	return frags, nil
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, ", ")
}

// Finalize writes back what a DONE session learned: a profile update and a
// history entry for every subject whose research succeeded. Sessions in any
// other phase are rejected so partial results never reach the bank.
func (b *Bank) Finalize(ctx context.Context, s *session.Session) error {
	if s.Phase != session.PhaseDone {
		return fmt.Errorf("finalize session %s: phase is %s, want %s", s.ID, s.Phase, session.PhaseDone)
	}
	r, err := s.Outputs.ResearchOutput()
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", s.ID, err)
	}

	at := s.UpdatedAt.UTC()
	grade := ""
	if s.Evaluation != nil {
		grade = s.Evaluation.Grade
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, t := range r.Tasks {
		if t.Status != research.StatusSucceeded {
			continue
		}
		g.Go(func() error {
			return b.finalizeSubject(gctx, s, t, at, grade)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("finalize session %s: %w", s.ID, err)
	}
	b.logger.Debug("memory finalized", "session_id", s.ID, "subjects", r.Succeeded)
	return nil
}

func (b *Bank) finalizeSubject(ctx context.Context, s *session.Session, t *research.Task, at time.Time, grade string) error {
	key, err := normalize(t.Subject)
	if err != nil {
		return err
	}

	caps := make([]string, 0, len(t.Findings))
	summaries := make([]string, 0, len(t.Findings))
	for _, f := range t.Findings {
		caps = append(caps, f.Capability)
		summaries = append(summaries, f.Summary)
	}

	fields := map[string]any{
		"name":            t.Subject,
		"last_session_id": s.ID,
		"last_query":      s.Inputs.Query,
		"last_updated":    at.Format(time.RFC3339),
		"capabilities":    caps,
	}
	if tags := t.Tags(); len(tags) > 0 {
		fields["tags"] = tags
	}
	if err := b.driver.UpsertProfile(ctx, key, fields, at); err != nil {
		return fmt.Errorf("upsert profile %q: %w", key, err)
	}

	data := map[string]any{
		"query":    s.Inputs.Query,
		"findings": len(t.Findings),
		"failures": len(t.Failures),
	}
	if grade != "" {
		data["grade"] = grade
	}
	entry := &HistoryEntry{
		SubjectKey: key,
		SessionID:  s.ID,
		RecordedAt: at,
		Summary:    strings.Join(summaries, "; "),
		Data:       data,
	}
	if err := b.driver.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append history %q: %w", key, err)
	}
	return nil
}
