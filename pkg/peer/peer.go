// Package peer exports a session's intermediate state as a self-contained
// envelope and merges envelopes received from peer orchestrators. It does
// not move envelopes anywhere; see pkg/eventstream for transports.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

// ProtocolVersion is the envelope format version. Peers must agree on the
// major version.
const ProtocolVersion = "1.0"

// Message types.
const (
	MessageResearchResults  = "research_results"
	MessageAnalysisInsights = "analysis_insights"
)

var (
	// ErrIncompatible is returned for envelopes of another major version.
	ErrIncompatible = errors.New("incompatible peer envelope")

	// ErrMergeClosed is returned when merging into a session that is past
	// RESEARCH.
	ErrMergeClosed = errors.New("session no longer accepts peer results")

	// ErrNoResearch is returned when the session has no research tasks yet.
	ErrNoResearch = errors.New("session has no research tasks")
)

// Envelope carries subject-level research results and analysis insights
// between orchestrators.
type Envelope struct {
	ProtocolVersion string        `json:"protocol_version"`
	MessageType     string        `json:"message_type"`
	EnvelopeID      string        `json:"envelope_id"`
	SenderID        string        `json:"sender_id"`
	SessionID       string        `json:"session_id"`
	Phase           session.Phase `json:"phase"`
	CreatedAt       time.Time     `json:"created_at"`

	Query  string   `json:"query,omitempty"`
	Topics []string `json:"topics,omitempty"`

	// Subjects holds the finished research tasks, in input order.
	Subjects []*research.Task `json:"subjects"`

	Insights []string `json:"insights,omitempty"`
}

// Export builds an envelope from s. Only tasks in a terminal status are
// included.
func Export(s *session.Session, senderID string, now time.Time) (*Envelope, error) {
	env := &Envelope{
		ProtocolVersion: ProtocolVersion,
		MessageType:     MessageResearchResults,
		EnvelopeID:      uuid.NewString(),
		SenderID:        senderID,
		SessionID:       s.ID,
		Phase:           s.Phase,
		CreatedAt:       now.UTC(),
		Query:           s.Inputs.Query,
		Topics:          s.Inputs.Topics,
		Subjects:        []*research.Task{},
	}

	if r := s.Outputs.Research; r != nil {
		for _, t := range r.Tasks {
			if !t.Status.Terminal() {
				continue
			}
			c, err := cloneTask(t)
			if err != nil {
				return nil, err
			}
			env.Subjects = append(env.Subjects, c)
		}
	}

	if a := s.Outputs.Analysis; a != nil {
		env.MessageType = MessageAnalysisInsights
		env.Insights = append(env.Insights, a.Insights...)
	}
	return env, nil
}

// MergeResult reports what a merge changed.
type MergeResult struct {
	// Merged lists subjects whose local task was replaced by the peer's.
	Merged []string `json:"merged"`

	// Skipped lists peer subjects the session does not research.
	Skipped []string `json:"skipped,omitempty"`

	// Insights counts newly added peer insights.
	Insights int `json:"insights"`
}

// Merge folds env into s. A peer's SUCCEEDED task replaces a local task that
// is PENDING or FAILED; local successes are never overwritten. Insights are
// added to s.PeerInsights once each. Only INIT and RESEARCH sessions accept
// merges, since later phases have already consumed research output.
func Merge(s *session.Session, env *Envelope) (*MergeResult, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrIncompatible)
	}
	if major(env.ProtocolVersion) != major(ProtocolVersion) {
		return nil, fmt.Errorf("%w: protocol %q", ErrIncompatible, env.ProtocolVersion)
	}
	if s.Phase != session.PhaseInit && s.Phase != session.PhaseResearch {
		return nil, fmt.Errorf("%w: phase %s", ErrMergeClosed, s.Phase)
	}
	r := s.Outputs.Research
	if r == nil {
		return nil, ErrNoResearch
	}

	result := &MergeResult{}
	for _, peerTask := range env.Subjects {
		if peerTask == nil {
			continue
		}
		idx := indexOf(r.Tasks, peerTask.Subject)
		if idx < 0 {
			result.Skipped = append(result.Skipped, peerTask.Subject)
			continue
		}
		local := r.Tasks[idx]
		if peerTask.Status != research.StatusSucceeded {
			continue
		}
		if local.Status != research.StatusPending && local.Status != research.StatusFailed {
			continue
		}
		c, err := cloneTask(peerTask)
		if err != nil {
			return nil, err
		}
		r.Tasks[idx] = c
		result.Merged = append(result.Merged, peerTask.Subject)
	}

	if len(result.Merged) > 0 {
		completedAt := r.CompletedAt
		*r = *research.Aggregate(r.Tasks)
		r.CompletedAt = completedAt
	}

	seen := make(map[string]struct{}, len(s.PeerInsights))
	for _, insight := range s.PeerInsights {
		seen[insight] = struct{}{}
	}
	for _, insight := range env.Insights {
		insight = strings.TrimSpace(insight)
		if insight == "" {
			continue
		}
		if _, ok := seen[insight]; ok {
			continue
		}
		seen[insight] = struct{}{}
		s.PeerInsights = append(s.PeerInsights, insight)
		result.Insights++
	}

	return result, nil
}

func indexOf(tasks []*research.Task, subject string) int {
	for i, t := range tasks {
		if t.Subject == subject {
			return i
		}
	}
	return -1
}

func major(version string) string {
	v, _, _ := strings.Cut(version, ".")
	return v
}

func cloneTask(t *research.Task) (*research.Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding task %s: %w", t.Subject, err)
	}
	out := &research.Task{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", t.Subject, err)
	}
	return out, nil
}
