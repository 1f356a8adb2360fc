// Package session holds the per-run state of an orchestrated workflow and the
// Store contract that sequences writes to it.
//
// A Session moves INIT -> RESEARCH -> ANALYSIS -> REPORT -> DONE, or to
// FAILED from any non-terminal phase. Each phase's result lives in a typed
// slot of Outputs; a phase can only read the slots of the phases before it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/research"
)

// ErrMissingOutput is returned when a phase output is read before the phase
// that produces it has completed.
var ErrMissingOutput = errors.New("phase output not available")

// Session is one end-to-end run of the workflow.
type Session struct {
	ID        string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Paused    bool      `json:"paused"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Inputs    Inputs    `json:"inputs"`
	Outputs   Outputs   `json:"phase_outputs"`
	Error     *Error    `json:"error,omitempty"`

	// Evaluation is set once REPORT completes.
	Evaluation *Evaluation `json:"evaluation,omitempty"`

	// PriorContext is what the memory bank knew about the subjects when the
	// session started.
	PriorContext *compaction.Context `json:"prior_context,omitempty"`

	// PeerInsights are analysis insights merged in from peer orchestrators.
	PeerInsights []string `json:"peer_insights,omitempty"`

	// Revision is the optimistic concurrency token checked by Store.Put.
	Revision int64 `json:"revision"`
}

// Inputs are the caller-supplied parameters of a session.
type Inputs struct {
	Query    string   `json:"query"`
	Subjects []string `json:"subjects"`

	// Topics is a set; Normalize sorts and de-duplicates it.
	Topics []string `json:"topics,omitempty"`
}

// Normalize trims subjects and topics, drops empty and duplicate subjects
// (keeping first occurrence order) and turns topics into a sorted,
// lower-cased set.
func (in Inputs) Normalize() Inputs {
	out := Inputs{Query: strings.TrimSpace(in.Query)}

	seen := map[string]struct{}{}
	for _, s := range in.Subjects {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out.Subjects = append(out.Subjects, s)
	}

	topics := map[string]struct{}{}
	for _, t := range in.Topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		topics[t] = struct{}{}
	}
	for t := range topics {
		out.Topics = append(out.Topics, t)
	}
	sort.Strings(out.Topics)

	return out
}

// Empty reports whether there is nothing to research.
func (in Inputs) Empty() bool {
	return len(in.Subjects) == 0 && in.Query == ""
}

// Outputs holds the result payload of each completed phase.
type Outputs struct {
	Research *research.Output  `json:"research,omitempty"`
	Analysis *analysis.Output  `json:"analysis,omitempty"`
	Report   *narrative.Report `json:"report,omitempty"`
}

// ResearchOutput returns the RESEARCH payload.
func (o *Outputs) ResearchOutput() (*research.Output, error) {
	if o.Research == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingOutput, PhaseResearch)
	}
	return o.Research, nil
}

// AnalysisOutput returns the ANALYSIS payload.
func (o *Outputs) AnalysisOutput() (*analysis.Output, error) {
	if o.Analysis == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingOutput, PhaseAnalysis)
	}
	return o.Analysis, nil
}

// ReportOutput returns the REPORT payload.
func (o *Outputs) ReportOutput() (*narrative.Report, error) {
	if o.Report == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingOutput, PhaseReport)
	}
	return o.Report, nil
}

// Has reports whether the payload for phase is present.
func (o *Outputs) Has(phase Phase) bool {
	switch phase {
	case PhaseResearch:
		return o.Research != nil
	case PhaseAnalysis:
		return o.Analysis != nil
	case PhaseReport:
		return o.Report != nil
	default:
		return false
	}
}

// Failure kinds recorded in Error.Kind.
const (
	KindPhaseFailure = "phase_failure"
	KindTimeout      = "timeout"
	KindAbandoned    = "abandoned"
)

// Error records the failure that moved a session to FAILED.
type Error struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Phase   Phase     `json:"phase"`
	At      time.Time `json:"at"`
}

// Evaluation is the quality assessment of a completed session.
type Evaluation struct {
	Scores   map[string]float64 `json:"scores"`
	Overall  float64            `json:"overall"`
	Grade    string             `json:"grade"`
	Feedback []string           `json:"feedback,omitempty"`
}

// New creates a session in INIT.
func New(id string, inputs Inputs, now time.Time) *Session {
	return &Session{
		ID:        id,
		Phase:     PhaseInit,
		CreatedAt: now,
		UpdatedAt: now,
		Inputs:    inputs,
	}
}

// Transition moves the session to phase if the state machine allows it.
func (s *Session) Transition(to Phase, now time.Time) error {
	if err := ValidateTransition(s.Phase, to); err != nil {
		return err
	}
	s.Phase = to
	s.UpdatedAt = now
	return nil
}

// Fail moves the session to FAILED, recording the error. Phase outputs are
// kept for diagnostics.
func (s *Session) Fail(kind string, err error, now time.Time) error {
	failedIn := s.Phase
	if terr := s.Transition(PhaseFailed, now); terr != nil {
		return terr
	}
	s.Paused = false
	s.Error = &Error{
		Kind:    kind,
		Message: err.Error(),
		Phase:   failedIn,
		At:      now,
	}
	return nil
}

// Clone returns a deep copy via the session's JSON form, the same form the
// stores persist.
func (s *Session) Clone() (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	out := &Session{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return out, nil
}
