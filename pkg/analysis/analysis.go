// Package analysis turns aggregated research into a structured analysis the
// report phase can narrate.
package analysis

import (
	"context"

	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/research"
)

// Analyzer runs the ANALYSIS phase as a single sequential unit.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (*Output, error)
}

// Input is everything the ANALYSIS phase is allowed to see.
type Input struct {
	Query    string
	Subjects []string
	Topics   []string

	Research *research.Output

	// Context is the research output reduced to the compaction budget.
	Context   compaction.Context
	Compacted bool

	// Prior is what the memory bank knew about the subjects, if anything.
	Prior *compaction.Context

	PeerInsights []string
}

// SubjectSummary is the per-subject view of research results.
type SubjectSummary struct {
	Subject  string          `json:"subject"`
	Status   research.Status `json:"status"`
	Findings int             `json:"findings"`
	Failures int             `json:"failures"`
	Tags     []string        `json:"tags,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Output is the ANALYSIS phase payload.
type Output struct {
	Context   compaction.Context `json:"context"`
	Compacted bool               `json:"compacted"`

	// Subjects is in input subject order.
	Subjects []SubjectSummary `json:"subjects"`

	TopicsCovered []string `json:"topics_covered,omitempty"`
	TopicsMissing []string `json:"topics_missing,omitempty"`

	Insights []string `json:"insights,omitempty"`

	// Analyzer names the analyzer that produced this output.
	Analyzer string `json:"analyzer"`
}

// Succeeded returns the summaries of subjects whose research succeeded.
func (o *Output) Succeeded() []SubjectSummary {
	var out []SubjectSummary
	for _, s := range o.Subjects {
		if s.Status == research.StatusSucceeded {
			out = append(out, s)
		}
	}
	return out
}
