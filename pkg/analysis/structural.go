package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/landscape/pkg/research"
)

// StructuralName identifies output produced by Structural.
const StructuralName = "structural"

// ErrNoResearch is returned when Analyze is called without research output.
var ErrNoResearch = errors.New("analysis requires research output")

// Structural is the default analyzer. It reorganizes research output by
// subject and topic without interpreting finding content.
type Structural struct{}

// NewStructural returns the default analyzer.
func NewStructural() *Structural {
	return &Structural{}
}

func (a *Structural) Analyze(ctx context.Context, in Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Research == nil {
		return nil, ErrNoResearch
	}

	out := &Output{
		Context:   in.Context,
		Compacted: in.Compacted,
		Analyzer:  StructuralName,
	}

	covered := map[string]struct{}{}
	for _, t := range in.Research.Tasks {
		summary := SubjectSummary{
			Subject:  t.Subject,
			Status:   t.Status,
			Findings: len(t.Findings),
			Failures: len(t.Failures),
		}
		if t.Error != nil {
			summary.Error = t.Error.Error()
		}
		if t.Status == research.StatusSucceeded {
			summary.Tags = t.Tags()
			for _, tag := range summary.Tags {
				covered[tag] = struct{}{}
			}
		}
		out.Subjects = append(out.Subjects, summary)
	}

	for _, topic := range in.Topics {
		if _, ok := covered[topic]; ok {
			out.TopicsCovered = append(out.TopicsCovered, topic)
		} else {
			out.TopicsMissing = append(out.TopicsMissing, topic)
		}
	}

	out.Insights = structuralInsights(in, out)
	return out, nil
}

func structuralInsights(in Input, out *Output) []string {
	r := in.Research
	insights := []string{
		fmt.Sprintf("%d of %d subjects researched successfully", r.Succeeded, r.Requested),
	}

	var failed []string
	for _, s := range out.Subjects {
		if s.Status == research.StatusFailed {
			failed = append(failed, s.Subject)
		}
	}
	if len(failed) > 0 {
		insights = append(insights, "no usable results for "+strings.Join(failed, ", "))
	}

	if len(out.TopicsMissing) > 0 {
		insights = append(insights, "topics without coverage: "+strings.Join(out.TopicsMissing, ", "))
	}

	if in.Compacted && in.Context.Dropped > 0 {
		insights = append(insights, fmt.Sprintf("%d lower-priority findings were left out to fit the context budget", in.Context.Dropped))
	}

	if in.Prior != nil && len(in.Prior.Fragments) > 0 {
		insights = append(insights, fmt.Sprintf("%d prior records were available from earlier runs", len(in.Prior.Fragments)))
	}

	insights = append(insights, in.PeerInsights...)
	return insights
}
