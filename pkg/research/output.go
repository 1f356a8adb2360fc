package research

import (
	"fmt"
	"time"

	"github.com/papercomputeco/landscape/pkg/compaction"
)

// DefaultWeight is the compaction weight of a finding when neither the
// finding nor its capability specifies one.
const DefaultWeight = 1.0

// Output is the aggregated result of a research phase. Tasks are always in
// input subject order, independent of completion order.
type Output struct {
	Tasks     []*Task `json:"tasks"`
	Requested int     `json:"requested"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Pending   int     `json:"pending"`

	// Partial is set when the phase finished with at least one failed subject.
	Partial bool `json:"partial"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Aggregate tallies tasks into an Output. Tasks are kept in the given order.
func Aggregate(tasks []*Task) *Output {
	out := &Output{
		Tasks:     tasks,
		Requested: len(tasks),
	}

	for _, t := range tasks {
		switch t.Status {
		case StatusSucceeded:
			out.Succeeded++
		case StatusFailed:
			out.Failed++
		default:
			out.Pending++
		}
	}

	out.Partial = out.Failed > 0
	return out
}

// Lookup returns the task for subject, or nil.
func (o *Output) Lookup(subject string) *Task {
	for _, t := range o.Tasks {
		if t.Subject == subject {
			return t
		}
	}
	return nil
}

// Invocations returns how many capability calls were requested across
// terminal tasks and how many of them produced a finding.
func (o *Output) Invocations() (requested, succeeded int) {
	for _, t := range o.Tasks {
		if !t.Status.Terminal() {
			continue
		}
		requested += len(t.Capabilities)
		succeeded += len(t.Findings)
	}
	return requested, succeeded
}

// Fragments flattens successful findings into compaction fragments, in task
// order then capability order. weights maps capability name to its default
// weight.
func (o *Output) Fragments(weights map[string]float64) []compaction.Fragment {
	var frags []compaction.Fragment
	for _, t := range o.Tasks {
		if t.Status != StatusSucceeded {
			continue
		}
		for _, f := range t.Findings {
			frag := compaction.Fragment{
				Text:   fmt.Sprintf("%s (%s): %s", t.Subject, f.Capability, f.Summary),
				Weight: findingWeight(f, weights),
				Source: t.Subject,
			}
			if f.ObservedAt != nil {
				frag.Timestamp = *f.ObservedAt
			}
			frags = append(frags, frag)
		}
	}
	return frags
}

func findingWeight(f Finding, weights map[string]float64) float64 {
	if f.Weight > 0 {
		return f.Weight
	}
	if w, ok := weights[f.Capability]; ok && w > 0 {
		return w
	}
	return DefaultWeight
}
