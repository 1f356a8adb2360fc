// Package compaction reduces an unbounded sequence of context fragments to a
// budget-constrained set, keeping the highest-priority items whole.
//
// Compaction is pure: the same fragments and budget always produce the same
// Context. Fragments are ranked by weight, then recency, then input position,
// and greedily admitted while the running size stays within budget. A fragment
// that does not fit is dropped, never cut. The resulting summary lists the
// admitted fragments in their original input order.
package compaction

import (
	"sort"
	"strings"
	"time"
)

// Separator joins admitted fragments in Context.Summary.
const Separator = "\n"

// Fragment is a single unit of context.
type Fragment struct {
	Text      string    `json:"text"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`

	// Source optionally names where the fragment came from (a subject,
	// a capability, "memory"). It does not affect ranking.
	Source string `json:"source,omitempty"`
}

// Context is the result of compacting a set of fragments.
type Context struct {
	// Fragments are the admitted fragments in original input order.
	Fragments []Fragment `json:"fragments"`

	// Summary is the admitted fragments' text joined by Separator.
	Summary string `json:"summary"`

	// Size is the sum of the admitted fragments' sizes.
	Size int `json:"size"`

	// Budget is the budget the context was compacted against.
	Budget int `json:"budget"`

	// Truncated is set when at least one fragment was dropped.
	Truncated bool `json:"truncated"`

	// Dropped counts dropped fragments, including any dropped by earlier
	// compactions of the same lineage (see Context.Compact).
	Dropped int `json:"dropped"`
}

type options struct {
	sizer Sizer
}

// Option configures Compact.
type Option func(*options)

// WithSizer overrides how fragment size is measured. Defaults to TokenSizer.
func WithSizer(s Sizer) Option {
	return func(o *options) {
		if s != nil {
			o.sizer = s
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{sizer: TokenSizer}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Compact admits fragments in priority order until the budget is exhausted.
// A negative budget is treated as zero.
func Compact(fragments []Fragment, budget int, opts ...Option) Context {
	o := buildOptions(opts)
	if budget < 0 {
		budget = 0
	}

	order := make([]int, len(fragments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return outranks(fragments, order[a], order[b])
	})

	admitted := make([]bool, len(fragments))
	used := 0
	dropped := 0
	for _, idx := range order {
		size := o.sizer(fragments[idx].Text)
		if used+size > budget {
			dropped++
			continue
		}
		used += size
		admitted[idx] = true
	}

	kept := make([]Fragment, 0, len(fragments)-dropped)
	for i, ok := range admitted {
		if ok {
			kept = append(kept, fragments[i])
		}
	}

	return Context{
		Fragments: kept,
		Summary:   join(kept),
		Size:      used,
		Budget:    budget,
		Truncated: dropped > 0,
		Dropped:   dropped,
	}
}

// Keep wraps fragments in a Context without dropping anything. The budget is
// recorded as the fragments' own size.
func Keep(fragments []Fragment, opts ...Option) Context {
	size := Estimate(fragments, opts...)
	kept := make([]Fragment, len(fragments))
	copy(kept, fragments)
	return Context{
		Fragments: kept,
		Summary:   join(kept),
		Size:      size,
		Budget:    size,
	}
}

// Compact re-compacts an existing context. Drop counts carry over so that
// compacting a compacted context with the same budget returns it unchanged.
func (c Context) Compact(budget int, opts ...Option) Context {
	next := Compact(c.Fragments, budget, opts...)
	next.Dropped += c.Dropped
	next.Truncated = next.Dropped > 0
	return next
}

// Estimate returns the total size of fragments.
func Estimate(fragments []Fragment, opts ...Option) int {
	o := buildOptions(opts)
	total := 0
	for _, f := range fragments {
		total += o.sizer(f.Text)
	}
	return total
}

// NeedsCompaction reports whether fragments exceed budget.
func NeedsCompaction(fragments []Fragment, budget int, opts ...Option) bool {
	return Estimate(fragments, opts...) > budget
}

// outranks orders by weight desc, then timestamp desc, then index asc.
func outranks(fragments []Fragment, a, b int) bool {
	fa, fb := fragments[a], fragments[b]
	if fa.Weight != fb.Weight {
		return fa.Weight > fb.Weight
	}
	if !fa.Timestamp.Equal(fb.Timestamp) {
		return fa.Timestamp.After(fb.Timestamp)
	}
	return a < b
}

func join(fragments []Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, Separator)
}
