// Package evaluation scores a completed session against fixed quality
// dimensions. Every score is derived from signals already recorded in the
// session's phase outputs; nothing is re-fetched.
package evaluation

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

// Dimension names.
const (
	Coverage     = "coverage"
	Completeness = "completeness"
	Freshness    = "freshness"
	Alignment    = "alignment"
)

// Dimensions lists the scored dimensions in reporting order.
var Dimensions = []string{Coverage, Completeness, Freshness, Alignment}

// Freshness scores by age of a finding relative to research completion.
const (
	freshWithin30Days  = 1.0
	freshWithin180Days = 0.8
	freshWithinYear    = 0.6
	freshOlder         = 0.4
	freshUndated       = 0.7
)

const day = 24 * time.Hour

// Grade maps an overall score to a letter:
//
//	>= 0.9  A
//	>= 0.8  B
//	>= 0.7  C
//	>= 0.6  D
//	else    F
func Grade(overall float64) string {
	switch {
	case overall >= 0.9:
		return "A"
	case overall >= 0.8:
		return "B"
	case overall >= 0.7:
		return "C"
	case overall >= 0.6:
		return "D"
	default:
		return "F"
	}
}

// Evaluate scores s. It is a pure function of the session.
func Evaluate(s *session.Session) session.Evaluation {
	r := s.Outputs.Research
	scores := map[string]float64{
		Coverage:     coverage(s, r),
		Completeness: completeness(r),
		Freshness:    freshness(s, r),
		Alignment:    alignment(s, r),
	}

	var sum float64
	for _, d := range Dimensions {
		sum += scores[d]
	}
	overall := sum / float64(len(Dimensions))

	return session.Evaluation{
		Scores:   scores,
		Overall:  overall,
		Grade:    Grade(overall),
		Feedback: Feedback(scores),
	}
}

func coverage(s *session.Session, r *research.Output) float64 {
	if r == nil {
		return 0
	}
	requested := len(s.Inputs.Subjects)
	if requested == 0 {
		requested = r.Requested
	}
	return ratio(r.Succeeded, requested)
}

func completeness(r *research.Output) float64 {
	if r == nil {
		return 0
	}
	requested, succeeded := r.Invocations()
	return ratio(succeeded, requested)
}

func freshness(s *session.Session, r *research.Output) float64 {
	if r == nil {
		return 0
	}
	ref := s.UpdatedAt
	if r.CompletedAt != nil {
		ref = *r.CompletedAt
	}

	var (
		total float64
		n     int
	)
	for _, t := range r.Tasks {
		if t.Status != research.StatusSucceeded {
			continue
		}
		for _, f := range t.Findings {
			total += ageScore(ref, f.ObservedAt)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func ageScore(ref time.Time, observed *time.Time) float64 {
	if observed == nil || observed.IsZero() {
		return freshUndated
	}
	age := ref.Sub(*observed)
	switch {
	case age <= 30*day:
		return freshWithin30Days
	case age <= 180*day:
		return freshWithin180Days
	case age <= 365*day:
		return freshWithinYear
	default:
		return freshOlder
	}
}

func alignment(s *session.Session, r *research.Output) float64 {
	if r == nil || r.Succeeded == 0 {
		return 0
	}
	topics := s.Inputs.Topics
	if len(topics) == 0 {
		return 1
	}

	if a := s.Outputs.Analysis; a != nil {
		return ratio(len(a.TopicsCovered), len(topics))
	}

	covered := map[string]struct{}{}
	for _, t := range r.Tasks {
		if t.Status != research.StatusSucceeded {
			continue
		}
		for _, tag := range t.Tags() {
			covered[tag] = struct{}{}
		}
	}
	hits := 0
	for _, topic := range topics {
		if _, ok := covered[topic]; ok {
			hits++
		}
	}
	return ratio(hits, len(topics))
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Feedback returns one line per dimension, in Dimensions order.
func Feedback(scores map[string]float64) []string {
	lines := make([]string, 0, len(scores))
	for _, d := range Dimensions {
		score, ok := scores[d]
		if !ok {
			continue
		}
		switch {
		case score < 0.6:
			lines = append(lines, fmt.Sprintf("LOW %s: score %.2f, needs improvement", strings.ToUpper(d), score))
		case score < 0.8:
			lines = append(lines, fmt.Sprintf("%s: score %.2f, good, can be enhanced", title(d), score))
		default:
			lines = append(lines, fmt.Sprintf("%s: score %.2f, excellent", title(d), score))
		}
	}
	return lines
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
