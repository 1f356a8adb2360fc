package evaluation

import (
	"github.com/papercomputeco/landscape/pkg/session"
)

// Direction of a score change between two evaluations.
type Direction string

const (
	Improved Direction = "improved"
	Declined Direction = "declined"
	Same     Direction = "same"
)

// Change is the difference in one dimension.
type Change struct {
	Diff      float64   `json:"change"`
	Direction Direction `json:"direction"`
}

// Comparison tracks how a later evaluation differs from an earlier one.
type Comparison struct {
	ScoreDiff   float64           `json:"score_diff"`
	GradeChange string            `json:"grade_change"`
	Changes     map[string]Change `json:"metric_changes"`
}

// Compare reports the change from before to after. Only dimensions scored in
// both are compared.
func Compare(before, after session.Evaluation) Comparison {
	c := Comparison{
		ScoreDiff:   after.Overall - before.Overall,
		GradeChange: before.Grade + " -> " + after.Grade,
		Changes:     map[string]Change{},
	}

	for dim, was := range before.Scores {
		now, ok := after.Scores[dim]
		if !ok {
			continue
		}
		diff := now - was
		dir := Same
		switch {
		case diff > 0:
			dir = Improved
		case diff < 0:
			dir = Declined
		}
		c.Changes[dim] = Change{Diff: diff, Direction: dir}
	}
	return c
}
