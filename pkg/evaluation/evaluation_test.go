package evaluation_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/evaluation"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

var completedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := completedAt.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func finished(tasks ...*research.Task) *session.Session {
	subjects := make([]string, len(tasks))
	for i, t := range tasks {
		subjects[i] = t.Subject
	}
	s := session.New("s-1", session.Inputs{Query: "q", Subjects: subjects}, completedAt)
	out := research.Aggregate(tasks)
	out.CompletedAt = &completedAt
	s.Outputs.Research = out
	s.Phase = session.PhaseDone
	return s
}

func ok(subject string, findings ...research.Finding) *research.Task {
	caps := make([]string, len(findings))
	for i, f := range findings {
		caps[i] = f.Capability
	}
	return &research.Task{Subject: subject, Capabilities: caps, Status: research.StatusSucceeded, Findings: findings}
}

func failed(subject string, caps ...string) *research.Task {
	return &research.Task{Subject: subject, Capabilities: caps, Status: research.StatusFailed}
}

var _ = Describe("Evaluate", func() {
	It("scores a perfect run as A", func() {
		s := finished(
			ok("acme", research.Finding{Capability: "search", ObservedAt: daysAgo(1)}),
			ok("globex", research.Finding{Capability: "search", ObservedAt: daysAgo(10)}),
		)

		e := evaluation.Evaluate(s)
		Expect(e.Scores).To(Equal(map[string]float64{
			evaluation.Coverage:     1,
			evaluation.Completeness: 1,
			evaluation.Freshness:    1,
			evaluation.Alignment:    1,
		}))
		Expect(e.Overall).To(Equal(1.0))
		Expect(e.Grade).To(Equal("A"))
		Expect(e.Feedback).To(HaveLen(4))
		Expect(e.Feedback[0]).To(Equal("Coverage: score 1.00, excellent"))
	})

	It("reflects failed subjects and invocations", func() {
		s := finished(
			ok("acme", research.Finding{Capability: "search"}),
			failed("globex", "search", "filings"),
		)

		e := evaluation.Evaluate(s)
		Expect(e.Scores[evaluation.Coverage]).To(Equal(0.5))
		Expect(e.Scores[evaluation.Completeness]).To(BeNumerically("~", 1.0/3.0, 1e-9))
		Expect(e.Scores[evaluation.Freshness]).To(Equal(0.7))
	})

	It("buckets finding age", func() {
		s := finished(ok("acme",
			research.Finding{Capability: "a", ObservedAt: daysAgo(100)},
			research.Finding{Capability: "b", ObservedAt: daysAgo(300)},
			research.Finding{Capability: "c", ObservedAt: daysAgo(900)},
		))

		e := evaluation.Evaluate(s)
		Expect(e.Scores[evaluation.Freshness]).To(BeNumerically("~", (0.8+0.6+0.4)/3, 1e-9))
	})

	It("measures topic alignment from analysis output", func() {
		s := finished(ok("acme", research.Finding{Capability: "search"}))
		s.Inputs.Topics = []string{"pricing", "regulation"}
		s.Outputs.Analysis = &analysis.Output{TopicsCovered: []string{"pricing"}}

		e := evaluation.Evaluate(s)
		Expect(e.Scores[evaluation.Alignment]).To(Equal(0.5))
	})

	It("falls back to research tags for alignment", func() {
		s := finished(ok("acme", research.Finding{Capability: "search", Tags: []string{"Pricing"}}))
		s.Inputs.Topics = []string{"pricing", "regulation", "trials", "safety"}

		e := evaluation.Evaluate(s)
		Expect(e.Scores[evaluation.Alignment]).To(Equal(0.25))
	})

	It("scores a session without research as F", func() {
		s := session.New("s-2", session.Inputs{Query: "q"}, completedAt)
		e := evaluation.Evaluate(s)
		Expect(e.Overall).To(Equal(0.0))
		Expect(e.Grade).To(Equal("F"))
		Expect(e.Feedback[0]).To(HavePrefix("LOW COVERAGE"))
	})

	It("is deterministic", func() {
		s := finished(
			ok("acme", research.Finding{Capability: "search", ObservedAt: daysAgo(40)}),
			failed("globex", "search"),
		)
		Expect(evaluation.Evaluate(s)).To(Equal(evaluation.Evaluate(s)))
	})
})

var _ = DescribeTable("Grade",
	func(overall float64, grade string) {
		Expect(evaluation.Grade(overall)).To(Equal(grade))
	},
	Entry("top", 1.0, "A"),
	Entry("A boundary", 0.9, "A"),
	Entry("B", 0.85, "B"),
	Entry("C boundary", 0.7, "C"),
	Entry("D", 0.65, "D"),
	Entry("F", 0.59, "F"),
)

var _ = Describe("Compare", func() {
	It("reports direction per dimension", func() {
		before := session.Evaluation{
			Scores:  map[string]float64{evaluation.Coverage: 0.5, evaluation.Freshness: 0.8, evaluation.Alignment: 1},
			Overall: 0.6, Grade: "D",
		}
		after := session.Evaluation{
			Scores:  map[string]float64{evaluation.Coverage: 1, evaluation.Freshness: 0.6, evaluation.Alignment: 1},
			Overall: 0.9, Grade: "A",
		}

		c := evaluation.Compare(before, after)
		Expect(c.ScoreDiff).To(BeNumerically("~", 0.3, 1e-9))
		Expect(c.GradeChange).To(Equal("D -> A"))
		Expect(c.Changes[evaluation.Coverage].Direction).To(Equal(evaluation.Improved))
		Expect(c.Changes[evaluation.Freshness].Direction).To(Equal(evaluation.Declined))
		Expect(c.Changes[evaluation.Alignment].Direction).To(Equal(evaluation.Same))
	})
})
