package narrative_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/research"
)

func request() narrative.Request {
	return narrative.Request{
		Query:    "widget makers",
		Subjects: []string{"acme", "globex"},
		Topics:   []string{"pricing", "regulation"},
		Analysis: &analysis.Output{
			Context: compaction.Context{Summary: "acme (search): acme ships widgets"},
			Subjects: []analysis.SubjectSummary{
				{Subject: "acme", Status: research.StatusSucceeded, Findings: 1, Tags: []string{"pricing"}},
				{Subject: "globex", Status: research.StatusFailed},
			},
			TopicsCovered: []string{"pricing"},
			TopicsMissing: []string{"regulation"},
			Insights:      []string{"1 of 2 subjects researched successfully"},
		},
	}
}

var _ = Describe("Markdown", func() {
	It("renders subjects, insights, gaps and findings", func() {
		report, err := narrative.NewMarkdown().Generate(context.Background(), request())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Format).To(Equal(narrative.FormatMarkdown))
		Expect(report.Generator).To(Equal(narrative.MarkdownName))
		Expect(report.Title).To(Equal("widget makers"))
		Expect(report.Body).To(HavePrefix("# widget makers"))
		Expect(report.Body).To(ContainSubstring("| acme | ok | 1 | pricing |"))
		Expect(report.Body).To(ContainSubstring("| globex | failed | 0 |  |"))
		Expect(report.Body).To(ContainSubstring("- 1 of 2 subjects researched successfully"))
		Expect(report.Body).To(ContainSubstring("No coverage for: regulation"))
		Expect(report.Body).To(ContainSubstring("acme ships widgets"))
	})

	It("is deterministic", func() {
		a, err := narrative.NewMarkdown().Generate(context.Background(), request())
		Expect(err).NotTo(HaveOccurred())
		b, err := narrative.NewMarkdown().Generate(context.Background(), request())
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("falls back to a default title", func() {
		req := request()
		req.Query = ""
		report, err := narrative.NewMarkdown().Generate(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Title).To(Equal("Landscape report"))
	})

	It("requires analysis", func() {
		_, err := narrative.NewMarkdown().Generate(context.Background(), narrative.Request{})
		Expect(err).To(MatchError(narrative.ErrNoAnalysis))
	})
})

var _ = Describe("LLM", func() {
	It("uses the model's title and body", func() {
		var prompt string
		gen := narrative.NewLLM(func(_ context.Context, p string) (string, error) {
			prompt = p
			return `{"title": "Widgets", "body": "## Summary\nacme leads"}`, nil
		})

		report, err := gen.Generate(context.Background(), request())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Title).To(Equal("Widgets"))
		Expect(report.Body).To(ContainSubstring("acme leads"))
		Expect(report.Generator).To(Equal(narrative.LLMName))
		Expect(prompt).To(ContainSubstring(`"topics_missing":["regulation"]`))
	})

	It("fails on an empty body", func() {
		gen := narrative.NewLLM(func(context.Context, string) (string, error) {
			return `{"title": "Widgets"}`, nil
		})
		_, err := gen.Generate(context.Background(), request())
		Expect(err).To(MatchError(ContainSubstring("empty report body")))
	})

	It("wraps model errors", func() {
		boom := errors.New("boom")
		gen := narrative.NewLLM(func(context.Context, string) (string, error) {
			return "", boom
		})
		_, err := gen.Generate(context.Background(), request())
		Expect(err).To(MatchError(boom))
	})
})
