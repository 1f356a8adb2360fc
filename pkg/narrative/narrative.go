// Package narrative turns an analysis into a formatted report.
package narrative

import (
	"context"
	"time"

	"github.com/papercomputeco/landscape/pkg/analysis"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
)

// Generator produces the REPORT phase payload in a single call.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Report, error)
}

// Request is the input to a Generator.
type Request struct {
	Query    string
	Subjects []string
	Topics   []string
	Analysis *analysis.Output
}

// Report is the REPORT phase payload.
type Report struct {
	Format string `json:"format"`
	Title  string `json:"title"`
	Body   string `json:"body"`

	// Generator names the generator that wrote the report.
	Generator string `json:"generator"`

	// GeneratedAt is stamped by the caller once the report is accepted.
	GeneratedAt time.Time `json:"generated_at"`
}

func defaultTitle(req Request) string {
	if req.Query != "" {
		return req.Query
	}
	return "Landscape report"
}
