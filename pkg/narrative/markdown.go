package narrative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/papercomputeco/landscape/pkg/research"
)

// MarkdownName identifies reports written by Markdown.
const MarkdownName = "markdown"

// ErrNoAnalysis is returned when a report is requested without analysis.
var ErrNoAnalysis = errors.New("report requires analysis output")

var markdownFuncs = template.FuncMap{
	"join": strings.Join,
	"succeeded": func(s research.Status) bool {
		return s == research.StatusSucceeded
	},
}

const markdownTemplate = `# {{ .Title }}
{{ with .Req.Subjects }}
Subjects: {{ join . ", " }}
{{ end }}{{ with .Req.Topics }}Topics: {{ join . ", " }}
{{ end }}
## Subjects

| Subject | Status | Findings | Tags |
|---|---|---|---|
{{- range .Analysis.Subjects }}
| {{ .Subject }} | {{ if succeeded .Status }}ok{{ else }}failed{{ end }} | {{ .Findings }} | {{ join .Tags ", " }} |
{{- end }}
{{ if .Analysis.Insights }}
## Insights
{{ range .Analysis.Insights }}
- {{ . }}
{{- end }}
{{ end }}{{ if .Analysis.TopicsMissing }}
## Gaps

No coverage for: {{ join .Analysis.TopicsMissing ", " }}
{{ end }}{{ with .Analysis.Context.Summary }}
## Findings

{{ . }}
{{ end }}`

// Markdown renders a report from a fixed template. Output depends only on
// the request.
type Markdown struct {
	tmpl *template.Template
}

// NewMarkdown returns the default generator.
func NewMarkdown() *Markdown {
	return &Markdown{
		tmpl: template.Must(template.New("report").Funcs(markdownFuncs).Parse(markdownTemplate)),
	}
}

func (g *Markdown) Generate(ctx context.Context, req Request) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Analysis == nil {
		return nil, ErrNoAnalysis
	}

	title := defaultTitle(req)
	var buf bytes.Buffer
	err := g.tmpl.Execute(&buf, map[string]any{
		"Title":    title,
		"Req":      req,
		"Analysis": req.Analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return &Report{
		Format:    FormatMarkdown,
		Title:     title,
		Body:      buf.String(),
		Generator: MarkdownName,
	}, nil
}
