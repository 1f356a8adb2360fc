package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/landscape/pkg/llmcall"
	"github.com/papercomputeco/landscape/pkg/logger"
)

// LLMName identifies output enriched by LLM.
const LLMName = "llm"

// maxPromptChars bounds the context excerpt sent to the model.
const maxPromptChars = 30000

// LLM runs a base analyzer and asks a model for additional insights over
// the compacted context. A model failure leaves the base output unchanged.
type LLM struct {
	base Analyzer
	call llmcall.CallFunc
	log  *slog.Logger
}

// NewLLM wraps base. A nil base uses Structural.
func NewLLM(base Analyzer, call llmcall.CallFunc, log *slog.Logger) *LLM {
	if base == nil {
		base = NewStructural()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LLM{base: base, call: call, log: log}
}

type llmInsights struct {
	Insights []string `json:"insights"`
}

func (a *LLM) Analyze(ctx context.Context, in Input) (*Output, error) {
	out, err := a.base.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	response, err := a.call(ctx, buildPrompt(in, out))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call: %w", ctx.Err())
		}
		a.log.Warn("llm analysis failed, keeping structural insights", "error", err)
		return out, nil
	}

	extra, err := parseInsights(response)
	if err != nil {
		a.log.Warn("could not parse llm insights", "error", err)
		return out, nil
	}

	out.Insights = append(out.Insights, extra...)
	out.Analyzer = LLMName
	return out, nil
}

func buildPrompt(in Input, out *Output) string {
	var b strings.Builder
	b.WriteString("You are analyzing research gathered about several subjects.\n")
	b.WriteString("Return ONLY valid JSON of the form {\"insights\": [\"...\"]} with at most 8 short, concrete insights.\n\n")
	if in.Query != "" {
		fmt.Fprintf(&b, "Question: %s\n", in.Query)
	}
	if len(in.Topics) > 0 {
		fmt.Fprintf(&b, "Topics of interest: %s\n", strings.Join(in.Topics, ", "))
	}
	b.WriteString("\nSubjects:\n")
	for _, s := range out.Subjects {
		fmt.Fprintf(&b, "- %s: %s (%d findings)\n", s.Subject, s.Status, s.Findings)
	}

	excerpt := in.Context.Summary
	if len(excerpt) > maxPromptChars {
		excerpt = excerpt[:maxPromptChars]
	}
	b.WriteString("\nFindings:\n")
	b.WriteString(excerpt)
	if in.Prior != nil && in.Prior.Summary != "" {
		b.WriteString("\n\nFrom earlier runs:\n")
		b.WriteString(in.Prior.Summary)
	}
	return b.String()
}

func parseInsights(response string) ([]string, error) {
	var parsed llmInsights
	if err := json.Unmarshal([]byte(llmcall.ExtractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal insights: %w", err)
	}

	var insights []string
	for _, s := range parsed.Insights {
		s = strings.TrimSpace(s)
		if s != "" {
			insights = append(insights, s)
		}
	}
	if len(insights) == 0 {
		return nil, errors.New("no insights in response")
	}
	return insights, nil
}
