package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/landscape/pkg/llmcall"
)

// LLMName identifies reports written by LLM.
const LLMName = "llm"

// LLM asks a model to write the report from the structured analysis.
type LLM struct {
	call llmcall.CallFunc
}

// NewLLM returns a generator backed by call.
func NewLLM(call llmcall.CallFunc) *LLM {
	return &LLM{call: call}
}

type llmReport struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (g *LLM) Generate(ctx context.Context, req Request) (*Report, error) {
	if req.Analysis == nil {
		return nil, ErrNoAnalysis
	}

	analysisJSON, err := json.Marshal(req.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	response, err := g.call(ctx, buildPrompt(req, analysisJSON))
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}

	var parsed llmReport
	if err := json.Unmarshal([]byte(llmcall.ExtractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if strings.TrimSpace(parsed.Body) == "" {
		return nil, errors.New("parse response: empty report body")
	}
	if parsed.Title == "" {
		parsed.Title = defaultTitle(req)
	}

	return &Report{
		Format:    FormatMarkdown,
		Title:     parsed.Title,
		Body:      parsed.Body,
		Generator: LLMName,
	}, nil
}

func buildPrompt(req Request, analysisJSON []byte) string {
	var b strings.Builder
	b.WriteString("Write a concise markdown report from the structured analysis below.\n")
	b.WriteString("Return ONLY valid JSON with these fields:\n\n")
	b.WriteString("{\n  \"title\": \"short report title\",\n  \"body\": \"markdown body\"\n}\n\n")
	if req.Query != "" {
		fmt.Fprintf(&b, "Question: %s\n", req.Query)
	}
	b.WriteString("Analysis:\n")
	b.Write(analysisJSON)
	return b.String()
}
