// Package llmcall provides minimal prompt-in, text-out callers for the LLM
// providers landscape can use for analysis and narrative generation.
package llmcall

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/papercomputeco/landscape/pkg/logger"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	defaultTimeout = 60 * time.Second
)

// defaults are the model and base URL used when Config leaves them empty.
var defaults = map[string]struct{ model, baseURL string }{
	ProviderOpenAI:    {"gpt-4o-mini", "https://api.openai.com"},
	ProviderAnthropic: {"claude-haiku-4-5-20251001", "https://api.anthropic.com"},
	ProviderOllama:    {"llama3.2", "http://localhost:11434"},
}

// CallFunc sends a prompt and returns the model's reply. Callers ask for a
// JSON reply; providers that support it are put in JSON mode.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// Config holds configuration for creating a caller.
type Config struct {
	Provider string // "openai", "anthropic", or "ollama"
	Model    string // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey   string // explicit API key (highest priority)
	BaseURL  string // override base URL
	Timeout  time.Duration

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// New creates a CallFunc for the configured provider.
// Resolution order for API key:
//  1. Explicit APIKey in config
//  2. Environment variables (OPENAI_API_KEY / ANTHROPIC_API_KEY)
//  3. Fall back to Ollama at localhost:11434
func New(cfg Config) (CallFunc, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}
	if _, ok := defaults[provider]; !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	model := cfg.Model

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	if apiKey == "" && provider != ProviderOllama {
		cfg.Logger.Warn("no API key found, falling back to ollama", "provider", provider)
		provider = ProviderOllama
		model = ""
		cfg.BaseURL = ""
	}

	d := defaults[provider]
	if model == "" {
		model = d.model
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = d.baseURL
	}

	var ep endpoint
	switch provider {
	case ProviderOpenAI:
		ep = openAIEndpoint(apiKey)
	case ProviderAnthropic:
		ep = anthropicEndpoint(apiKey)
	default:
		ep = ollamaEndpoint()
	}
	return ep.caller(client, baseURL, model), nil
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// ExtractJSON trims markdown code fences some models wrap JSON replies in.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
