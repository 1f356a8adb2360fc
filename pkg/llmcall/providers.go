package llmcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxReplyBytes bounds how much of a provider response is read.
const maxReplyBytes = 4 << 20

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the provider asked to be retried later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type providerError struct {
	Message string `json:"message"`
}

// endpoint describes one provider's chat API: how to build the request and
// how to pull the reply text out of the response.
type endpoint struct {
	name    string
	path    string
	headers map[string]string
	request func(model, prompt string) any
	reply   func(body []byte) (string, error)
}

func (e endpoint) caller(client *http.Client, baseURL, model string) CallFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		body, status, err := post(ctx, client, baseURL+e.path, e.request(model, prompt), e.headers)
		if err != nil {
			return "", fmt.Errorf("%s request: %w", e.name, err)
		}
		if status != http.StatusOK {
			return "", &APIError{Provider: e.name, StatusCode: status, Body: string(body)}
		}
		return e.reply(body)
	}
}

func post(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) ([]byte, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func openAIEndpoint(apiKey string) endpoint {
	type request struct {
		Model          string        `json:"model"`
		Messages       []chatMessage `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	type response struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Error *providerError `json:"error,omitempty"`
	}

	return endpoint{
		name:    ProviderOpenAI,
		path:    "/v1/chat/completions",
		headers: map[string]string{"Authorization": "Bearer " + apiKey},
		request: func(model, prompt string) any {
			r := request{Model: model, Messages: []chatMessage{{Role: "user", Content: prompt}}}
			r.ResponseFormat.Type = "json_object"
			return r
		},
		reply: func(body []byte) (string, error) {
			var r response
			if err := json.Unmarshal(body, &r); err != nil {
				return "", fmt.Errorf("unmarshal response: %w", err)
			}
			if r.Error != nil {
				return "", fmt.Errorf("openai error: %s", r.Error.Message)
			}
			if len(r.Choices) == 0 {
				return "", errors.New("openai returned no choices")
			}
			return r.Choices[0].Message.Content, nil
		},
	}
}

func anthropicEndpoint(apiKey string) endpoint {
	type request struct {
		Model     string        `json:"model"`
		MaxTokens int           `json:"max_tokens"`
		Messages  []chatMessage `json:"messages"`
	}
	type response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Error *providerError `json:"error,omitempty"`
	}

	return endpoint{
		name: ProviderAnthropic,
		path: "/v1/messages",
		headers: map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": "2023-06-01",
		},
		request: func(model, prompt string) any {
			// The messages API has no JSON mode.
			return request{
				Model:     model,
				MaxTokens: 2048,
				Messages: []chatMessage{{
					Role:    "user",
					Content: prompt + "\n\nReturn ONLY valid JSON, no markdown or extra text.",
				}},
			}
		},
		reply: func(body []byte) (string, error) {
			var r response
			if err := json.Unmarshal(body, &r); err != nil {
				return "", fmt.Errorf("unmarshal response: %w", err)
			}
			if r.Error != nil {
				return "", fmt.Errorf("anthropic error: %s", r.Error.Message)
			}
			for _, block := range r.Content {
				if block.Type == "" || block.Type == "text" {
					return block.Text, nil
				}
			}
			return "", errors.New("anthropic returned no text content")
		},
	}
}

func ollamaEndpoint() endpoint {
	type request struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
		Format   string        `json:"format"`
	}
	type response struct {
		Message chatMessage `json:"message"`
		Error   string      `json:"error,omitempty"`
	}

	return endpoint{
		name: ProviderOllama,
		path: "/api/chat",
		request: func(model, prompt string) any {
			return request{Model: model, Messages: []chatMessage{{Role: "user", Content: prompt}}, Format: "json"}
		},
		reply: func(body []byte) (string, error) {
			var r response
			if err := json.Unmarshal(body, &r); err != nil {
				return "", fmt.Errorf("unmarshal response: %w", err)
			}
			if r.Error != "" {
				return "", fmt.Errorf("ollama error: %s", r.Error)
			}
			return r.Message.Content, nil
		},
	}
}
