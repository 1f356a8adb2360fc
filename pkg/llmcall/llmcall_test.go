package llmcall_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/llmcall"
)

var _ = Describe("New", func() {
	It("falls back to ollama when no key is available", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		caller, err := llmcall.New(llmcall.Config{Provider: "openai"})
		Expect(err).NotTo(HaveOccurred())
		Expect(caller).NotTo(BeNil())
	})

	It("rejects unsupported providers", func() {
		_, err := llmcall.New(llmcall.Config{Provider: "unsupported", APIKey: "key"})
		Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
	})
})

var _ = Describe("callers", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("calls the OpenAI chat completions API in JSON mode", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))

			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["model"]).To(Equal("gpt-4o-mini"))
			Expect(req["response_format"]).To(HaveKeyWithValue("type", "json_object"))

			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		reply, err := caller(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(`{"ok":true}`))
	})

	It("calls the Anthropic messages API", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(r.Header.Get("x-api-key")).To(Equal("test-key"))
			Expect(r.Header.Get("anthropic-version")).To(Equal("2023-06-01"))
			_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{}"}]}`))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "anthropic", APIKey: "test-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		reply, err := caller(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("{}"))
	})

	It("calls the Ollama chat API without streaming", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/chat"))

			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["stream"]).To(BeFalse())
			Expect(req["format"]).To(Equal("json"))

			_, _ = w.Write([]byte(`{"message":{"content":"{\"x\":1}"},"done":true}`))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "ollama", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		reply, err := caller(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(`{"x":1}`))
	})

	It("surfaces non-200 responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = caller(ctx, "hello")
		Expect(err).To(MatchError(ContainSubstring("status 429")))
	})
})

var _ = Describe("ExtractJSON", func() {
	It("strips markdown fences", func() {
		Expect(llmcall.ExtractJSON("```json\n{\"a\":1}\n```")).To(Equal(`{"a":1}`))
		Expect(llmcall.ExtractJSON(` {"a":1} `)).To(Equal(`{"a":1}`))
	})
})

var _ = Describe("APIError", func() {
	It("is returned for non-200 responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("overloaded"))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "anthropic", APIKey: "k", BaseURL: server.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		_, err = caller(context.Background(), "hello")
		var apiErr *llmcall.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Provider).To(Equal("anthropic"))
		Expect(apiErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(apiErr.Body).To(Equal("overloaded"))
		Expect(apiErr.Retryable()).To(BeTrue())
	})

	It("treats client errors as final", func() {
		err := &llmcall.APIError{Provider: "openai", StatusCode: http.StatusUnauthorized}
		Expect(err.Retryable()).To(BeFalse())
	})

	It("reports ollama errors carried in the body", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
		}))
		defer server.Close()

		caller, err := llmcall.New(llmcall.Config{Provider: "ollama", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = caller(context.Background(), "hello")
		Expect(err).To(MatchError(ContainSubstring("model not found")))
	})
})
