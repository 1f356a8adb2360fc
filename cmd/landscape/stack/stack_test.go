package stack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/papercomputeco/landscape/cmd/landscape/stack"
	"github.com/papercomputeco/landscape/pkg/credentials"
	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/session"
)

var _ = Describe("Build", func() {
	var (
		ctx    context.Context
		v      *viper.Viper
		server *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"summary": "profile of " + r.URL.Query().Get("subject"),
				"tags":    []string{"saas"},
			})
		}))

		v = viper.New()
		v.Set("storage.driver", "memory")
		v.Set("session.store", "memory")
		v.Set("research.max_concurrency", 2)
		v.Set("research.task_timeout", "5s")
		v.Set("capabilities", map[string]any{
			"search": map[string]any{"endpoint": server.URL, "weight": 2.0},
		})
	})

	AfterEach(func() {
		server.Close()
	})

	It("runs a session end to end over HTTP capabilities", func() {
		s, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(s.Close()).To(Succeed()) }()

		id, err := s.Coordinator.Start(ctx, session.Inputs{Subjects: []string{"acme", "globex"}})
		Expect(err).NotTo(HaveOccurred())

		sess, err := s.Coordinator.Wait(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Phase).To(Equal(session.PhaseDone))
		Expect(sess.Outputs.Research.Succeeded).To(Equal(2))

		profile, err := s.Bank.GetProfile(ctx, "acme")
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.Fields).To(HaveKeyWithValue("last_session_id", id))
	})

	It("uses a SQLite database in the config directory by default", func() {
		v.Set("storage.driver", "sqlite")
		s, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
	})

	It("rejects capabilities without an endpoint", func() {
		v.Set("research.capabilities", []string{"search", "patents"})
		_, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`capability "patents"`)))
	})

	It("rejects unknown backends", func() {
		v.Set("storage.driver", "cassandra")
		_, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unknown storage driver")))
	})

	It("requires brokers for the kafka publisher", func() {
		v.Set("peer.publisher", "kafka")
		v.Set("peer.topic", "landscape.sessions")
		_, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("broker")))
	})

	It("fails without any capability", func() {
		v.Set("capabilities", map[string]any{})
		_, err := stack.Build(ctx, v, GinkgoT().TempDir(), logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("sends the stored API key to the LLM provider", func() {
		llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != "stored-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			text := `{"title":"Acme landscape","body":"Acme leads.","insights":["acme is saas"]}`
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": text}},
			})
		}))
		defer llm.Close()

		dir := GinkgoT().TempDir()
		creds, err := credentials.NewManager(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds.SetKey("anthropic", "stored-key")).To(Succeed())

		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
		v.Set("narrative.provider", "anthropic")
		v.Set("narrative.model", "claude-test")
		v.Set("narrative.target", llm.URL)

		s, err := stack.Build(ctx, v, dir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(s.Close()).To(Succeed()) }()

		id, err := s.Coordinator.Start(ctx, session.Inputs{Subjects: []string{"acme"}})
		Expect(err).NotTo(HaveOccurred())

		sess, err := s.Coordinator.Wait(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Phase).To(Equal(session.PhaseDone))
		Expect(sess.Outputs.Report.Title).To(Equal("Acme landscape"))
	})
})
