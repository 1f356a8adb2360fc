package monitorcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	monitorcmder "github.com/papercomputeco/landscape/cmd/landscape/monitor"
)

var _ = Describe("Monitor command", func() {
	var (
		tmpDir  string
		origDir string
		server  *httptest.Server
		calls   chan string
	)

	BeforeEach(func() {
		calls = make(chan string, 16)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := r.URL.Query().Get("subject")
			calls <- subject
			_ = json.NewEncoder(w).Encode(map[string]any{"summary": subject + " grows"})
		}))

		var err error
		tmpDir, err = os.MkdirTemp("", "landscape-monitor-test-*")
		Expect(err).NotTo(HaveOccurred())
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		dir := filepath.Join(tmpDir, ".landscape")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		cfg := fmt.Sprintf("version = 0\n\n[capabilities.search]\nendpoint = %q\n", server.URL)
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0o600)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	var out *bytes.Buffer

	execute := func(args ...string) error {
		out = &bytes.Buffer{}
		cmd := monitorcmder.NewMonitorCmd()
		cmd.SetArgs(args)
		cmd.SetOut(out)
		return cmd.Execute()
	}

	It("runs one session per cycle", func() {
		Expect(execute("acme", "--storage", "memory", "--interval", "10ms", "--cycles", "3")).To(Succeed())
		Expect(calls).To(HaveLen(3))
	})

	It("compares each finished cycle with the one before", func() {
		Expect(execute("acme", "--storage", "memory", "--interval", "10ms", "--cycles", "2")).To(Succeed())

		Expect(strings.Count(out.String(), "Change:")).To(Equal(1))
		Expect(out.String()).To(MatchRegexp(`[A-F] -> [A-F]`))
	})

	It("writes each cycle's report to the output directory", func() {
		out := filepath.Join(tmpDir, "reports")
		Expect(execute("acme", "--query", "fintech", "--storage", "memory",
			"--interval", "10ms", "--cycles", "2", "--output-dir", out, "--format", "html")).To(Succeed())

		files, err := filepath.Glob(filepath.Join(out, "*.html"))
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(HaveLen(2))

		data, err := os.ReadFile(files[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("acme"))
	})

	It("requires subjects or a query", func() {
		Expect(execute("--cycles", "1")).To(MatchError(ContainSubstring("a query or at least one subject is required")))
		Expect(calls).To(BeEmpty())
	})

	It("rejects a non-positive interval", func() {
		Expect(execute("acme", "--storage", "memory", "--interval", "0s", "--cycles", "1")).
			To(MatchError(ContainSubstring("monitor.interval must be positive")))
	})

	It("rejects --format without --output-dir", func() {
		Expect(execute("acme", "--format", "html")).To(MatchError(ContainSubstring("--format requires --output-dir")))
	})
})
