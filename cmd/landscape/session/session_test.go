package sessioncmder_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/api"
	sessioncmder "github.com/papercomputeco/landscape/cmd/landscape/session"
	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/dotdir"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/orchestrator"
	"github.com/papercomputeco/landscape/pkg/session"
	"github.com/papercomputeco/landscape/pkg/session/cache"
	"github.com/papercomputeco/landscape/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/landscape/pkg/utils/test"
)

var _ = Describe("Session commands", func() {
	var (
		ctx     context.Context
		tmpDir  string
		origDir string
		coord   *orchestrator.Coordinator
		server  *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "landscape-session-test-*")
		Expect(err).NotTo(HaveOccurred())
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".landscape"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		driver := inmemory.NewDriver()
		bank, err := memory.NewBank(memory.BankConfig{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		coord, err = orchestrator.New(orchestrator.Config{
			Store:          cache.NewStore(0),
			Checkpoints:    checkpoint.NewManager(driver),
			Memory:         bank,
			Invoker:        testutils.NewMockInvoker(),
			Capabilities:   []string{"search"},
			MaxConcurrency: 1,
			TaskTimeout:    2 * time.Second,
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(api.NewServer(api.Config{}, coord, bank, nil).Handler())
	})

	AfterEach(func() {
		server.Close()
		Expect(coord.Close()).To(Succeed())
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	execute := func(cmd *cobra.Command, args ...string) error {
		cmd.SetArgs(append(args, "--api-target", server.URL))
		cmd.SetOut(&bytes.Buffer{})
		return cmd.Execute()
	}

	lastSession := func() string {
		last, err := dotdir.NewManager().LoadLastSession("")
		Expect(err).NotTo(HaveOccurred())
		Expect(last).NotTo(BeNil())
		return last.SessionID
	}

	It("starts a session and remembers it", func() {
		Expect(execute(sessioncmder.NewStartCmd(), "acme", "globex", "--query", "fintech")).To(Succeed())

		id := lastSession()
		s, err := coord.Wait(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Phase).To(Equal(session.PhaseDone))
		Expect(s.Inputs.Subjects).To(Equal([]string{"acme", "globex"}))
	})

	It("reports status of the last session without an id", func() {
		Expect(execute(sessioncmder.NewStartCmd(), "acme")).To(Succeed())
		_, err := coord.Wait(ctx, lastSession())
		Expect(err).NotTo(HaveOccurred())

		Expect(execute(sessioncmder.NewStatusCmd(), "--report", "--checkpoints")).To(Succeed())
	})

	It("writes the report of a finished session to a file", func() {
		Expect(execute(sessioncmder.NewStartCmd(), "acme", "--query", "fintech")).To(Succeed())
		_, err := coord.Wait(ctx, lastSession())
		Expect(err).NotTo(HaveOccurred())

		out := filepath.Join(tmpDir, "report.html")
		Expect(execute(sessioncmder.NewStatusCmd(), "--output", out)).To(Succeed())

		data, err := os.ReadFile(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(HavePrefix("<!DOCTYPE html>"))
		Expect(string(data)).To(ContainSubstring("acme"))

		md := filepath.Join(tmpDir, "report.txt")
		Expect(execute(sessioncmder.NewStatusCmd(), "--output", md, "--format", "markdown")).To(Succeed())
		data, err = os.ReadFile(md)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring("<html"))
	})

	It("validates the report export flags", func() {
		Expect(execute(sessioncmder.NewStatusCmd(), "x", "--format", "html")).
			To(MatchError(ContainSubstring("--format requires --output")))
		Expect(execute(sessioncmder.NewStatusCmd(), "x", "--output", "r.pdf", "--format", "pdf")).
			To(MatchError(ContainSubstring("unknown report format")))
	})

	It("refuses to export a session without a report", func() {
		s := &session.Session{ID: "s1", Phase: session.PhaseResearch}
		err := sessioncmder.ExportReport(&bytes.Buffer{}, s, filepath.Join(tmpDir, "r.md"), "")
		Expect(err).To(MatchError(ContainSubstring("has no report yet")))
	})

	It("fails without a session id or a last session", func() {
		err := execute(sessioncmder.NewStatusCmd())
		Expect(err).To(MatchError(ContainSubstring("no session id given")))
	})

	It("surfaces server errors", func() {
		Expect(execute(sessioncmder.NewStatusCmd(), "missing")).To(MatchError(ContainSubstring("SessionNotFound")))
		Expect(execute(sessioncmder.NewResumeCmd(), "missing")).To(HaveOccurred())
	})

	It("refuses to pause or abandon a finished session", func() {
		Expect(execute(sessioncmder.NewStartCmd(), "acme")).To(Succeed())
		id := lastSession()
		_, err := coord.Wait(ctx, id)
		Expect(err).NotTo(HaveOccurred())

		Expect(execute(sessioncmder.NewPauseCmd(), id)).To(MatchError(ContainSubstring("InvalidInput")))
		Expect(execute(sessioncmder.NewAbandonCmd(), id)).To(MatchError(ContainSubstring("InvalidInput")))
	})

	It("rejects start without subjects or query", func() {
		Expect(execute(sessioncmder.NewStartCmd())).To(MatchError(ContainSubstring("InvalidInput")))
	})
})
