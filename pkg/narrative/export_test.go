package narrative_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/narrative"
)

var _ = Describe("Export", func() {
	report := &narrative.Report{
		Format: narrative.FormatMarkdown,
		Title:  "Widgets & gadgets",
		Body:   "# Widgets\n\n| subject | status |\n|---|---|\n| acme | ok |\n",
	}

	It("writes markdown unchanged", func() {
		var buf bytes.Buffer
		Expect(narrative.Export(&buf, report, "markdown")).To(Succeed())
		Expect(buf.String()).To(Equal(report.Body))
	})

	It("renders html pages with an escaped title", func() {
		var buf bytes.Buffer
		Expect(narrative.Export(&buf, report, "HTML")).To(Succeed())

		out := buf.String()
		Expect(out).To(HavePrefix("<!DOCTYPE html>"))
		Expect(out).To(ContainSubstring("<title>Widgets &amp; gadgets</title>"))
		Expect(out).To(ContainSubstring("<h1>Widgets</h1>"))
		Expect(out).To(ContainSubstring("<table>"))
	})

	It("rejects unknown formats", func() {
		var buf bytes.Buffer
		Expect(narrative.Export(&buf, report, "pdf")).To(MatchError(narrative.ErrUnknownFormat))
	})

	It("fails without a report", func() {
		var buf bytes.Buffer
		Expect(narrative.Export(&buf, nil, "markdown")).NotTo(Succeed())
	})

	It("takes the format from the file extension", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "report.html")
		Expect(narrative.ExportFile(path, report, "")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("<h1>Widgets</h1>"))

		Expect(narrative.FormatFromPath("out.md")).To(Equal(narrative.FormatMarkdown))
		Expect(narrative.FormatFromPath("OUT.HTM")).To(Equal(narrative.FormatHTML))
	})
})
