package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/dotdir"
)

var _ = Describe("dotdir.Manager last session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns nil when no session was recorded", func() {
		last, err := m.LoadLastSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(BeNil())
	})

	It("saves and loads the record", func() {
		started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		err := m.SaveLastSession(&dotdir.LastSession{
			SessionID: "s-1",
			APITarget: "http://localhost:8081",
			StartedAt: started,
		}, tmpDir)
		Expect(err).NotTo(HaveOccurred())

		last, err := m.LoadLastSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(last.SessionID).To(Equal("s-1"))
		Expect(last.APITarget).To(Equal("http://localhost:8081"))
		Expect(last.StartedAt.Equal(started)).To(BeTrue())
	})

	It("rejects an empty record", func() {
		Expect(m.SaveLastSession(&dotdir.LastSession{}, tmpDir)).NotTo(Succeed())
		Expect(m.SaveLastSession(nil, tmpDir)).NotTo(Succeed())
	})

	It("returns error for invalid JSON", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "last_session.json"), []byte("not json"), 0o600)
		Expect(err).NotTo(HaveOccurred())

		last, err := m.LoadLastSession(tmpDir)
		Expect(err).To(HaveOccurred())
		Expect(last).To(BeNil())
	})

	It("clears the record and tolerates clearing twice", func() {
		Expect(m.SaveLastSession(&dotdir.LastSession{SessionID: "s-1"}, tmpDir)).To(Succeed())
		Expect(m.ClearLastSession(tmpDir)).To(Succeed())
		Expect(m.ClearLastSession(tmpDir)).To(Succeed())

		last, err := m.LoadLastSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(BeNil())
	})
})
