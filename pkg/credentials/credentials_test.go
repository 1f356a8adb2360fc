package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("resolves credentials.toml in the override directory", func() {
		Expect(mgr.Path()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
	})

	It("returns empty credentials when no file exists", func() {
		creds, err := mgr.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(creds.Providers).To(BeEmpty())
	})

	It("loads an existing file", func() {
		data := "version = 0\n\n[providers.openai]\napi_key = \"sk-test-key\"\n"
		Expect(os.WriteFile(mgr.Path(), []byte(data), 0o600)).To(Succeed())

		key, err := mgr.GetKey("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-test-key"))
	})

	It("rejects malformed TOML", func() {
		Expect(os.WriteFile(mgr.Path(), []byte("not valid [[["), 0o600)).To(Succeed())

		_, err := mgr.Load()
		Expect(err).To(HaveOccurred())
	})

	It("stores keys with restricted permissions", func() {
		Expect(mgr.SetKey("anthropic", "  sk-ant  ")).To(Succeed())

		info, err := os.Stat(mgr.Path())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		key, err := mgr.GetKey("anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-ant"))
	})

	It("rejects unsupported providers and empty keys", func() {
		Expect(mgr.SetKey("ollama", "key")).To(MatchError(ContainSubstring("unsupported provider")))
		Expect(mgr.SetKey("openai", "  ")).To(MatchError(ContainSubstring("empty")))
	})

	It("lists and removes providers", func() {
		Expect(mgr.SetKey("openai", "a")).To(Succeed())
		Expect(mgr.SetKey("anthropic", "b")).To(Succeed())

		providers, err := mgr.ListProviders()
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(Equal([]string{"anthropic", "openai"}))

		Expect(mgr.RemoveKey("openai")).To(Succeed())
		Expect(mgr.RemoveKey("openai")).To(MatchError(ContainSubstring("no stored credentials")))

		providers, err = mgr.ListProviders()
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(Equal([]string{"anthropic"}))
	})

	Describe("Lookup", func() {
		It("prefers the environment over a stored key", func() {
			Expect(mgr.SetKey("openai", "stored")).To(Succeed())

			GinkgoT().Setenv("OPENAI_API_KEY", "from-env")
			key, err := mgr.Lookup("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("from-env"))

			GinkgoT().Setenv("OPENAI_API_KEY", "")
			key, err = mgr.Lookup("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("stored"))
		})

		It("returns empty for providers without keys", func() {
			key, err := mgr.Lookup("ollama")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})
})
