package authcmder_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	authcmder "github.com/papercomputeco/landscape/cmd/landscape/auth"
	"github.com/papercomputeco/landscape/pkg/credentials"
)

var _ = Describe("auth command", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	execute := func(stdin string, args ...string) error {
		cmd := authcmder.NewAuthCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	stored := func(provider string) string {
		mgr, err := credentials.NewManager(dir)
		Expect(err).NotTo(HaveOccurred())
		key, err := mgr.GetKey(provider)
		Expect(err).NotTo(HaveOccurred())
		return key
	}

	It("stores a piped key", func() {
		Expect(execute("sk-ant-123\n", "anthropic")).To(Succeed())
		Expect(stored("anthropic")).To(Equal("sk-ant-123"))
		Expect(out.String()).To(ContainSubstring("Stored"))
	})

	It("normalizes the provider name", func() {
		Expect(execute("sk-1\n", " OpenAI ")).To(Succeed())
		Expect(stored("openai")).To(Equal("sk-1"))
	})

	It("rejects unsupported providers", func() {
		Expect(execute("key\n", "ollama")).To(MatchError(ContainSubstring("unsupported provider")))
	})

	It("rejects empty input", func() {
		Expect(execute("", "openai")).To(MatchError(ContainSubstring("no input")))
		Expect(execute("   \n", "openai")).To(MatchError(ContainSubstring("empty")))
	})

	It("requires a provider", func() {
		Expect(execute("")).To(MatchError(ContainSubstring("provider argument required")))
	})

	It("lists and removes stored keys", func() {
		Expect(execute("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No stored credentials"))

		Expect(execute("sk-1\n", "openai")).To(Succeed())
		out.Reset()
		Expect(execute("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("openai"))
		Expect(out.String()).To(ContainSubstring("OPENAI_API_KEY"))

		Expect(execute("", "--remove", "openai")).To(Succeed())
		Expect(stored("openai")).To(BeEmpty())
		Expect(execute("", "--remove", "openai")).To(MatchError(ContainSubstring("no stored credentials")))
	})
})
