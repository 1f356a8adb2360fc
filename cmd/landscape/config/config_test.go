package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/landscape/cmd/landscape/config"
	"github.com/papercomputeco/landscape/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "landscape-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .landscape dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".landscape"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	execute := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	loadConfig := func() *config.Config {
		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".landscape"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(execute("set", "narrative.provider", "anthropic")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, ".landscape", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loadConfig().Narrative.Provider).To(Equal("anthropic"))
		})

		It("sets capability endpoints and weights", func() {
			Expect(execute("set", "capabilities.search.endpoint", "http://localhost:9000/search")).To(Succeed())
			Expect(execute("set", "capabilities.search.weight", "2.5")).To(Succeed())

			cfg := loadConfig()
			Expect(cfg.Capabilities).To(HaveKeyWithValue("search", config.CapabilityConfig{
				Endpoint: "http://localhost:9000/search",
				Weight:   2.5,
			}))
		})

		It("splits list values", func() {
			Expect(execute("set", "research.capabilities", "search, regulatory")).To(Succeed())
			Expect(loadConfig().Research.Capabilities).To(Equal([]string{"search", "regulatory"}))
		})

		It("rejects unknown keys", func() {
			Expect(execute("set", "invalid_key", "value")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(execute("set", "narrative.provider")).To(HaveOccurred())
			Expect(execute("set")).To(HaveOccurred())
		})

		It("rejects invalid numeric values", func() {
			Expect(execute("set", "research.max_concurrency", "not-a-number")).To(HaveOccurred())
			Expect(execute("set", "compaction.budget", "-5")).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			Expect(execute("set", "research.task_timeout", "soon")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		getRaw := func(keys ...string) string {
			var out bytes.Buffer
			cmd := configcmder.NewConfigCmd()
			cmd.SetOut(&out)
			cmd.SetArgs(append([]string{"get", "--raw"}, keys...))
			Expect(cmd.Execute()).To(Succeed())
			return out.String()
		}

		It("prints a previously set value", func() {
			Expect(execute("set", "narrative.provider", "anthropic")).To(Succeed())
			Expect(getRaw("narrative.provider")).To(Equal("anthropic\n"))
		})

		It("prints several values in order", func() {
			Expect(execute("set", "research.max_concurrency", "6")).To(Succeed())
			Expect(execute("set", "narrative.model", "claude-test")).To(Succeed())
			Expect(getRaw("narrative.model", "research.max_concurrency")).To(Equal("claude-test\n6\n"))
		})

		It("prints an empty line for unset keys", func() {
			Expect(getRaw("peer.agent_id")).To(Equal("\n"))
		})

		It("runs with styled output", func() {
			Expect(execute("get", "peer.agent_id")).To(Succeed())
		})

		It("rejects unknown keys", func() {
			Expect(execute("get", "narrative.provider", "invalid_key")).To(MatchError(ContainSubstring("invalid_key")))
		})

		It("requires a key", func() {
			Expect(execute("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("runs without error when no config exists", func() {
			Expect(execute("list")).To(Succeed())
		})

		It("runs without error when config has values", func() {
			Expect(execute("set", "capabilities.search.endpoint", "http://localhost:9000")).To(Succeed())
			Expect(execute("list")).To(Succeed())
		})

		It("rejects any arguments", func() {
			Expect(execute("list", "extra")).To(HaveOccurred())
		})
	})
})
