package landscapecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	landscapecmder "github.com/papercomputeco/landscape/cmd/landscape"
)

var _ = Describe("NewLandscapeCmd", func() {
	It("registers every subcommand", func() {
		cmd := landscapecmder.NewLandscapeCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"serve", "run", "monitor", "start", "status", "pause", "resume", "abandon",
			"history", "auth", "config", "init", "version",
		))
	})

	It("carries the global flags", func() {
		cmd := landscapecmder.NewLandscapeCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	DescribeTable("registry flags on serve",
		func(name string) {
			cmd := landscapecmder.NewLandscapeCmd()
			serve, _, err := cmd.Find([]string{"serve"})
			Expect(err).NotTo(HaveOccurred())
			Expect(serve.Flags().Lookup(name)).NotTo(BeNil())
		},
		Entry("listen", "listen"),
		Entry("storage", "storage"),
		Entry("sqlite", "sqlite"),
		Entry("session store", "session-store"),
		Entry("publisher", "publisher"),
		Entry("max concurrency", "max-concurrency"),
	)

	It("defaults the listen flag from config defaults", func() {
		cmd := landscapecmder.NewLandscapeCmd()
		serve, _, err := cmd.Find([]string{"serve"})
		Expect(err).NotTo(HaveOccurred())
		Expect(serve.Flags().Lookup("listen").DefValue).To(Equal(":8081"))
	})
})
