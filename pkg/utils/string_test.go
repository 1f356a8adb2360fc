package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	DescribeTable("shortening",
		func(in string, maxLen int, want string) {
			Expect(Truncate(in, maxLen)).To(Equal(want))
		},
		Entry("under the limit", "acme", 10, "acme"),
		Entry("at the limit", "12345", 5, "12345"),
		Entry("over the limit", "payments platform for banks", 12, "payments ..."),
		Entry("multi-byte runes", "zürich fintech", 7, "züri..."),
		Entry("newlines folded", "line one\nline two", 40, "line one line two"),
		Entry("tiny limit", "globex", 2, "gl"),
	)
})
