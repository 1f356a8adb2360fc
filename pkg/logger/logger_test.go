package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/logger"
)

// decode parses the single JSON record in buf.
func decode(buf *bytes.Buffer) map[string]any {
	var rec map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec)).To(Succeed())
	return rec
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

var _ = Describe("New", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes text records by default", func() {
		logger.New(logger.WithWriter(buf)).Info("session started", "session_id", "s-1")

		Expect(buf.String()).To(ContainSubstring("session started"))
		Expect(buf.String()).To(ContainSubstring("session_id=s-1"))
	})

	It("writes JSON records", func() {
		logger.New(logger.WithWriter(buf), logger.WithFormat(logger.FormatJSON)).Info("phase completed", "tasks", 3)

		rec := decode(buf)
		Expect(rec["msg"]).To(Equal("phase completed"))
		Expect(rec["tasks"]).To(BeNumerically("==", 3))
	})

	It("writes pretty records", func() {
		logger.New(logger.WithWriter(buf), logger.WithFormat(logger.FormatPretty)).Info("coordinator ready")
		Expect(buf.String()).To(ContainSubstring("coordinator ready"))
	})

	DescribeTable("level filtering",
		func(opts []logger.Option, debugShown bool) {
			l := logger.New(append(opts, logger.WithWriter(buf))...)
			l.Debug("noisy")
			Expect(strings.Contains(buf.String(), "noisy")).To(Equal(debugShown))
		},
		Entry("info by default", []logger.Option{}, false),
		Entry("debug flag", []logger.Option{logger.WithDebug(true)}, true),
		Entry("debug flag off", []logger.Option{logger.WithDebug(false)}, false),
		Entry("explicit level", []logger.Option{logger.WithLevel(slog.LevelDebug)}, true),
		Entry("pretty at debug", []logger.Option{logger.WithFormat(logger.FormatPretty), logger.WithDebug(true)}, true),
		Entry("pretty at warn", []logger.Option{logger.WithFormat(logger.FormatPretty), logger.WithLevel(slog.LevelWarn)}, false),
	)

	It("tags records with the component", func() {
		logger.New(logger.WithWriter(buf), logger.WithFormat(logger.FormatJSON), logger.WithComponent("serve")).Info("listening")
		Expect(decode(buf)["component"]).To(Equal("serve"))
	})

	It("copies records to every writer", func() {
		other := &bytes.Buffer{}
		logger.New(logger.WithWriters(buf, other)).Info("copied")

		Expect(buf.String()).To(ContainSubstring("copied"))
		Expect(other.String()).To(ContainSubstring("copied"))
	})
})

var _ = Describe("ParseFormat", func() {
	DescribeTable("accepted values",
		func(in string, want logger.Format) {
			got, err := logger.ParseFormat(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", logger.FormatText),
		Entry("text", "text", logger.FormatText),
		Entry("json upper case", " JSON ", logger.FormatJSON),
		Entry("pretty", "pretty", logger.FormatPretty),
	)

	It("rejects unknown formats", func() {
		_, err := logger.ParseFormat("xml")
		Expect(err).To(MatchError(ContainSubstring(`unknown log format "xml"`)))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Handler().Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() { l.With("k", "v").WithGroup("g").Error("dropped") }).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	var console, file *bytes.Buffer

	BeforeEach(func() {
		console = &bytes.Buffer{}
		file = &bytes.Buffer{}
	})

	It("sends records to each logger at its own level", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(console)),
			logger.New(logger.WithWriter(file), logger.WithFormat(logger.FormatJSON), logger.WithDebug(true)),
		)
		l.Debug("detail")
		l.Info("summary")

		Expect(console.String()).NotTo(ContainSubstring("detail"))
		Expect(console.String()).To(ContainSubstring("summary"))
		Expect(file.String()).To(ContainSubstring("detail"))
		Expect(file.String()).To(ContainSubstring("summary"))
	})

	It("carries attributes and groups to every logger", func() {
		l := logger.Multi(logger.New(logger.WithWriter(file), logger.WithFormat(logger.FormatJSON)))
		l.With("session_id", "s-9").WithGroup("task").Info("dispatched", "subject", "acme")

		rec := decode(file)
		Expect(rec["session_id"]).To(Equal("s-9"))
		Expect(rec["task"]).To(HaveKeyWithValue("subject", "acme"))
	})

	It("keeps writing after a failing handler", func() {
		broken := slog.New(failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)})
		l := logger.Multi(broken, logger.New(logger.WithWriter(console)))

		err := l.Handler().Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "still here", 0))
		Expect(err).To(MatchError("sink down"))
		Expect(console.String()).To(ContainSubstring("still here"))
	})
})
