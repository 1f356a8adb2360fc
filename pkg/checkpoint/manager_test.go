package checkpoint_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
	"github.com/papercomputeco/landscape/pkg/storage/inmemory"
)

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		now     time.Time
		manager *checkpoint.Manager
		s       *session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		manager = checkpoint.NewManager(inmemory.NewDriver(), checkpoint.WithClock(func() time.Time { return now }))

		s = session.New("s-1", session.Inputs{Query: "q", Subjects: []string{"acme", "globex"}}, now)
		Expect(s.Transition(session.PhaseResearch, now)).To(Succeed())
		s.Outputs.Research = research.Aggregate(research.NewTasks(s.Inputs.Subjects, []string{"search"}))
	})

	It("round-trips a session", func() {
		id, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		loaded, err := manager.Load(ctx, "s-1", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(s))
	})

	It("snapshots a deep copy", func() {
		_, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		s.Outputs.Research.Tasks[0].Status = research.StatusFailed
		Expect(s.Transition(session.PhaseAnalysis, now)).To(Succeed())

		loaded, err := manager.Load(ctx, "s-1", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Phase).To(Equal(session.PhaseResearch))
		Expect(loaded.Outputs.Research.Tasks[0].Status).To(Equal(research.StatusPending))
	})

	It("loads the latest unless an id is given", func() {
		first, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		s.Paused = true
		second, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		latest, err := manager.Load(ctx, "s-1", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.Paused).To(BeTrue())

		older, err := manager.Load(ctx, "s-1", first)
		Expect(err).NotTo(HaveOccurred())
		Expect(older.Paused).To(BeFalse())

		cps, err := manager.List(ctx, "s-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(cps).To(HaveLen(2))
		Expect(cps[0].ID).To(Equal(first))
		Expect(cps[0].Reason).To(Equal("phase:RESEARCH"))
		Expect(cps[1].ID).To(Equal(second))
		Expect(cps[1].Reason).To(Equal(checkpoint.ReasonPause))
		Expect(cps[1].CreatedAt).To(Equal(now))
	})

	It("records why a checkpoint was taken", func() {
		Expect(s.Fail(session.KindAbandoned, errors.New("abandoned by caller"), now)).To(Succeed())
		_, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		cp, err := manager.Get(ctx, "s-1", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.Reason).To(Equal(checkpoint.ReasonAbandon))
	})

	It("reports a session without checkpoints as not found", func() {
		_, err := manager.Load(ctx, "missing", "")
		Expect(err).To(MatchError(session.ErrNotFound))
	})

	It("reports an unknown checkpoint id", func() {
		_, err := manager.Save(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Load(ctx, "s-1", "nope")
		Expect(err).To(MatchError(checkpoint.ErrNotFound))
	})
})
