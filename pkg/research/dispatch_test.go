package research_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/goleak"

	"github.com/papercomputeco/landscape/pkg/research"
	testutils "github.com/papercomputeco/landscape/pkg/utils/test"
)

var subjects = []string{"acme", "globex", "initech", "umbrella", "hooli"}

func statuses(tasks []*research.Task) []research.Status {
	out := make([]research.Status, len(tasks))
	for i, t := range tasks {
		out[i] = t.Status
	}
	return out
}

var _ = Describe("Dispatch", func() {
	var (
		ctx     context.Context
		invoker *testutils.MockInvoker
		cfg     research.Config
		ignore  goleak.Option
	)

	BeforeEach(func() {
		ignore = goleak.IgnoreCurrent()
		ctx = context.Background()
		invoker = testutils.NewMockInvoker()
		cfg = research.Config{
			Invoker:     invoker,
			NumWorkers:  2,
			TaskTimeout: 2 * time.Second,
		}
	})

	AfterEach(func() {
		Expect(goleak.Find(ignore)).To(Succeed())
	})

	It("runs every task and records partial success", func() {
		invoker.FailSubjects["globex"] = errors.New("upstream 500")
		invoker.FailSubjects["hooli"] = errors.New("upstream 503")

		tasks := research.NewTasks(subjects, []string{"search", "regulatory"})
		halted, err := research.Dispatch(ctx, cfg, tasks, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(halted).To(BeFalse())

		out := research.Aggregate(tasks)
		Expect(out.Requested).To(Equal(5))
		Expect(out.Succeeded).To(Equal(3))
		Expect(out.Failed).To(Equal(2))
		Expect(out.Partial).To(BeTrue())
		Expect(statuses(out.Tasks)).To(Equal([]research.Status{
			research.StatusSucceeded,
			research.StatusFailed,
			research.StatusSucceeded,
			research.StatusSucceeded,
			research.StatusFailed,
		}))

		failed := out.Lookup("globex")
		Expect(failed.Error.Kind).To(Equal(research.KindCapabilityFailure))
		Expect(failed.Failures).To(HaveLen(2))
		Expect(failed.Failures[0].Message).To(Equal("upstream 500"))
	})

	It("never runs more tasks than the configured worker count", func() {
		for _, s := range subjects {
			invoker.Delays[s] = 20 * time.Millisecond
		}

		tasks := research.NewTasks(subjects, []string{"search"})
		_, err := research.Dispatch(ctx, cfg, tasks, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(invoker.MaxInFlight()).To(BeNumerically("<=", 2))
		Expect(invoker.Calls()).To(HaveLen(5))
	})

	It("keeps input order regardless of completion order", func() {
		run := func(delays map[string]time.Duration) []byte {
			inv := testutils.NewMockInvoker()
			inv.FailSubjects["initech"] = errors.New("not found")
			inv.Delays = delays

			c := cfg
			c.Invoker = inv
			c.NumWorkers = 5

			tasks := research.NewTasks(subjects, []string{"search"})
			_, err := research.Dispatch(ctx, c, tasks, nil)
			Expect(err).NotTo(HaveOccurred())

			data, err := json.Marshal(research.Aggregate(tasks))
			Expect(err).NotTo(HaveOccurred())
			return data
		}

		forward := run(map[string]time.Duration{
			"acme": 5 * time.Millisecond, "globex": 10 * time.Millisecond, "initech": 15 * time.Millisecond,
			"umbrella": 20 * time.Millisecond, "hooli": 25 * time.Millisecond,
		})
		backward := run(map[string]time.Duration{
			"acme": 25 * time.Millisecond, "globex": 20 * time.Millisecond, "initech": 15 * time.Millisecond,
			"umbrella": 10 * time.Millisecond, "hooli": 5 * time.Millisecond,
		})

		Expect(backward).To(Equal(forward))
	})

	It("fails a slow task with a timeout without affecting its siblings", func() {
		invoker.Delays["umbrella"] = time.Second
		cfg.TaskTimeout = 30 * time.Millisecond

		tasks := research.NewTasks(subjects, []string{"search"})
		_, err := research.Dispatch(ctx, cfg, tasks, nil)
		Expect(err).NotTo(HaveOccurred())

		out := research.Aggregate(tasks)
		slow := out.Lookup("umbrella")
		Expect(slow.Status).To(Equal(research.StatusFailed))
		Expect(slow.Error.Kind).To(Equal(research.KindTimeout))
		Expect(out.Succeeded).To(Equal(4))
	})

	It("marks a task succeeded when only some capabilities fail", func() {
		invoker.FailCapabilities["trials"] = errors.New("registry offline")

		tasks := research.NewTasks([]string{"acme"}, []string{"search", "trials"})
		_, err := research.Dispatch(ctx, cfg, tasks, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(tasks[0].Status).To(Equal(research.StatusSucceeded))
		Expect(tasks[0].Findings).To(HaveLen(1))
		Expect(tasks[0].Findings[0].Capability).To(Equal("search"))
		Expect(tasks[0].Failures).To(HaveLen(1))

		requested, succeeded := research.Aggregate(tasks).Invocations()
		Expect(requested).To(Equal(2))
		Expect(succeeded).To(Equal(1))
	})

	It("skips tasks that already finished", func() {
		tasks := research.NewTasks([]string{"acme", "globex"}, []string{"search"})
		tasks[0].Status = research.StatusSucceeded
		tasks[0].Findings = []research.Finding{{Capability: "search", Summary: "kept"}}

		_, err := research.Dispatch(ctx, cfg, tasks, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(invoker.Calls()).To(Equal([]string{"search:globex"}))
		Expect(tasks[0].Findings[0].Summary).To(Equal("kept"))
	})

	Context("when halted", func() {
		It("dispatches nothing if halted up front", func() {
			halt := make(chan struct{})
			close(halt)

			tasks := research.NewTasks(subjects, []string{"search"})
			halted, err := research.Dispatch(ctx, cfg, tasks, halt)
			Expect(err).NotTo(HaveOccurred())
			Expect(halted).To(BeTrue())
			Expect(invoker.Calls()).To(BeEmpty())
			Expect(research.Aggregate(tasks).Pending).To(Equal(5))
		})

		It("lets in-flight tasks finish and leaves the rest pending", func() {
			invoker.Gate = make(chan struct{})
			invoker.Started = make(chan string, len(subjects))
			cfg.NumWorkers = 1
			halt := make(chan struct{})

			tasks := research.NewTasks(subjects, []string{"search"})
			done := make(chan bool)
			go func() {
				defer GinkgoRecover()
				halted, err := research.Dispatch(ctx, cfg, tasks, halt)
				Expect(err).NotTo(HaveOccurred())
				done <- halted
			}()

			Eventually(invoker.Started).Should(Receive(Equal("acme")))
			close(halt)
			// give the dispatcher time to observe the halt before the
			// worker frees up
			time.Sleep(50 * time.Millisecond)
			close(invoker.Gate)

			Eventually(done).Should(Receive(BeTrue()))
			Expect(tasks[0].Status).To(Equal(research.StatusSucceeded))
			for _, t := range tasks[1:] {
				Expect(t.Status).To(Equal(research.StatusPending))
			}
		})
	})

	It("returns tasks to pending when the context is cancelled", func() {
		invoker.Gate = make(chan struct{})
		invoker.Started = make(chan string, len(subjects))
		cctx, cancel := context.WithCancel(ctx)

		tasks := research.NewTasks(subjects, []string{"search"})
		done := make(chan error)
		go func() {
			_, err := research.Dispatch(cctx, cfg, tasks, nil)
			done <- err
		}()

		Eventually(invoker.Started).Should(Receive())
		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		for _, t := range tasks {
			Expect(t.Status).To(Equal(research.StatusPending))
		}
	})
})

var _ = Describe("Output", func() {
	It("flattens successful findings into weighted fragments", func() {
		observed := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		tasks := []*research.Task{
			{Subject: "acme", Status: research.StatusSucceeded, Findings: []research.Finding{
				{Capability: "search", Summary: "launched X", ObservedAt: &observed},
				{Capability: "trials", Summary: "phase 3", Weight: 4},
			}},
			{Subject: "globex", Status: research.StatusFailed},
		}

		frags := research.Aggregate(tasks).Fragments(map[string]float64{"search": 2})
		Expect(frags).To(HaveLen(2))
		Expect(frags[0].Text).To(Equal("acme (search): launched X"))
		Expect(frags[0].Weight).To(Equal(2.0))
		Expect(frags[0].Timestamp).To(Equal(observed))
		Expect(frags[1].Weight).To(Equal(4.0))
	})

	It("collects normalized tags", func() {
		t := &research.Task{Findings: []research.Finding{
			{Tags: []string{"Pricing", "trials"}},
			{Tags: []string{"pricing ", ""}},
		}}
		Expect(t.Tags()).To(Equal([]string{"pricing", "trials"}))
	})
})
