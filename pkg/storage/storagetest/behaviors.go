// Package storagetest holds conformance specs shared by storage drivers.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
	"github.com/papercomputeco/landscape/pkg/storage"
)

// DriverBehaviors registers the storage.Driver contract specs. newDriver is
// called before each spec. Ids and keys are unique per spec so drivers
// backed by a shared database can run them repeatedly.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		now    time.Time
		id     string
	)

	BeforeEach(func() {
		driver = nil
		driver = newDriver()
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		id = uuid.NewString()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	newCheckpoint := func(sessionID, reason string) *checkpoint.Checkpoint {
		s := session.New(sessionID, session.Inputs{Query: "q", Subjects: []string{"acme"}}, now)
		s.Phase = session.PhaseResearch
		s.Outputs.Research = research.Aggregate(research.NewTasks([]string{"acme"}, []string{"search"}))
		return &checkpoint.Checkpoint{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			CreatedAt: now,
			Reason:    reason,
			Session:   *s,
		}
	}

	Describe("checkpoints", func() {
		It("round-trips a snapshot", func() {
			cp := newCheckpoint(id, "pause")
			Expect(driver.SaveCheckpoint(ctx, cp)).To(Succeed())
			Expect(cp.Seq).To(BeNumerically(">", 0))

			got, err := driver.GetCheckpoint(ctx, id, cp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Seq).To(Equal(cp.Seq))
			Expect(got.Reason).To(Equal("pause"))
			Expect(got.CreatedAt.Equal(now)).To(BeTrue())
			Expect(got.Session.Phase).To(Equal(session.PhaseResearch))
			Expect(got.Session.Outputs.Research.Tasks).To(HaveLen(1))
			Expect(got.Session.Outputs.Research.Tasks[0].Subject).To(Equal("acme"))
		})

		It("orders checkpoints by write order", func() {
			first := newCheckpoint(id, "phase:RESEARCH")
			second := newCheckpoint(id, "pause")
			Expect(driver.SaveCheckpoint(ctx, first)).To(Succeed())
			Expect(driver.SaveCheckpoint(ctx, second)).To(Succeed())
			Expect(second.Seq).To(BeNumerically(">", first.Seq))

			latest, err := driver.LatestCheckpoint(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal(second.ID))

			all, err := driver.ListCheckpoints(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].ID).To(Equal(first.ID))
			Expect(all[1].ID).To(Equal(second.ID))
		})

		It("keeps sessions apart", func() {
			other := uuid.NewString()
			cp := newCheckpoint(other, "pause")
			Expect(driver.SaveCheckpoint(ctx, cp)).To(Succeed())

			_, err := driver.GetCheckpoint(ctx, id, cp.ID)
			Expect(err).To(MatchError(checkpoint.ErrNotFound))

			all, err := driver.ListCheckpoints(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns ErrNotFound for a session without checkpoints", func() {
			_, err := driver.LatestCheckpoint(ctx, id)
			Expect(err).To(MatchError(checkpoint.ErrNotFound))
		})

		It("does not share memory with the caller", func() {
			cp := newCheckpoint(id, "pause")
			Expect(driver.SaveCheckpoint(ctx, cp)).To(Succeed())
			cp.Session.Phase = session.PhaseFailed
			cp.Session.Outputs.Research.Tasks[0].Status = research.StatusFailed

			got, err := driver.GetCheckpoint(ctx, id, cp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Session.Phase).To(Equal(session.PhaseResearch))
			Expect(got.Session.Outputs.Research.Tasks[0].Status).To(Equal(research.StatusPending))
		})
	})

	Describe("profiles", func() {
		It("returns ErrNotFound for unknown subjects", func() {
			_, err := driver.GetProfile(ctx, id)
			Expect(err).To(MatchError(memory.ErrNotFound))
		})

		It("merges fields, last write wins per field", func() {
			Expect(driver.UpsertProfile(ctx, id, map[string]any{"name": "Acme", "stage": "seed"}, now)).To(Succeed())
			later := now.Add(time.Hour)
			Expect(driver.UpsertProfile(ctx, id, map[string]any{"stage": "series a", "tags": []string{"pricing"}}, later)).To(Succeed())

			p, err := driver.GetProfile(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SubjectKey).To(Equal(id))
			Expect(p.Fields).To(HaveKeyWithValue("name", "Acme"))
			Expect(p.Fields).To(HaveKeyWithValue("stage", "series a"))
			Expect(p.Fields).To(HaveKeyWithValue("tags", []any{"pricing"}))
			Expect(p.UpdatedAt.Equal(later)).To(BeTrue())
		})

		It("is safe under concurrent upserts to one subject", func() {
			var wg sync.WaitGroup
			for i := range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(driver.UpsertProfile(ctx, id, map[string]any{"writer": float64(i), "shared": "x"}, now)).To(Succeed())
				}()
			}
			wg.Wait()

			p, err := driver.GetProfile(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Fields).To(HaveKey("writer"))
			Expect(p.Fields).To(HaveKeyWithValue("shared", "x"))
		})
	})

	Describe("history", func() {
		appendAt := func(summary string, at time.Time) *memory.HistoryEntry {
			e := &memory.HistoryEntry{
				SubjectKey: id,
				SessionID:  "s-" + summary,
				RecordedAt: at,
				Summary:    summary,
				Data:       map[string]any{"findings": float64(1)},
			}
			Expect(driver.AppendHistory(ctx, e)).To(Succeed())
			return e
		}

		It("returns entries most recent first", func() {
			a := appendAt("first", now)
			b := appendAt("second", now.Add(time.Minute))
			Expect(b.Seq).To(BeNumerically(">", a.Seq))

			entries, err := driver.QueryHistory(ctx, id, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Summary).To(Equal("second"))
			Expect(entries[1].Summary).To(Equal("first"))
			Expect(entries[1].Data).To(HaveKeyWithValue("findings", float64(1)))
			Expect(entries[1].RecordedAt.Equal(now)).To(BeTrue())
		})

		It("honors limit and since", func() {
			appendAt("old", now.Add(-48*time.Hour))
			appendAt("recent", now)
			appendAt("newest", now.Add(time.Hour))

			limited, err := driver.QueryHistory(ctx, id, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(1))
			Expect(limited[0].Summary).To(Equal("newest"))

			since := now.Add(-time.Hour)
			recent, err := driver.QueryHistory(ctx, id, 0, &since)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(2))
			Expect(recent[1].Summary).To(Equal("recent"))
		})

		It("returns nothing for unknown subjects", func() {
			entries, err := driver.QueryHistory(ctx, id, 10, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
}
