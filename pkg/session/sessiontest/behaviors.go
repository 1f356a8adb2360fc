// Package sessiontest holds conformance specs shared by session.Store
// implementations.
package sessiontest

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/landscape/pkg/session"
)

// StoreBehaviors registers the session.Store contract specs. newStore is
// called before each spec.
func StoreBehaviors(newStore func() session.Store) {
	var (
		store session.Store
		ctx   context.Context
		now   time.Time
	)

	BeforeEach(func() {
		store = nil
		store = newStore()
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	newSession := func(id string) *session.Session {
		return session.New(id, session.Inputs{Query: "q", Subjects: []string{"acme"}}, now)
	}

	Describe("Get", func() {
		It("returns ErrNotFound for unknown sessions", func() {
			_, err := store.Get(ctx, "missing")
			Expect(err).To(MatchError(session.ErrNotFound))
		})
	})

	Describe("Put", func() {
		It("creates at revision zero and advances the revision", func() {
			s := newSession("s-create")
			Expect(store.Put(ctx, s)).To(Succeed())
			Expect(s.Revision).To(Equal(int64(1)))

			got, err := store.Get(ctx, "s-create")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("s-create"))
			Expect(got.Phase).To(Equal(session.PhaseInit))
			Expect(got.Revision).To(Equal(int64(1)))
		})

		It("rejects a stale revision", func() {
			s := newSession("s-stale")
			Expect(store.Put(ctx, s)).To(Succeed())

			a, err := store.Get(ctx, "s-stale")
			Expect(err).NotTo(HaveOccurred())
			b, err := store.Get(ctx, "s-stale")
			Expect(err).NotTo(HaveOccurred())

			a.Paused = true
			Expect(store.Put(ctx, a)).To(Succeed())

			b.Phase = session.PhaseResearch
			err = store.Put(ctx, b)
			Expect(err).To(MatchError(session.ErrConcurrentWrite))
			Expect(b.Revision).To(Equal(int64(1)))

			got, err := store.Get(ctx, "s-stale")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Paused).To(BeTrue())
			Expect(got.Phase).To(Equal(session.PhaseInit))
		})

		It("rejects creating a session that already exists", func() {
			Expect(store.Put(ctx, newSession("s-dup"))).To(Succeed())
			err := store.Put(ctx, newSession("s-dup"))
			Expect(err).To(MatchError(session.ErrConcurrentWrite))
		})

		It("lets exactly one of many concurrent writers win", func() {
			Expect(store.Put(ctx, newSession("s-race"))).To(Succeed())

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					s := newSession("s-race")
					s.Revision = 1
					if err := store.Put(ctx, s); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					} else {
						Expect(err).To(MatchError(session.ErrConcurrentWrite))
					}
				}()
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
		})

		It("stores a copy, not the caller's pointer", func() {
			s := newSession("s-copy")
			Expect(store.Put(ctx, s)).To(Succeed())
			s.Inputs.Query = "mutated"

			got, err := store.Get(ctx, "s-copy")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Inputs.Query).To(Equal("q"))
		})
	})

	Describe("Delete", func() {
		It("removes the session", func() {
			Expect(store.Put(ctx, newSession("s-del"))).To(Succeed())
			Expect(store.Delete(ctx, "s-del")).To(Succeed())
			_, err := store.Get(ctx, "s-del")
			Expect(err).To(MatchError(session.ErrNotFound))
		})
	})

	Describe("Claim", func() {
		It("is exclusive across owners", func() {
			Expect(store.Claim(ctx, "s-claim", "owner-a")).To(Succeed())
			Expect(store.Claim(ctx, "s-claim", "owner-b")).To(MatchError(session.ErrClaimed))
		})

		It("is re-entrant for the same owner", func() {
			Expect(store.Claim(ctx, "s-reentrant", "owner-a")).To(Succeed())
			Expect(store.Claim(ctx, "s-reentrant", "owner-a")).To(Succeed())
		})

		It("can be taken again after release", func() {
			Expect(store.Claim(ctx, "s-release", "owner-a")).To(Succeed())
			Expect(store.Release(ctx, "s-release", "owner-a")).To(Succeed())
			Expect(store.Claim(ctx, "s-release", "owner-b")).To(Succeed())
		})

		It("refuses to release another owner's claim", func() {
			Expect(store.Claim(ctx, "s-foreign", "owner-a")).To(Succeed())
			Expect(store.Release(ctx, "s-foreign", "owner-b")).To(MatchError(session.ErrClaimed))
		})

		It("grants exactly one of many concurrent claims", func() {
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := range 8 {
				wg.Add(1)
				go func(owner int) {
					defer GinkgoRecover()
					defer wg.Done()
					if err := store.Claim(ctx, "s-contended", string(rune('a'+owner))); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
		})
	})
}
