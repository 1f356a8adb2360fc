package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/landscape/pkg/session"
)

// run is one goroutine driving one session. Its result fields are written
// by the driver before done is closed and are only read after.
type run struct {
	sessionID string
	owner     string

	ctx    context.Context
	cancel context.CancelFunc

	pauseOnce sync.Once
	pause     chan struct{}
	done      chan struct{}

	// claimLost is set when another owner took the session's claim.
	claimLost atomic.Bool

	// checkpointID is set when the run suspended for a pause.
	checkpointID string

	// err is why the run stopped early, if it did.
	err error
}

func (r *run) requestPause() {
	r.pauseOnce.Do(func() {
		close(r.pause)
	})
}

func (r *run) pauseRequested() bool {
	select {
	case <-r.pause:
		return true
	default:
		return false
	}
}

// wait blocks until the run has stopped or ctx is done.
func (r *run) wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopErr is why a cancelled run stopped.
func (r *run) stopErr() error {
	if r.claimLost.Load() {
		return fmt.Errorf("%w: %w: %s", ErrAlreadyRunning, session.ErrClaimed, r.sessionID)
	}
	return r.ctx.Err()
}
