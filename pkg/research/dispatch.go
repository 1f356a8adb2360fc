package research

import (
	"context"
	"errors"
)

// ErrHalted is returned by Enqueue when dispatch was halted for a pause.
var ErrHalted = errors.New("research dispatch halted")

// Dispatch runs every non-terminal task on a pool built from c and waits for
// all dispatched tasks to finish. Closing halt stops further dispatch without
// interrupting tasks already running; Dispatch then reports halted=true and
// the undispatched tasks stay PENDING. Tasks left RUNNING by an earlier,
// interrupted run are dispatched again.
//
// The returned error is non-nil only when ctx was cancelled.
func Dispatch(ctx context.Context, c Config, tasks []*Task, halt <-chan struct{}) (bool, error) {
	var pending []*Task
	for _, t := range tasks {
		if t.Status.Terminal() {
			continue
		}
		t.reset()
		pending = append(pending, t)
	}

	if len(pending) == 0 {
		return false, ctx.Err()
	}

	workers := c.NumWorkers
	if workers == 0 {
		workers = defaultNumWorkers
	}
	if n := uint(len(pending)); workers > n {
		workers = n
	}
	c.NumWorkers = workers

	pool, err := NewPool(&c)
	if err != nil {
		return false, err
	}

	halted := false
	for _, t := range pending {
		if isClosed(halt) {
			halted = true
			break
		}

		if err := pool.Enqueue(ctx, halt, t); err != nil {
			halted = errors.Is(err, ErrHalted)
			break
		}
	}

	pool.Close()
	return halted, ctx.Err()
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
