package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/utils"
)

var (
	defaultNumWorkers  uint = 4
	defaultTaskTimeout      = 60 * time.Second
)

// Config is the configuration for a research worker pool.
type Config struct {
	// Invoker executes capability calls.
	Invoker Invoker

	// NumWorkers bounds how many tasks run at once.
	NumWorkers uint

	// TaskTimeout bounds a single task across all of its capability calls.
	TaskTimeout time.Duration

	// Params are passed to every capability call.
	Params map[string]any

	// CapabilityParams are merged over Params for the named capability.
	CapabilityParams map[string]map[string]any

	Logger *slog.Logger
}

type job struct {
	ctx  context.Context
	task *Task
}

// Pool runs research tasks on a fixed number of workers.
//
// The queue is unbuffered: Enqueue only returns once a worker has taken the
// task, so the caller regains control exactly at task boundaries.
type Pool struct {
	config *Config
	queue  chan job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Invoker == nil {
		return nil, errors.New("research pool requires an invoker")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaultTaskTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan job),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue hands task to the next free worker. It blocks until a worker
// accepts the task, ctx is done, or halt is closed.
func (p *Pool) Enqueue(ctx context.Context, halt <-chan struct{}, task *Task) error {
	select {
	case p.queue <- job{ctx: ctx, task: task}:
		p.logger.Debug("research task dispatched", "subject", task.Subject)
		return nil
	case <-halt:
		return ErrHalted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("research worker started", "worker_id", id)

	for j := range p.queue {
		p.runTask(j.ctx, j.task)
	}

	p.logger.Debug("research worker stopped", "worker_id", id)
}

// runTask calls every requested capability for the task in order. The task
// fails when its timeout expires or when no capability succeeds. If the
// parent context is cancelled the task is returned to PENDING.
func (p *Pool) runTask(ctx context.Context, task *Task) {
	task.reset()
	task.Status = StatusRunning
	start := time.Now()

	if len(task.Capabilities) == 0 {
		task.Status = StatusFailed
		task.Error = &TaskError{Kind: KindCapabilityFailure, Message: "no capabilities requested"}
		return
	}

	tctx, cancel := context.WithTimeout(ctx, p.config.TaskTimeout)
	defer cancel()

	for _, name := range task.Capabilities {
		params := p.params(name)
		finding, err := utils.Await(tctx, func(c context.Context) (*Finding, error) {
			return p.config.Invoker.Invoke(c, name, task.Subject, params)
		})

		if ctx.Err() != nil {
			task.reset()
			return
		}

		if timedOut(tctx, err) {
			task.Status = StatusFailed
			task.Error = &TaskError{
				Kind:       KindTimeout,
				Capability: name,
				Message:    fmt.Sprintf("task exceeded %s", p.config.TaskTimeout),
			}
			p.logger.Warn("research task timed out",
				"subject", task.Subject,
				"capability", name,
				"timeout", p.config.TaskTimeout,
			)
			return
		}

		if err != nil {
			task.Failures = append(task.Failures, TaskError{
				Kind:       KindCapabilityFailure,
				Capability: name,
				Message:    err.Error(),
			})
			p.logger.Warn("capability failed",
				"subject", task.Subject,
				"capability", name,
				"error", err,
			)
			continue
		}

		if finding == nil {
			finding = &Finding{}
		}
		if finding.Capability == "" {
			finding.Capability = name
		}
		task.Findings = append(task.Findings, *finding)
	}

	if len(task.Findings) == 0 {
		task.Status = StatusFailed
		task.Error = &TaskError{
			Kind:    KindCapabilityFailure,
			Message: fmt.Sprintf("all %d capabilities failed", len(task.Capabilities)),
		}
	} else {
		task.Status = StatusSucceeded
	}

	p.logger.Info("research task finished",
		"subject", task.Subject,
		"status", task.Status,
		"findings", len(task.Findings),
		"duration", time.Since(start),
	)
}

// timedOut reports whether a call that returned err was cut short by the
// task deadline. A call that returned a result keeps it even when the
// deadline passed as it returned.
func timedOut(tctx context.Context, err error) bool {
	return err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded)
}

func (p *Pool) params(capability string) map[string]any {
	out := make(map[string]any, len(p.config.Params))
	maps.Copy(out, p.config.Params)
	maps.Copy(out, p.config.CapabilityParams[capability])
	return out
}
