// Package research runs the fan-out half of a session: one task per subject,
// each invoking a set of named capabilities, executed on a bounded worker pool
// and aggregated back into input subject order.
package research

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether a task in this status will not run again.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrorKind classifies a task failure.
type ErrorKind string

const (
	KindCapabilityFailure ErrorKind = "capability_failure"
	KindTimeout           ErrorKind = "timeout"
)

// TaskError records why a capability call or a whole task failed.
type TaskError struct {
	Kind       ErrorKind `json:"kind"`
	Capability string    `json:"capability,omitempty"`
	Message    string    `json:"message"`
}

func (e *TaskError) Error() string {
	if e.Capability == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Capability, e.Message)
}

// Finding is the opaque result of one capability call for one subject.
type Finding struct {
	Capability string         `json:"capability"`
	Summary    string         `json:"summary"`
	Data       map[string]any `json:"data,omitempty"`

	// Tags are topic labels the capability attached to the finding.
	Tags []string `json:"tags,omitempty"`

	// ObservedAt is when the underlying data was produced, if known.
	ObservedAt *time.Time `json:"observed_at,omitempty"`

	// Weight overrides the capability's configured compaction weight.
	Weight float64 `json:"weight,omitempty"`
}

// Invoker calls a named capability for a subject.
type Invoker interface {
	Invoke(ctx context.Context, capability, subject string, params map[string]any) (*Finding, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, capability, subject string, params map[string]any) (*Finding, error)

func (f InvokerFunc) Invoke(ctx context.Context, capability, subject string, params map[string]any) (*Finding, error) {
	return f(ctx, capability, subject, params)
}

// Task is the unit of research work for a single subject.
type Task struct {
	Subject      string   `json:"subject"`
	Capabilities []string `json:"capabilities"`
	Status       Status   `json:"status"`

	// Findings holds one entry per successful capability call, in
	// capability order.
	Findings []Finding `json:"findings,omitempty"`

	// Failures holds one entry per failed capability call.
	Failures []TaskError `json:"failures,omitempty"`

	// Error is set when the task as a whole failed.
	Error *TaskError `json:"error,omitempty"`
}

// NewTasks builds one pending task per subject, preserving subject order.
func NewTasks(subjects, capabilities []string) []*Task {
	tasks := make([]*Task, len(subjects))
	for i, subject := range subjects {
		caps := make([]string, len(capabilities))
		copy(caps, capabilities)
		tasks[i] = &Task{
			Subject:      subject,
			Capabilities: caps,
			Status:       StatusPending,
		}
	}
	return tasks
}

// reset returns a task to PENDING and clears partial progress.
func (t *Task) reset() {
	t.Status = StatusPending
	t.Findings = nil
	t.Failures = nil
	t.Error = nil
}

// Tags returns the de-duplicated topic tags across all findings, lower-cased,
// in first-seen order.
func (t *Task) Tags() []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, f := range t.Findings {
		for _, tag := range f.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}
