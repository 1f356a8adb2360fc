// Package testutils provides scripted collaborators for tests.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/landscape/pkg/research"
)

// MockInvoker is a research.Invoker with scripted failures and delays.
// It honours context cancellation.
type MockInvoker struct {
	// FailSubjects makes every call for the subject return the error.
	FailSubjects map[string]error

	// FailCapabilities makes every call of the capability return the error.
	FailCapabilities map[string]error

	// Delays holds a per-subject delay before the call returns.
	Delays map[string]time.Duration

	// Tags are attached to findings of the named capability.
	Tags map[string][]string

	// ObservedAt is attached to every finding when set.
	ObservedAt *time.Time

	// Gate, when non-nil, blocks every call until it is closed.
	Gate chan struct{}

	// Started receives the subject of every call as it begins, if non-nil.
	Started chan string

	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
}

// NewMockInvoker creates an invoker that succeeds for everything.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		FailSubjects:     map[string]error{},
		FailCapabilities: map[string]error{},
		Delays:           map[string]time.Duration{},
		Tags:             map[string][]string{},
	}
}

func (m *MockInvoker) Invoke(ctx context.Context, capability, subject string, _ map[string]any) (*research.Finding, error) {
	m.mu.Lock()
	m.calls = append(m.calls, capability+":"+subject)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.Started != nil {
		select {
		case m.Started <- subject:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if d := m.Delays[subject]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := m.FailSubjects[subject]; err != nil {
		return nil, err
	}
	if err := m.FailCapabilities[capability]; err != nil {
		return nil, err
	}

	return &research.Finding{
		Summary:    fmt.Sprintf("%s result for %s", capability, subject),
		Data:       map[string]any{"subject": subject},
		Tags:       m.Tags[capability],
		ObservedAt: m.ObservedAt,
	}, nil
}

// Calls returns the "capability:subject" pairs invoked so far.
func (m *MockInvoker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (m *MockInvoker) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}
