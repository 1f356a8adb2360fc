// Package eventstream publishes session milestones to an event stream so
// peer orchestrators can pick up shared research.
package eventstream

import "context"

// Publisher publishes session events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *SessionEvent) error
	Close() error
}
