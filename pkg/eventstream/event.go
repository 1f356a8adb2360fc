package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/landscape/pkg/peer"
	"github.com/papercomputeco/landscape/pkg/session"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePhaseCompleted is emitted when a session finishes a phase
	// and moves on to the next one.
	EventTypePhaseCompleted = "landscape.session.phase_completed"

	// EventTypeSessionFinished is emitted when a session reaches DONE.
	EventTypeSessionFinished = "landscape.session.finished"

	// EventTypeSessionFailed is emitted when a session reaches FAILED.
	EventTypeSessionFailed = "landscape.session.failed"
)

// SessionEvent is a transport-neutral event payload describing a session
// milestone. Envelope carries the session's shareable state so a peer
// orchestrator can merge it.
type SessionEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	SessionID     string         `json:"session_id"`
	Phase         session.Phase  `json:"phase"`
	Envelope      *peer.Envelope `json:"envelope,omitempty"`
}

// EventSource identifies the orchestrator that emitted the event.
type EventSource struct {
	AgentID string `json:"agent_id"`
}

// NewSessionEvent builds a v1 event of eventType for envelope.
func NewSessionEvent(eventType string, env *peer.Envelope, now time.Time) *SessionEvent {
	return &SessionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        EventSource{AgentID: env.SenderID},
		SessionID:     env.SessionID,
		Phase:         env.Phase,
		Envelope:      env,
	}
}
