package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants for published thread events.
const (
	EventTypeThreadCreated    = "thread.created"
	EventTypeStepCompleted    = "thread.step_completed"
	EventTypeAwaitingHuman    = "thread.awaiting_human"
	EventTypeDecisionRecorded = "thread.decision_recorded"
	EventTypeThreadFinished   = "thread.finished"
)

// EventFields holds the StepContext fields a step may surface to observers.
// Internal routing fields never appear here.
type EventFields struct {
	Content        *string  `json:"content,omitempty"`
	Critique       *string  `json:"critique,omitempty"`
	Plan           []string `json:"plan,omitempty"`
	RevisionNumber *int     `json:"revision_number,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
	Task           *string  `json:"task,omitempty"`
}

// PublicFields projects a step update onto the observable fields.
func (u StepUpdate) PublicFields() EventFields {
	return EventFields{
		Content:        u.Content,
		Critique:       u.Critique,
		Plan:           u.Plan,
		RevisionNumber: u.RevisionNumber,
		Sources:        u.Sources,
	}
}

// StepEvent is emitted once per committed step execution.
type StepEvent struct {
	ThreadID string      `json:"thread_id"`
	Step     StepName    `json:"node"`
	Fields   EventFields `json:"data"`
	Pending  PendingStep `json:"pending_step"`
	Version  int64       `json:"version"`
}

// ThreadEvent is the envelope published to the event bus.
type ThreadEvent struct {
	EventID    string       `json:"event_id"`
	EventType  string       `json:"event_type"`
	ThreadID   string       `json:"thread_id"`
	Step       StepName     `json:"step,omitempty"`
	Pending    PendingStep  `json:"pending_step"`
	Version    int64        `json:"version"`
	Fields     *EventFields `json:"fields,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewThreadEvent creates an event envelope with a fresh id.
func NewThreadEvent(eventType, threadID string, pending PendingStep, version int64) *ThreadEvent {
	return &ThreadEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		ThreadID:   threadID,
		Pending:    pending,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}
}

// ThreadEventFromStep wraps a committed step event for publishing.
func ThreadEventFromStep(ev StepEvent) *ThreadEvent {
	eventType := EventTypeStepCompleted
	switch ev.Pending {
	case PendingAwaitingHuman:
		eventType = EventTypeAwaitingHuman
	case PendingFinished:
		eventType = EventTypeThreadFinished
	}
	out := NewThreadEvent(eventType, ev.ThreadID, ev.Pending, ev.Version)
	out.Step = ev.Step
	fields := ev.Fields
	out.Fields = &fields
	return out
}
