package decompose

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// EventType represents the type of decomposition event.
type EventType string

const (
	// EventStageStarted indicates a pipeline stage has started.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a pipeline stage completed.
	EventStageCompleted EventType = "stage_completed"
	// EventConstraintResolved indicates a constraint's validation data is ready.
	EventConstraintResolved EventType = "constraint_resolved"
	// EventConstraintUnassigned indicates a constraint was assigned to no subtask.
	EventConstraintUnassigned EventType = "constraint_unassigned"
	// EventSubtaskAssembled indicates a subtask record is complete.
	EventSubtaskAssembled EventType = "subtask_assembled"
	// EventRunDone indicates the decomposition finished.
	EventRunDone EventType = "run_done"
	// EventRunFailed indicates the decomposition stopped on an error.
	EventRunFailed EventType = "run_failed"
)

// Phase names a step of the pipeline as shown to subscribers.
type Phase string

const (
	PhaseSubtasks   Phase = "subtasks"
	PhaseConstraint Phase = "constraints"
	PhaseValidation Phase = "validation"
	PhasePrompts    Phase = "prompts"
	PhaseAssign     Phase = "assignment"
	PhaseAssemble   Phase = "assembly"
	PhaseGraph      Phase = "graph"
)

// Phases lists the pipeline phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseSubtasks, PhaseConstraint, PhaseValidation, PhasePrompts, PhaseGraph, PhaseAssign, PhaseAssemble}
}

// Event is emitted while a decomposition runs.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Phase is the pipeline phase the event belongs to.
	Phase Phase
	// Tag is the related subtask tag, if any.
	Tag string
	// Constraint is the related constraint, if any.
	Constraint string
	// Count is the number of items a completed phase produced.
	Count int
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter delivers events to a single subscriber without blocking the pipeline for long.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	logger       *slog.Logger
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: slog.Default(),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it waits briefly before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("event channel full, dropped event", "dropped", count, "type", event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. No events may be emitted afterwards.
func (e *EventEmitter) Close() {
	close(e.events)
}
