package report

import "time"

// EventType names a report lifecycle event.
type EventType string

const (
	EventCaseStarted  EventType = "case_started"
	EventStepStarted  EventType = "step_started"
	EventStepFinished EventType = "step_finished"
	EventAttachment   EventType = "attachment"
	EventCaseFinished EventType = "case_finished"
)

// Event is published to observers as a run progresses.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	Suite      string    `json:"suite"`
	Case       string    `json:"case"`
	ResultUUID string    `json:"result_uuid"`
	Step       string    `json:"step,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Attachment string    `json:"attachment,omitempty"`
}

// Observer receives report events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
