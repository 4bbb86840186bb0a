package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies the wire type of a push event.
type EventKind string

const (
	KindHealthAlert  EventKind = "health_alert"
	KindTaskDeadline EventKind = "task_deadline"
	KindRFIDStatus   EventKind = "rfid_status"
	KindGeneral      EventKind = "general"
)

// Priority is the urgency carried by a push event.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Payload is the sealed union of push event payloads. Each kind carries its
// own entity reference field so both emit and receive sides can switch
// exhaustively over the concrete types.
type Payload interface {
	Kind() EventKind
	sealed()
}

// HealthAlert notifies about a raised animal health alert.
type HealthAlert struct {
	Title    string
	Message  string
	Priority Priority
	AnimalID string
}

func (HealthAlert) Kind() EventKind { return KindHealthAlert }
func (HealthAlert) sealed()         {}

// TaskDeadline notifies about a task deadline that was crossed or is due.
type TaskDeadline struct {
	Title    string
	Message  string
	Priority Priority
	TaskID   string
}

func (TaskDeadline) Kind() EventKind { return KindTaskDeadline }
func (TaskDeadline) sealed()         {}

// RFIDStatus notifies about an RFID tag state change.
type RFIDStatus struct {
	Title    string
	Message  string
	Priority Priority
	TagID    string
}

func (RFIDStatus) Kind() EventKind { return KindRFIDStatus }
func (RFIDStatus) sealed()         {}

// General is a push event without an entity reference.
type General struct {
	Title    string
	Message  string
	Priority Priority
}

func (General) Kind() EventKind { return KindGeneral }
func (General) sealed()         {}

// Envelope is the unit of delivery handed to connections. The timestamp is
// assigned by the broker at emit time.
type Envelope struct {
	Payload   Payload
	Timestamp time.Time
}

// wireEvent is the flattened JSON shape sent to clients.
type wireEvent struct {
	Type      EventKind `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	AnimalID  string    `json:"animalId,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
	TagID     string    `json:"tagId,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// MarshalJSON flattens the envelope into the push wire format:
// type, title, message, priority, an optional entity id field and an
// ISO-8601 timestamp.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Type:      e.Payload.Kind(),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}

	switch p := e.Payload.(type) {
	case HealthAlert:
		w.Title, w.Message, w.Priority, w.AnimalID = p.Title, p.Message, p.Priority, p.AnimalID
	case TaskDeadline:
		w.Title, w.Message, w.Priority, w.TaskID = p.Title, p.Message, p.Priority, p.TaskID
	case RFIDStatus:
		w.Title, w.Message, w.Priority, w.TagID = p.Title, p.Message, p.Priority, p.TagID
	case General:
		w.Title, w.Message, w.Priority = p.Title, p.Message, p.Priority
	default:
		return nil, fmt.Errorf("broker: unknown payload kind %q", e.Payload.Kind())
	}

	return json.Marshal(w)
}
