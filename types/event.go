package types

import "time"

// EventKind classifies a lifecycle event.
type EventKind string

const (
	EventCreate EventKind = "CREATE"
	EventDelete EventKind = "DELETE"
)

// LifecycleEvent is one audit-log entry tied to a resource. Multiple
// events may exist per resource; only the earliest CREATE and the
// latest DELETE matter to correlation output.
type LifecycleEvent struct {
	ResourceID string    `json:"resource_id"`
	Kind       EventKind `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	SourceIP   string    `json:"source_ip"`
}
