package types

import "time"

// Resource status vocabulary. Everything upstream is normalized into
// these five values before merging.
const (
	StatusActive     = "Active"
	StatusTerminated = "terminated"
	StatusStopped    = "stopped"
	StatusPending    = "pending"
	StatusUnknown    = "unknown"
)

// Tag is one key/value pair attached to a resource.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CanonicalResource is the final deduplicated view of a billed resource.
// Optional timestamps are nil when no source record carried them; they
// are never coerced to a sentinel value.
type CanonicalResource struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Type           string            `json:"type,omitempty"`
	Region         string            `json:"region,omitempty"`
	Owner          string            `json:"owner,omitempty"`
	Project        string            `json:"project,omitempty"`
	Status         string            `json:"status"`
	Cost           float64           `json:"cost"`
	Tags           []Tag             `json:"tags,omitempty"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
	DeletedBy      string            `json:"deleted_by,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// TagValue returns the value for a tag key, or "" when absent.
func (r *CanonicalResource) TagValue(key string) string {
	for _, t := range r.Tags {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}
