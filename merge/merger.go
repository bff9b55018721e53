package merge

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/costlens/costlens/telemetry"
	"github.com/costlens/costlens/types"
)

// Merger folds heterogeneous raw records into canonical resources,
// deduplicating by canonical id. Output preserves first-seen insertion
// order; callers that need sorted output apply it themselves.
type Merger struct {
	byID    map[string]*types.CanonicalResource
	order   []string
	added   int
	skipped int
	logger  *telemetry.Logger
	tracer  trace.Tracer
}

// NewMerger creates an empty merger
func NewMerger() *Merger {
	return &Merger{
		byID:   make(map[string]*types.CanonicalResource),
		logger: telemetry.NewLogger("resource-merger"),
		tracer: otel.Tracer("resource-merger"),
	}
}

// Merge folds a batch of records and returns the canonical resources.
// Convenience over NewMerger + Add + Resources.
func Merge(ctx context.Context, records []RawRecord) []types.CanonicalResource {
	m := NewMerger()
	for _, rec := range records {
		m.Add(rec)
	}
	m.logger.LogMergeStats(ctx, m.added, len(m.order), m.skipped)
	return m.Resources()
}

// Add folds one record in. Records without a usable identifier are
// skipped silently; partial results beat strict rejection given how
// inconsistent the upstream producers are.
func (m *Merger) Add(rec RawRecord) {
	m.added++

	n := normalize(rec)
	if n.canonical == "" {
		m.skipped++
		return
	}

	existing, ok := m.byID[n.canonical]
	if !ok {
		m.byID[n.canonical] = seed(n)
		m.order = append(m.order, n.canonical)
		return
	}

	mergeInto(existing, n)
}

// Resources returns merged resources in first-seen order.
func (m *Merger) Resources() []types.CanonicalResource {
	out := make([]types.CanonicalResource, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out
}

// Skipped returns how many records lacked a usable identifier.
func (m *Merger) Skipped() int {
	return m.skipped
}

// seed builds the canonical resource from the first occurrence
func seed(n normalized) *types.CanonicalResource {
	return &types.CanonicalResource{
		ID:             n.canonical,
		Name:           n.name,
		Type:           n.rtype,
		Region:         n.region,
		Owner:          n.owner,
		Project:        n.project,
		Status:         n.status,
		Cost:           roundCost(n.cost),
		Tags:           n.tags,
		CreatedAt:      n.createdAt,
		Specifications: n.specs,
	}
}

// mergeInto folds a repeat occurrence into the existing resource
func mergeInto(dst *types.CanonicalResource, n normalized) {
	dst.Cost = roundCost(dst.Cost + n.cost)
	dst.Tags = unionTags(dst.Tags, n.tags)
	dst.Status = mergeStatus(dst.Status, n.status)

	if dst.Name == "" {
		dst.Name = n.name
	}
	if dst.Type == "" {
		dst.Type = n.rtype
	}
	if dst.Region == "" {
		dst.Region = n.region
	}
	if dst.Owner == "" {
		dst.Owner = n.owner
	}
	if dst.Project == "" {
		dst.Project = n.project
	}
	if dst.CreatedAt == nil {
		dst.CreatedAt = n.createdAt
	}
	if dst.Specifications == nil {
		dst.Specifications = n.specs
	}
}

// mergeStatus applies terminal-status precedence: once any occurrence
// says terminated, the merged status stays terminated.
func mergeStatus(current, incoming string) string {
	if current == types.StatusTerminated || incoming == types.StatusTerminated {
		return types.StatusTerminated
	}
	if current == types.StatusUnknown && incoming != types.StatusUnknown {
		return incoming
	}
	return current
}

// unionTags merges two tag lists, deduplicating by key. The later
// occurrence's value wins on a key collision; first-seen key order
// is preserved.
func unionTags(existing, incoming []types.Tag) []types.Tag {
	if len(incoming) == 0 {
		return existing
	}

	index := make(map[string]int, len(existing))
	out := make([]types.Tag, len(existing))
	copy(out, existing)
	for i, t := range out {
		index[t.Key] = i
	}

	for _, t := range incoming {
		if i, ok := index[t.Key]; ok {
			out[i].Value = t.Value
			continue
		}
		index[t.Key] = len(out)
		out = append(out, t)
	}

	return out
}

// roundCost bounds floating-point drift across many additions
func roundCost(c float64) float64 {
	return math.Round(c*1e6) / 1e6
}
