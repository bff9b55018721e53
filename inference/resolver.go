// Package inference assigns ownership and project labels to billing
// rows whose explicit tags are inconsistent or absent, using a
// cost-weighted majority per resource.
package inference

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/query"
	"github.com/costlens/costlens/telemetry"
	"github.com/costlens/costlens/types"
)

// Unmapped is the placeholder label for rows no explicit or inferred
// label could resolve. Surfacing them keeps ownership coverage auditable.
const Unmapped = "<UNMAPPED>"

// QueryRunner runs a statement and streams its rows.
type QueryRunner interface {
	Run(ctx context.Context, statement string) (query.Cursor, error)
}

// Resolver infers the best label per resource for one billing window.
// Instances are request-scoped; nothing is cached between calls.
type Resolver struct {
	runner QueryRunner
	tables config.Tables
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewResolver creates a resolver bound to the account's tables.
func NewResolver(runner QueryRunner, tables config.Tables) *Resolver {
	return &Resolver{
		runner: runner,
		tables: tables,
		logger: telemetry.NewLogger("tag-inference"),
		tracer: otel.Tracer("tag-inference"),
	}
}

// labelGroup is one (resource, explicit label) pairing with its weight.
// Intermediate state only; never persisted past one inference pass.
type labelGroup struct {
	resource string
	label    string
	cost     float64
	rows     int
}

// LabelUsage is the per-label rollup across all resolved billing rows.
type LabelUsage struct {
	Label         string  `json:"label"`
	Cost          float64 `json:"cost"`
	ResourceCount int     `json:"resource_count"`
	RowCount      int     `json:"row_count"`
}

// ResolveOwners returns the best ownership label per resource identity.
func (r *Resolver) ResolveOwners(ctx context.Context, w types.Window) (map[string]string, error) {
	return r.resolve(ctx, w, r.tables.OwnerTagColumn)
}

// ResolveProjects returns the best project label per resource identity.
func (r *Resolver) ResolveProjects(ctx context.Context, w types.Window) (map[string]string, error) {
	return r.resolve(ctx, w, r.tables.ProjectTagColumn)
}

// AggregateOwners rolls up resolved cost per ownership label.
func (r *Resolver) AggregateOwners(ctx context.Context, w types.Window) ([]LabelUsage, error) {
	return r.aggregate(ctx, w, r.tables.OwnerTagColumn)
}

// AggregateProjects rolls up resolved cost per project label.
func (r *Resolver) AggregateProjects(ctx context.Context, w types.Window) ([]LabelUsage, error) {
	return r.aggregate(ctx, w, r.tables.ProjectTagColumn)
}

func (r *Resolver) resolve(ctx context.Context, w types.Window, labelColumn string) (map[string]string, error) {
	ctx, span := r.tracer.Start(ctx, "resolve")
	defer span.End()

	groups, err := r.fetchGroups(ctx, w, labelColumn)
	if err != nil {
		return nil, err
	}

	return inferLabels(groups), nil
}

func (r *Resolver) aggregate(ctx context.Context, w types.Window, labelColumn string) ([]LabelUsage, error) {
	ctx, span := r.tracer.Start(ctx, "aggregate")
	defer span.End()

	groups, err := r.fetchGroups(ctx, w, labelColumn)
	if err != nil {
		return nil, err
	}

	return rollup(groups, inferLabels(groups)), nil
}

// fetchGroups runs the grouping query and parses its rows
func (r *Resolver) fetchGroups(ctx context.Context, w types.Window, labelColumn string) ([]labelGroup, error) {
	cursor, err := r.runner.Run(ctx, groupStatement(r.tables, labelColumn, w))
	if err != nil {
		return nil, fmt.Errorf("billing group query failed: %w", err)
	}

	var groups []labelGroup
	for cursor.Next(ctx) {
		row := cursor.Current()
		groups = append(groups, labelGroup{
			resource: asString(row["resource_id"]),
			label:    asString(row["label"]),
			cost:     asFloat(row["total_cost"]),
			rows:     int(asFloat(row["row_count"])),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("billing group query failed: %w", err)
	}

	return groups, nil
}

// inferLabels picks, per resource with at least one explicit label, the
// top label by (cost desc, row count desc). The sort is stable, so full
// ties fall back to input order; that nondeterminism is accepted.
func inferLabels(groups []labelGroup) map[string]string {
	byResource := make(map[string][]labelGroup)
	for _, g := range groups {
		if g.label == "" {
			continue
		}
		byResource[g.resource] = append(byResource[g.resource], g)
	}

	inferred := make(map[string]string, len(byResource))
	for resource, candidates := range byResource {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].cost != candidates[j].cost {
				return candidates[i].cost > candidates[j].cost
			}
			return candidates[i].rows > candidates[j].rows
		})
		inferred[resource] = candidates[0].label
	}

	return inferred
}

// rollup aggregates resolved cost per label. A group resolves to its own
// explicit label, else the inferred label for its resource, else Unmapped.
func rollup(groups []labelGroup, inferred map[string]string) []LabelUsage {
	type bucket struct {
		usage     LabelUsage
		resources map[string]struct{}
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, g := range groups {
		label := g.label
		if label == "" {
			label = inferred[g.resource]
		}
		if label == "" {
			label = Unmapped
		}

		b, ok := buckets[label]
		if !ok {
			b = &bucket{usage: LabelUsage{Label: label}, resources: make(map[string]struct{})}
			buckets[label] = b
			order = append(order, label)
		}
		b.usage.Cost += g.cost
		b.usage.RowCount += g.rows
		b.resources[g.resource] = struct{}{}
	}

	out := make([]LabelUsage, 0, len(order))
	for _, label := range order {
		b := buckets[label]
		b.usage.ResourceCount = len(b.resources)
		out = append(out, b.usage)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cost > out[j].Cost
	})
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
