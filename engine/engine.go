// Package engine composes the billing analyses, tag inference,
// lifecycle correlation, and resource merging into one composite
// report per account and window.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/correlate"
	"github.com/costlens/costlens/inference"
	"github.com/costlens/costlens/merge"
	"github.com/costlens/costlens/observer"
	"github.com/costlens/costlens/query"
	"github.com/costlens/costlens/report"
	"github.com/costlens/costlens/telemetry"
	"github.com/costlens/costlens/types"
)

// topResourceCount bounds the top spenders list in the composite.
const topResourceCount = 10

// QueryRunner runs a statement and streams its rows.
type QueryRunner interface {
	Run(ctx context.Context, statement string) (query.Cursor, error)
}

// RecommendationSource lists optimization recommendations.
type RecommendationSource interface {
	List(ctx context.Context) ([]report.Recommendation, error)
}

// Engine answers composite report requests for one account. Instances
// are request-scoped; build a fresh one per request.
type Engine struct {
	cfg             *config.Config
	runner          QueryRunner
	resolver        *inference.Resolver
	correlator      *correlate.Correlator
	recommendations RecommendationSource
	serviceFilter   string
	metrics         *observer.ReportMetrics
	logger          *telemetry.Logger
	tracer          trace.Tracer
}

// New creates an engine over the account's tables.
func New(cfg *config.Config, runner QueryRunner) *Engine {
	return &Engine{
		cfg:        cfg,
		runner:     runner,
		resolver:   inference.NewResolver(runner, cfg.Tables),
		correlator: correlate.NewCorrelator(runner, cfg.Tables, cfg.Tuning),
		logger:     telemetry.NewLogger("report-engine"),
		tracer:     otel.Tracer("report-engine"),
	}
}

// WithRecommendations wires an optimization recommendations source.
func (e *Engine) WithRecommendations(src RecommendationSource) *Engine {
	e.recommendations = src
	return e
}

// WithServiceFilter restricts every billing analysis to one service.
func (e *Engine) WithServiceFilter(productCode string) *Engine {
	e.serviceFilter = strings.TrimSpace(productCode)
	return e
}

// WithMetrics wires the report metrics observer.
func (e *Engine) WithMetrics(m *observer.ReportMetrics) *Engine {
	e.metrics = m
	return e
}

// Report runs every top-level analysis concurrently and assembles the
// composite. Any analysis failure fails the whole request; callers get
// a complete report or a structured error, never a partial composite.
func (e *Engine) Report(ctx context.Context, w types.Window) (*Report, error) {
	if err := w.Validate(); err != nil {
		return nil, &Error{Code: CodeInternal, Message: err.Error(), Err: err}
	}

	ctx, span := e.tracer.Start(ctx, "Report",
		trace.WithAttributes(
			attribute.String("account", e.cfg.Account.AccountID),
			attribute.String("window_start", w.Start.Format("2006-01-02")),
			attribute.String("window_end", w.End.Format("2006-01-02")),
		))
	defer span.End()

	started := time.Now()
	rep, err := e.assemble(ctx, w)
	e.metrics.RecordReport(ctx, e.cfg.Account.AccountID, resourceCount(rep), time.Since(started), err)

	if err != nil {
		e.logger.WithContext(ctx).Error().Err(err).Msg("composite report failed")
		return nil, wrapError(err)
	}

	e.logger.WithContext(ctx).Info().
		Int("resources", len(rep.Resources)).
		Float64("total_cost", rep.TotalCost).
		Dur("elapsed", time.Since(started)).
		Msg("composite report assembled")

	return rep, nil
}

func (e *Engine) assemble(ctx context.Context, w types.Window) (*Report, error) {
	rep := &Report{
		Account:     e.cfg.Account.AccountID,
		Window:      w,
		GeneratedAt: time.Now().UTC(),
	}

	var ownerByResource, projectByResource map[string]string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := e.fetchTotal(gctx, w)
		rep.TotalCost = total
		return err
	})
	g.Go(func() error {
		slices, err := e.fetchSlices(gctx, e.groupedCostStatement("product_code", w))
		rep.ByService = slices
		return err
	})
	g.Go(func() error {
		slices, err := e.fetchSlices(gctx, e.groupedCostStatement("region", w))
		rep.ByRegion = slices
		return err
	})
	g.Go(func() error {
		daily, err := e.fetchDaily(gctx, w)
		rep.Daily = daily
		return err
	})
	g.Go(func() error {
		usage, err := e.resolver.AggregateOwners(gctx, w)
		rep.ByOwner = usage
		return err
	})
	g.Go(func() error {
		usage, err := e.resolver.AggregateProjects(gctx, w)
		rep.ByProject = usage
		return err
	})
	g.Go(func() error {
		owners, err := e.resolver.ResolveOwners(gctx, w)
		ownerByResource = owners
		return err
	})
	g.Go(func() error {
		projects, err := e.resolver.ResolveProjects(gctx, w)
		projectByResource = projects
		return err
	})
	g.Go(func() error {
		resources, skipped, err := e.collectResources(gctx, w)
		rep.Resources = resources
		rep.SkippedRecords = skipped
		return err
	})
	if e.recommendations != nil {
		g.Go(func() error {
			recs, err := e.recommendations.List(gctx)
			rep.Recommendations = recs
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	applyLabels(rep.Resources, ownerByResource, projectByResource)
	if err := e.applyLifecycle(ctx, w, rep.Resources); err != nil {
		return nil, err
	}

	rep.Trend = computeTrend(rep.Daily)
	rep.TopResources = topResources(rep.Resources, topResourceCount)

	return rep, nil
}

func (e *Engine) fetchTotal(ctx context.Context, w types.Window) (float64, error) {
	cursor, err := e.runner.Run(ctx, e.totalStatement(w))
	if err != nil {
		return 0, err
	}

	var total float64
	for cursor.Next(ctx) {
		total = asFloat(cursor.Current()["total_cost"])
	}
	return total, cursor.Err()
}

func (e *Engine) fetchSlices(ctx context.Context, statement string) ([]CostSlice, error) {
	cursor, err := e.runner.Run(ctx, statement)
	if err != nil {
		return nil, err
	}

	var slices []CostSlice
	for cursor.Next(ctx) {
		row := cursor.Current()
		slices = append(slices, CostSlice{
			Key:  asString(row["grouping_key"]),
			Cost: asFloat(row["cost"]),
		})
	}
	return slices, cursor.Err()
}

func (e *Engine) fetchDaily(ctx context.Context, w types.Window) ([]DailyPoint, error) {
	cursor, err := e.runner.Run(ctx, e.dailyStatement(w))
	if err != nil {
		return nil, err
	}

	var daily []DailyPoint
	for cursor.Next(ctx) {
		row := cursor.Current()
		daily = append(daily, DailyPoint{
			Date: asString(row["day"]),
			Cost: asFloat(row["cost"]),
		})
	}
	return daily, cursor.Err()
}

// collectResources streams the per-resource rollup through the merger.
func (e *Engine) collectResources(ctx context.Context, w types.Window) ([]types.CanonicalResource, int, error) {
	cursor, err := e.runner.Run(ctx, e.perResourceStatement(w))
	if err != nil {
		return nil, 0, err
	}

	m := merge.NewMerger()
	for cursor.Next(ctx) {
		m.Add(merge.RawRecord(cursor.Current()))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	return m.Resources(), m.Skipped(), nil
}

// applyLifecycle resolves creation and deletion facts for the merged
// resources and folds them in. A resolved deletion marks the resource
// terminated.
func (e *Engine) applyLifecycle(ctx context.Context, w types.Window, resources []types.CanonicalResource) error {
	if len(resources) == 0 {
		return nil
	}

	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}

	var creations, deletions map[string]correlate.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.correlator.Correlate(gctx, ids, types.EventCreate, w)
		creations = hits
		return err
	})
	g.Go(func() error {
		hits, err := e.correlator.Correlate(gctx, ids, types.EventDelete, w)
		deletions = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range resources {
		r := &resources[i]
		if hit, ok := creations[r.ID]; ok {
			if r.CreatedAt == nil {
				ts := hit.Timestamp
				r.CreatedAt = &ts
			}
			r.CreatedBy = hit.Actor
		}
		if hit, ok := deletions[r.ID]; ok {
			ts := hit.Timestamp
			r.DeletedAt = &ts
			r.DeletedBy = hit.Actor
			r.Status = types.StatusTerminated
		}
	}

	return nil
}

// applyLabels fills missing owner and project labels from the resolved
// per-resource maps. Maps are keyed by the raw billing identifier, so
// lookups go through the canonical form.
func applyLabels(resources []types.CanonicalResource, owners, projects map[string]string) {
	ownerIndex := canonicalIndex(owners)
	projectIndex := canonicalIndex(projects)

	for i := range resources {
		r := &resources[i]
		if r.Owner == "" {
			r.Owner = ownerIndex[r.ID]
		}
		if r.Project == "" {
			r.Project = projectIndex[r.ID]
		}
	}
}

func canonicalIndex(labels map[string]string) map[string]string {
	index := make(map[string]string, len(labels))
	for raw, label := range labels {
		index[types.CanonicalID(raw)] = label
	}
	return index
}

// topResources returns the n highest-cost resources without disturbing
// the caller's slice order.
func topResources(resources []types.CanonicalResource, n int) []types.CanonicalResource {
	sorted := make([]types.CanonicalResource, len(resources))
	copy(sorted, resources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cost > sorted[j].Cost
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func resourceCount(rep *Report) int {
	if rep == nil {
		return 0
	}
	return len(rep.Resources)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
