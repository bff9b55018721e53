// Package correlate resolves creation and deletion facts for large
// batches of resource identifiers from the audit log, using a fast
// precomputed index first and a raw-event fallback for the misses.
package correlate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/query"
	"github.com/costlens/costlens/telemetry"
	"github.com/costlens/costlens/types"
)

// QueryRunner runs a statement and streams its rows.
type QueryRunner interface {
	Run(ctx context.Context, statement string) (query.Cursor, error)
}

// Hit is the resolved lifecycle fact for one identifier.
type Hit struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	SourceIP  string    `json:"source_ip"`
}

// Correlator resolves lifecycle facts for batches of identifiers.
// Instances are request-scoped and hold no shared mutable state.
type Correlator struct {
	runner    QueryRunner
	tables    config.Tables
	chunkSize int
	workers   int
	logger    *telemetry.Logger
	tracer    trace.Tracer
}

// NewCorrelator creates a correlator bound to the account's tables.
func NewCorrelator(runner QueryRunner, tables config.Tables, tuning config.Tuning) *Correlator {
	chunkSize := tuning.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	workers := tuning.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}

	return &Correlator{
		runner:    runner,
		tables:    tables,
		chunkSize: chunkSize,
		workers:   workers,
		logger:    telemetry.NewLogger("lifecycle-correlator"),
		tracer:    otel.Tracer("lifecycle-correlator"),
	}
}

// Correlate resolves the lifecycle fact of the requested kind for each
// identifier it can. Identifiers unresolved by both tiers are simply
// absent from the result; a failed chunk is logged and tolerated.
func (c *Correlator) Correlate(ctx context.Context, ids []string, kind types.EventKind, w types.Window) (map[string]Hit, error) {
	ctx, span := c.tracer.Start(ctx, "Correlate",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.Int("identifiers", len(ids)),
		))
	defer span.End()

	targets := dedupe(ids)
	hits := make(map[string]Hit, len(targets))
	if len(targets) == 0 {
		return hits, nil
	}

	var mu sync.Mutex
	var tier1Total, tier2Total int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, chunk := range chunkStrings(targets, c.chunkSize) {
		i, chunk := i, chunk
		g.Go(func() error {
			result := c.processChunk(gctx, i, chunk, kind, w)

			mu.Lock()
			for id, hit := range result.hits {
				hits[id] = hit
			}
			tier1Total += result.tier1
			tier2Total += result.tier2
			mu.Unlock()
			return nil
		})
	}

	// Workers absorb their own failures, so Wait only gates completion.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.LogCorrelationStats(ctx, len(targets), tier1Total, tier2Total)
	return hits, nil
}

type chunkResult struct {
	hits  map[string]Hit
	tier1 int
	tier2 int
}

// processChunk runs both tiers for one chunk. Tier-1 hits win; Tier-2
// fills only the remaining gaps. Failures leave identifiers unresolved.
func (c *Correlator) processChunk(ctx context.Context, index int, chunk []string, kind types.EventKind, w types.Window) chunkResult {
	result := chunkResult{hits: make(map[string]Hit)}
	targets := targetIndex(chunk)

	tier1, err := c.lookupIndex(ctx, chunk, targets, kind, w)
	if err != nil {
		c.logger.LogChunkFailed(ctx, index, len(chunk), err)
		return result
	}
	result.hits = tier1
	result.tier1 = len(tier1)

	var missing []string
	for _, id := range chunk {
		if _, ok := tier1[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result
	}

	tier2, err := c.scanAuditEvents(ctx, missing, kind, w)
	if err != nil {
		c.logger.LogChunkFailed(ctx, index, len(missing), err)
		return result
	}
	for id, hit := range tier2 {
		if _, ok := result.hits[id]; !ok {
			result.hits[id] = hit
			result.tier2++
		}
	}

	return result
}

// lookupIndex is the Tier-1 fast path against the precomputed index.
func (c *Correlator) lookupIndex(ctx context.Context, chunk []string, targets map[string]string, kind types.EventKind, w types.Window) (map[string]Hit, error) {
	table := c.tables.CreationIndex
	if kind == types.EventDelete {
		table = c.tables.DeletionIndex
	}

	cursor, err := c.runner.Run(ctx, indexStatement(table, chunk, w))
	if err != nil {
		return nil, err
	}

	hits := make(map[string]Hit)
	for cursor.Next(ctx) {
		row := cursor.Current()
		id, ok := matchTarget(asString(row["resource_id_variant"]), targets)
		if !ok {
			continue
		}
		ts := parseEventTime(row["event_time"])
		if ts.IsZero() {
			continue
		}
		hit := Hit{Timestamp: ts, Actor: asString(row["actor"]), SourceIP: asString(row["source_ip"])}
		hits[id] = pickHit(hits[id], hit, kind)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}

// scanAuditEvents is the Tier-2 fallback over the raw event stream:
// earliest creation-class event for CREATE, latest deletion-class event
// for DELETE.
func (c *Correlator) scanAuditEvents(ctx context.Context, missing []string, kind types.EventKind, w types.Window) (map[string]Hit, error) {
	targets := targetIndex(missing)

	cursor, err := c.runner.Run(ctx, auditStatement(c.tables.Audit, missing, w))
	if err != nil {
		return nil, err
	}

	hits := make(map[string]Hit)
	for cursor.Next(ctx) {
		row := cursor.Current()
		if !matchesKind(asString(row["event_name"]), kind) {
			continue
		}
		id, ok := matchTarget(asString(row["resource_id"]), targets)
		if !ok {
			continue
		}
		ts := parseEventTime(row["event_time"])
		if ts.IsZero() {
			continue
		}
		hit := Hit{Timestamp: ts, Actor: asString(row["actor_identity"]), SourceIP: asString(row["source_ip"])}
		hits[id] = pickHit(hits[id], hit, kind)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}

// pickHit keeps the earliest hit for CREATE and the latest for DELETE.
func pickHit(existing, candidate Hit, kind types.EventKind) Hit {
	if existing.Timestamp.IsZero() {
		return candidate
	}
	if kind == types.EventCreate {
		if candidate.Timestamp.Before(existing.Timestamp) {
			return candidate
		}
		return existing
	}
	if candidate.Timestamp.After(existing.Timestamp) {
		return candidate
	}
	return existing
}

// targetIndex maps the lowercased canonical form of each target back to
// the identifier the caller asked for.
func targetIndex(chunk []string) map[string]string {
	targets := make(map[string]string, len(chunk))
	for _, id := range chunk {
		key := strings.ToLower(types.CanonicalID(id))
		if key == "" {
			continue
		}
		if _, ok := targets[key]; !ok {
			targets[key] = id
		}
	}
	return targets
}

// matchTarget matches a stored identifier variant, full or short form,
// against the chunk's targets. Case-insensitive.
func matchTarget(variant string, targets map[string]string) (string, bool) {
	if variant == "" {
		return "", false
	}
	if id, ok := targets[strings.ToLower(types.CanonicalID(variant))]; ok {
		return id, true
	}
	id, ok := targets[strings.ToLower(variant)]
	return id, ok
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunkStrings(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Event time layouts seen in Athena results.
var eventTimeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseEventTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range eventTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
