package correlate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/query"
	"github.com/costlens/costlens/types"
)

// sliceCursor serves canned rows as a query.Cursor
type sliceCursor struct {
	rows []query.Row
	pos  int
}

func (c *sliceCursor) Next(_ context.Context) bool {
	if c.pos >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Current() query.Row { return c.rows[c.pos-1] }
func (c *sliceCursor) Err() error         { return nil }

// scriptedRunner routes statements to canned responses by table name
type scriptedRunner struct {
	mu         sync.Mutex
	rowsFor    map[string][]query.Row
	errFor     map[string]error
	statements []string
}

func (r *scriptedRunner) Run(_ context.Context, statement string) (query.Cursor, error) {
	r.mu.Lock()
	r.statements = append(r.statements, statement)
	r.mu.Unlock()

	for table, err := range r.errFor {
		if strings.Contains(statement, table) {
			return nil, err
		}
	}
	for table, rows := range r.rowsFor {
		if strings.Contains(statement, table) {
			return &sliceCursor{rows: rows}, nil
		}
	}
	return &sliceCursor{}, nil
}

func (r *scriptedRunner) statementsFor(table string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, s := range r.statements {
		if strings.Contains(s, table) {
			out = append(out, s)
		}
	}
	return out
}

func testTables() config.Tables {
	return config.Tables{
		Billing:       "cur_daily",
		Audit:         "cloudtrail_events",
		CreationIndex: "resource_creation_map",
		DeletionIndex: "resource_deletion_map",
	}
}

func testWindow(t *testing.T) types.Window {
	t.Helper()
	w, err := types.NewWindow(
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return w
}

func indexRow(variant, eventTime, actor, ip string) query.Row {
	return query.Row{
		"resource_id_variant": variant,
		"event_time":          eventTime,
		"actor":               actor,
		"source_ip":           ip,
	}
}

func auditRow(id, eventName, eventTime, actor, ip string) query.Row {
	return query.Row{
		"resource_id":    id,
		"event_name":     eventName,
		"event_time":     eventTime,
		"actor_identity": actor,
		"source_ip":      ip,
	}
}

func TestCorrelateTierFallback(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"resource_creation_map": {
				indexRow("x", "2025-07-01 10:00:00", "alice", "10.0.0.1"),
			},
			"cloudtrail_events": {
				auditRow("y", "RunInstances", "2025-07-01 11:00:00", "bob", "10.0.0.2"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"x", "y", "z"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	// x from the fast path, y from the fallback, z unresolved
	require.Len(t, hits, 2)
	assert.Equal(t, "alice", hits["x"].Actor)
	assert.Equal(t, "bob", hits["y"].Actor)
	_, ok := hits["z"]
	assert.False(t, ok)

	// Fallback queried only the misses
	fallbacks := runner.statementsFor("cloudtrail_events")
	require.Len(t, fallbacks, 1)
	assert.NotContains(t, fallbacks[0], "'x'")
	assert.Contains(t, fallbacks[0], "'y'")
	assert.Contains(t, fallbacks[0], "'z'")
}

func TestCorrelateTier1Wins(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"resource_creation_map": {
				indexRow("x", "2025-07-01 10:00:00", "index-actor", "10.0.0.1"),
			},
			"cloudtrail_events": {
				auditRow("x", "RunInstances", "2025-07-01 09:00:00", "fallback-actor", "10.0.0.2"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"x"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	require.Contains(t, hits, "x")
	assert.Equal(t, "index-actor", hits["x"].Actor)

	// No fallback issued when the fast path resolves everything
	assert.Empty(t, runner.statementsFor("cloudtrail_events"))
}

func TestCorrelateCreateTakesEarliestEvent(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"cloudtrail_events": {
				auditRow("i-1", "RunInstances", "2025-07-01 12:00:00", "late", "1.1.1.1"),
				auditRow("i-1", "RunInstances", "2025-07-01 08:00:00", "early", "2.2.2.2"),
				auditRow("i-1", "DescribeInstances", "2025-07-01 06:00:00", "viewer", "3.3.3.3"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"i-1"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	require.Contains(t, hits, "i-1")
	assert.Equal(t, "early", hits["i-1"].Actor)
	assert.Equal(t, time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC), hits["i-1"].Timestamp)
}

func TestCorrelateDeleteTakesLatestEvent(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"cloudtrail_events": {
				auditRow("i-1", "TerminateInstances", "2025-07-01 08:00:00", "early", "1.1.1.1"),
				auditRow("i-1", "TerminateInstances", "2025-07-01 15:00:00", "late", "2.2.2.2"),
				auditRow("i-1", "RunInstances", "2025-07-01 18:00:00", "creator", "3.3.3.3"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"i-1"}, types.EventDelete, testWindow(t))
	require.NoError(t, err)

	require.Contains(t, hits, "i-1")
	assert.Equal(t, "late", hits["i-1"].Actor)
}

func TestCorrelateDeleteUsesDeletionIndex(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"resource_deletion_map": {
				indexRow("i-1", "2025-07-01 15:00:00", "reaper", "1.1.1.1"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"i-1"}, types.EventDelete, testWindow(t))
	require.NoError(t, err)

	require.Contains(t, hits, "i-1")
	assert.Equal(t, "reaper", hits["i-1"].Actor)
	assert.Empty(t, runner.statementsFor("resource_creation_map"))
}

func TestCorrelateFailedChunkIsTolerated(t *testing.T) {
	runner := &scriptedRunner{
		errFor: map[string]error{
			"resource_creation_map": errors.New("chunk exploded"),
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"a", "b"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCorrelateFallbackFailureKeepsIndexHits(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"resource_creation_map": {
				indexRow("a", "2025-07-01 10:00:00", "alice", "10.0.0.1"),
			},
		},
		errFor: map[string]error{
			"cloudtrail_events": errors.New("scan failed"),
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"a", "b"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "alice", hits["a"].Actor)
}

func TestCorrelateChunking(t *testing.T) {
	runner := &scriptedRunner{}
	c := NewCorrelator(runner, testTables(), config.Tuning{ChunkSize: 2, Workers: 2})

	_, err := c.Correlate(context.Background(),
		[]string{"a", "b", "c", "d", "e"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	assert.Len(t, runner.statementsFor("resource_creation_map"), 3)
}

func TestCorrelateMatchesCompoundAndCaseInsensitive(t *testing.T) {
	runner := &scriptedRunner{
		rowsFor: map[string][]query.Row{
			"resource_creation_map": {
				indexRow("arn:aws:ec2:us-east-1:123456789012:instance/I-0ABC",
					"2025-07-01 10:00:00", "alice", "10.0.0.1"),
			},
		},
	}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), []string{"i-0abc"}, types.EventCreate, testWindow(t))
	require.NoError(t, err)

	// Result keyed by the identifier the caller asked for
	require.Contains(t, hits, "i-0abc")
	assert.Equal(t, "alice", hits["i-0abc"].Actor)
}

func TestCorrelateEmptyInput(t *testing.T) {
	runner := &scriptedRunner{}
	c := NewCorrelator(runner, testTables(), config.Tuning{})

	hits, err := c.Correlate(context.Background(), nil, types.EventCreate, testWindow(t))
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, runner.statements)
}

func TestMatchesKind(t *testing.T) {
	tests := []struct {
		eventName string
		kind      types.EventKind
		want      bool
	}{
		{"RunInstances", types.EventCreate, true},
		{"CreateBucket", types.EventCreate, true},
		{"LaunchTemplate", types.EventCreate, true},
		{"StartInstances", types.EventCreate, true},
		{"TerminateInstances", types.EventDelete, true},
		{"DeleteDBInstance", types.EventDelete, true},
		{"RemoveTags", types.EventDelete, true},
		{"TerminateInstances", types.EventCreate, false},
		{"RunInstances", types.EventDelete, false},
		{"DescribeInstances", types.EventCreate, false},
		{"runinstances", types.EventCreate, true},
	}

	for _, tt := range tests {
		t.Run(tt.eventName+"_"+string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, matchesKind(tt.eventName, tt.kind))
		})
	}
}

func TestDayPredicate(t *testing.T) {
	got := dayPredicate(testWindow(t))
	assert.Equal(t, "(dt = '2025-07-01' OR dt = '2025-07-02')", got)
}

func TestIDPredicateIncludesBothForms(t *testing.T) {
	got := idPredicate("resource_id_variant", []string{
		"arn:aws:ec2:us-east-1:123456789012:instance/i-0ABC",
	})

	assert.Contains(t, got, "'i-0abc'")
	assert.Contains(t, got, "'arn:aws:ec2:us-east-1:123456789012:instance/i-0abc'")
	assert.Contains(t, got, "element_at(split(resource_id_variant, '/'), -1)")
}
