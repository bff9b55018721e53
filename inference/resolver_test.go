package inference

import (
	"context"
	"errors"
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
	err  error
}

func (c *sliceCursor) Next(_ context.Context) bool {
	if c.err != nil || c.pos >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Current() query.Row { return c.rows[c.pos-1] }
func (c *sliceCursor) Err() error         { return c.err }

type fakeRunner struct {
	rows      []query.Row
	runErr    error
	cursorErr error
	statement string
}

func (f *fakeRunner) Run(_ context.Context, statement string) (query.Cursor, error) {
	f.statement = statement
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &sliceCursor{rows: f.rows, err: f.cursorErr}, nil
}

func groupRow(resource, label string, cost float64, rows float64) query.Row {
	return query.Row{
		"resource_id": resource,
		"label":       label,
		"total_cost":  cost,
		"row_count":   rows,
	}
}

func testWindow(t *testing.T) types.Window {
	t.Helper()
	w, err := types.NewWindow(
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return w
}

func testTables() config.Tables {
	return config.Tables{
		Billing:          "cur_daily",
		Audit:            "cloudtrail_events",
		OwnerTagColumn:   "resource_tags_user_owner",
		ProjectTagColumn: "resource_tags_user_project",
	}
}

func TestResolveOwnersCostWeightedMajority(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "team-a", 100, 1),
		groupRow("R1", "team-b", 10, 1),
		groupRow("R1", "", 5, 1),
	}}
	resolver := NewResolver(runner, testTables())

	owners, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"R1": "team-a"}, owners)
	assert.Contains(t, runner.statement, "resource_tags_user_owner")
	assert.Contains(t, runner.statement, "cur_daily")
}

func TestResolveOwnersTieBreakByRowCount(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "team-a", 50, 2.0),
		groupRow("R1", "team-b", 50, 9.0),
	}}
	resolver := NewResolver(runner, testTables())

	owners, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, "team-b", owners["R1"])
}

func TestResolveOwnersFullTieKeepsInputOrder(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "first", 50, 3),
		groupRow("R1", "second", 50, 3),
	}}
	resolver := NewResolver(runner, testTables())

	owners, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, "first", owners["R1"])
}

func TestResolveOwnersNoExplicitLabels(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "", 5, 2),
	}}
	resolver := NewResolver(runner, testTables())

	owners, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestAggregateOwnersResolvesUntaggedRows(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "team-a", 100, 1),
		groupRow("R1", "team-b", 10, 1),
		groupRow("R1", "", 5, 1),
		groupRow("R2", "", 7, 2),
	}}
	resolver := NewResolver(runner, testTables())

	usage, err := resolver.AggregateOwners(context.Background(), testWindow(t))
	require.NoError(t, err)

	byLabel := make(map[string]LabelUsage)
	for _, u := range usage {
		byLabel[u.Label] = u
	}

	// Untagged R1 rows resolve to team-a; untagged R2 has no signal at all
	assert.InDelta(t, 105.0, byLabel["team-a"].Cost, 1e-9)
	assert.Equal(t, 1, byLabel["team-a"].ResourceCount)
	assert.Equal(t, 2, byLabel["team-a"].RowCount)
	assert.InDelta(t, 10.0, byLabel["team-b"].Cost, 1e-9)
	assert.InDelta(t, 7.0, byLabel[Unmapped].Cost, 1e-9)
	assert.Equal(t, 1, byLabel[Unmapped].ResourceCount)
}

func TestAggregateSortsByCostDescending(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{
		groupRow("R1", "small", 1, 1),
		groupRow("R2", "big", 100, 1),
		groupRow("R3", "mid", 10, 1),
	}}
	resolver := NewResolver(runner, testTables())

	usage, err := resolver.AggregateOwners(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, usage, 3)

	assert.Equal(t, "big", usage[0].Label)
	assert.Equal(t, "mid", usage[1].Label)
	assert.Equal(t, "small", usage[2].Label)
}

func TestResolveProjectsUsesProjectColumn(t *testing.T) {
	runner := &fakeRunner{rows: []query.Row{}}
	resolver := NewResolver(runner, testTables())

	_, err := resolver.ResolveProjects(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Contains(t, runner.statement, "resource_tags_user_project")
}

func TestResolveOwnersQueryError(t *testing.T) {
	resolver := NewResolver(&fakeRunner{runErr: errors.New("boom")}, testTables())

	_, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	assert.Error(t, err)
}

func TestResolveOwnersCursorError(t *testing.T) {
	resolver := NewResolver(&fakeRunner{cursorErr: errors.New("page fetch failed")}, testTables())

	_, err := resolver.ResolveOwners(context.Background(), testWindow(t))
	assert.Error(t, err)
}

func TestGroupStatementWindowBounds(t *testing.T) {
	stmt := groupStatement(testTables(), "resource_tags_user_owner", testWindow(t))

	assert.Contains(t, stmt, "DATE '2025-07-01'")
	assert.Contains(t, stmt, "DATE '2025-07-31'")
	assert.Contains(t, stmt, "GROUP BY 1, 2")
}
