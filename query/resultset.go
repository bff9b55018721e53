package query

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
)

// Row maps column name to converted cell value.
type Row map[string]any

// Cursor is the read side of a result stream. Consumers depend on this
// so tests can substitute canned rows for a live execution.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() Row
	Err() error
}

// ResultSet is a lazy, finite, non-restartable cursor over query rows.
// Iterate with Next, read with Current, then check Err, like sql.Rows.
type ResultSet struct {
	client      API
	executionID string

	columns   []string
	buf       []Row
	pos       int
	nextToken *string
	firstPage bool
	exhausted bool
	current   Row
	err       error
}

func newResultSet(client API, executionID string) *ResultSet {
	return &ResultSet{
		client:      client,
		executionID: executionID,
		firstPage:   true,
	}
}

// Next advances the cursor. It returns false when the rows are exhausted
// or an error occurred; check Err afterwards.
func (r *ResultSet) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}

	for r.pos >= len(r.buf) {
		if r.exhausted {
			return false
		}
		if err := r.fetchPage(ctx); err != nil {
			r.err = err
			return false
		}
	}

	r.current = r.buf[r.pos]
	r.pos++
	return true
}

// Current returns the row positioned by the last successful Next.
func (r *ResultSet) Current() Row {
	return r.current
}

// Err returns the first error hit during iteration.
func (r *ResultSet) Err() error {
	return r.err
}

// Columns returns the column names, available after the first Next.
func (r *ResultSet) Columns() []string {
	return r.columns
}

// Collect drains the remaining rows. Convenience for small results.
func (r *ResultSet) Collect(ctx context.Context) ([]Row, error) {
	var rows []Row
	for r.Next(ctx) {
		rows = append(rows, r.Current())
	}
	return rows, r.Err()
}

// fetchPage retrieves the next page of results and refills the buffer.
// The first row of the first page is the header and is skipped there only.
func (r *ResultSet) fetchPage(ctx context.Context) error {
	input := &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(r.executionID),
		NextToken:        r.nextToken,
	}

	out, err := r.client.GetQueryResults(ctx, input)
	if err != nil {
		return err
	}

	if r.columns == nil && out.ResultSet != nil && out.ResultSet.ResultSetMetadata != nil {
		for _, col := range out.ResultSet.ResultSetMetadata.ColumnInfo {
			r.columns = append(r.columns, aws.ToString(col.Name))
		}
	}

	rows := out.ResultSet.Rows
	if r.firstPage && len(rows) > 0 {
		rows = rows[1:]
	}
	r.firstPage = false

	r.buf = r.buf[:0]
	r.pos = 0
	for _, raw := range rows {
		row := make(Row, len(r.columns))
		for i, datum := range raw.Data {
			if i >= len(r.columns) {
				break
			}
			if datum.VarCharValue == nil {
				row[r.columns[i]] = nil
				continue
			}
			row[r.columns[i]] = convertCell(*datum.VarCharValue)
		}
		r.buf = append(r.buf, row)
	}

	r.nextToken = out.NextToken
	if r.nextToken == nil {
		r.exhausted = true
	}

	return nil
}
