package query

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/telemetry"
)

// API is the subset of the Athena client the driver needs.
type API interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// Driver runs analytical queries to completion. Each Execute call
// creates a fresh execution, so the whole operation is safe to retry.
type Driver struct {
	client       API
	database     string
	workgroup    string
	output       string
	pollInterval time.Duration
	timeout      time.Duration
	logger       *telemetry.Logger
	tracer       trace.Tracer
}

// NewDriver creates a driver from account-scoped settings.
func NewDriver(client API, settings config.Athena, tuning config.Tuning) *Driver {
	pollInterval := tuning.PollInterval
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}
	timeout := tuning.QueryTimeout
	if timeout <= 0 {
		timeout = config.DefaultQueryTimeout
	}

	return &Driver{
		client:       client,
		database:     settings.Database,
		workgroup:    settings.Workgroup,
		output:       settings.OutputLocation,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       telemetry.NewLogger("query-driver"),
		tracer:       otel.Tracer("query-driver"),
	}
}

// Execute submits a statement, waits for it to finish, and returns a
// lazy cursor over its rows. A timed-out or failed query returns no rows.
func (d *Driver) Execute(ctx context.Context, statement string) (*ResultSet, error) {
	ctx, span := d.tracer.Start(ctx, "Execute",
		trace.WithAttributes(attribute.String("database", d.database)))
	defer span.End()

	executionID, err := d.submit(ctx, statement)
	if err != nil {
		return nil, err
	}
	d.logger.LogQuerySubmitted(ctx, executionID, d.database)

	if err := d.waitUntilDone(ctx, executionID); err != nil {
		return nil, err
	}

	return newResultSet(d.client, executionID), nil
}

// Run is Execute behind the Cursor interface, for callers that fake
// row streams in tests.
func (d *Driver) Run(ctx context.Context, statement string) (Cursor, error) {
	rs, err := d.Execute(ctx, statement)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// submit starts the execution and returns its id
func (d *Driver) submit(ctx context.Context, statement string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(statement),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(d.database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(d.output),
		},
	}
	if d.workgroup != "" {
		input.WorkGroup = aws.String(d.workgroup)
	}

	out, err := d.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	return aws.ToString(out.QueryExecutionId), nil
}

// waitUntilDone polls on a fixed interval until the execution reaches a
// terminal state, the deadline elapses, or the context is cancelled.
func (d *Driver) waitUntilDone(ctx context.Context, executionID string) error {
	started := time.Now()
	deadline := started.Add(d.timeout)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		state, reason, err := d.pollState(ctx, executionID)
		if err != nil {
			return err
		}

		switch state {
		case athenatypes.QueryExecutionStateSucceeded:
			d.logger.LogQueryFinished(ctx, executionID, string(state),
				float64(time.Since(started).Milliseconds()))
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			d.logger.LogQueryFinished(ctx, executionID, string(state),
				float64(time.Since(started).Milliseconds()))
			return &QueryFailedError{ExecutionID: executionID, State: string(state), Reason: reason}
		}

		if time.Now().After(deadline) {
			return &QueryTimeoutError{ExecutionID: executionID, Timeout: d.timeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollState fetches the current execution state and failure reason
func (d *Driver) pollState(ctx context.Context, executionID string) (athenatypes.QueryExecutionState, string, error) {
	out, err := d.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return "", "", err
	}

	status := out.QueryExecution.Status
	var reason string
	if status.StateChangeReason != nil {
		reason = *status.StateChangeReason
	}

	return status.State, reason, nil
}
