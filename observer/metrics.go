package observer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReportMetrics records composite report outcomes as OTEL metrics
type ReportMetrics struct {
	meter           metric.Meter
	reportsTotal    metric.Int64Counter
	reportFailures  metric.Int64Counter
	resourcesMerged metric.Int64Counter
	reportDuration  metric.Float64Histogram
}

// NewReportMetrics creates the metrics observer
func NewReportMetrics() (*ReportMetrics, error) {
	meter := otel.Meter("costlens")

	total, err := meter.Int64Counter(
		"costlens_reports_total",
		metric.WithDescription("Total composite reports requested"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	failures, err := meter.Int64Counter(
		"costlens_report_failures_total",
		metric.WithDescription("Total composite reports that failed"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	merged, err := meter.Int64Counter(
		"costlens_resources_merged_total",
		metric.WithDescription("Total canonical resources emitted"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"costlens_report_duration_seconds",
		metric.WithDescription("Composite report duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}

	return &ReportMetrics{
		meter:           meter,
		reportsTotal:    total,
		reportFailures:  failures,
		resourcesMerged: merged,
		reportDuration:  duration,
	}, nil
}

// RecordReport records one report outcome. Safe on a nil receiver so
// callers can run without metrics wired.
func (m *ReportMetrics) RecordReport(ctx context.Context, account string, resourceCount int, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("account", account))

	m.reportsTotal.Add(ctx, 1, attrs)
	m.reportDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		m.reportFailures.Add(ctx, 1, attrs)
		return
	}
	m.resourcesMerged.Add(ctx, int64(resourceCount), attrs)
}
