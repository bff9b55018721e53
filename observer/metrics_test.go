package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportMetrics(t *testing.T) {
	m, err := NewReportMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestRecordReport(t *testing.T) {
	m, err := NewReportMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordReport(ctx, "123456789012", 42, 3*time.Second, nil)
	m.RecordReport(ctx, "123456789012", 0, time.Second, errors.New("branch failed"))
}

func TestRecordReportNilReceiver(t *testing.T) {
	var m *ReportMetrics
	m.RecordReport(context.Background(), "123456789012", 1, time.Second, nil)
}
