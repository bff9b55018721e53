package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"Account ID", "Action Type", "Currency Code", "Current Resource Summary",
	"Current Resource Type", "Estimated Monthly Cost", "Estimated Monthly Savings",
	"Estimated Savings Percentage", "Implementation Effort", "Last Refresh Timestamp",
	"Recommendation ID", "Recommendation Lookback Period In Days",
	"Recommended Resource Summary", "Recommended Resource Type", "Region",
	"Resource ARN", "Resource ID", "Restart Needed", "Rollback Possible",
	"Source", "Tags",
}

// ExportCSV writes recommendations to
// <root>/<client>/<YYYYMM>/<client>_recommendations.csv and returns the
// written path.
func ExportCSV(recs []Recommendation, root, client string, now time.Time) (string, error) {
	dir := filepath.Join(root, client, now.Format("200601"))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, client+"_recommendations.csv")
	f, err := os.Create(path) // #nosec G304 -- path derives from configured export root
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range recs {
		if err := w.Write(csvRow(rec)); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}

	return path, nil
}

func csvRow(rec Recommendation) []string {
	var refreshed string
	if rec.LastRefreshTimestamp != nil {
		refreshed = rec.LastRefreshTimestamp.UTC().Format(time.RFC3339)
	}

	var tags []string
	for _, t := range rec.Tags {
		tags = append(tags, t.Key+"="+t.Value)
	}

	return []string{
		rec.AccountID,
		rec.ActionType,
		rec.CurrencyCode,
		rec.CurrentResourceSummary,
		rec.CurrentResourceType,
		formatFloat(rec.EstimatedMonthlyCost),
		formatFloat(rec.EstimatedMonthlySavings),
		formatFloat(rec.EstimatedSavingsPercentage),
		rec.ImplementationEffort,
		refreshed,
		rec.RecommendationID,
		strconv.Itoa(int(rec.LookbackPeriodDays)),
		rec.RecommendedResourceSummary,
		rec.RecommendedResourceType,
		rec.Region,
		rec.ResourceARN,
		rec.ResourceID,
		strconv.FormatBool(rec.RestartNeeded),
		strconv.FormatBool(rec.RollbackPossible),
		rec.Source,
		strings.Join(tags, ";"),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
