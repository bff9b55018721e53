package engine

import (
	"time"

	"github.com/costlens/costlens/inference"
	"github.com/costlens/costlens/report"
	"github.com/costlens/costlens/types"
)

// CostSlice is one grouping bucket of the billing window.
type CostSlice struct {
	Key  string  `json:"key"`
	Cost float64 `json:"cost"`
}

// DailyPoint is one day of the spend series.
type DailyPoint struct {
	Date string  `json:"date"`
	Cost float64 `json:"cost"`
}

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendFlat       = "flat"
)

// Trend compares the second half of the daily series against the first.
type Trend struct {
	Direction     string  `json:"direction"`
	ChangePercent float64 `json:"change_percent"`
}

// Report is the composite answer for one account and window.
type Report struct {
	Account         string                    `json:"account"`
	Window          types.Window              `json:"window"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	TotalCost       float64                   `json:"total_cost"`
	ByService       []CostSlice               `json:"by_service"`
	ByRegion        []CostSlice               `json:"by_region"`
	ByOwner         []inference.LabelUsage    `json:"by_owner"`
	ByProject       []inference.LabelUsage    `json:"by_project"`
	Daily           []DailyPoint              `json:"daily"`
	Trend           Trend                     `json:"trend"`
	Resources       []types.CanonicalResource `json:"resources"`
	TopResources    []types.CanonicalResource `json:"top_resources"`
	Recommendations []report.Recommendation   `json:"recommendations,omitempty"`
	SkippedRecords  int                       `json:"skipped_records"`
}

// computeTrend splits the series in half and compares the averages.
// Swings under five percent read as flat.
func computeTrend(daily []DailyPoint) Trend {
	if len(daily) < 2 {
		return Trend{Direction: TrendFlat}
	}

	mid := len(daily) / 2
	first := averageCost(daily[:mid])
	second := averageCost(daily[mid:])

	if first == 0 {
		if second == 0 {
			return Trend{Direction: TrendFlat}
		}
		return Trend{Direction: TrendIncreasing, ChangePercent: 100}
	}

	change := (second - first) / first * 100
	switch {
	case change > 5:
		return Trend{Direction: TrendIncreasing, ChangePercent: change}
	case change < -5:
		return Trend{Direction: TrendDecreasing, ChangePercent: change}
	default:
		return Trend{Direction: TrendFlat, ChangePercent: change}
	}
}

func averageCost(points []DailyPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Cost
	}
	return sum / float64(len(points))
}
