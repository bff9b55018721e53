package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/spf13/cobra"

	"github.com/costlens/costlens/awsx"
	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/engine"
	"github.com/costlens/costlens/observer"
	"github.com/costlens/costlens/query"
	"github.com/costlens/costlens/report"
	"github.com/costlens/costlens/types"
)

var (
	reportStart    string
	reportEnd      string
	reportService  string
	reportWithRecs bool
	reportOutput   string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the composite cost attribution report",
	Long: `Run every cost analysis for one account and billing window and
assemble the composite report:
- Total, per-service, per-region, and daily spend
- Per-owner and per-project attribution with tag inference
- Per-resource cost with creation/deletion facts from the audit log
- Spend trend and top spenders`,
	Example: `  costlens report --start 2025-07-01 --end 2025-07-31
  costlens report --start 2025-07-01 --end 2025-07-31 --service AmazonEC2
  costlens report --start 2025-07-01 --end 2025-07-31 --recommendations
  costlens report --start 2025-07-01 --end 2025-07-31 -o report.json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportStart, "start", "", "Window start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "Window end date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportService, "service", "", "Restrict every analysis to one service code")
	reportCmd.Flags().BoolVar(&reportWithRecs, "recommendations", false, "Include optimization recommendations")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to a file instead of stdout")

	_ = reportCmd.MarkFlagRequired("start")
	_ = reportCmd.MarkFlagRequired("end")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	window, err := parseWindow(reportStart, reportEnd)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	awsCfg, err := awsx.LoadConfig(ctx, cfg.Account)
	if err != nil {
		return err
	}

	metrics, err := observer.NewReportMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	driver := query.NewDriver(athena.NewFromConfig(awsCfg), cfg.Athena, cfg.Tuning)
	eng := engine.New(cfg, driver).WithMetrics(metrics)

	if reportService != "" {
		eng = eng.WithServiceFilter(reportService)
	}
	if reportWithRecs {
		eng = eng.WithRecommendations(report.NewHub(costoptimizationhub.NewFromConfig(awsCfg)))
	}

	rep, err := eng.Report(ctx, window)
	if err != nil {
		return err
	}

	return writeReport(rep, reportOutput)
}

func parseWindow(start, end string) (types.Window, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return types.Window{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return types.Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return types.NewWindow(from, to)
}

func writeReport(rep *engine.Report, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0600)
}
