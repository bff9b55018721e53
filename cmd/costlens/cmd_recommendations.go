package main

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/spf13/cobra"

	"github.com/costlens/costlens/awsx"
	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/report"
)

var (
	recsClient    string
	recsExportDir string
)

// recommendationsCmd represents the recommendations command
var recommendationsCmd = &cobra.Command{
	Use:   "recommendations",
	Short: "Export optimization recommendations to CSV",
	Long: `Pull rightsizing, stop, upgrade, and savings-plan recommendations
from Cost Optimization Hub and export them to a per-client, per-month
CSV for spreadsheet review.`,
	Example: `  costlens recommendations --client acme-prod
  costlens recommendations --client acme-prod --export-dir /srv/exports`,
	RunE: runRecommendations,
}

func init() {
	rootCmd.AddCommand(recommendationsCmd)

	recommendationsCmd.Flags().StringVar(&recsClient, "client", "", "Client name used for the export directory and file name")
	recommendationsCmd.Flags().StringVar(&recsExportDir, "export-dir", ".", "Root directory for CSV exports")

	_ = recommendationsCmd.MarkFlagRequired("client")
}

func runRecommendations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	awsCfg, err := awsx.LoadConfig(ctx, cfg.Account)
	if err != nil {
		return err
	}

	hub := report.NewHub(costoptimizationhub.NewFromConfig(awsCfg))
	recs, err := hub.List(ctx)
	if err != nil {
		return err
	}

	path, err := report.ExportCSV(recs, recsExportDir, recsClient, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d recommendations to %s\n", len(recs), path)
	return nil
}
