package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "costlens",
		Short: "Cloud Cost Attribution Engine",
		Long: `Costlens - Cloud Cost Attribution Engine

Costlens joins the billing ledger, the audit event log, and resource
metadata to answer the questions cost tools usually can't: what does
each resource actually cost, who owns it, and when was it created
and destroyed - and by whom.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Costlens {{.Version}} - Cloud Cost Attribution Engine
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "costlens.yaml", "Path to the account configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
