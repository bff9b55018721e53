package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlens/costlens/engine"
)

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("2025-07-01", "2025-07-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), w.End)
}

func TestParseWindowRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"bad start", "july 1", "2025-07-31"},
		{"bad end", "2025-07-01", "31/07/2025"},
		{"reversed", "2025-07-31", "2025-07-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWindow(tt.start, tt.end)
			assert.Error(t, err)
		})
	}
}

func TestWriteReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	rep := &engine.Report{Account: "123456789012", TotalCost: 42.5}

	require.NoError(t, writeReport(rep, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded engine.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "123456789012", decoded.Account)
	assert.Equal(t, 42.5, decoded.TotalCost)
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["report"])
	assert.True(t, names["recommendations"])
}
