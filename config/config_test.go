package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "costlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1"
account:
  account_id: "123456789012"
  role_arn: "arn:aws:iam::123456789012:role/costlens-read"
  region: us-east-1
athena:
  database: billing
  workgroup: primary
  output_location: s3://costlens-results/
tables:
  billing: cur_daily
  audit: cloudtrail_events
  creation_index: resource_creation_map
  deletion_index: resource_deletion_map
tuning:
  chunk_size: 100
  poll_interval: 2s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123456789012", cfg.Account.AccountID)
	assert.Equal(t, "us-east-1", cfg.Account.Region)
	assert.Equal(t, "cur_daily", cfg.Tables.Billing)
	assert.Equal(t, 100, cfg.Tuning.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Tuning.PollInterval)

	// Defaults fill unset tuning fields
	assert.Equal(t, DefaultQueryTimeout, cfg.Tuning.QueryTimeout)
	assert.Equal(t, DefaultWorkers, cfg.Tuning.Workers)
	assert.Equal(t, "resource_tags_user_owner", cfg.Tables.OwnerTagColumn)
}

func TestLoadConfigMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing version",
			content: "account:\n  account_id: \"1\"\n  region: us-east-1\n",
		},
		{
			name:    "missing account id",
			content: "version: \"1\"\naccount:\n  region: us-east-1\n",
		},
		{
			name:    "missing database",
			content: "version: \"1\"\naccount:\n  account_id: \"1\"\n  region: us-east-1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/costlens.yaml")
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "version: [unclosed"))
	assert.Error(t, err)
}
