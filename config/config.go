package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version string  `yaml:"version"`
	Account Account `yaml:"account"`
	Athena  Athena  `yaml:"athena"`
	Tables  Tables  `yaml:"tables"`
	Tuning  Tuning  `yaml:"tuning,omitempty"`
}

// Account identifies the AWS account being analyzed. No hidden global
// credential cache; this struct is passed explicitly into each component.
type Account struct {
	AccountID string `yaml:"account_id"`
	RoleARN   string `yaml:"role_arn,omitempty"`
	Region    string `yaml:"region"`
}

// Athena holds query engine settings
type Athena struct {
	Database       string `yaml:"database"`
	Workgroup      string `yaml:"workgroup,omitempty"`
	OutputLocation string `yaml:"output_location"`
}

// Tables names the external tables the engine queries
type Tables struct {
	Billing          string `yaml:"billing"`
	Audit            string `yaml:"audit"`
	CreationIndex    string `yaml:"creation_index"`
	DeletionIndex    string `yaml:"deletion_index"`
	OwnerTagColumn   string `yaml:"owner_tag_column,omitempty"`
	ProjectTagColumn string `yaml:"project_tag_column,omitempty"`
}

// Tuning holds operational knobs. These are configurable defaults, not
// contracts; the zero value for any field falls back to the default.
type Tuning struct {
	ChunkSize    int           `yaml:"chunk_size,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	QueryTimeout time.Duration `yaml:"query_timeout,omitempty"`
	Workers      int           `yaml:"workers,omitempty"`
}

// Tuning defaults
const (
	DefaultChunkSize    = 200
	DefaultPollInterval = time.Second
	DefaultQueryTimeout = 120 * time.Second
	DefaultWorkers      = 4
)

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Account.AccountID == "" {
		return fmt.Errorf("account.account_id is required")
	}
	if c.Account.Region == "" {
		return fmt.Errorf("account.region is required")
	}
	if c.Athena.Database == "" {
		return fmt.Errorf("athena.database is required")
	}
	if c.Athena.OutputLocation == "" {
		return fmt.Errorf("athena.output_location is required")
	}
	if c.Tables.Billing == "" {
		return fmt.Errorf("tables.billing is required")
	}
	if c.Tables.Audit == "" {
		return fmt.Errorf("tables.audit is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Tuning.ChunkSize <= 0 {
		c.Tuning.ChunkSize = DefaultChunkSize
	}
	if c.Tuning.PollInterval <= 0 {
		c.Tuning.PollInterval = DefaultPollInterval
	}
	if c.Tuning.QueryTimeout <= 0 {
		c.Tuning.QueryTimeout = DefaultQueryTimeout
	}
	if c.Tuning.Workers <= 0 {
		c.Tuning.Workers = DefaultWorkers
	}
	if c.Tables.OwnerTagColumn == "" {
		c.Tables.OwnerTagColumn = "resource_tags_user_owner"
	}
	if c.Tables.ProjectTagColumn == "" {
		c.Tables.ProjectTagColumn = "resource_tags_user_project"
	}
}
