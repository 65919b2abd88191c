package config

import (
	"time"

	redisclient "github.com/vietddude/docketbench/internal/infra/redis"
	"github.com/vietddude/docketbench/internal/infra/storage/postgres"
	"github.com/vietddude/docketbench/internal/retrieval/gatekeeper"
	"github.com/vietddude/docketbench/internal/retrieval/pipeline"
	"github.com/vietddude/docketbench/internal/retrieval/search"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig        `yaml:"server"`
	Dataset    DatasetConfig       `yaml:"dataset"`
	Budget     BudgetConfig        `yaml:"budget"`
	Search     SearchConfig        `yaml:"search"`
	Gatekeeper GatekeeperConfig    `yaml:"gatekeeper"`
	Fetch      FetchConfig         `yaml:"fetch"`
	Pipeline   pipeline.Config     `yaml:"pipeline"`
	Pool       pipeline.PoolConfig `yaml:"pool"`
	Redis      redisclient.Config  `yaml:"redis"`
	Database   postgres.Config     `yaml:"database"`
	Logging    LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the metrics endpoint settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatasetConfig points at the run's inputs and outputs on disk.
type DatasetConfig struct {
	DealsPath       string        `yaml:"deals_path"`
	GroundTruthPath string        `yaml:"ground_truth_path"`
	DownloadDir     string        `yaml:"download_dir"`
	LogDir          string        `yaml:"log_dir"`
	Retention       time.Duration `yaml:"retention"` // 0 = keep everything
}

// BudgetConfig bounds the run's external API spend.
type BudgetConfig struct {
	DailyQuota    int    `yaml:"daily_quota"`     // API calls per UTC day
	RatePerSecond int    `yaml:"rate_per_second"` // request rate cap
	StateFile     string `yaml:"state_file"`      // used when redis is not configured
}

// SearchConfig holds strategy settings.
type SearchConfig struct {
	CourtListener search.CourtListenerConfig `yaml:"courtlistener"`
	PortalEnabled bool                       `yaml:"portal_enabled"`
	AgentEnabled  bool                       `yaml:"agent_enabled"`
}

// GatekeeperConfig holds evaluator settings.
type GatekeeperConfig struct {
	Decision gatekeeper.Config      `yaml:"decision"`
	Model    gatekeeper.ModelConfig `yaml:"model"`
}

// FetchConfig holds download settings.
type FetchConfig struct {
	MaxBytes     int64         `yaml:"max_bytes"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}
