package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Dataset.DownloadDir == "" {
		cfg.Dataset.DownloadDir = "downloads"
	}
	if cfg.Dataset.LogDir == "" {
		cfg.Dataset.LogDir = "logs"
	}
	if cfg.Budget.DailyQuota == 0 {
		cfg.Budget.DailyQuota = 4800
	}
	if cfg.Budget.RatePerSecond == 0 {
		cfg.Budget.RatePerSecond = 10
	}
	if cfg.Budget.StateFile == "" {
		cfg.Budget.StateFile = "budget_state.json"
	}
	if cfg.Search.CourtListener.SearchURL == "" {
		cfg.Search.CourtListener.SearchURL = "https://www.courtlistener.com/api/rest/v4/search/"
	}
	if cfg.Search.CourtListener.Timeout == 0 {
		cfg.Search.CourtListener.Timeout = 30 * time.Second
	}
	if cfg.Gatekeeper.Decision.ScoreThreshold == 0 {
		cfg.Gatekeeper.Decision.ScoreThreshold = 0.70
	}
	if cfg.Gatekeeper.Decision.MaxCallsNumber == 0 {
		cfg.Gatekeeper.Decision.MaxCallsNumber = 3
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = 52_428_800
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 60 * time.Second
	}
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = 3
	}
	if cfg.Fetch.InitialDelay == 0 {
		cfg.Fetch.InitialDelay = 2 * time.Second
	}
	if cfg.Fetch.MaxDelay == 0 {
		cfg.Fetch.MaxDelay = 10 * time.Second
	}
	if cfg.Pipeline.MaxSearchAttempts == 0 {
		cfg.Pipeline.MaxSearchAttempts = 3
	}
	if cfg.Pipeline.AttemptBudget == 0 {
		cfg.Pipeline.AttemptBudget = 6
	}
	if cfg.Pool.Workers == 0 {
		cfg.Pool.Workers = 4
	}
	if cfg.Pool.RunTimeout == 0 {
		cfg.Pool.RunTimeout = 2 * time.Hour
	}
	if cfg.Pool.WarnRemaining == 0 {
		cfg.Pool.WarnRemaining = 50
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Dataset.DealsPath == "" {
		return fmt.Errorf("dataset.deals_path is required")
	}
	if c.Budget.DailyQuota < 0 {
		return fmt.Errorf("budget.daily_quota must be non-negative")
	}
	if t := c.Gatekeeper.Decision.ScoreThreshold; t < 0 || t > 1 {
		return fmt.Errorf("gatekeeper.decision.score_threshold must be in [0, 1], got %v", t)
	}
	return nil
}
