package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_CL_TOKEN", "token-abc123")
	defer os.Unsetenv("TEST_CL_TOKEN")

	configContent := `
dataset:
  deals_path: deals.json
search:
  courtlistener:
    api_token: ${TEST_CL_TOKEN}
`
	cfg, err := Load(writeTempConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Search.CourtListener.APIToken != "token-abc123" {
		t.Errorf("Expected token token-abc123, got %s", cfg.Search.CourtListener.APIToken)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
dataset:
  deals_path: deals.json
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Budget.DailyQuota != 4800 {
		t.Errorf("Expected default daily quota 4800, got %d", cfg.Budget.DailyQuota)
	}
	if cfg.Budget.RatePerSecond != 10 {
		t.Errorf("Expected default rate 10, got %d", cfg.Budget.RatePerSecond)
	}
	if cfg.Gatekeeper.Decision.ScoreThreshold != 0.70 {
		t.Errorf("Expected default threshold 0.70, got %v", cfg.Gatekeeper.Decision.ScoreThreshold)
	}
	if cfg.Fetch.MaxBytes != 52_428_800 {
		t.Errorf("Expected default fetch ceiling 52428800, got %d", cfg.Fetch.MaxBytes)
	}
	if cfg.Pool.Workers != 4 {
		t.Errorf("Expected default 4 workers, got %d", cfg.Pool.Workers)
	}
	if cfg.Pool.RunTimeout != 2*time.Hour {
		t.Errorf("Expected default run timeout 2h, got %v", cfg.Pool.RunTimeout)
	}
	if cfg.Search.CourtListener.SearchURL == "" {
		t.Error("Expected default search URL applied")
	}
}

func TestLoad_ExplicitValuesSurviveDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
dataset:
  deals_path: deals.json
budget:
  daily_quota: 100
pool:
  workers: 2
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Budget.DailyQuota != 100 {
		t.Errorf("Expected quota 100, got %d", cfg.Budget.DailyQuota)
	}
	if cfg.Pool.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Pool.Workers)
	}
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		cfg, err := Load(writeTempConfig(t, "dataset:\n  deals_path: deals.json\n"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg = base()
	cfg.Dataset.DealsPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for missing deals_path")
	}

	cfg = base()
	cfg.Budget.DailyQuota = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative daily quota")
	}

	cfg = base()
	cfg.Gatekeeper.Decision.ScoreThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for threshold outside [0,1]")
	}
}
