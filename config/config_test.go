package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "app:\n  name: testflow\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.App.Name != "testflow" {
		t.Errorf("expected name testflow, got %s", cfg.App.Name)
	}
	if cfg.Feed.Reconnect.BaseDelay.Std() != time.Second {
		t.Errorf("expected 1s base delay, got %s", cfg.Feed.Reconnect.BaseDelay.Std())
	}
	if cfg.Feed.Reconnect.MaxDelay.Std() != 30*time.Second {
		t.Errorf("expected 30s max delay, got %s", cfg.Feed.Reconnect.MaxDelay.Std())
	}
	if cfg.Recovery.GapThresholdMs != 5000 {
		t.Errorf("expected 5000ms gap threshold, got %d", cfg.Recovery.GapThresholdMs)
	}
	if cfg.Storage.S3.Prefix != "orderbook" {
		t.Errorf("expected orderbook prefix, got %s", cfg.Storage.S3.Prefix)
	}
	if cfg.Storage.S3.Extension != "avro" {
		t.Errorf("expected avro extension, got %s", cfg.Storage.S3.Extension)
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_S3_BUCKET", "depth-archive")

	path := writeConfigFile(t, `
storage:
  s3:
    enabled: true
    bucket: ${TEST_S3_BUCKET}
    region: us-east-1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.S3.Bucket != "depth-archive" {
		t.Errorf("expected expanded bucket, got %q", cfg.Storage.S3.Bucket)
	}
}

func TestLoadConfigRejectsMissingBucket(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  s3:
    enabled: true
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for enabled s3 without bucket")
	}
}

func TestLoadConfigRejectsInvertedBackoff(t *testing.T) {
	path := writeConfigFile(t, `
feed:
  reconnect:
    base_delay: 1m
    max_delay: 30s
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for base delay above max delay")
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if env := AppEnvironment(); env != EnvironmentProduction {
		t.Errorf("expected production, got %s", env)
	}
	if !IsProductionLike(EnvironmentStaging) {
		t.Error("staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
}
