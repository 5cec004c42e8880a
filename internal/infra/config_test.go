package infra

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RUNPOD_ENDPOINT_ID", "ep-123")
	t.Setenv("RUNPOD_API_KEY", "test-key")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.RunpodBaseURL != "https://api.runpod.ai" {
		t.Fatalf("RunpodBaseURL mismatch: got %q", cfg.RunpodBaseURL)
	}
	if cfg.JobTimeout != 1800*time.Second {
		t.Fatalf("JobTimeout mismatch: got %s", cfg.JobTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.InlineLimit != 5<<20 {
		t.Fatalf("InlineLimit mismatch: got %d", cfg.InlineLimit)
	}
	if cfg.BatchWorkers != 4 {
		t.Fatalf("BatchWorkers mismatch: got %d", cfg.BatchWorkers)
	}
}

func TestLoadConfigRequiresEndpoint(t *testing.T) {
	t.Setenv("RUNPOD_ENDPOINT_ID", "")
	t.Setenv("RUNPOD_API_KEY", "test-key")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when RUNPOD_ENDPOINT_ID is missing")
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("RUNPOD_ENDPOINT_ID", "ep-123")
	t.Setenv("RUNPOD_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when RUNPOD_API_KEY is missing")
	}
}

func TestLoadConfigRejectsMalformedIntegers(t *testing.T) {
	t.Setenv("RUNPOD_ENDPOINT_ID", "ep-123")
	t.Setenv("RUNPOD_API_KEY", "test-key")
	t.Setenv("POLL_RETRIES", "abc")

	_, err := LoadConfig()
	if err == nil {
		t.Fatalf("expected error for POLL_RETRIES=abc")
	}
	if !strings.Contains(err.Error(), "POLL_RETRIES") {
		t.Fatalf("error %q does not name the offending variable", err)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("RUNPOD_ENDPOINT_ID", "ep-123")
	t.Setenv("RUNPOD_API_KEY", "test-key")
	t.Setenv("JOB_TIMEOUT_SECONDS", "90")
	t.Setenv("POLL_INTERVAL_SECONDS", "1")
	t.Setenv("RUNPOD_BASE_URL", "https://mock.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobTimeout != 90*time.Second {
		t.Fatalf("JobTimeout mismatch: got %s", cfg.JobTimeout)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.RunpodBaseURL != "https://mock.example.com" {
		t.Fatalf("RunpodBaseURL mismatch: got %q", cfg.RunpodBaseURL)
	}
}
