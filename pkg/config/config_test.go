package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Site.BaseURL != "https://cy.cyworld.com" {
		t.Errorf("Expected default base URL, got %s", config.Site.BaseURL)
	}

	if config.Retry.InitialBackoff != 10*time.Second || config.Retry.BackoffIncrement != 10*time.Second {
		t.Errorf("Expected 10s/10s backoff, got %v/%v", config.Retry.InitialBackoff, config.Retry.BackoffIncrement)
	}

	if config.Retry.GraceThreshold != 20*time.Second {
		t.Errorf("Expected grace threshold of 20s, got %v", config.Retry.GraceThreshold)
	}

	if config.Retry.MaxAttempts != 0 {
		t.Errorf("Expected unlimited attempts by default, got %d", config.Retry.MaxAttempts)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CYWORLD_EMAIL", "me@example.com")
	t.Setenv("CYWORLD_PASSWORD", "hunter2")
	t.Setenv("CYARCHIVE_OUTPUT_DIR", "/tmp/test-archive")
	t.Setenv("CYARCHIVE_HEADLESS", "true")
	t.Setenv("CYARCHIVE_REQUESTS_PER_MINUTE", "30")
	t.Setenv("CYARCHIVE_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Credentials.Email != "me@example.com" {
		t.Errorf("Expected email me@example.com, got %s", config.Credentials.Email)
	}
	if config.Credentials.Password != "hunter2" {
		t.Errorf("Expected password to be loaded")
	}
	if !config.HasCredentials() {
		t.Error("Expected credentials to be complete")
	}
	if config.Output.BaseDirectory != "/tmp/test-archive" {
		t.Errorf("Expected output directory /tmp/test-archive, got %s", config.Output.BaseDirectory)
	}
	if !config.Browser.Headless {
		t.Error("Expected headless browser")
	}
	if config.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected 30 requests per minute, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidBool(t *testing.T) {
	t.Setenv("CYARCHIVE_HEADLESS", "sometimes")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for invalid boolean")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "same set files",
			mutate:  func(c *Config) { c.Download.CompletionSetFile = c.Crawl.IDSetFile },
			wantErr: "must differ",
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *Config) { c.Retry.MaxBackoff = time.Second },
			wantErr: "max backoff",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = -1 },
			wantErr: "max attempts",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "zero wait timeout",
			mutate:  func(c *Config) { c.Browser.WaitTimeout = 0 },
			wantErr: "wait timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyarchive.yaml")

	content := `
site:
  base_url: "http://localhost:8080"
crawl:
  id_set_file: "ids.txt"
  page_delay: 2s
retry:
  initial_backoff: 5s
  grace_threshold: 15s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Site.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected base URL override, got %s", config.Site.BaseURL)
	}
	if config.Crawl.IDSetFile != "ids.txt" {
		t.Errorf("Expected ids.txt, got %s", config.Crawl.IDSetFile)
	}
	if config.Crawl.PageDelay != 2*time.Second {
		t.Errorf("Expected 2s page delay, got %v", config.Crawl.PageDelay)
	}
	if config.Retry.InitialBackoff != 5*time.Second {
		t.Errorf("Expected 5s backoff, got %v", config.Retry.InitialBackoff)
	}
	// untouched keys keep defaults
	if config.Download.CompletionSetFile != "downloaded_ids.txt" {
		t.Errorf("Expected default completion file, got %s", config.Download.CompletionSetFile)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Output.BaseDirectory = "/srv/archive"
	original.Crawl.MaxPages = 7

	if err := original.Save(path); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}

	if reloaded.Output.BaseDirectory != "/srv/archive" || reloaded.Crawl.MaxPages != 7 {
		t.Errorf("Round trip lost values: %+v", reloaded.Crawl)
	}
	if reloaded.Retry.GraceThreshold != original.Retry.GraceThreshold {
		t.Errorf("Duration did not survive round trip: %v", reloaded.Retry.GraceThreshold)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"output":     "/flags/out",
		"headless":   true,
		"max-pages":  3,
		"page-delay": 500 * time.Millisecond,
		"log-level":  "warn",
	})

	if config.Output.BaseDirectory != "/flags/out" {
		t.Errorf("Expected /flags/out, got %s", config.Output.BaseDirectory)
	}
	if !config.Browser.Headless {
		t.Error("Expected headless from flags")
	}
	if config.Crawl.MaxPages != 3 {
		t.Errorf("Expected max pages 3, got %d", config.Crawl.MaxPages)
	}
	if config.Crawl.PageDelay != 500*time.Millisecond {
		t.Errorf("Expected 500ms page delay, got %v", config.Crawl.PageDelay)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected warn, got %s", config.Logging.Level)
	}
}
