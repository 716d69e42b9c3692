package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paperboydev/paperboy/internal/edition"
)

func validConfig() Config {
	var cfg Config
	cfg.Site.BaseURL = "https://paper.example.com"
	cfg.Fetch.TimeoutSeconds = 30
	cfg.Fetch.MaxRetries = 3
	cfg.Fetch.MinArtifactBytes = 1024
	cfg.Storage.Provider = "local"
	cfg.Storage.LocalDir = "data/archive"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Site.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "malformed base url",
			mutate:  func(c *Config) { c.Site.BaseURL = "not a url" },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Fetch.TimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "zero min artifact bytes",
			mutate:  func(c *Config) { c.Fetch.MinArtifactBytes = 0 },
			wantErr: true,
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "ftp" },
			wantErr: true,
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.Provider = "s3"
				c.Storage.Bucket = ""
			},
			wantErr: true,
		},
		{
			name: "email enabled without recipients",
			mutate: func(c *Config) {
				c.Email.Enabled = true
				c.Email.Sender = "paperboy@example.com"
				c.Email.SMTPHost = "smtp.example.com"
			},
			wantErr: true,
		},
		{
			name: "auth enabled without key",
			mutate: func(c *Config) {
				c.Server.AuthEnabled = true
			},
			wantErr: true,
		},
		{
			name: "bad schedule time",
			mutate: func(c *Config) {
				c.Schedule.Enabled = true
				c.Schedule.At = "6am"
			},
			wantErr: true,
		},
		{
			name: "bad download selector",
			mutate: func(c *Config) {
				c.Selectors.DownloadLink = []string{"suffix:"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
site:
  base_url: https://paper.example.com
  username: reader
  password: hunter2
selectors:
  download_link:
    - "css:a.download"
    - "suffix:.pdf"
storage:
  provider: local
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fetch.MaxRetries != 3 {
		t.Fatalf("fetch.max_retries default = %d, want 3", cfg.Fetch.MaxRetries)
	}
	if cfg.Retention.Days != 7 {
		t.Fatalf("retention.days default = %d, want 7", cfg.Retention.Days)
	}
	if got := cfg.FetchTimeout(); got != 30*time.Second {
		t.Fatalf("FetchTimeout() = %v, want 30s", got)
	}

	creds := cfg.Credentials()
	if creds.Identity != "reader" || creds.Secret != "hunter2" {
		t.Fatal("credentials not loaded from file")
	}

	set, err := cfg.SelectorSet()
	if err != nil {
		t.Fatalf("SelectorSet() error = %v", err)
	}
	want := []edition.Locator{
		{Kind: edition.LocatorCSS, Expr: "a.download"},
		{Kind: edition.LocatorPattern, Expr: ".pdf"},
	}
	got := set.DownloadCandidates()
	if len(got) != len(want) {
		t.Fatalf("download candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("site:\n  base_url: ''\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected validation error")
	}
}
