// Package config loads and validates paperboy configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/paperboydev/paperboy/internal/edition"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Selectors SelectorConfig  `mapstructure:"selectors"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Email     EmailConfig     `mapstructure:"email"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig identifies the edition source and its login endpoint.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	LoginURL string `mapstructure:"login_url"`
	// EditionPath is the path of the page carrying the download link,
	// with {date} substituted by the target date.
	EditionPath string `mapstructure:"edition_path"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// SelectorConfig holds the raw ordered locator lists; they are normalized
// into an edition.SelectorSet at load time, not inside the resolver.
type SelectorConfig struct {
	Username     []string `mapstructure:"username"`
	Password     []string `mapstructure:"password"`
	Submit       []string `mapstructure:"submit"`
	LoginSuccess []string `mapstructure:"login_success"`
	DownloadLink []string `mapstructure:"download_link"`
}

// FetchConfig governs the HTTP strategy and retry behavior.
type FetchConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	MinArtifactBytes int64  `mapstructure:"min_artifact_bytes"`
	UserAgent        string `mapstructure:"user_agent"`
}

// BrowserConfig configures the headless escalation subsystem.
type BrowserConfig struct {
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	NavQPS        float64 `mapstructure:"nav_qps"`
}

// ThumbnailConfig controls the preview renderer cascade.
type ThumbnailConfig struct {
	MaxDim        int    `mapstructure:"max_dim"`
	Quality       int    `mapstructure:"quality"`
	PopplerBinary string `mapstructure:"poppler_binary"`
}

// StorageConfig selects and parameterizes the archive blob store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"` // s3 | gcs | local | noop
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	// S3-compatible endpoints (Cloudflare R2, MinIO) set Endpoint and keys.
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	LocalDir  string `mapstructure:"local_dir"`
}

// EmailConfig controls daily and alert mail delivery.
type EmailConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	SMTPHost       string   `mapstructure:"smtp_host"`
	SMTPPort       int      `mapstructure:"smtp_port"`
	SMTPUser       string   `mapstructure:"smtp_user"`
	SMTPPass       string   `mapstructure:"smtp_pass"`
	Sender         string   `mapstructure:"sender"`
	Recipients     []string `mapstructure:"recipients"`
	AlertRecipient string   `mapstructure:"alert_recipient"`
	LinkTTLHours   int      `mapstructure:"link_ttl_hours"`
}

// DBConfig controls the run-history store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // postgres | memory
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// PubSubConfig holds metadata for run-outcome notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls the dashboard HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	AuthEnabled bool   `mapstructure:"auth_enabled"`
	APIKey      string `mapstructure:"api_key"`
}

// ScheduleConfig fires the daily run.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	At       string `mapstructure:"at"` // "06:30"
	Timezone string `mapstructure:"timezone"`
}

// PathsConfig sets local working directories.
type PathsConfig struct {
	DownloadDir string `mapstructure:"download_dir"`
}

// RetentionConfig bounds the archive and the email link list.
type RetentionConfig struct {
	Days     int `mapstructure:"days"`
	LinkDays int `mapstructure:"link_days"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAPERBOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/paperboy/")
		v.AddConfigPath("$HOME/.paperboy")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.edition_path", "editions/{date}")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 5000)
	v.SetDefault("fetch.min_artifact_bytes", 10*1024)
	v.SetDefault("fetch.user_agent", "paperboy/1.0 (+https://github.com/paperboydev/paperboy)")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.nav_qps", 0.5)
	v.SetDefault("thumbnail.max_dim", 480)
	v.SetDefault("thumbnail.quality", 85)
	v.SetDefault("thumbnail.poppler_binary", "pdftoppm")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.prefix", "editions")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.local_dir", "data/archive")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.link_ttl_hours", 24)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.table", "runs")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.at", "06:30")
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("paths.download_dir", "downloads")
	v.SetDefault("retention.days", 7)
	v.SetDefault("retention.link_days", 7)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. It fails fast on
// the critical keys the pipeline cannot run without.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url is not a valid URL: %w", err)
	}
	if c.Site.LoginURL != "" {
		if _, err := url.ParseRequestURI(c.Site.LoginURL); err != nil {
			return fmt.Errorf("site.login_url is not a valid URL: %w", err)
		}
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.MinArtifactBytes <= 0 {
		return fmt.Errorf("fetch.min_artifact_bytes must be > 0")
	}
	switch c.Storage.Provider {
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for provider %q", c.Storage.Provider)
		}
	case "local", "noop":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Email.Enabled {
		if c.Email.Sender == "" || len(c.Email.Recipients) == 0 {
			return fmt.Errorf("email.sender and email.recipients are required when email is enabled")
		}
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required when email is enabled")
		}
	}
	if c.Server.AuthEnabled && c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key must be set when auth is enabled")
	}
	if c.Schedule.Enabled {
		if _, err := time.Parse("15:04", c.Schedule.At); err != nil {
			return fmt.Errorf("schedule.at must be HH:MM: %w", err)
		}
	}
	if _, err := c.SelectorSet(); err != nil {
		return err
	}
	return nil
}

// SelectorSet normalizes the configured locator lists.
func (c Config) SelectorSet() (edition.SelectorSet, error) {
	return edition.NewSelectorSet(
		c.Selectors.Username,
		c.Selectors.Password,
		c.Selectors.Submit,
		c.Selectors.LoginSuccess,
		c.Selectors.DownloadLink,
	)
}

// Credentials returns the site login pair.
func (c Config) Credentials() edition.Credentials {
	return edition.Credentials{Identity: c.Site.Username, Secret: c.Site.Password}
}

// FetchTimeout converts the per-call timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout bounds a single browser navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// BackoffInitial is the base delay for in-strategy retries.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Fetch.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the in-strategy retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Fetch.BackoffMaxMs) * time.Millisecond
}
