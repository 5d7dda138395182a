package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes a single external iCal feed merged into the
// primary schedule.
type FeedConfig struct {
	// URL is the iCal endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the provenance label attached to courses from this feed.
	Name string `yaml:"name" json:"name"`
}

// PortalConfig holds the upstream timetable portal endpoint settings.
type PortalConfig struct {
	// BaseURL is the portal query endpoint (the full .aspx path).
	BaseURL string `yaml:"base_url" json:"base_url"`
	// UserAgent is sent on every portal request.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// TimeoutSeconds bounds each portal request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RateLimitConfig controls the fixed-window per-client limiter on /proxy.
type RateLimitConfig struct {
	Max           int `yaml:"max" json:"max"`
	WindowMinutes int `yaml:"window_minutes" json:"window_minutes"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the portal publishes wall-clock
	// times in (e.g. "Europe/Paris"). All exported events carry it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ExportWeeks is the number of weeks covered by the iCal export.
	ExportWeeks int `yaml:"export_weeks" json:"export_weeks"`

	// RefreshCron re-warms cached calendars for protected users
	// (e.g. "*/30 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Feeds is the list of external iCal sources merged into every
	// aggregation run.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// FeedCacheDir is where the feed fetcher keeps its HTTP cache.
	FeedCacheDir string `yaml:"feed_cache_dir" json:"feed_cache_dir"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// ProtectedUsers lists identifiers gated behind the PIN login and
	// pre-warmed by the refresh cron. Overridable via EDTCAL_PROTECTED_USERS
	// (comma-separated).
	ProtectedUsers []string `yaml:"protected_users" json:"protected_users"`

	// PIN is the shared secondary gate for protected users.
	// Overridable via EDTCAL_PIN.
	PIN string `yaml:"pin" json:"pin"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		ExportWeeks: 8,
		RefreshCron: "*/30 * * * *",
		Portal: PortalConfig{
			BaseURL:        "https://edtmobiliteng.wigorservices.net/WebPsDyn.aspx",
			UserAgent:      "Mozilla/5.0 (compatible; edtcal/1.0)",
			TimeoutSeconds: 20,
		},
		Feeds:        []FeedConfig{},
		FeedCacheDir: "./var/feed-cache",
		RateLimit: RateLimitConfig{
			Max:           60,
			WindowMinutes: 5,
		},
		ProtectedUsers: []string{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly, and applies
// environment overrides for the secrets.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.ExportWeeks <= 0 {
		c.ExportWeeks = def.ExportWeeks
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = def.Portal.BaseURL
	}
	if c.Portal.UserAgent == "" {
		c.Portal.UserAgent = def.Portal.UserAgent
	}
	if c.Portal.TimeoutSeconds <= 0 {
		c.Portal.TimeoutSeconds = def.Portal.TimeoutSeconds
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = def.FeedCacheDir
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = def.RateLimit.Max
	}
	if c.RateLimit.WindowMinutes <= 0 {
		c.RateLimit.WindowMinutes = def.RateLimit.WindowMinutes
	}
	if c.ProtectedUsers == nil {
		c.ProtectedUsers = []string{}
	}

	if env := os.Getenv("EDTCAL_PROTECTED_USERS"); env != "" {
		users := make([]string, 0)
		for _, u := range strings.Split(env, ",") {
			if u = strings.TrimSpace(u); u != "" {
				users = append(users, u)
			}
		}
		c.ProtectedUsers = users
	}
	if env := os.Getenv("EDTCAL_PIN"); env != "" {
		c.PIN = env
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: write a default config with 0600
//     perms (creating the parent directory) and return the defaults.
//   - If the file exists: unmarshal and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Normalize()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".edtcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
