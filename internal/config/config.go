// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution, plus an environment
// overlay for credentials that should never live in a config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Locations     []LocationConfig    `yaml:"locations"`
	Watch         WatchConfig         `yaml:"watch"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// UpstreamConfig defines the reservation platform endpoints.
type UpstreamConfig struct {
	GraphQLURL string          `yaml:"graphql_url"`
	SiteURL    string          `yaml:"site_url"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig throttles upstream queries.
type RateLimitConfig struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// LocationConfig defines one parking location to watch.
type LocationConfig struct {
	Key         string `yaml:"key"`
	Label       string `yaml:"label"`
	InventoryID string `yaml:"inventory_id"`
}

// WatchConfig defines what to watch and how often.
type WatchConfig struct {
	Dates       []string      `yaml:"dates"`
	NotifyDates []string      `yaml:"notify_dates"`
	Location    string        `yaml:"location"` // a location key, or "both"
	Interval    time.Duration `yaml:"interval"` // 0 means one-shot
	StopOnFound bool          `yaml:"stop_on_found"`
	Heartbeat   bool          `yaml:"heartbeat"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Desktop DesktopConfig `yaml:"desktop"`
	Ntfy    NtfyConfig    `yaml:"ntfy"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	SMS     SMSConfig     `yaml:"sms"`
}

// DesktopConfig defines the local popup channel.
type DesktopConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NtfyConfig defines ntfy push settings.
type NtfyConfig struct {
	Server string `yaml:"server"`
	Topic  string `yaml:"topic"`
}

// SMTPConfig defines email submission settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// SMSConfig defines SMS-over-email-gateway settings.
type SMSConfig struct {
	Phone   string `yaml:"phone"`
	Carrier string `yaml:"carrier"`
}

// ServerConfig defines the optional health/metrics HTTP listener.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// envOverrides are credentials and per-user settings read from the
// environment (or a .env file) after the YAML is parsed. A set variable
// wins over the file.
type envOverrides struct {
	NtfyServer   string `envconfig:"NTFY_SERVER"`
	NtfyTopic    string `envconfig:"NTFY_TOPIC"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASS"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPTo       string `envconfig:"SMTP_TO"`
	SMSPhone     string `envconfig:"SMS_PHONE"`
	SMSCarrier   string `envconfig:"SMS_CARRIER"`
}

// Load reads and parses a YAML config file, performing environment variable
// substitution, the environment overlay, defaulting, and validation. An
// empty path loads defaults and environment only, so the CLI can run
// entirely from flags.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the YAML content.
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	n := &cfg.Notifications
	if env.NtfyServer != "" {
		n.Ntfy.Server = env.NtfyServer
	}
	if env.NtfyTopic != "" {
		n.Ntfy.Topic = env.NtfyTopic
	}
	if env.SMTPHost != "" {
		n.SMTP.Host = env.SMTPHost
	}
	if env.SMTPPort != 0 {
		n.SMTP.Port = env.SMTPPort
	}
	if env.SMTPUser != "" {
		n.SMTP.User = env.SMTPUser
	}
	if env.SMTPPassword != "" {
		n.SMTP.Password = env.SMTPPassword
	}
	if env.SMTPFrom != "" {
		n.SMTP.From = env.SMTPFrom
	}
	if env.SMTPTo != "" {
		n.SMTP.To = env.SMTPTo
	}
	if env.SMSPhone != "" {
		n.SMS.Phone = env.SMSPhone
	}
	if env.SMSCarrier != "" {
		n.SMS.Carrier = env.SMSCarrier
	}

	return nil
}

func applyDefaults(cfg *Config) {
	applyUpstreamDefaults(&cfg.Upstream)
	applyLocationDefaults(cfg)
	applyWatchDefaults(&cfg.Watch)
	applyNotificationDefaults(&cfg.Notifications)
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	if u.RateLimit.Interval == 0 {
		u.RateLimit.Interval = 2 * time.Second
	}
	if u.RateLimit.Burst == 0 {
		u.RateLimit.Burst = 1
	}
}

func applyLocationDefaults(cfg *Config) {
	if len(cfg.Locations) == 0 {
		cfg.Locations = []LocationConfig{
			{Key: "palisades", Label: "PALISADES", InventoryID: "G6HG"},
			{Key: "alpine", Label: "ALPINE", InventoryID: "eauZ"},
		}
		return
	}
	for i := range cfg.Locations {
		if cfg.Locations[i].Label == "" {
			cfg.Locations[i].Label = strings.ToUpper(cfg.Locations[i].Key)
		}
	}
}

func applyWatchDefaults(w *WatchConfig) {
	if w.Location == "" {
		w.Location = "both"
	}
}

func applyNotificationDefaults(n *NotificationsConfig) {
	if n.Ntfy.Server == "" {
		n.Ntfy.Server = "https://ntfy.sh"
	}
	if n.SMTP.Port == 0 {
		n.SMTP.Port = 587
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Listen == "" {
		s.Listen = ":8080"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	seen := make(map[string]bool, len(cfg.Locations))
	for i, loc := range cfg.Locations {
		if loc.Key == "" {
			errs = append(errs, fmt.Errorf("locations[%d].key is required", i))
			continue
		}
		if seen[loc.Key] {
			errs = append(errs, fmt.Errorf("locations[%d].key %q is duplicated", i, loc.Key))
		}
		seen[loc.Key] = true
		if loc.InventoryID == "" {
			errs = append(errs, fmt.Errorf("locations[%d].inventory_id is required", i))
		}
	}

	if cfg.Watch.Location != "both" && !seen[cfg.Watch.Location] {
		errs = append(errs, fmt.Errorf(
			"watch.location %q is not a configured location key", cfg.Watch.Location,
		))
	}

	if cfg.Upstream.RateLimit.Interval < 0 {
		errs = append(errs, fmt.Errorf("upstream.rate_limit.interval must not be negative"))
	}
	if cfg.Watch.Interval < 0 {
		errs = append(errs, fmt.Errorf("watch.interval must not be negative"))
	}

	if cfg.Notifications.SMS.Phone != "" && cfg.Notifications.SMS.Carrier == "" {
		errs = append(errs, fmt.Errorf("notifications.sms.carrier is required with a phone"))
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not valid", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not valid", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

// WatchedLocations resolves watch.location against the configured locations,
// in configuration order.
func (c *Config) WatchedLocations() []domain.Location {
	var out []domain.Location
	for _, loc := range c.Locations {
		if c.Watch.Location == "both" || c.Watch.Location == loc.Key {
			out = append(out, domain.Location{
				Key:         loc.Key,
				Label:       loc.Label,
				InventoryID: loc.InventoryID,
			})
		}
	}
	return out
}
