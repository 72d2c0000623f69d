// Package config loads shiftbook configuration.
//
// A .env file in the working directory is loaded into the process
// environment first and never overrides variables that are already set.
// Precedence, lowest first: built-in defaults, the YAML file (with ${VAR}
// expansion from that environment), SHIFTBOOK_* environment variables. CLI
// flags are applied by the binary on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/warp/shiftbook/shift"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHIFTBOOK_"

// Config is the full runtime configuration.
type Config struct {
	DBPath          string   `yaml:"db_path"`
	ListenAddr      string   `yaml:"listen_addr"`
	Locale          string   `yaml:"locale"`
	DefaultCurrency string   `yaml:"default_currency"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	AllowedOrigins  []string `yaml:"allowed_origins"`

	Backup        Backup        `yaml:"backup"`
	SpecialToggle SpecialToggle `yaml:"special_toggle"`
}

// Backup configures periodic export snapshots. An empty Dir disables them.
type Backup struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
}

// SpecialToggle names the shift ids evicted when a date's special flag flips.
type SpecialToggle struct {
	OnEnableRemove  string `yaml:"on_enable_remove"`
	OnDisableRemove string `yaml:"on_disable_remove"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:         "shiftbook.db",
		ListenAddr:     "127.0.0.1:8080",
		Locale:         "en-US",
		LogLevel:       "info",
		LogFormat:      "text",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		Backup: Backup{
			Interval: 24 * time.Hour,
			Keep:     7,
		},
		SpecialToggle: SpecialToggle{
			OnEnableRemove:  "day",
			OnDisableRemove: "holiday",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// non-empty path must exist.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("DB_PATH", &c.DBPath)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("LOCALE", &c.Locale)
	str("DEFAULT_CURRENCY", &c.DefaultCurrency)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("BACKUP_DIR", &c.Backup.Dir)
	str("SPECIAL_TOGGLE_ON_ENABLE_REMOVE", &c.SpecialToggle.OnEnableRemove)
	str("SPECIAL_TOGGLE_ON_DISABLE_REMOVE", &c.SpecialToggle.OnDisableRemove)

	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "BACKUP_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sBACKUP_INTERVAL: %w", EnvPrefix, err)
		}
		c.Backup.Interval = d
	}
	if v, ok := lookup(EnvPrefix + "BACKUP_KEEP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBACKUP_KEEP: %w", EnvPrefix, err)
		}
		c.Backup.Keep = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.DefaultCurrency))
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = CurrencyForLocale(c.Locale)
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if _, err := currency.ParseISO(c.DefaultCurrency); err != nil {
		errs = append(errs, fmt.Errorf("default_currency %q is not an ISO 4217 code", c.DefaultCurrency))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	if c.Backup.Dir != "" {
		if c.Backup.Interval < time.Minute {
			errs = append(errs, fmt.Errorf("backup.interval %s must be at least 1m", c.Backup.Interval))
		}
		if c.Backup.Keep < 1 {
			errs = append(errs, fmt.Errorf("backup.keep must be positive, got %d", c.Backup.Keep))
		}
	}
	return errors.Join(errs...)
}

// CurrencyForLocale derives the currency of a BCP 47 locale's region,
// falling back to shift.DefaultCurrency.
func CurrencyForLocale(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return shift.DefaultCurrency
	}
	region, conf := tag.Region()
	if conf == language.No {
		return shift.DefaultCurrency
	}
	unit, ok := currency.FromRegion(region)
	if !ok {
		return shift.DefaultCurrency
	}
	return unit.String()
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q must be debug, info, warn or error", s)
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
