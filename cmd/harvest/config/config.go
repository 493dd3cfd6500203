package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the harvest server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Harvest HarvestConfig `yaml:"harvest"`
	PDF     PDFConfig     `yaml:"pdf"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`

	// Import names a JSON file of entries recorded at startup.
	Import string `yaml:"import"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// HarvestConfig holds ledger and document settings.
type HarvestConfig struct {
	FarmName          string  `yaml:"farm_name"`
	Locale            string  `yaml:"locale"`
	Timezone          string  `yaml:"timezone"`
	DefaultPricePerKg float64 `yaml:"default_price_per_kg"`
	ReceiptFilename   string  `yaml:"receipt_filename"`
	SummaryFilename   string  `yaml:"summary_filename"`
	HistoryLimit      int     `yaml:"history_limit"`
}

// PDFConfig holds render host and pipeline settings.
type PDFConfig struct {
	ChromiumPath         string        `yaml:"chromium_path"`
	Headless             bool          `yaml:"headless"`
	Args                 []string      `yaml:"args"`
	Width                int           `yaml:"width"`
	Scale                float64       `yaml:"scale"`
	Timeout              time.Duration `yaml:"timeout"`
	SettleMode           string        `yaml:"settle_mode"`
	SettleDelay          time.Duration `yaml:"settle_delay"`
	ExternalAssetsPolicy string        `yaml:"external_assets_policy"`
	BaseURL              string        `yaml:"base_url"`
}

// StorageConfig selects where documents and export history live.
// An empty DocumentDir keeps documents in memory.
type StorageConfig struct {
	DocumentDir string `yaml:"document_dir"`
	Tracker     string `yaml:"tracker"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	TrackerMemory = "memory"
	TrackerSQLite = "sqlite"
)

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Harvest: HarvestConfig{
			FarmName:          `Finca "La Esperanza"`,
			Locale:            "es-CO",
			DefaultPricePerKg: 3000,
			HistoryLimit:      10,
		},
		PDF: PDFConfig{
			Headless:             true,
			Width:                800,
			Scale:                2,
			Timeout:              30 * time.Second,
			SettleMode:           "signal",
			SettleDelay:          100 * time.Millisecond,
			ExternalAssetsPolicy: "allow",
		},
		Storage: StorageConfig{
			Tracker: TrackerMemory,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over cfg.
func Load(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Resolve builds the effective configuration from defaults, an optional YAML
// file, HARVEST_* environment variables and command-line flags, in that order.
func Resolve(args []string, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	fs := pflag.NewFlagSet("harvest", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	path, _ := fs.GetString("config")
	if path == "" {
		path, _ = lookup("HARVEST_CONFIG")
	}
	if path != "" {
		if err := Load(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := ApplyFlags(fs, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server port is required")
	}
	switch c.PDF.SettleMode {
	case "signal", "delay":
	default:
		return fmt.Errorf("invalid settle mode %q", c.PDF.SettleMode)
	}
	switch c.PDF.ExternalAssetsPolicy {
	case "allow", "block":
	default:
		return fmt.Errorf("invalid external assets policy %q", c.PDF.ExternalAssetsPolicy)
	}
	switch c.Storage.Tracker {
	case TrackerMemory, TrackerSQLite:
	default:
		return fmt.Errorf("invalid tracker %q", c.Storage.Tracker)
	}
	if c.PDF.Width < 0 || c.PDF.Scale < 0 || c.PDF.Timeout < 0 {
		return fmt.Errorf("pdf width, scale and timeout must not be negative")
	}
	if c.Harvest.DefaultPricePerKg < 0 {
		return fmt.Errorf("default price per kg must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"PORT", setString(func(c *Config) *string { return &c.Server.Port })},
	{"HARVEST_HOST", setString(func(c *Config) *string { return &c.Server.Host })},
	{"HARVEST_PORT", setString(func(c *Config) *string { return &c.Server.Port })},
	{"HARVEST_FARM_NAME", setString(func(c *Config) *string { return &c.Harvest.FarmName })},
	{"HARVEST_LOCALE", setString(func(c *Config) *string { return &c.Harvest.Locale })},
	{"HARVEST_TIMEZONE", setString(func(c *Config) *string { return &c.Harvest.Timezone })},
	{"HARVEST_DEFAULT_PRICE", setFloat(func(c *Config) *float64 { return &c.Harvest.DefaultPricePerKg })},
	{"HARVEST_RECEIPT_FILENAME", setString(func(c *Config) *string { return &c.Harvest.ReceiptFilename })},
	{"HARVEST_SUMMARY_FILENAME", setString(func(c *Config) *string { return &c.Harvest.SummaryFilename })},
	{"HARVEST_HISTORY_LIMIT", setInt(func(c *Config) *int { return &c.Harvest.HistoryLimit })},
	{"HARVEST_CHROMIUM_PATH", setString(func(c *Config) *string { return &c.PDF.ChromiumPath })},
	{"HARVEST_HEADLESS", setBool(func(c *Config) *bool { return &c.PDF.Headless })},
	{"HARVEST_CHROMIUM_ARGS", func(c *Config, value string) error {
		c.PDF.Args = splitCSV(value)
		return nil
	}},
	{"HARVEST_PDF_WIDTH", setInt(func(c *Config) *int { return &c.PDF.Width })},
	{"HARVEST_PDF_SCALE", setFloat(func(c *Config) *float64 { return &c.PDF.Scale })},
	{"HARVEST_PDF_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.PDF.Timeout })},
	{"HARVEST_SETTLE_MODE", setString(func(c *Config) *string { return &c.PDF.SettleMode })},
	{"HARVEST_SETTLE_DELAY", setDuration(func(c *Config) *time.Duration { return &c.PDF.SettleDelay })},
	{"HARVEST_EXTERNAL_ASSETS", setString(func(c *Config) *string { return &c.PDF.ExternalAssetsPolicy })},
	{"HARVEST_BASE_URL", setString(func(c *Config) *string { return &c.PDF.BaseURL })},
	{"HARVEST_DOCUMENT_DIR", setString(func(c *Config) *string { return &c.Storage.DocumentDir })},
	{"HARVEST_TRACKER", setString(func(c *Config) *string { return &c.Storage.Tracker })},
	{"HARVEST_LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
	{"HARVEST_LOG_DEVELOPMENT", setBool(func(c *Config) *bool { return &c.Log.Development })},
}

// ApplyEnv overrides cfg from environment variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := binding.apply(cfg, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s: %w", binding.name, err)
		}
	}
	return nil
}

// RegisterFlags declares the command-line flags.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("host", "", "listen host")
	fs.StringP("port", "p", "", "listen port")
	fs.String("farm-name", "", "farm name printed on documents")
	fs.String("timezone", "", "timezone used for entry dates")
	fs.Float64("default-price", 0, "default price per kg shown in the form")
	fs.String("chromium-path", "", "Chromium executable")
	fs.Bool("headless", true, "run Chromium headless")
	fs.StringSlice("chromium-arg", nil, "extra Chromium flag (repeatable)")
	fs.Duration("pdf-timeout", 0, "bound on mount, settle and capture")
	fs.String("settle-mode", "", "signal or delay")
	fs.String("external-assets", "", "allow or block network access while rendering")
	fs.String("document-dir", "", "store documents in this directory instead of memory")
	fs.String("tracker", "", "export history backend: memory or sqlite")
	fs.String("log-level", "", "log level")
	fs.Bool("dev", false, "development logging")
	fs.String("import", "", "record entries from a JSON file before serving")
}

// ApplyFlags overrides cfg with flags set on the command line.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	strs := map[string]*string{
		"host":            &cfg.Server.Host,
		"port":            &cfg.Server.Port,
		"farm-name":       &cfg.Harvest.FarmName,
		"timezone":        &cfg.Harvest.Timezone,
		"chromium-path":   &cfg.PDF.ChromiumPath,
		"settle-mode":     &cfg.PDF.SettleMode,
		"external-assets": &cfg.PDF.ExternalAssetsPolicy,
		"document-dir":    &cfg.Storage.DocumentDir,
		"tracker":         &cfg.Storage.Tracker,
		"log-level":       &cfg.Log.Level,
		"import":          &cfg.Import,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		value, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	var err error
	if fs.Changed("default-price") {
		if cfg.Harvest.DefaultPricePerKg, err = fs.GetFloat64("default-price"); err != nil {
			return err
		}
	}
	if fs.Changed("headless") {
		if cfg.PDF.Headless, err = fs.GetBool("headless"); err != nil {
			return err
		}
	}
	if fs.Changed("chromium-arg") {
		if cfg.PDF.Args, err = fs.GetStringSlice("chromium-arg"); err != nil {
			return err
		}
	}
	if fs.Changed("pdf-timeout") {
		if cfg.PDF.Timeout, err = fs.GetDuration("pdf-timeout"); err != nil {
			return err
		}
	}
	if fs.Changed("dev") {
		if cfg.Log.Development, err = fs.GetBool("dev"); err != nil {
			return err
		}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(cfg) = parsed
		return nil
	}
}

func setFloat(field func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*field(cfg) = parsed
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = parsed
		return nil
	}
}

func setDuration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*field(cfg) = parsed
		return nil
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
