// ABOUTME: Bikey configuration management with backend selection.
// ABOUTME: Merges the JSON config file with BIKEY_* environment overrides and opens storage.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/joho/godotenv"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config stores bikey configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts bikey.db here. Badger uses the badger/ folder.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/bikey.
	DataDir string `json:"data_dir,omitempty"`

	// SpeedMinThreshold is the speed in m/s below which a point counts as standing still.
	SpeedMinThreshold float64 `json:"speed_min_threshold,omitempty"`

	// NATSURL enables publishing ride events to NATS.
	NATSURL string `json:"nats_url,omitempty"`

	// LogLevel is one of debug, info, warn, error. Defaults to warn.
	LogLevel string `json:"log_level,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetSpeedMinThreshold returns the moving threshold in m/s.
func (c *Config) GetSpeedMinThreshold() float64 {
	if c.SpeedMinThreshold <= 0 {
		return geo.SpeedMinThreshold
	}
	return c.SpeedMinThreshold
}

// GetLogLevel returns the parsed log level, defaulting to warn.
func (c *Config) GetLogLevel() log.Level {
	if c.LogLevel == "" {
		return log.WarnLevel
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.WarnLevel
	}
	return level
}

// Logger returns a stderr logger at the configured level.
func (c *Config) Logger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:  c.GetLogLevel(),
		Prefix: "bikey",
	})
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// SQLitePath returns where the SQLite backend keeps its database.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.GetDataDir(), "bikey.db")
}

// BadgerDir returns where the Badger backend keeps its files.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.GetDataDir(), "badger")
}

// OpenStorage creates a Backend implementation based on the configured backend.
func (c *Config) OpenStorage(logger *log.Logger) (storage.Backend, error) {
	return c.OpenBackend(c.GetBackend(), logger)
}

// OpenBackend opens the named backend in the configured data directory.
func (c *Config) OpenBackend(backend string, logger *log.Logger) (storage.Backend, error) {
	if logger == nil {
		logger = log.Default()
	}

	switch backend {
	case BackendSQLite:
		return storage.Open(c.SQLitePath(), storage.WithLogger(logger))
	case BackendBadger:
		return storage.OpenBadger(c.BadgerDir(), storage.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "bikey", "config.json")
}

// Load reads config from disk, then applies a .env file in the working
// directory and BIKEY_* environment variables on top.
func Load() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	// Existing environment variables win over .env entries.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("BIKEY_BACKEND"); ok {
		c.Backend = v
	}
	if v, ok := os.LookupEnv("BIKEY_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv("BIKEY_NATS_URL"); ok {
		c.NATSURL = v
	}
	if v, ok := os.LookupEnv("BIKEY_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("BIKEY_SPEED_MIN_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BIKEY_SPEED_MIN_THRESHOLD %q: %w", v, err)
		}
		c.SpeedMinThreshold = f
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
