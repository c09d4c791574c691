// ABOUTME: Migraine configuration management with backend selection.
// ABOUTME: Handles the JSON settings file, .env and environment overrides, and the storage factory.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/storage"
)

// Environment variables that override the config file.
const (
	EnvBackend    = "MIGRAINE_BACKEND"
	EnvDataDir    = "MIGRAINE_DATA_DIR"
	EnvLogLevel   = "MIGRAINE_LOG_LEVEL"
	EnvThresholds = "MIGRAINE_THRESHOLDS"
	EnvLatitude   = "MIGRAINE_LATITUDE"
	EnvLongitude  = "MIGRAINE_LONGITUDE"
)

// Config stores migraine tool configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts migraine.db here, badger uses a kv/ subdirectory, logs go to logs/.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/migraine.
	DataDir string `json:"data_dir,omitempty"`

	// ThresholdsFile is an optional TOML file overriding analyzer thresholds.
	ThresholdsFile string `json:"thresholds_file,omitempty"`

	// LogLevel is a zap level name. Defaults to "info".
	LogLevel string `json:"log_level,omitempty"`

	// Latitude and Longitude locate home for weather lookups.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Timezone is the IANA zone passed to the weather API. Defaults to "auto".
	Timezone string `json:"timezone,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return "sqlite"
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

// GetLogLevel returns the configured log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// GetLogFile returns the rotating log file path under the data directory.
func (c *Config) GetLogFile() string {
	return filepath.Join(c.GetDataDir(), "logs", "migraine.log")
}

// GetTimezone returns the weather timezone, defaulting to "auto".
func (c *Config) GetTimezone() string {
	if c.Timezone == "" {
		return "auto"
	}
	return c.Timezone
}

// HasLocation reports whether home coordinates are set.
func (c *Config) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Thresholds loads the analyzer threshold table, using defaults when no
// file is configured.
func (c *Config) Thresholds() (analysis.Thresholds, error) {
	return analysis.LoadThresholds(ExpandPath(c.ThresholdsFile))
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

// StoragePath returns the SQLite file or badger directory for the configured backend.
func (c *Config) StoragePath() string {
	if c.GetBackend() == "badger" {
		return filepath.Join(c.GetDataDir(), "kv")
	}
	return filepath.Join(c.GetDataDir(), "migraine.db")
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage() (storage.Repository, error) {
	switch backend := c.GetBackend(); backend {
	case "sqlite":
		return storage.Open(c.StoragePath())
	case "badger":
		return storage.OpenKV(c.StoragePath())
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigDir returns the directory holding config.json and .env.
func GetConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "migraine")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

// Load reads config from disk, then applies .env and environment overrides.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads config from disk without environment overrides. Use it
// when the result will be saved back.
func LoadFile() (*Config, error) {
	return loadFile()
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
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadDotEnv() error {
	for _, path := range []string{".env", filepath.Join(GetConfigDir(), ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvThresholds); v != "" {
		c.ThresholdsFile = v
	}
	for env, dst := range map[string]**float64{EnvLatitude: &c.Latitude, EnvLongitude: &c.Longitude} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = &f
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
