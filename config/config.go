package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort               = "8080"
	defaultGeocoderBaseURL    = "https://api.postcodes.io"
	defaultGeocoderTimeout    = 5 * time.Second
	defaultGeocoderRateLimit  = 10.0
	defaultCacheTTL           = 60 * time.Second
	defaultRadiusMiles        = 10.0
	defaultMaxCandidates      = 1000
	defaultFeaturedLimit      = 3
	defaultTimezone           = "Europe/London"
	defaultMaxSessions        = 10000
	defaultSessionIdle        = 30 * time.Minute
	defaultLogLevel           = "info"
	defaultStoragePath        = "./.playfinder"
	defaultKVDBFileName       = "playfinder.db"
	defaultIndexDirectoryName = "listings.bleve"
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// getString prefers the environment variable over the config file key.
func (c *Config) getString(envKey string, fileKey string, fallback string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(fileKey)
	}
	if len(value) == 0 {
		return fallback
	}

	return value
}

func (c *Config) getDuration(envKey string, fileKey string, fallback time.Duration) time.Duration {
	value := c.getString(envKey, fileKey, "")
	if len(value) == 0 {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		slog.Warn("invalid duration in config, using default", "key", fileKey, "value", value)
		return fallback
	}

	return duration
}

func (c *Config) getFloat(envKey string, fileKey string, fallback float64) float64 {
	if c.config.IsSet(envKey) {
		if value := c.config.GetFloat64(envKey); value > 0 {
			return value
		}
	}
	if value := c.config.GetFloat64(fileKey); value > 0 {
		return value
	}

	return fallback
}

func (c *Config) getInt(envKey string, fileKey string, fallback int) int {
	if c.config.IsSet(envKey) {
		if value := c.config.GetInt(envKey); value > 0 {
			return value
		}
	}
	if value := c.config.GetInt(fileKey); value > 0 {
		return value
	}

	return fallback
}

func (c *Config) GetPort() string {
	return c.getString("PORT", "server.port", defaultPort)
}

func (c *Config) GetStoragePath() string {
	return c.getString("STORAGE_PATH", "database.storage_path", defaultStoragePath)
}

// GetKVDBPath is relative to the storage path.
func (c *Config) GetKVDBPath() string {
	return filepath.Join(c.GetStoragePath(), c.getString("KVDB_PATH", "database.kvdb_path", defaultKVDBFileName))
}

// GetIndexPath is relative to the storage path.
func (c *Config) GetIndexPath() string {
	return filepath.Join(c.GetStoragePath(), c.getString("INDEX_PATH", "database.index_path", defaultIndexDirectoryName))
}

func (c *Config) GetGeocoderBaseURL() string {
	return c.getString("GEOCODER_BASE_URL", "geocoder.base_url", defaultGeocoderBaseURL)
}

func (c *Config) GetGeocoderTimeout() time.Duration {
	return c.getDuration("GEOCODER_TIMEOUT", "geocoder.timeout", defaultGeocoderTimeout)
}

// GetGeocoderRateLimit is in requests per second.
func (c *Config) GetGeocoderRateLimit() float64 {
	return c.getFloat("GEOCODER_RATE_LIMIT", "geocoder.rate_limit", defaultGeocoderRateLimit)
}

func (c *Config) GetCacheTTL() time.Duration {
	return c.getDuration("CACHE_TTL", "search.cache_ttl", defaultCacheTTL)
}

func (c *Config) GetDefaultRadiusMiles() float64 {
	return c.getFloat("DEFAULT_RADIUS_MILES", "search.default_radius_miles", defaultRadiusMiles)
}

func (c *Config) GetMaxCandidates() int {
	return c.getInt("MAX_CANDIDATES", "search.max_candidates", defaultMaxCandidates)
}

func (c *Config) GetFeaturedLimit() int {
	return c.getInt("FEATURED_LIMIT", "search.featured_limit", defaultFeaturedLimit)
}

// GetMaxSessions caps the client sessions tracked for superseded searches.
func (c *Config) GetMaxSessions() int {
	return c.getInt("MAX_SESSIONS", "search.max_sessions", defaultMaxSessions)
}

func (c *Config) GetSessionIdle() time.Duration {
	return c.getDuration("SESSION_IDLE", "search.session_idle", defaultSessionIdle)
}

// GetTimezone returns the location used to decide which weekday "today" is.
func (c *Config) GetTimezone() *time.Location {
	name := c.getString("TIMEZONE", "search.timezone", defaultTimezone)
	location, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("could not load timezone, using UTC", "timezone", name, "err", err.Error())
		return time.UTC
	}

	return location
}

func (c *Config) GetLogLevel() string {
	return c.getString("LOG_LEVEL", "log.level", defaultLogLevel)
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
