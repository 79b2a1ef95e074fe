package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig      `json:"api" mapstructure:"api"`
	Tracking TrackingConfig `json:"tracking" mapstructure:"tracking"`
	Store    StoreConfig    `json:"store" mapstructure:"store"`
	MQTT     MQTTConfig     `json:"mqtt" mapstructure:"mqtt"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
}

// APIConfig holds the activity backend endpoint and credentials
type APIConfig struct {
	BaseURL       string `json:"base_url" mapstructure:"base_url"`
	AccessToken   string `json:"access_token" mapstructure:"access_token"`
	TimeoutMs     int    `json:"timeout_ms" mapstructure:"timeout_ms"`
	MinIntervalMs int    `json:"min_interval_ms" mapstructure:"min_interval_ms"`
}

// TrackingConfig holds tracking engine settings
type TrackingConfig struct {
	ActivityType      string  `json:"activity_type" mapstructure:"activity_type"`
	RouteID           string  `json:"route_id" mapstructure:"route_id"`
	SyncIntervalMs    int     `json:"sync_interval_ms" mapstructure:"sync_interval_ms"`
	TickIntervalMs    int     `json:"tick_interval_ms" mapstructure:"tick_interval_ms"`
	CountdownSteps    int     `json:"countdown_steps" mapstructure:"countdown_steps"`
	StalenessWindowMs int     `json:"staleness_window_ms" mapstructure:"staleness_window_ms"`
	MaxPlausibleSpeed float64 `json:"max_plausible_speed" mapstructure:"max_plausible_speed"` // m/s, 0 disables
}

// StoreConfig selects the durable local store
type StoreConfig struct {
	Backend       string `json:"backend" mapstructure:"backend"` // "sqlite" or "redis"
	Path          string `json:"path" mapstructure:"path"`
	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisPrefix   string `json:"redis_prefix" mapstructure:"redis_prefix"`
}

// MQTTConfig holds the broker a paired device publishes sensor data to
type MQTTConfig struct {
	Broker      string `json:"broker" mapstructure:"broker"`
	ClientID    string `json:"client_id" mapstructure:"client_id"`
	Username    string `json:"username" mapstructure:"username"`
	Password    string `json:"password" mapstructure:"password"`
	FixTopic    string `json:"fix_topic" mapstructure:"fix_topic"`
	MotionTopic string `json:"motion_topic" mapstructure:"motion_topic"`
	QoS         int    `json:"qos" mapstructure:"qos"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

const placeholderBaseURL = "https://YOUR_BACKEND"

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			TimeoutMs:     15000,
			MinIntervalMs: 100,
		},
		Tracking: TrackingConfig{
			ActivityType:      "running",
			SyncIntervalMs:    5000,
			TickIntervalMs:    100,
			CountdownSteps:    3,
			StalenessWindowMs: 30000,
		},
		Store: StoreConfig{
			Backend:     "sqlite",
			RedisPrefix: "activity-tracker:",
		},
		MQTT: MQTTConfig{
			FixTopic:    "tracker/+/fix",
			MotionTopic: "tracker/+/motion",
			QoS:         1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from ~/.activity-tracker/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a JSON config file. Every key can be overridden with a
// TRACKER_ environment variable, e.g. TRACKER_API_ACCESS_TOKEN.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoConfig
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so env overrides apply even when the file omits it
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.access_token", d.API.AccessToken)
	v.SetDefault("api.timeout_ms", d.API.TimeoutMs)
	v.SetDefault("api.min_interval_ms", d.API.MinIntervalMs)

	v.SetDefault("tracking.activity_type", d.Tracking.ActivityType)
	v.SetDefault("tracking.route_id", d.Tracking.RouteID)
	v.SetDefault("tracking.sync_interval_ms", d.Tracking.SyncIntervalMs)
	v.SetDefault("tracking.tick_interval_ms", d.Tracking.TickIntervalMs)
	v.SetDefault("tracking.countdown_steps", d.Tracking.CountdownSteps)
	v.SetDefault("tracking.staleness_window_ms", d.Tracking.StalenessWindowMs)
	v.SetDefault("tracking.max_plausible_speed", d.Tracking.MaxPlausibleSpeed)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", d.Store.RedisPassword)
	v.SetDefault("store.redis_prefix", d.Store.RedisPrefix)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.fix_topic", d.MQTT.FixTopic)
	v.SetDefault("mqtt.motion_topic", d.MQTT.MotionTopic)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)

	v.SetDefault("log.level", d.Log.Level)
}

// Save writes the configuration to ~/.activity-tracker/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes the configuration to path
func SaveFile(path string, cfg *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// the file holds the API token
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.API.BaseURL = placeholderBaseURL
	example.API.AccessToken = "YOUR_ACCESS_TOKEN"

	return SaveFile(path, &example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.API.BaseURL == "" || c.API.BaseURL == placeholderBaseURL {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.AccessToken == "YOUR_ACCESS_TOKEN" {
		return errors.New("api.access_token still holds the example placeholder")
	}

	switch c.Tracking.ActivityType {
	case "running", "walking":
	default:
		return fmt.Errorf("tracking.activity_type must be \"running\" or \"walking\", got %q", c.Tracking.ActivityType)
	}
	if c.Tracking.SyncIntervalMs <= 0 || c.Tracking.TickIntervalMs <= 0 || c.Tracking.StalenessWindowMs <= 0 {
		return errors.New("tracking intervals must be positive")
	}
	if c.Tracking.CountdownSteps < 0 {
		return fmt.Errorf("tracking.countdown_steps must not be negative, got %d", c.Tracking.CountdownSteps)
	}
	if c.Tracking.MaxPlausibleSpeed < 0 {
		return fmt.Errorf("tracking.max_plausible_speed must not be negative, got %v", c.Tracking.MaxPlausibleSpeed)
	}

	switch c.Store.Backend {
	case "sqlite":
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be \"sqlite\" or \"redis\", got %q", c.Store.Backend)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	return nil
}

// SyncInterval returns the remote sync period
func (t TrackingConfig) SyncInterval() time.Duration {
	return time.Duration(t.SyncIntervalMs) * time.Millisecond
}

// TickInterval returns the display clock period
func (t TrackingConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

// StalenessWindow returns the maximum background gap a session survives
func (t TrackingConfig) StalenessWindow() time.Duration {
	return time.Duration(t.StalenessWindowMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// MinInterval returns the minimum gap between API calls
func (a APIConfig) MinInterval() time.Duration {
	return time.Duration(a.MinIntervalMs) * time.Millisecond
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".activity-tracker"), nil
}
