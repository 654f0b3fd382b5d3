package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Deconz          DeconzConfig      `yaml:"deconz"`
	Lights          []LightConfig     `yaml:"lights"`
	Suppression     SuppressionConfig `yaml:"suppression"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	API             APIConfig         `yaml:"api"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DeconzConfig contains deCONZ gateway connection settings
type DeconzConfig struct {
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`    // REST API port
	WsPort  int      `yaml:"ws_port"` // WebSocket port; 0 = use port advertised by the gateway
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for gateway API requests

	RateLimitRPS float64 `yaml:"rate_limit_rps"` // Outgoing state change rate limit

	// Push stream reconnect settings
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between reconnects (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between reconnects (default: 2m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxReconnects   int      `yaml:"max_reconnects"`    // Max reconnect attempts, 0 = infinite (default: 0)
}

// LightConfig describes one light and its control channels
type LightConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Channels       []string `yaml:"channels"`        // switch, brightness, color, color_temperature, position
	TransitionTime *float64 `yaml:"transition_time"` // fade time in seconds, unset = gateway default
}

// SuppressionConfig tunes the echo-suppression window
type SuppressionConfig struct {
	Window Duration `yaml:"window"` // Default window after a sent command (default: 250ms)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// APIConfig contains command API server settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Deconz.Host == "" {
		return fmt.Errorf("deconz.host is required")
	}
	if cfg.Deconz.APIKey == "" {
		return fmt.Errorf("deconz.api_key is required")
	}
	for i, light := range cfg.Lights {
		if light.ID == "" {
			return fmt.Errorf("lights[%d].id is required", i)
		}
		if len(light.Channels) == 0 {
			return fmt.Errorf("lights[%d] (%s): at least one channel is required", i, light.ID)
		}
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./deconzd.sqlite"
	}

	// Gateway defaults
	if cfg.Deconz.Port == 0 {
		cfg.Deconz.Port = 80
	}
	if cfg.Deconz.Timeout == 0 {
		cfg.Deconz.Timeout = Duration(10 * time.Second)
	}
	if cfg.Deconz.RateLimitRPS == 0 {
		cfg.Deconz.RateLimitRPS = 10.0
	}
	if cfg.Deconz.MinRetryBackoff == 0 {
		cfg.Deconz.MinRetryBackoff = Duration(1 * time.Second)
	}
	if cfg.Deconz.MaxRetryBackoff == 0 {
		cfg.Deconz.MaxRetryBackoff = Duration(2 * time.Minute)
	}
	if cfg.Deconz.RetryMultiplier == 0 {
		cfg.Deconz.RetryMultiplier = 2.0
	}
	// MaxReconnects defaults to 0 (infinite), no need to set

	// Suppression window default
	if cfg.Suppression.Window == 0 {
		cfg.Suppression.Window = Duration(250 * time.Millisecond)
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
