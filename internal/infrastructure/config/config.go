package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for accessbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controllers []ControllerConfig `yaml:"controllers"`
	Options     []string           `yaml:"options"`
	Debug       bool               `yaml:"debug"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// ControllerConfig describes one access controller.
//
// A controller without an address, username or password is kept in the
// list but disabled when the bridge starts.
type ControllerConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name,omitempty"`

	// MQTTURL overrides the global broker for this controller's telemetry,
	// e.g. "tcp://broker.local:1883". Empty uses the global mqtt section.
	MQTTURL string `yaml:"mqtt_url,omitempty"`

	// MQTTTopic is the root topic for this controller's telemetry.
	// Default: "unifi/access"
	MQTTTopic string `yaml:"mqtt_topic,omitempty"`
}

// Usable reports whether the controller has everything needed to log in.
func (c ControllerConfig) Usable() bool {
	return c.Address != "" && c.Username != "" && c.Password != ""
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Topic     string              `yaml:"topic"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// ForURL returns a copy of the MQTT settings pointed at the broker in raw.
//
// raw takes the form scheme://[user:pass@]host[:port]. The schemes ssl,
// tls and mqtts enable TLS. Credentials in the URL replace the configured
// ones; the client ID gets the host appended so that two brokers never see
// the same ID from this process.
func (m MQTTConfig) ForURL(raw string) (MQTTConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return m, fmt.Errorf("parsing mqtt url: %w", err)
	}
	if u.Hostname() == "" {
		return m, fmt.Errorf("mqtt url %q has no host", raw)
	}

	out := m
	out.Enabled = true
	out.Broker.Host = u.Hostname()
	out.Broker.TLS = false
	out.Broker.Port = 1883

	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts":
		out.Broker.TLS = true
		out.Broker.Port = 8883
	case "tcp", "mqtt", "":
	default:
		return m, fmt.Errorf("mqtt url %q: unsupported scheme %q", raw, u.Scheme)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return m, fmt.Errorf("mqtt url %q: invalid port: %w", raw, err)
		}
		out.Broker.Port = port
	}

	if u.User != nil {
		out.Auth.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			out.Auth.Password = pw
		}
	}

	out.Broker.ClientID = m.Broker.ClientID + "-" + u.Hostname()
	return out, nil
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultTopic is the telemetry root topic used when none is configured.
const DefaultTopic = "unifi/access"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ACCESSBRIDGE_SECTION_KEY
// For example: ACCESSBRIDGE_DATABASE_PATH, ACCESSBRIDGE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/accessbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "accessbridge",
			},
			QoS:   1,
			Topic: DefaultTopic,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ACCESSBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACCESSBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ACCESSBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ACCESSBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ACCESSBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ACCESSBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ACCESSBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("ACCESSBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("ACCESSBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ACCESSBRIDGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}

	// Controller credentials are commonly kept out of the file. The index
	// refers to the position in the controllers list.
	for i := range cfg.Controllers {
		prefix := fmt.Sprintf("ACCESSBRIDGE_CONTROLLER_%d_", i)
		if v := os.Getenv(prefix + "USERNAME"); v != "" {
			cfg.Controllers[i].Username = v
		}
		if v := os.Getenv(prefix + "PASSWORD"); v != "" {
			cfg.Controllers[i].Password = v
		}
	}
}

// Validate checks the configuration for errors.
//
// Incomplete controller entries are not errors; they are disabled at
// startup instead.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	seen := make(map[string]bool)
	for i, ctrl := range c.Controllers {
		if ctrl.Address == "" {
			continue
		}
		if seen[ctrl.Address] {
			errs = append(errs, fmt.Sprintf("controllers[%d]: duplicate address %q", i, ctrl.Address))
		}
		seen[ctrl.Address] = true

		if ctrl.MQTTURL != "" {
			if _, err := c.MQTT.ForURL(ctrl.MQTTURL); err != nil {
				errs = append(errs, fmt.Sprintf("controllers[%d]: %v", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TopicFor returns the telemetry root topic for a controller.
func (c *Config) TopicFor(ctrl ControllerConfig) string {
	if ctrl.MQTTTopic != "" {
		return ctrl.MQTTTopic
	}
	if c.MQTT.Topic != "" {
		return c.MQTT.Topic
	}
	return DefaultTopic
}

// EffectiveLogLevel returns the configured log level, forced to debug when
// the debug flag is set.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.Logging.Level
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
