package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
controllers:
  - address: "192.168.1.1"
    username: "bridge"
    password: "secret"
    name: "Main"
  - address: "10.0.0.2"
    username: "bridge"
    password: "secret"
    mqtt_url: "mqtt://user:pw@broker.local:1884"
    mqtt_topic: "site/access"
options:
  - "Disable.Hub.REX"
  - "Enable.Controller.DelayDeviceRemoval.30"
debug: true
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 8091
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Controllers) != 2 {
		t.Fatalf("len(Controllers) = %d, want 2", len(cfg.Controllers))
	}
	if cfg.Controllers[0].Name != "Main" {
		t.Errorf("Controllers[0].Name = %q, want %q", cfg.Controllers[0].Name, "Main")
	}
	if len(cfg.Options) != 2 || cfg.Options[0] != "Disable.Hub.REX" {
		t.Errorf("Options = %v", cfg.Options)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if got := cfg.TopicFor(cfg.Controllers[0]); got != DefaultTopic {
		t.Errorf("TopicFor(0) = %q, want %q", got, DefaultTopic)
	}
	if got := cfg.TopicFor(cfg.Controllers[1]); got != "site/access" {
		t.Errorf("TopicFor(1) = %q, want %q", got, "site/access")
	}
	if got := cfg.EffectiveLogLevel(); got != "debug" {
		t.Errorf("EffectiveLogLevel() = %q, want debug", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				MQTT:     MQTTConfig{QoS: 1},
				API:      APIConfig{Enabled: true, Port: 8090},
			},
			wantErr: false,
		},
		{
			name: "incomplete controller is not an error",
			config: &Config{
				Controllers: []ControllerConfig{{Address: "192.168.1.1"}},
				Database:    DatabaseConfig{Path: "/data/accessbridge.db"},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			config: &Config{
				Database: DatabaseConfig{Path: ""},
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				MQTT:     MQTTConfig{QoS: 3},
			},
			wantErr: true,
		},
		{
			name: "invalid port with api enabled",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				API:      APIConfig{Enabled: true, Port: 70000},
			},
			wantErr: true,
		},
		{
			name: "port ignored with api disabled",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				API:      APIConfig{Enabled: false, Port: 0},
			},
			wantErr: false,
		},
		{
			name: "influxdb enabled without url",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				InfluxDB: InfluxDBConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "duplicate controller address",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				Controllers: []ControllerConfig{
					{Address: "192.168.1.1", Username: "a", Password: "b"},
					{Address: "192.168.1.1", Username: "c", Password: "d"},
				},
			},
			wantErr: true,
		},
		{
			name: "bad controller mqtt url",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/accessbridge.db"},
				Controllers: []ControllerConfig{
					{Address: "192.168.1.1", MQTTURL: "ftp://broker"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestControllerConfig_Usable(t *testing.T) {
	tests := []struct {
		name string
		cfg  ControllerConfig
		want bool
	}{
		{"complete", ControllerConfig{Address: "a", Username: "u", Password: "p"}, true},
		{"no address", ControllerConfig{Username: "u", Password: "p"}, false},
		{"no username", ControllerConfig{Address: "a", Password: "p"}, false},
		{"no password", ControllerConfig{Address: "a", Username: "u"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMQTTConfig_ForURL(t *testing.T) {
	base := defaultConfig().MQTT

	tests := []struct {
		name     string
		raw      string
		wantHost string
		wantPort int
		wantTLS  bool
		wantUser string
		wantErr  bool
	}{
		{name: "tcp default port", raw: "tcp://broker.local", wantHost: "broker.local", wantPort: 1883},
		{name: "mqtt explicit port", raw: "mqtt://broker.local:1884", wantHost: "broker.local", wantPort: 1884},
		{name: "tls default port", raw: "mqtts://secure.local", wantHost: "secure.local", wantPort: 8883, wantTLS: true},
		{name: "credentials", raw: "mqtt://alice:pw@broker.local", wantHost: "broker.local", wantPort: 1883, wantUser: "alice"},
		{name: "unsupported scheme", raw: "http://broker.local", wantErr: true},
		{name: "no host", raw: "mqtt://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.ForURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Broker.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", got.Broker.Host, tt.wantHost)
			}
			if got.Broker.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", got.Broker.Port, tt.wantPort)
			}
			if got.Broker.TLS != tt.wantTLS {
				t.Errorf("TLS = %v, want %v", got.Broker.TLS, tt.wantTLS)
			}
			if got.Auth.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", got.Auth.Username, tt.wantUser)
			}
			if !got.Enabled {
				t.Error("Enabled = false, want true")
			}
			if got.Broker.ClientID == base.Broker.ClientID {
				t.Error("ClientID should be made unique per broker")
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.Controllers = []ControllerConfig{{Address: "192.168.1.1"}}

	t.Setenv("ACCESSBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ACCESSBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ACCESSBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("ACCESSBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("ACCESSBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("ACCESSBRIDGE_API_PORT", "9000")
	t.Setenv("ACCESSBRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ACCESSBRIDGE_DEBUG", "true")
	t.Setenv("ACCESSBRIDGE_CONTROLLER_0_USERNAME", "ctrl-user")
	t.Setenv("ACCESSBRIDGE_CONTROLLER_0_PASSWORD", "ctrl-pass")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if !cfg.Controllers[0].Usable() {
		t.Errorf("controller credentials not applied: %+v", cfg.Controllers[0])
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Topic != DefaultTopic {
		t.Errorf("defaultConfig MQTT.Topic = %q, want %q", cfg.MQTT.Topic, DefaultTopic)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
}
