package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the eBUS MQTT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Bus      BusConfig      `yaml:"bus"`
	History  HistoryConfig  `yaml:"history"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection and publishing settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	TLS    MQTTTLSConfig    `yaml:"tls"`

	// Topic is the topic prefix template: either a plain prefix (extended
	// with /%circuit/%name) or a full placeholder format string.
	Topic string `yaml:"topic"`

	// IntegrationFile is an optional integration settings file with
	// publish formats and variables.
	IntegrationFile string `yaml:"integration_file"`

	// RetainAll retains every published value topic instead of only the
	// global status topics.
	RetainAll bool `yaml:"retain_all"`

	// JSON publishes values in JSON format instead of plain strings.
	JSON bool `yaml:"json"`

	// Verbose includes all available attributes (names, units, comments)
	// in JSON payloads.
	Verbose bool `yaml:"verbose"`

	// OnlyChanges publishes only changed messages instead of all received.
	OnlyChanges bool `yaml:"only_changes"`

	// IgnoreInvalidParams keeps retrying on connect failures that would
	// otherwise be treated as fatal parameter errors (e.g. a broker host
	// name that does not resolve yet).
	IgnoreInvalidParams bool `yaml:"ignore_invalid_params"`

	// Version selects the MQTT protocol version, "3.1" or "3.1.1".
	Version string `yaml:"version"`

	QoS int `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	ClientID  string `yaml:"client_id"`
	KeepAlive int    `yaml:"keep_alive"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains MQTT TLS client settings.
// TLS is enabled when a CA file or directory is configured.
type MQTTTLSConfig struct {
	// CAFile is a CA certificate bundle file, or a certificate directory
	// when the path ends with '/'.
	CAFile string `yaml:"ca_file"`

	// CertFile and KeyFile hold the client certificate pair.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Insecure accepts broker certificates that fail verification
	// (e.g. self signed).
	Insecure bool `yaml:"insecure"`
}

// BusConfig contains bus message catalog settings.
type BusConfig struct {
	// DefinitionsFile is the YAML message catalog file.
	DefinitionsFile string `yaml:"definitions_file"`

	// Mode selects the bus transport. Currently only "simulator".
	Mode string `yaml:"mode"`

	// AccessLevel is the access level the bridge operates under.
	AccessLevel string `yaml:"access_level"`
}

// HistoryConfig contains SQLite publication history settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EBUSBRIDGE_SECTION_KEY
// For example: EBUSBRIDGE_MQTT_HOST, EBUSBRIDGE_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:      "localhost",
				Port:      1883,
				KeepAlive: 60,
			},
			Topic:   "ebusd",
			Version: "3.1",
			QoS:     0,
		},
		Bus: BusConfig{
			DefinitionsFile: "./configs/messages.yaml",
			Mode:            "simulator",
		},
		History: HistoryConfig{
			Path:        "./data/ebus-bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EBUSBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("EBUSBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EBUSBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("EBUSBRIDGE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("EBUSBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EBUSBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("EBUSBRIDGE_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Bus
	if v := os.Getenv("EBUSBRIDGE_BUS_DEFINITIONS"); v != "" {
		cfg.Bus.DefinitionsFile = v
	}

	// History
	if v := os.Getenv("EBUSBRIDGE_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// InfluxDB
	if v := os.Getenv("EBUSBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	} else if strings.ContainsAny(c.MQTT.Topic, "#+") {
		errs = append(errs, "mqtt.topic must not contain wildcard characters")
	}
	if c.MQTT.Version != "3.1" && c.MQTT.Version != "3.1.1" {
		errs = append(errs, "mqtt.version must be 3.1 or 3.1.1")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		errs = append(errs, "mqtt.tls.cert_file and mqtt.tls.key_file must be set together")
	}

	// Bus validation
	if c.Bus.Mode != "simulator" {
		errs = append(errs, "bus.mode must be simulator")
	}
	if c.Bus.DefinitionsFile == "" {
		errs = append(errs, "bus.definitions_file is required")
	}

	// History validation
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetBusyTimeout returns the history database busy timeout as a Duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return time.Duration(c.History.BusyTimeout) * time.Second
}

// GetKeepAlive returns the MQTT keep-alive interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.Broker.KeepAlive) * time.Second
}
