package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override (APPACCESS_SECTION_KEY).
const envPrefix = "APPACCESS_"

// minJWTSecretLength is the shortest HS256 signing secret the server accepts.
const minJWTSecretLength = 32

// Config is the root configuration structure for the access service and
// its command-line client. Values come from YAML and can be overridden by
// environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Seed      SeedConfig      `yaml:"seed"`
	Client    ClientConfig    `yaml:"client"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker settings for access-change events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live access-event feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for auth activity series.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains Redis connection settings used by the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains token and throttling settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// RateLimitConfig throttles the unauthenticated auth endpoints per client address.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// SeedConfig controls the initial admin account created on an empty database.
type SeedConfig struct {
	AdminEmail string `yaml:"admin_email"`
	AdminName  string `yaml:"admin_name"`
}

// ClientConfig contains settings for the command-line client.
type ClientConfig struct {
	BaseURL string              `yaml:"base_url"`
	Timeout int                 `yaml:"timeout"`
	Session ClientSessionConfig `yaml:"session"`
}

// ClientSessionConfig selects where the client keeps its session record.
type ClientSessionConfig struct {
	Backend string `yaml:"backend"` // file, redis or memory
	Path    string `yaml:"path"`
	Key     string `yaml:"key"`
}

// Session backend names accepted in client.session.backend.
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Load reads the server configuration.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (APPACCESS_SECTION_KEY)
//
// The result is validated for server use, so a JWT secret is mandatory.
func Load(path string) (*Config, error) {
	cfg, err := read(path, true)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadClient reads the configuration for the command-line client. A missing
// file is not an error; defaults and environment overrides still apply.
func LoadClient(path string) (*Config, error) {
	cfg, err := read(path, false)
	if err != nil {
		return nil, err
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func read(path string, required bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !required && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/appaccess.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "appaccess",
			},
			QoS:         1,
			TopicPrefix: "appaccess",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 4001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 1440,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 20,
				Burst:             5,
			},
		},
		Seed: SeedConfig{
			AdminEmail: "admin@example.com",
			AdminName:  "Administrator",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:4001/api/v1",
			Timeout: 10,
			Session: ClientSessionConfig{
				Backend: SessionBackendFile,
				Path:    defaultSessionPath(),
				Key:     "appaccess:session",
			},
		},
	}
}

// defaultSessionPath places the client session under the user config dir.
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".appaccess-session.json"
	}
	return filepath.Join(dir, "appaccess", "session.json")
}

// applyEnvOverrides applies APPACCESS_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Database.Path, "DATABASE_PATH")

	setBool(&cfg.MQTT.Enabled, "MQTT_ENABLED")
	setString(&cfg.MQTT.Broker.Host, "MQTT_HOST")
	setInt(&cfg.MQTT.Broker.Port, "MQTT_PORT")
	setString(&cfg.MQTT.Auth.Username, "MQTT_USERNAME")
	setString(&cfg.MQTT.Auth.Password, "MQTT_PASSWORD")

	setString(&cfg.API.Host, "API_HOST")
	setInt(&cfg.API.Port, "API_PORT")

	setBool(&cfg.InfluxDB.Enabled, "INFLUXDB_ENABLED")
	setString(&cfg.InfluxDB.URL, "INFLUXDB_URL")
	setString(&cfg.InfluxDB.Token, "INFLUXDB_TOKEN")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.Logging.Level, "LOG_LEVEL")

	// Always override the secret in production.
	setString(&cfg.Security.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Seed.AdminEmail, "SEED_ADMIN_EMAIL")

	setString(&cfg.Client.BaseURL, "CLIENT_BASE_URL")
	setInt(&cfg.Client.Timeout, "CLIENT_TIMEOUT")
	setString(&cfg.Client.Session.Backend, "CLIENT_SESSION_BACKEND")
	setString(&cfg.Client.Session.Path, "CLIENT_SESSION_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the server configuration for errors and security issues.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set APPACCESS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.AccessTokenTTL <= 0 || c.Security.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, "security.jwt token TTLs must be positive")
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be positive when enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the client section.
func (c ClientConfig) Validate() error {
	var errs []string

	if c.BaseURL == "" {
		errs = append(errs, "client.base_url is required")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "client.timeout must be positive")
	}
	switch c.Session.Backend {
	case SessionBackendFile:
		if c.Session.Path == "" {
			errs = append(errs, "client.session.path is required for the file backend")
		}
	case SessionBackendRedis:
		if c.Session.Key == "" {
			errs = append(errs, "client.session.key is required for the redis backend")
		}
	case SessionBackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("client.session.backend %q is not one of file, redis, memory", c.Session.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RequestTimeout returns the client request ceiling as a Duration.
func (c ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// AccessTTL returns the access token lifetime as a Duration.
func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}

// RefreshTTL returns the refresh token lifetime as a Duration.
func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshTokenTTL) * time.Minute
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
