package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Alice bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Skill     SkillConfig     `yaml:"skill"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Topics    TopicsConfig    `yaml:"topics"`
	Notify    NotifyConfig    `yaml:"notify"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SkillConfig identifies the smart-home skill on the voice-assistant platform
// and the OAuth application the platform links accounts through.
type SkillConfig struct {
	ID              string `yaml:"id"`
	Token           string `yaml:"token"`
	CallbackBaseURL string `yaml:"callback_base_url"`
	Timeout         int    `yaml:"timeout_ms"`
	DialogURI       string `yaml:"dialog_uri"`
	AppID           string `yaml:"app_id"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
}

// CatalogConfig points at the static JSON documents describing devices,
// users and MQTT topic templates.
type CatalogConfig struct {
	DevicesFile string `yaml:"devices_file"`
	UsersFile   string `yaml:"users_file"`
	MQTTFile    string `yaml:"mqtt_file"`
}

// TopicsConfig holds per-topic-type cache lifetimes in seconds.
// Zero means the topic type never expires.
type TopicsConfig struct {
	AvailableLifetime int `yaml:"available_lifetime"`
	CommandLifetime   int `yaml:"command_lifetime"`
	StateLifetime     int `yaml:"state_lifetime"`

	// StateFallback reads a value from the state topic JSON when the
	// command topic has no cached message.
	StateFallback bool `yaml:"state_fallback"`

	// FilterModes narrows mode capabilities to what the config topic reports.
	FilterModes bool `yaml:"filter_modes"`
}

// NotifyConfig contains state-change aggregation timings.
type NotifyConfig struct {
	DebounceMS      int `yaml:"debounce_ms"`
	FollowUpDelayMS int `yaml:"follow_up_delay_ms"`
	AnonymousTTL    int `yaml:"anonymous_ttl"`
}

// StoreConfig selects the expiring key-value backend used by the topic cache
// and the delivered-snapshot log.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // memory, sqlite, redis
	Redis   RedisConfig `yaml:"redis"`

	// PurgeInterval is how often expired fields are deleted, in seconds.
	// Redis expires fields itself and ignores it.
	PurgeInterval int `yaml:"purge_interval"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// SubscribeTopic overrides the subscribe pattern from the topic templates file.
	SubscribeTopic string `yaml:"subscribe_topic"`

	// StatusPrefix is the prefix for the retained online/offline topic.
	StatusPrefix string `yaml:"status_prefix"`
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

// APITimeoutConfig contains HTTP timeout settings.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT settings for authorization codes and access tokens.
// TTLs are in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	CodeTTL        int    `yaml:"code_ttl"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ALICEBRIDGE_SECTION_KEY
// For example: ALICEBRIDGE_SKILL_TOKEN, ALICEBRIDGE_MQTT_HOST
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
		Skill: SkillConfig{
			CallbackBaseURL: "https://dialogs.yandex.net/api/v1/skills",
			Timeout:         3000,
			DialogURI:       "https://social.yandex.net/",
		},
		Catalog: CatalogConfig{
			DevicesFile: "./configs/devices.json",
			UsersFile:   "./configs/users.json",
			MQTTFile:    "./configs/mqtt.json",
		},
		Notify: NotifyConfig{
			DebounceMS:      3000,
			FollowUpDelayMS: 1000,
			AnonymousTTL:    300,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
			PurgeInterval: 600,
		},
		Database: DatabaseConfig{
			Path:        "./data/alicebridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "alicebridge",
			},
			QoS:          1,
			StatusPrefix: "alicebridge",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				CodeTTL:        2 * 24 * 60,
				AccessTokenTTL: 365 * 24 * 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Skill
	if v := os.Getenv("ALICEBRIDGE_SKILL_ID"); v != "" {
		cfg.Skill.ID = v
	}
	if v := os.Getenv("ALICEBRIDGE_SKILL_TOKEN"); v != "" {
		cfg.Skill.Token = v
	}
	if v := os.Getenv("ALICEBRIDGE_SKILL_CLIENT_SECRET"); v != "" {
		cfg.Skill.ClientSecret = v
	}

	// Topics
	if v, ok := envInt("ALICEBRIDGE_TOPICS_AVAILABLE_LIFETIME"); ok {
		cfg.Topics.AvailableLifetime = v
	}
	if v, ok := envInt("ALICEBRIDGE_TOPICS_COMMAND_LIFETIME"); ok {
		cfg.Topics.CommandLifetime = v
	}
	if v, ok := envInt("ALICEBRIDGE_TOPICS_STATE_LIFETIME"); ok {
		cfg.Topics.StateLifetime = v
	}
	if v := os.Getenv("ALICEBRIDGE_TOPICS_STATE_FALLBACK"); v != "" {
		cfg.Topics.StateFallback = v == "1" || strings.EqualFold(v, "true")
	}

	// Store
	if v := os.Getenv("ALICEBRIDGE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("ALICEBRIDGE_REDIS_ADDRESS"); v != "" {
		cfg.Store.Redis.Address = v
	}
	if v := os.Getenv("ALICEBRIDGE_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}

	// Database
	if v := os.Getenv("ALICEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ALICEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ALICEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ALICEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ALICEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ALICEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("ALICEBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Catalog.DevicesFile == "" || c.Catalog.UsersFile == "" || c.Catalog.MQTTFile == "" {
		errs = append(errs, "catalog.devices_file, catalog.users_file and catalog.mqtt_file are required")
	}

	if c.Topics.AvailableLifetime < 0 || c.Topics.CommandLifetime < 0 || c.Topics.StateLifetime < 0 {
		errs = append(errs, "topics lifetimes must not be negative")
	}

	if c.Notify.DebounceMS <= 0 {
		errs = append(errs, "notify.debounce_ms must be positive")
	}

	switch c.Store.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Store.Redis.Address == "" {
			errs = append(errs, "store.redis.address is required for the redis backend")
		}
	default:
		errs = append(errs, "store.backend must be memory, sqlite, or redis")
	}

	if c.Store.PurgeInterval <= 0 {
		errs = append(errs, "store.purge_interval must be positive")
	}

	if c.Store.Backend == "sqlite" && c.Database.Path == "" {
		errs = append(errs, "database.path is required for the sqlite backend")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Skill.DialogURI == "" {
		errs = append(errs, "skill.dialog_uri is required")
	}

	// Forged tokens would let anyone drive the linked devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ALICEBRIDGE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// SkillTimeout returns the outbound callback timeout.
func (c *Config) SkillTimeout() time.Duration {
	return time.Duration(c.Skill.Timeout) * time.Millisecond
}

// DebounceWindow returns the state-change debounce window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Notify.DebounceMS) * time.Millisecond
}

// FollowUpDelay returns the delay between a device list response and the
// follow-up state notification.
func (c *Config) FollowUpDelay() time.Duration {
	return time.Duration(c.Notify.FollowUpDelayMS) * time.Millisecond
}

// StorePurgeInterval returns how often expired store fields are deleted.
func (c *Config) StorePurgeInterval() time.Duration {
	return time.Duration(c.Store.PurgeInterval) * time.Second
}

// AnonymousTTL returns how long an unresolvable topic user is ignored.
func (c *Config) AnonymousTTL() time.Duration {
	return time.Duration(c.Notify.AnonymousTTL) * time.Second
}
