package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/changefeed"
	"github.com/rzpsarthak13/thinorm/internal/database"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "THINORM_"

// ConfigValidator is the Strategy interface for validating configuration.
// Each change feed sink provides its own validator for its section.
type ConfigValidator interface {
	// Validate validates the change feed section for this sink type.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "redis", "kafka").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// RegisterValidator registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}
	validatorRegistry[validator.Type()] = validator
}

// GetValidator retrieves a validator by type.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// sinkValidator checks a change feed section with the sink factory's own rules.
type sinkValidator struct {
	sinkType string
}

func (v sinkValidator) Type() string { return v.sinkType }

func (v sinkValidator) Validate(config *InternalConfig) error {
	return changefeed.Validate(config.ChangeFeed.Publisher())
}

type noneValidator struct{}

func (noneValidator) Type() string                   { return "none" }
func (noneValidator) Validate(*InternalConfig) error { return nil }

func init() {
	RegisterValidator(noneValidator{})
	for _, t := range changefeed.RegisteredTypes() {
		RegisterValidator(sinkValidator{sinkType: t})
	}
}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultInternalConfig(),
	}
}

// DefaultInternalConfig returns a configuration with sensible defaults.
// The default target is a private in-memory SQLite database.
func DefaultInternalConfig() *InternalConfig {
	pool := database.DefaultPoolConfig()
	return &InternalConfig{
		Database: InternalDatabaseConfig{
			Target:            ":memory:",
			MaxOpenConns:      pool.MaxOpenConns,
			MaxIdleConns:      pool.MaxIdleConns,
			ConnMaxLifetime:   pool.ConnMaxLifetime,
			ConnMaxIdleTime:   pool.ConnMaxIdleTime,
			ConnectionTimeout: pool.ConnectTimeout,
			RateBurst:         1,
		},
		Logging: InternalLoggingConfig{
			Level:  "info",
			Format: "text",
		},
		ChangeFeed: InternalChangeFeedConfig{
			Type:       "none",
			BufferSize: 10000,
			Redis: InternalRedisConfig{
				PoolSize:    10,
				DialTimeout: 5 * time.Second,
				KeyPrefix:   "thinorm:changes",
			},
			Kafka: InternalKafkaConfig{
				Topic:        "thinorm.changes",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1, // All replicas
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data over the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data over the defaults.
// Durations are given in nanoseconds.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromEnv overlays environment variables on the current configuration.
// Environment variables follow the pattern: THINORM_<SECTION>_<KEY>
// Examples:
//   - THINORM_DATABASE_TARGET=postgres://app@localhost/app
//   - THINORM_DATABASE_MAX_OPEN_CONNS=20
//   - THINORM_LOGGING_LEVEL=debug
//   - THINORM_CHANGEFEED_TYPE=kafka
//   - THINORM_CHANGEFEED_KAFKA_BROKERS=localhost:9092,localhost:9093
func (cm *ConfigManager) LoadFromEnv() error {
	copied := *cm.config
	config := &copied
	env := envReader{}

	// Database configuration
	env.strVar("DATABASE_TARGET", &config.Database.Target)
	env.intVar("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	env.intVar("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)
	env.durationVar("DATABASE_CONN_MAX_LIFETIME", &config.Database.ConnMaxLifetime)
	env.durationVar("DATABASE_CONN_MAX_IDLE_TIME", &config.Database.ConnMaxIdleTime)
	env.durationVar("DATABASE_CONNECTION_TIMEOUT", &config.Database.ConnectionTimeout)
	env.floatVar("DATABASE_RATE_LIMIT", &config.Database.RateLimit)
	env.intVar("DATABASE_RATE_BURST", &config.Database.RateBurst)

	// Logging configuration
	env.strVar("LOGGING_LEVEL", &config.Logging.Level)
	env.strVar("LOGGING_FORMAT", &config.Logging.Format)

	// Change feed configuration
	cf := &config.ChangeFeed
	env.strVar("CHANGEFEED_TYPE", &cf.Type)
	env.intVar("CHANGEFEED_BUFFER_SIZE", &cf.BufferSize)
	env.listVar("CHANGEFEED_REDIS_ENDPOINTS", &cf.Redis.Endpoints)
	env.strVar("CHANGEFEED_REDIS_PASSWORD", &cf.Redis.Password)
	env.intVar("CHANGEFEED_REDIS_DB", &cf.Redis.DB)
	env.strVar("CHANGEFEED_REDIS_KEY_PREFIX", &cf.Redis.KeyPrefix)
	env.listVar("CHANGEFEED_KAFKA_BROKERS", &cf.Kafka.Brokers)
	env.strVar("CHANGEFEED_KAFKA_TOPIC", &cf.Kafka.Topic)
	env.intVar("CHANGEFEED_KAFKA_REQUIRED_ACKS", &cf.Kafka.RequiredAcks)
	env.strVar("CHANGEFEED_DYNAMODB_REGION", &cf.DynamoDB.Region)
	env.strVar("CHANGEFEED_DYNAMODB_TABLE_NAME", &cf.DynamoDB.TableName)
	env.strVar("CHANGEFEED_DYNAMODB_ENDPOINT", &cf.DynamoDB.Endpoint)
	env.durationVar("CHANGEFEED_DYNAMODB_TTL", &cf.DynamoDB.TTL)

	if env.err != nil {
		return env.err
	}
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// envReader assigns THINORM_ variables that are set and remembers the first
// malformed one.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" || e.err != nil {
		return "", false
	}
	return val, true
}

func (e *envReader) fail(key, val string, err error) {
	e.err = fmt.Errorf("invalid value %q for %s%s: %w", val, EnvPrefix, key, err)
}

func (e *envReader) strVar(key string, dst *string) {
	if val, ok := e.lookup(key); ok {
		*dst = val
	}
}

func (e *envReader) listVar(key string, dst *[]string) {
	if val, ok := e.lookup(key); ok {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func (e *envReader) intVar(key string, dst *int) {
	if val, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) floatVar(key string, dst *float64) {
	if val, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) durationVar(key string, dst *time.Duration) {
	if val, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = d
	}
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// The change feed section is checked by the validator registered for its type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	// Validate Database configuration
	if strings.TrimSpace(config.Database.Target) == "" {
		return fmt.Errorf("database.target is required")
	}
	if _, err := database.ParseTarget(config.Database.Target); err != nil {
		return fmt.Errorf("database.target: %w", err)
	}
	if config.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be greater than 0")
	}
	if config.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be non-negative")
	}
	if config.Database.ConnMaxLifetime < 0 || config.Database.ConnMaxIdleTime < 0 {
		return fmt.Errorf("database connection lifetimes must be non-negative")
	}
	if config.Database.ConnectionTimeout < 0 {
		return fmt.Errorf("database.connection_timeout must be non-negative")
	}
	if config.Database.RateLimit < 0 {
		return fmt.Errorf("database.rate_limit must be non-negative")
	}
	if config.Database.RateLimit > 0 && config.Database.RateBurst <= 0 {
		return fmt.Errorf("database.rate_burst must be greater than 0 when rate_limit is set")
	}

	// Validate Logging configuration
	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}

	// Validate Change feed configuration using Strategy pattern
	if config.ChangeFeed.Type == "" {
		config.ChangeFeed.Type = "none"
	}
	validator, exists := GetValidator(config.ChangeFeed.Type)
	if !exists {
		return fmt.Errorf("unsupported change feed type: %s", config.ChangeFeed.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("changefeed validation failed: %w", err)
	}

	return nil
}
