package config

import (
	"time"

	"github.com/rzpsarthak13/thinorm/internal/changefeed"
	"github.com/rzpsarthak13/thinorm/internal/database"
)

// InternalConfig represents the internal configuration structure.
// This mirrors the public Config type to avoid import cycles.
type InternalConfig struct {
	Database   InternalDatabaseConfig   `yaml:"database" json:"database"`
	Logging    InternalLoggingConfig    `yaml:"logging" json:"logging"`
	ChangeFeed InternalChangeFeedConfig `yaml:"changefeed" json:"changefeed"`
}

// InternalDatabaseConfig contains the connection target and pool settings.
type InternalDatabaseConfig struct {
	Target            string        `yaml:"target" json:"target"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
	RateLimit         float64       `yaml:"rate_limit" json:"rate_limit"` // Statements per second, 0 = unlimited
	RateBurst         int           `yaml:"rate_burst" json:"rate_burst"`
}

// InternalLoggingConfig contains logger settings.
type InternalLoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// InternalChangeFeedConfig selects and configures the change event sink.
type InternalChangeFeedConfig struct {
	Type       string                 `yaml:"type" json:"type"`
	BufferSize int                    `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	Redis      InternalRedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	Kafka      InternalKafkaConfig    `yaml:"kafka,omitempty" json:"kafka,omitempty"`
	DynamoDB   InternalDynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	KeyPrefix    string        `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	MaxLen       int64         `yaml:"max_len,omitempty" json:"max_len,omitempty"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks" json:"required_acks"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string        `yaml:"region" json:"region"`
	TableName       string        `yaml:"table_name" json:"table_name"`
	Endpoint        string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string        `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string        `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
	TTL             time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// Pool returns the database/sql pool settings.
func (c InternalDatabaseConfig) Pool() database.PoolConfig {
	return database.PoolConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		ConnectTimeout:  c.ConnectionTimeout,
	}
}

// Publisher flattens the section into the change feed factory config.
func (c InternalChangeFeedConfig) Publisher() changefeed.Config {
	writeTimeout := c.Redis.WriteTimeout
	if c.Type == "kafka" {
		writeTimeout = c.Kafka.WriteTimeout
	}
	return changefeed.Config{
		Type:       c.Type,
		BufferSize: c.BufferSize,

		Endpoints:    c.Redis.Endpoints,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		PoolSize:     c.Redis.PoolSize,
		DialTimeout:  c.Redis.DialTimeout,
		ReadTimeout:  c.Redis.ReadTimeout,
		WriteTimeout: writeTimeout,
		KeyPrefix:    c.Redis.KeyPrefix,
		MaxLen:       c.Redis.MaxLen,

		Brokers:      c.Kafka.Brokers,
		Topic:        c.Kafka.Topic,
		BatchSize:    c.Kafka.BatchSize,
		BatchTimeout: c.Kafka.BatchTimeout,
		RequiredAcks: c.Kafka.RequiredAcks,

		Region:          c.DynamoDB.Region,
		TableName:       c.DynamoDB.TableName,
		Endpoint:        c.DynamoDB.Endpoint,
		AccessKeyID:     c.DynamoDB.AccessKeyID,
		SecretAccessKey: c.DynamoDB.SecretAccessKey,
		TTL:             c.DynamoDB.TTL,
	}
}
