package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/thinorm/internal/core"
)

var (
	// ErrPublisherClosed is returned when publishing to a closed publisher.
	ErrPublisherClosed = errors.New("change publisher is closed")

	// ErrInvalidEvent is returned for nil events or events without an operation.
	ErrInvalidEvent = errors.New("invalid change event")
)

// PublisherFactory is the Strategy interface for creating change publishers.
// Each sink (memory, Redis, Kafka, DynamoDB) implements this interface and
// registers itself from init().
type PublisherFactory interface {
	// Create creates a new publisher from the configuration.
	Create(ctx context.Context, config Config) (core.ChangePublisher, error)

	// Type returns the type identifier for this factory (e.g., "redis", "kafka").
	Type() string

	// Validate validates the configuration specific to this sink.
	Validate(config Config) error
}

// Config represents the configuration needed to create a publisher.
// Only the fields of the selected Type are read.
type Config struct {
	Type string

	// Memory
	BufferSize int

	// Redis
	Endpoints    []string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	MaxLen       int64

	// Kafka
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int

	// DynamoDB
	Region          string
	TableName       string
	Endpoint        string // Optional, for LocalStack
	AccessKeyID     string // Optional, can use IAM role instead
	SecretAccessKey string // Optional, can use IAM role instead
	TTL             time.Duration
}

// Enabled reports whether the configuration selects a sink.
func (c Config) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

var (
	// factoryRegistry stores all registered publisher factories.
	factoryRegistry = make(map[string]PublisherFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a publisher factory.
// This is called automatically by each implementation's init() function.
func RegisterFactory(factory PublisherFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

func lookup(sinkType string) (PublisherFactory, error) {
	registryMutex.RLock()
	factory, exists := factoryRegistry[sinkType]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported change feed type: %s", sinkType)
	}
	return factory, nil
}

// Validate checks config against the factory registered for config.Type.
func Validate(config Config) error {
	if !config.Enabled() {
		return nil
	}
	factory, err := lookup(config.Type)
	if err != nil {
		return err
	}
	if err := factory.Validate(config); err != nil {
		return fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return nil
}

// Create creates a publisher using the factory registered for config.Type.
func Create(ctx context.Context, config Config) (core.ChangePublisher, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("change feed type is required")
	}
	factory, err := lookup(config.Type)
	if err != nil {
		return nil, err
	}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return factory.Create(ctx, config)
}

// RegisteredTypes returns the registered sink types, sorted.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a sink type is registered.
func IsTypeRegistered(sinkType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[sinkType]
	return exists
}

// NewEvent builds a change event with a fresh id and the current time.
func NewEvent(table string, op core.OperationType, key any, rowsAffected int64, statement string) *core.ChangeEvent {
	return &core.ChangeEvent{
		ID:           uuid.NewString(),
		Table:        table,
		Operation:    op,
		Key:          key,
		RowsAffected: rowsAffected,
		Statement:    statement,
		Timestamp:    time.Now().UTC(),
	}
}

func checkEvent(event *core.ChangeEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.Operation == "" {
		return fmt.Errorf("%w: operation is required", ErrInvalidEvent)
	}
	return nil
}
