package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/thinorm/internal/changefeed"
	"github.com/rzpsarthak13/thinorm/internal/config"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/database"
	"github.com/rzpsarthak13/thinorm/internal/dialect"
	"github.com/rzpsarthak13/thinorm/internal/logging"
	"github.com/rzpsarthak13/thinorm/internal/metrics"
)

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// Connection is an open database connection: the backend pool, its dialect,
// and the pipeline every statement goes through.
// A Connection is safe for concurrent use.
type Connection struct {
	mu     sync.RWMutex
	closed bool

	db      core.Database
	target  database.Target
	dialect dialect.Dialect

	// writeMu serialises writes on single-writer backends so an insert and
	// the select reading it back are not interleaved with another write.
	writeMu sync.Mutex

	limiter   *rate.Limiter
	publisher core.ChangePublisher
	hooks     *HookManager
	tables    *TableRegistry
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type options struct {
	pool       database.PoolConfig
	rateLimit  float64
	rateBurst  int
	publishers []core.ChangePublisher
	hooks      []Hook
	registry   prometheus.Registerer
	logger     *slog.Logger
}

// Option configures a Connection.
type Option func(*options)

// WithPool sets the database/sql pool settings.
func WithPool(pool database.PoolConfig) Option {
	return func(o *options) { o.pool = pool }
}

// WithRateLimit throttles statements to rps per second with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rps
		o.rateBurst = burst
	}
}

// WithPublisher sends a change event for every committed write. Several
// publishers receive every event concurrently.
func WithPublisher(p core.ChangePublisher) Option {
	return func(o *options) {
		if p != nil {
			o.publishers = append(o.publishers, p)
		}
	}
}

// WithHook registers a statement hook.
func WithHook(h Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// WithMetrics registers the statement collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger replaces the connection logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func (o *options) publisher() core.ChangePublisher {
	switch len(o.publishers) {
	case 0:
		return nil
	case 1:
		return o.publishers[0]
	default:
		return changefeed.NewFanOut(o.publishers...)
	}
}

func buildOptions(opts []Option) *options {
	o := &options{pool: database.DefaultPoolConfig(), rateBurst: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Open connects to target. Every failure is a core.ConnectionError.
func Open(ctx context.Context, target string, opts ...Option) (*Connection, error) {
	o := buildOptions(opts)
	db, t, err := database.Open(ctx, target, o.pool)
	if err != nil {
		return nil, err
	}
	conn, err := newConnection(db, t, o)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return conn, nil
}

// New wraps an already opened backend.
func New(db core.Database, d dialect.Dialect, opts ...Option) (*Connection, error) {
	if db == nil {
		return nil, core.NewError(core.ConnectionError, "connect", fmt.Errorf("database cannot be nil"))
	}
	if d == nil {
		return nil, core.NewError(core.ConnectionError, "connect", fmt.Errorf("dialect cannot be nil"))
	}
	return newConnection(db, database.Target{Scheme: d.Name(), Dialect: d}, buildOptions(opts))
}

// NewFromProvider loads configuration from provider and opens the connection
// it describes, including the change feed sink.
func NewFromProvider(ctx context.Context, provider ConfigProvider, opts ...Option) (*Connection, error) {
	if provider == nil {
		return nil, core.NewError(core.ConfigError, "connect", fmt.Errorf("config provider cannot be nil"))
	}

	configMgr := config.NewConfigManager()
	yamlData, err := provider.GetYAML()
	if err != nil {
		return nil, core.NewError(core.ConfigError, "connect", fmt.Errorf("failed to get config YAML: %w", err))
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, core.NewError(core.ConfigError, "connect", fmt.Errorf("failed to load config: %w", err))
	}
	cfg := configMgr.GetConfig()

	logging.SetLevelFromString(cfg.Logging.Level)
	if strings.EqualFold(cfg.Logging.Format, "json") {
		logging.SetOutput(os.Stderr, "json")
	}

	base := []Option{
		WithPool(cfg.Database.Pool()),
		WithRateLimit(cfg.Database.RateLimit, cfg.Database.RateBurst),
	}

	var publisher core.ChangePublisher
	if pub := cfg.ChangeFeed.Publisher(); pub.Enabled() {
		publisher, err = changefeed.Create(ctx, pub)
		if err != nil {
			return nil, core.NewError(core.ConfigError, "connect", fmt.Errorf("failed to create change publisher: %w", err))
		}
		base = append(base, WithPublisher(publisher))
	}

	conn, err := Open(ctx, cfg.Database.Target, append(base, opts...)...)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, err
	}
	return conn, nil
}

func newConnection(db core.Database, t database.Target, o *options) (*Connection, error) {
	m, err := metrics.New(o.registry)
	if err != nil {
		return nil, core.NewError(core.ConfigError, "connect", err)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.For("connection")
	}

	c := &Connection{
		db:        db,
		target:    t,
		dialect:   t.Dialect,
		publisher: o.publisher(),
		hooks:     NewHookManager(),
		tables:    NewTableRegistry(),
		metrics:   m,
		logger:    logger.With("dialect", t.Dialect.Name()),
	}
	if o.rateLimit > 0 {
		burst := o.rateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.rateLimit), burst)
	}
	for _, h := range o.hooks {
		c.hooks.RegisterHook(h)
	}
	return c, nil
}

// Dialect returns the connection's SQL dialect.
func (c *Connection) Dialect() dialect.Dialect { return c.dialect }

// Target returns the parsed connection target.
func (c *Connection) Target() database.Target { return c.target }

// Hooks returns the connection's hook manager.
func (c *Connection) Hooks() *HookManager { return c.hooks }

// Protect renders s as a string literal safe to splice into SQL text for
// this connection's dialect. It never touches the database.
func (c *Connection) Protect(s string) string {
	return c.dialect.Quote(s)
}

// Register records a table mapping with the connection.
func (c *Connection) Register(meta *core.TableMetadata) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return closedError("register")
	}
	return c.tables.Register(meta)
}

// Tables returns the names of the mapped tables.
func (c *Connection) Tables() []string {
	return c.tables.Names()
}

// Ping checks that the backend is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return closedError("ping")
	}
	if err := c.db.Ping(ctx); err != nil {
		return core.Classify(core.ConnectionError, "ping", "", err)
	}
	return nil
}

// Close releases the pool and the change publisher. Every operation after
// Close, including a second Close, fails with a connection error.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return closedError("close")
	}
	c.closed = true

	var errs []error
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close change publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return core.NewError(core.ConnectionError, "close", errors.Join(errs...))
	}
	c.logger.Info("connection closed", "target", c.target.Redacted())
	return nil
}

func closedError(op string) error {
	return core.NewError(core.ConnectionError, op, core.ErrClosed)
}
