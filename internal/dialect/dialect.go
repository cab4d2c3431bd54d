package dialect

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Dialect is the Strategy interface for backend-specific SQL text.
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Name returns the registry name (e.g., "sqlite", "mysql").
	Name() string

	// Schemes returns the connection target schemes served by this dialect.
	Schemes() []string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// Quote renders s as a string literal that cannot terminate early.
	Quote(s string) string

	// Placeholder returns the bind marker for the n-th argument, starting at 1.
	Placeholder(n int) string

	// Limit returns the clause restricting a result to n rows.
	Limit(n int) string

	// Literal renders a value inline. Used for logs and change events.
	Literal(v core.Value) string

	// Bind converts v into the driver argument for a parameter targeting col.
	// col is nil when the target column is unknown (raw statements).
	Bind(v core.Value, col *core.Column) any

	// Returning returns the clause that makes an INSERT yield the generated key,
	// or "" when the backend reports it through LastInsertId instead.
	Returning(column string) string

	// DefaultValues is the INSERT tail used when every column takes its default.
	DefaultValues() string

	// SingleWriter reports whether the backend allows only one writer at a time.
	SingleWriter() bool
}

var (
	registry      = make(map[string]Dialect)
	schemes       = make(map[string]Dialect)
	registryMutex sync.RWMutex
)

// Register registers a dialect and its target schemes.
// This is called automatically by each implementation's init() function.
func Register(d Dialect) {
	if d == nil {
		panic("dialect cannot be nil")
	}
	if d.Name() == "" {
		panic("dialect name cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := registry[d.Name()]; exists {
		panic(fmt.Sprintf("dialect %q is already registered", d.Name()))
	}
	registry[d.Name()] = d
	for _, s := range d.Schemes() {
		schemes[s] = d
	}
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
	return d, nil
}

// ForScheme returns the dialect serving a connection target scheme.
func ForScheme(scheme string) (Dialect, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	d, ok := schemes[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("unsupported target scheme: %s", scheme)
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// quoteWith wraps s in q, doubling every embedded q.
func quoteWith(s string, q byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		if s[i] == q {
			b.WriteByte(q)
		}
		b.WriteByte(s[i])
	}
	b.WriteByte(q)
	return b.String()
}

// literal renders the non-text variants shared by every dialect.
func literal(d Dialect, v core.Value, blob func([]byte) string) string {
	switch v.Kind() {
	case core.KindInteger:
		i, _ := v.Int64()
		return strconv.FormatInt(i, 10)
	case core.KindReal:
		f, _ := v.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case core.KindText:
		s, _ := v.Str()
		return d.Quote(s)
	case core.KindBlob:
		b, _ := v.Bytes()
		return blob(b)
	default:
		return "NULL"
	}
}

func hexBlob(b []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
}
