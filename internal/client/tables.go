package client

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// TableEntry is a table mapping registered with a connection.
type TableEntry struct {
	// Metadata is the table description shared by every builder.
	Metadata *core.TableMetadata

	// RegisteredAt is when the first mapping for the table was registered.
	RegisteredAt time.Time
}

// TableRegistry tracks the tables a connection has mapped, so two record
// types cannot describe the same table differently.
type TableRegistry struct {
	mu     sync.RWMutex
	tables map[string]*TableEntry
}

// NewTableRegistry creates an empty registry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{tables: make(map[string]*TableEntry)}
}

// Register records meta. Registering an identical description again is a
// no-op; a different description for a known table is a mapping error.
func (tr *TableRegistry) Register(meta *core.TableMetadata) error {
	if err := meta.Validate(); err != nil {
		return &core.Error{Kind: core.MappingError, Err: err}
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if existing, exists := tr.tables[meta.Name]; exists {
		if existing.Metadata == meta || sameColumns(existing.Metadata, meta) {
			return nil
		}
		return &core.Error{
			Kind:  core.MappingError,
			Table: meta.Name,
			Err:   fmt.Errorf("table %q is already mapped with different columns", meta.Name),
		}
	}
	tr.tables[meta.Name] = &TableEntry{Metadata: meta, RegisteredAt: time.Now()}
	return nil
}

// Get returns the registered metadata for a table.
func (tr *TableRegistry) Get(tableName string) (*core.TableMetadata, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	entry, exists := tr.tables[tableName]
	if !exists {
		return nil, false
	}
	return entry.Metadata, true
}

// Names returns the registered table names, sorted.
func (tr *TableRegistry) Names() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	names := make([]string, 0, len(tr.tables))
	for name := range tr.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameColumns(a, b *core.TableMetadata) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}
