package dialect

import (
	"strconv"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

func init() {
	Register(SQLite{})
}

// SQLite renders SQL for SQLite 3.
type SQLite struct{}

func (SQLite) Name() string      { return "sqlite" }
func (SQLite) Schemes() []string { return []string{"sqlite", "sqlite3", "file"} }

func (SQLite) QuoteIdent(name string) string { return quoteWith(name, '"') }
func (SQLite) Quote(s string) string         { return quoteWith(s, '\'') }
func (SQLite) Placeholder(int) string        { return "?" }
func (SQLite) Limit(n int) string            { return "LIMIT " + strconv.Itoa(n) }
func (SQLite) Returning(string) string       { return "" }
func (SQLite) DefaultValues() string         { return "DEFAULT VALUES" }

// SingleWriter is true: SQLite serialises writers on the database file.
func (SQLite) SingleWriter() bool { return true }

func (d SQLite) Literal(v core.Value) string { return literal(d, v, hexBlob) }

func (SQLite) Bind(v core.Value, _ *core.Column) any { return v.Native() }
