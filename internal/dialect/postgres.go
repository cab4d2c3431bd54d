package dialect

import (
	"encoding/hex"
	"strconv"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

func init() {
	Register(Postgres{})
}

// Postgres renders SQL for PostgreSQL with standard_conforming_strings on.
type Postgres struct{}

func (Postgres) Name() string      { return "postgres" }
func (Postgres) Schemes() []string { return []string{"postgres", "postgresql"} }

func (Postgres) QuoteIdent(name string) string { return quoteWith(name, '"') }
func (Postgres) Quote(s string) string         { return quoteWith(s, '\'') }
func (Postgres) Placeholder(n int) string      { return "$" + strconv.Itoa(n) }
func (Postgres) Limit(n int) string            { return "LIMIT " + strconv.Itoa(n) }
func (Postgres) SingleWriter() bool            { return false }
func (Postgres) DefaultValues() string         { return "DEFAULT VALUES" }

func (d Postgres) Returning(column string) string {
	return "RETURNING " + d.QuoteIdent(column)
}

func (d Postgres) Literal(v core.Value) string {
	return literal(d, v, func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	})
}

// Bind passes truth-valued columns as bool: PostgreSQL does not cast an
// integer parameter to boolean.
func (Postgres) Bind(v core.Value, col *core.Column) any {
	if col != nil && col.Boolean && v.Kind() == core.KindInteger {
		i, _ := v.Int64()
		return i != 0
	}
	return v.Native()
}
