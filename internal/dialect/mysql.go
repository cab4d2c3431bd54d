package dialect

import (
	"strconv"
	"strings"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

func init() {
	Register(MySQL{})
}

// MySQL renders SQL for MySQL and MariaDB with the default sql_mode.
type MySQL struct{}

func (MySQL) Name() string      { return "mysql" }
func (MySQL) Schemes() []string { return []string{"mysql", "mariadb"} }

func (MySQL) QuoteIdent(name string) string { return quoteWith(name, '`') }
func (MySQL) Placeholder(int) string        { return "?" }
func (MySQL) Limit(n int) string            { return "LIMIT " + strconv.Itoa(n) }
func (MySQL) Returning(string) string       { return "" }
func (MySQL) DefaultValues() string         { return "() VALUES ()" }
func (MySQL) SingleWriter() bool            { return false }

func (MySQL) Bind(v core.Value, _ *core.Column) any { return v.Native() }

// Quote doubles single quotes and escapes the characters MySQL treats
// specially inside string literals, backslash included.
func (MySQL) Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func (d MySQL) Literal(v core.Value) string { return literal(d, v, hexBlob) }
