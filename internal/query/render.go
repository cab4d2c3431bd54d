package query

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/dialect"
	"github.com/rzpsarthak13/thinorm/internal/schema"
)

// Statement is a rendered builder: SQL text with bind arguments.
type Statement struct {
	// Kind is the kind of the builder that produced the statement.
	Kind Kind

	// SQL is the statement text with dialect placeholders.
	SQL string

	// Args are the bind arguments in placeholder order.
	Args []core.Value

	// Columns holds the column each argument targets, nil where unknown.
	Columns []*core.Column

	// Returning is set when the statement yields the generated key as a row.
	Returning bool
}

// NativeArgs returns the arguments in the form d's driver accepts.
func (s Statement) NativeArgs(d dialect.Dialect) []any {
	out := make([]any, len(s.Args))
	for i, a := range s.Args {
		out[i] = d.Bind(a, s.column(i))
	}
	return out
}

func (s Statement) column(i int) *core.Column {
	if i < len(s.Columns) {
		return s.Columns[i]
	}
	return nil
}

// literal renders argument i inline, as TRUE or FALSE when d binds it as bool.
func (s Statement) literal(d dialect.Dialect, i int) string {
	if b, ok := d.Bind(s.Args[i], s.column(i)).(bool); ok {
		if b {
			return "TRUE"
		}
		return "FALSE"
	}
	return d.Literal(s.Args[i])
}

// Inline returns the statement with every placeholder replaced by its
// literal. Placeholders inside quoted strings are left alone.
func (s Statement) Inline(d dialect.Dialect) string {
	if len(s.Args) == 0 {
		return s.SQL
	}
	var b strings.Builder
	next := 0
	sql := s.SQL
	backslash := d.Quote(`\`) != `'\'`
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(sql, i, backslash)
			b.WriteString(sql[i:end])
			i = end - 1
		case c == '?' && d.Placeholder(1) == "?":
			if next < len(s.Args) {
				b.WriteString(s.literal(d, next))
				next++
			} else {
				b.WriteByte(c)
			}
		case c == '$' && d.Placeholder(1) == "$1" && i+1 < len(sql) && isDigit(sql[i+1]):
			j := i + 1
			n := 0
			for j < len(sql) && isDigit(sql[j]) {
				n = n*10 + int(sql[j]-'0')
				j++
			}
			if n >= 1 && n <= len(s.Args) {
				b.WriteString(s.literal(d, n-1))
			} else {
				b.WriteString(sql[i:j])
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closingQuote returns the index just past the quoted run starting at i.
// Doubled quote characters stay inside the run, as do backslash escapes
// when the dialect uses them.
func closingQuote(sql string, i int, backslash bool) int {
	q := sql[i]
	j := i + 1
	for j < len(sql) {
		if sql[j] == q {
			if j+1 < len(sql) && sql[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		if backslash && sql[j] == '\\' && j+1 < len(sql) {
			j += 2
			continue
		}
		j++
	}
	return len(sql)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Render turns the builder into a statement for d. Every validation failure
// is reported here, before any I/O, as a core.RenderError.
func (b Builder) Render(d dialect.Dialect) (Statement, error) {
	stmt, err := b.render(d)
	if err != nil {
		e := &core.Error{Kind: core.RenderError, Op: b.kind.String(), Err: err}
		if b.meta != nil {
			e.Table = b.meta.Name
		}
		return Statement{}, e
	}
	return stmt, nil
}

func (b Builder) render(d dialect.Dialect) (Statement, error) {
	if d == nil {
		return Statement{}, fmt.Errorf("dialect is required")
	}
	if b.hasLimit {
		if !b.kind.Limitable() {
			return Statement{}, ErrLimitNotAllowed
		}
		if b.limit < 0 {
			return Statement{}, ErrNegativeLimit
		}
	}

	switch b.kind {
	case KindRawQuery, KindRawExec:
		return b.renderRaw(d)
	case 0:
		return Statement{}, fmt.Errorf("empty builder")
	}

	if err := b.meta.Validate(); err != nil {
		return Statement{}, err
	}
	validator := schema.NewSchemaValidator(b.meta)
	r := &renderer{d: d, meta: b.meta}

	switch b.kind {
	case KindInsert:
		if err := validator.ValidateRow(b.row, true); err != nil {
			return Statement{}, err
		}
		return r.insert(b.row), nil
	case KindUpdate:
		if err := validator.ValidateRow(b.row, false); err != nil {
			return Statement{}, err
		}
		return r.update(b.row)
	case KindSelectByKey, KindDelete:
		if err := validator.ValidateKey(b.key); err != nil {
			return Statement{}, err
		}
		return r.byKey(b.kind, b.key), nil
	case KindSelectAll:
		return r.selectAll(b), nil
	case KindSelectWhere:
		if strings.TrimSpace(b.predicate) == "" {
			return Statement{}, ErrEmptyPredicate
		}
		return r.selectAll(b), nil
	}
	return Statement{}, fmt.Errorf("unsupported builder kind %d", b.kind)
}

func (b Builder) renderRaw(d dialect.Dialect) (Statement, error) {
	sql := strings.TrimSpace(b.raw)
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return Statement{}, ErrEmptyStatement
	}
	if b.hasLimit {
		sql = withLimit(sql, d.Limit(b.limit))
	}
	return Statement{Kind: b.kind, SQL: sql, Args: append([]core.Value(nil), b.args...)}, nil
}

// withLimit appends the limit clause. It goes on a line of its own when the
// last line holds a "--" comment, which would otherwise swallow it.
func withLimit(sql, limit string) string {
	last := sql[strings.LastIndexByte(sql, '\n')+1:]
	if strings.Contains(last, "--") {
		return sql + "\n" + limit
	}
	return sql + " " + limit
}

// renderer accumulates placeholders for one statement.
type renderer struct {
	d    dialect.Dialect
	meta *core.TableMetadata
	args []core.Value
	cols []*core.Column
}

func (r *renderer) bind(v core.Value, col *core.Column) string {
	r.args = append(r.args, v)
	r.cols = append(r.cols, col)
	return r.d.Placeholder(len(r.args))
}

func (r *renderer) table() string { return r.d.QuoteIdent(r.meta.Name) }

func (r *renderer) columnList() string {
	cols := make([]string, len(r.meta.Columns))
	for i, c := range r.meta.Columns {
		cols[i] = r.d.QuoteIdent(c.Name)
	}
	return strings.Join(cols, ", ")
}

func (r *renderer) keyClause(key core.Value) string {
	pk := &r.meta.Columns[r.meta.PrimaryKeyIndex()]
	return "WHERE " + r.d.QuoteIdent(pk.Name) + " = " + r.bind(key, pk)
}

func (r *renderer) insert(row core.Row) Statement {
	var cols, marks []string
	for i, c := range r.meta.Columns {
		v := row.At(i)
		if c.PrimaryKey && core.IsUnsetKey(v) {
			continue
		}
		cols = append(cols, r.d.QuoteIdent(c.Name))
		marks = append(marks, r.bind(v, &r.meta.Columns[i]))
	}

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	sql.WriteString(r.table())
	if len(cols) == 0 {
		sql.WriteString(" ")
		sql.WriteString(r.d.DefaultValues())
	} else {
		fmt.Fprintf(&sql, " (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(marks, ", "))
	}
	returning := r.d.Returning(r.meta.PrimaryKey().Name)
	if returning != "" {
		sql.WriteString(" ")
		sql.WriteString(returning)
	}
	return Statement{Kind: KindInsert, SQL: sql.String(), Args: r.args, Columns: r.cols, Returning: returning != ""}
}

func (r *renderer) update(row core.Row) (Statement, error) {
	var sets []string
	pk := r.meta.PrimaryKeyIndex()
	for i, c := range r.meta.Columns {
		if i == pk {
			continue
		}
		sets = append(sets, r.d.QuoteIdent(c.Name)+" = "+r.bind(row.At(i), &r.meta.Columns[i]))
	}
	if len(sets) == 0 {
		return Statement{}, fmt.Errorf("table %s has no columns to update", r.meta.Name)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s %s", r.table(), strings.Join(sets, ", "), r.keyClause(row.At(pk)))
	return Statement{Kind: KindUpdate, SQL: sql, Args: r.args, Columns: r.cols}, nil
}

func (r *renderer) byKey(kind Kind, key core.Value) Statement {
	var sql string
	if kind == KindDelete {
		sql = fmt.Sprintf("DELETE FROM %s %s", r.table(), r.keyClause(key))
	} else {
		sql = fmt.Sprintf("SELECT %s FROM %s %s", r.columnList(), r.table(), r.keyClause(key))
	}
	return Statement{Kind: kind, SQL: sql, Args: r.args, Columns: r.cols}
}

func (r *renderer) selectAll(b Builder) Statement {
	sql := fmt.Sprintf("SELECT %s FROM %s", r.columnList(), r.table())
	if b.kind == KindSelectWhere {
		sql += " WHERE " + strings.TrimSpace(b.predicate)
	}
	if b.hasLimit {
		sql = withLimit(sql, r.d.Limit(b.limit))
	}
	return Statement{Kind: b.kind, SQL: sql}
}
