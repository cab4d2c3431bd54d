package query

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/dialect"
)

var person = &core.TableMetadata{Name: "person", Columns: []core.Column{
	{Name: "id", PrimaryKey: true, Kind: core.KindInteger},
	{Name: "name", Kind: core.KindText},
	{Name: "age", Kind: core.KindInteger, Nullable: true},
}}

func row(id int64, name string, age core.Value) core.Row {
	return core.NewRow(core.Int(id), core.Text(name), age)
}

func TestRender(t *testing.T) {
	sqlite := dialect.SQLite{}
	mysql := dialect.MySQL{}
	pg := dialect.Postgres{}

	tests := []struct {
		name   string
		b      Builder
		d      dialect.Dialect
		sql    string
		args   int
		inline string
	}{
		{
			name:   "insert without key",
			b:      Insert(person, row(0, "John", core.Int(20))),
			d:      sqlite,
			sql:    `INSERT INTO "person" ("name", "age") VALUES (?, ?)`,
			args:   2,
			inline: `INSERT INTO "person" ("name", "age") VALUES ('John', 20)`,
		},
		{
			name: "insert with key",
			b:    Insert(person, row(9, "John", core.Null())),
			d:    mysql,
			sql:  "INSERT INTO `person` (`id`, `name`, `age`) VALUES (?, ?, ?)",
			args: 3,
		},
		{
			name:   "insert returning",
			b:      Insert(person, row(0, "O'Neil", core.Null())),
			d:      pg,
			sql:    `INSERT INTO "person" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			args:   2,
			inline: `INSERT INTO "person" ("name", "age") VALUES ('O''Neil', NULL) RETURNING "id"`,
		},
		{
			name:   "select by key",
			b:      SelectByKey(person, core.Int(1)),
			d:      sqlite,
			sql:    `SELECT "id", "name", "age" FROM "person" WHERE "id" = ?`,
			args:   1,
			inline: `SELECT "id", "name", "age" FROM "person" WHERE "id" = 1`,
		},
		{
			name: "select all",
			b:    SelectAll(person),
			d:    sqlite,
			sql:  `SELECT "id", "name", "age" FROM "person"`,
		},
		{
			name: "select all limit",
			b:    SelectAll(person).WithLimit(5),
			d:    mysql,
			sql:  "SELECT `id`, `name`, `age` FROM `person` LIMIT 5",
		},
		{
			name: "select where limit",
			b:    SelectWhere(person, "age > 30").WithLimit(1),
			d:    sqlite,
			sql:  `SELECT "id", "name", "age" FROM "person" WHERE age > 30 LIMIT 1`,
		},
		{
			name:   "update",
			b:      Update(person, row(2, "Mary", core.Int(31))),
			d:      pg,
			sql:    `UPDATE "person" SET "name" = $1, "age" = $2 WHERE "id" = $3`,
			args:   3,
			inline: `UPDATE "person" SET "name" = 'Mary', "age" = 31 WHERE "id" = 2`,
		},
		{
			name: "delete",
			b:    Delete(person, core.Int(3)),
			d:    mysql,
			sql:  "DELETE FROM `person` WHERE `id` = ?",
			args: 1,
		},
		{
			name:   "raw query",
			b:      Raw("SELECT name FROM person WHERE name = ? AND note = '?';", core.Text("Mike")),
			d:      sqlite,
			sql:    "SELECT name FROM person WHERE name = ? AND note = '?'",
			args:   1,
			inline: "SELECT name FROM person WHERE name = 'Mike' AND note = '?'",
		},
		{
			name: "raw query limit",
			b:    Raw("SELECT * FROM person").WithLimit(2),
			d:    pg,
			sql:  "SELECT * FROM person LIMIT 2",
		},
		{
			name: "raw exec",
			b:    RawExec("UPDATE person SET age = age + 1"),
			d:    sqlite,
			sql:  "UPDATE person SET age = age + 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.b.Render(tt.d)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if stmt.SQL != tt.sql {
				t.Fatalf("SQL=%q\nwant %q", stmt.SQL, tt.sql)
			}
			if len(stmt.Args) != tt.args {
				t.Fatalf("args=%v want %d", stmt.Args, tt.args)
			}
			if tt.inline != "" {
				if got := stmt.Inline(tt.d); got != tt.inline {
					t.Fatalf("Inline=%q\nwant %q", got, tt.inline)
				}
			}
			if stmt.Kind != tt.b.Kind() {
				t.Fatalf("Kind=%v want %v", stmt.Kind, tt.b.Kind())
			}
		})
	}
}

func TestRender_NullIsNeverEmptyOrZero(t *testing.T) {
	stmt, err := Update(person, row(1, "John", core.Null())).Render(dialect.SQLite{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if stmt.NativeArgs(dialect.SQLite{})[1] != nil {
		t.Fatalf("NULL bound as %#v", stmt.NativeArgs(dialect.SQLite{})[1])
	}
	if got := stmt.Inline(dialect.SQLite{}); got != `UPDATE "person" SET "name" = 'John', "age" = NULL WHERE "id" = 1` {
		t.Fatalf("Inline=%q", got)
	}
}

func TestRender_Errors(t *testing.T) {
	noKey := &core.TableMetadata{Name: "t", Columns: []core.Column{{Name: "a"}}}
	onlyKey := &core.TableMetadata{Name: "t", Columns: []core.Column{{Name: "id", PrimaryKey: true}}}

	tests := []struct {
		name string
		b    Builder
		want error
	}{
		{"limit on find_one", SelectByKey(person, core.Int(1)).WithLimit(1), ErrLimitNotAllowed},
		{"limit on insert", Insert(person, row(0, "x", core.Null())).WithLimit(1), ErrLimitNotAllowed},
		{"limit on delete", Delete(person, core.Int(1)).WithLimit(1), ErrLimitNotAllowed},
		{"limit on raw exec", RawExec("DELETE FROM person").WithLimit(1), ErrLimitNotAllowed},
		{"negative limit", SelectAll(person).WithLimit(-1), ErrNegativeLimit},
		{"empty predicate", SelectWhere(person, "  "), ErrEmptyPredicate},
		{"empty raw", Raw(" ; "), ErrEmptyStatement},
		{"no primary key", SelectAll(noKey), core.ErrNoPrimaryKey},
		{"null key", SelectByKey(person, core.Null()), nil},
		{"wrong key kind", Delete(person, core.Text("1")), nil},
		{"short row", Insert(person, core.NewRow(core.Int(0))), nil},
		{"nothing to update", Update(onlyKey, core.NewRow(core.Int(1))), nil},
		{"zero builder", Builder{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Render(dialect.SQLite{})
			if !errors.Is(err, core.ErrRender) {
				t.Fatalf("err=%v want render error", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
		})
	}
}

func TestInsert_DefaultValues(t *testing.T) {
	onlyKey := &core.TableMetadata{Name: "seq", Columns: []core.Column{{Name: "id", PrimaryKey: true, Kind: core.KindInteger}}}
	b := Insert(onlyKey, core.NewRow(core.Null()))

	stmt, err := b.Render(dialect.SQLite{})
	if err != nil || stmt.SQL != `INSERT INTO "seq" DEFAULT VALUES` {
		t.Fatalf("sqlite=%q,%v", stmt.SQL, err)
	}
	stmt, err = b.Render(dialect.MySQL{})
	if err != nil || stmt.SQL != "INSERT INTO `seq` () VALUES ()" {
		t.Fatalf("mysql=%q,%v", stmt.SQL, err)
	}
}

func TestBuilder_IsAValue(t *testing.T) {
	base := SelectAll(person)
	limited := base.WithLimit(3)
	if _, ok := base.Limit(); ok {
		t.Fatalf("WithLimit mutated the original builder")
	}
	if n, ok := limited.Limit(); !ok || n != 3 {
		t.Fatalf("Limit=%d,%v want 3,true", n, ok)
	}
	if k := Update(person, row(7, "x", core.Null())).Key(); !k.Equal(core.Int(7)) {
		t.Fatalf("Key=%v want 7", k)
	}
}

func TestInline_Postgres(t *testing.T) {
	stmt := Statement{SQL: "SELECT $2, $1, '$1', $3", Args: []core.Value{core.Int(1), core.Text("b")}}
	if got := stmt.Inline(dialect.Postgres{}); got != "SELECT 'b', 1, '$1', $3" {
		t.Fatalf("Inline=%q", got)
	}
}

func TestInline_MySQLBackslash(t *testing.T) {
	stmt := Statement{SQL: `SELECT 'it\'s ?' , ?`, Args: []core.Value{core.Text("x")}}
	if got := stmt.Inline(dialect.MySQL{}); got != `SELECT 'it\'s ?' , 'x'` {
		t.Fatalf("Inline=%q", got)
	}
}

func TestRender_PostgresBoolean(t *testing.T) {
	flags := &core.TableMetadata{Name: "flags", Columns: []core.Column{
		{Name: "id", PrimaryKey: true, Kind: core.KindInteger},
		{Name: "active", Kind: core.KindInteger, Boolean: true},
		{Name: "hits", Kind: core.KindInteger},
	}}
	pg := dialect.Postgres{}
	types := pgtype.NewMap()

	for _, b := range []Builder{
		Insert(flags, core.NewRow(core.Int(0), core.Bool(true), core.Int(3))),
		Update(flags, core.NewRow(core.Int(7), core.Bool(false), core.Int(4))),
	} {
		stmt, err := b.Render(pg)
		if err != nil {
			t.Fatalf("Render %s: %v", b.Kind(), err)
		}
		args := stmt.NativeArgs(pg)
		if _, ok := args[0].(bool); !ok {
			t.Fatalf("%s: active bound as %T, want bool", b.Kind(), args[0])
		}
		if _, ok := args[1].(int64); !ok {
			t.Fatalf("%s: hits bound as %T, want int64", b.Kind(), args[1])
		}
		for _, format := range []int16{pgtype.TextFormatCode, pgtype.BinaryFormatCode} {
			if _, err := types.Encode(pgtype.BoolOID, format, args[0], nil); err != nil {
				t.Fatalf("%s: encode boolean parameter: %v", b.Kind(), err)
			}
		}
	}

	stmt, err := Insert(flags, core.NewRow(core.Int(0), core.Bool(true), core.Int(3))).Render(pg)
	if err != nil {
		t.Fatal(err)
	}
	if got := stmt.Inline(pg); got != `INSERT INTO "flags" ("active", "hits") VALUES (TRUE, 3) RETURNING "id"` {
		t.Fatalf("Inline=%q", got)
	}
	if got := stmt.NativeArgs(dialect.SQLite{})[0]; got != int64(1) {
		t.Fatalf("sqlite binds active as %#v, want 1", got)
	}
}

func TestRender_LimitAfterComment(t *testing.T) {
	tests := []struct {
		b    Builder
		want string
	}{
		{Raw("SELECT * FROM doc -- all").WithLimit(1), "SELECT * FROM doc -- all\nLIMIT 1"},
		{Raw("SELECT * FROM doc").WithLimit(1), "SELECT * FROM doc LIMIT 1"},
		{Raw("SELECT *\n-- header\nFROM doc").WithLimit(2), "SELECT *\n-- header\nFROM doc LIMIT 2"},
		{SelectWhere(person, "age > 1 -- adults").WithLimit(3),
			`SELECT "id", "name", "age" FROM "person" WHERE age > 1 -- adults` + "\nLIMIT 3"},
	}
	for _, tt := range tests {
		stmt, err := tt.b.Render(dialect.SQLite{})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if stmt.SQL != tt.want {
			t.Errorf("SQL=%q want %q", stmt.SQL, tt.want)
		}
	}
}
