package thinorm_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rzpsarthak13/thinorm/pkg/thinorm"
)

type Person struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
	Age  int64  `db:"age"`
}

func (Person) TableName() string { return "people" }

const schemaSQL = `
-- people known to the test suite
CREATE TABLE people (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	age  INTEGER NOT NULL
);
CREATE TABLE notes (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	body TEXT
);
`

func setup(t *testing.T, opts ...thinorm.Option) (*thinorm.Connection, *thinorm.Table[Person]) {
	t.Helper()
	ctx := context.Background()

	conn, err := thinorm.Connect(ctx, ":memory:", opts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	path := filepath.Join(t.TempDir(), "schema.sql")
	if err := os.WriteFile(path, []byte(schemaSQL), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := conn.Init(ctx, path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	people, err := thinorm.Use[Person](conn)
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	return conn, people
}

func TestScenario(t *testing.T) {
	_, people := setup(t)
	ctx := context.Background()

	john, err := people.Add(Person{Name: "John", Age: 30}).Apply(ctx)
	if err != nil {
		t.Fatalf("add John: %v", err)
	}
	if john.ID < 1 || john.Name != "John" || john.Age != 30 {
		t.Fatalf("john=%+v", john)
	}
	mary, err := people.Add(Person{Name: "Mary", Age: 25}).Apply(ctx)
	if err != nil {
		t.Fatalf("add Mary: %v", err)
	}
	if mary.ID == john.ID {
		t.Fatalf("duplicate id %d", mary.ID)
	}

	all, err := people.FindAll().Run(ctx)
	if err != nil {
		t.Fatalf("find_all: %v", err)
	}
	if len(all) != 2 || all[0] != john || all[1] != mary {
		t.Fatalf("find_all=%+v", all)
	}

	john.Name = "Mike"
	n, err := people.Modify(john).Run(ctx)
	if err != nil || n != 1 {
		t.Fatalf("modify n=%d err=%v", n, err)
	}
	got, err := people.FindOne(john.ID).Run(ctx)
	if err != nil || got == nil || got.Name != "Mike" {
		t.Fatalf("find_one after modify=%+v err=%v", got, err)
	}

	n, err = people.Remove(john).Run(ctx)
	if err != nil || n != 1 {
		t.Fatalf("remove n=%d err=%v", n, err)
	}
	got, err = people.FindOne(john.ID).Run(ctx)
	if err != nil || got != nil {
		t.Fatalf("find_one after remove=%+v err=%v", got, err)
	}

	n, err = people.Remove(john).Run(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second remove n=%d err=%v", n, err)
	}
	n, err = people.Modify(john).Run(ctx)
	if err != nil || n != 0 {
		t.Fatalf("modify of removed n=%d err=%v", n, err)
	}
}

func TestConcurrentUse(t *testing.T) {
	_, people := setup(t)
	ctx := context.Background()

	const workers = 50
	added := make([]Person, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added[i], errs[i] = people.Add(Person{Name: fmt.Sprintf("worker-%d", i), Age: int64(i)}).Apply(ctx)
			if errs[i] == nil {
				_, errs[i] = people.FindMany("age >= 0").Limit(5).Run(ctx)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]int, workers)
	for i, p := range added {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if p.Name != fmt.Sprintf("worker-%d", i) || p.Age != int64(i) {
			t.Fatalf("worker %d read back %+v", i, p)
		}
		if prev, dup := seen[p.ID]; dup {
			t.Fatalf("workers %d and %d both got id %d", prev, i, p.ID)
		}
		seen[p.ID] = i
	}

	all, err := people.FindAll().Run(ctx)
	if err != nil || len(all) != workers {
		t.Fatalf("find_all=%d err=%v", len(all), err)
	}
}

func TestFindMany(t *testing.T) {
	conn, people := setup(t)
	ctx := context.Background()
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		if _, err := people.Add(Person{Name: name, Age: int64(10 * (i + 1))}).Apply(ctx); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		pred  string
		limit int
		want  int
	}{
		{"no limit", "age >= 30", -1, 3},
		{"limit below matches", "age >= 30", 2, 2},
		{"limit above matches", "age >= 30", 10, 3},
		{"limit zero", "age >= 30", 0, 0},
		{"no match", "name = " + conn.Protect("zed"), -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := people.FindMany(tt.pred)
			if tt.limit >= 0 {
				b = b.Limit(tt.limit)
			}
			got, err := b.Run(ctx)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got == nil || len(got) != tt.want {
				t.Fatalf("got %d records want %d", len(got), tt.want)
			}
			for _, p := range got {
				if p.Age < 30 {
					t.Fatalf("record outside predicate: %+v", p)
				}
			}
		})
	}

	if _, err := people.FindMany("  ").Run(ctx); !errors.Is(err, thinorm.ErrRender) {
		t.Fatalf("blank predicate err=%v", err)
	}
	if _, err := people.FindAll().Limit(-1).Run(ctx); !errors.Is(err, thinorm.ErrRender) {
		t.Fatalf("negative limit err=%v", err)
	}
}

func TestProtect(t *testing.T) {
	conn, people := setup(t)
	ctx := context.Background()

	hostile := []string{`'`, `O'Brien`, `' OR 1=1 --`, `x'); DELETE FROM people; --`, `\'`}
	for _, s := range hostile {
		if _, err := people.Add(Person{Name: s, Age: 1}).Apply(ctx); err != nil {
			t.Fatalf("add %q: %v", s, err)
		}
	}
	for _, s := range hostile {
		got, err := people.FindMany("name = " + conn.Protect(s)).Run(ctx)
		if err != nil {
			t.Fatalf("find %q: %v", s, err)
		}
		if len(got) != 1 || got[0].Name != s {
			t.Fatalf("find %q=%+v", s, got)
		}
	}

	rows, err := conn.Query("SELECT name FROM people WHERE name = " + conn.Protect(`' OR 1=1 --`)).Exec(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("raw query rows=%d err=%v", len(rows), err)
	}
}

func TestRawQueries(t *testing.T) {
	conn, people := setup(t)
	ctx := context.Background()
	for _, name := range []string{"John", "Mary", "Mike"} {
		if _, err := people.Add(Person{Name: name, Age: 40}).Apply(ctx); err != nil {
			t.Fatal(err)
		}
	}

	n, err := conn.QueryUpdate("UPDATE people SET age = age + ? WHERE name <> ?", 1, "Mary").Exec(ctx)
	if err != nil || n != 2 {
		t.Fatalf("query_update n=%d err=%v", n, err)
	}

	rows, err := conn.Query("SELECT name, age FROM people WHERE age > ? ORDER BY id", 40).Limit(1).Exec(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	name, err := thinorm.Get[string](rows[0], 0)
	if err != nil || name != "John" {
		t.Fatalf("name=%q err=%v", name, err)
	}
	age, err := thinorm.Get[int](rows[0], 1)
	if err != nil || age != 41 {
		t.Fatalf("age=%d err=%v", age, err)
	}
	if _, err := thinorm.Get[int](rows[0], 0); !errors.Is(err, thinorm.ErrMapping) {
		t.Fatalf("text as int err=%v", err)
	}
	if _, err := thinorm.Get[int](rows[0], 5); !errors.Is(err, thinorm.ErrMapping) {
		t.Fatalf("out of range err=%v", err)
	}

	rows, err = conn.Query("SELECT name FROM people ORDER BY id -- everyone").Limit(1).Exec(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("limit after trailing comment: rows=%d err=%v", len(rows), err)
	}

	rows, err = conn.Query("SELECT x'414243', 'abc'").Exec(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if k := rows[0].At(0).Kind(); k != thinorm.KindBlob {
		t.Fatalf("blob literal decoded as %s", k)
	}
	if k := rows[0].At(1).Kind(); k != thinorm.KindText {
		t.Fatalf("text literal decoded as %s", k)
	}

	if _, err := conn.QueryUpdate("INSERT INTO notes (body) VALUES (?)", nil).Exec(ctx); err != nil {
		t.Fatal(err)
	}
	rows, err = conn.Query("SELECT body FROM notes").Exec(ctx)
	if err != nil {
		t.Fatal(err)
	}
	body, err := thinorm.GetOpt[string](rows[0], 0)
	if err != nil || body != nil {
		t.Fatalf("GetOpt on NULL=%v err=%v", body, err)
	}
	if _, err := thinorm.Get[string](rows[0], 0); !errors.Is(err, thinorm.ErrMapping) {
		t.Fatalf("Get on NULL err=%v", err)
	}
	nullable, err := thinorm.Get[sql.NullString](rows[0], 0)
	if err != nil || nullable.Valid {
		t.Fatalf("NullString=%+v err=%v", nullable, err)
	}

	if _, err := conn.Query("SELECT ?", struct{}{}).Exec(ctx); !errors.Is(err, thinorm.ErrRender) {
		t.Fatalf("unsupported argument err=%v", err)
	}
	if _, err := conn.Query("SELECT * FROM nowhere").Exec(ctx); !errors.Is(err, thinorm.ErrSQL) {
		t.Fatalf("missing table err=%v", err)
	}
}

func TestSQL(t *testing.T) {
	conn, people := setup(t)
	p := Person{ID: 7, Name: "O'Brien", Age: 33}

	tests := []struct {
		name string
		sql  func() (string, error)
		want string
	}{
		{"add", people.Add(Person{Name: "John", Age: 30}).SQL,
			`INSERT INTO "people" ("name", "age") VALUES ('John', 30)`},
		{"add with key", people.Add(p).SQL,
			`INSERT INTO "people" ("id", "name", "age") VALUES (7, 'O''Brien', 33)`},
		{"find_one", people.FindOne(7).SQL,
			`SELECT "id", "name", "age" FROM "people" WHERE "id" = 7`},
		{"find_all", people.FindAll().Limit(3).SQL,
			`SELECT "id", "name", "age" FROM "people" LIMIT 3`},
		{"find_many", people.FindMany("age > 18").SQL,
			`SELECT "id", "name", "age" FROM "people" WHERE age > 18`},
		{"modify", people.Modify(p).SQL,
			`UPDATE "people" SET "name" = 'O''Brien', "age" = 33 WHERE "id" = 7`},
		{"remove", people.Remove(p).SQL,
			`DELETE FROM "people" WHERE "id" = 7`},
		{"query", conn.Query("SELECT * FROM people WHERE name = ?", "x").Limit(1).SQL,
			`SELECT * FROM people WHERE name = 'x' LIMIT 1`},
		{"query_update", conn.QueryUpdate("DELETE FROM people WHERE id = ?", 3).SQL,
			`DELETE FROM people WHERE id = 3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sql()
			if err != nil {
				t.Fatalf("SQL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestClosedConnection(t *testing.T) {
	conn, people := setup(t)
	ctx := context.Background()
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	errs := []error{}
	_, err := people.Add(Person{Name: "x"}).Apply(ctx)
	errs = append(errs, err)
	_, err = people.FindOne(1).Run(ctx)
	errs = append(errs, err)
	_, err = people.FindAll().Run(ctx)
	errs = append(errs, err)
	_, err = people.Modify(Person{ID: 1}).Run(ctx)
	errs = append(errs, err)
	_, err = people.Remove(Person{ID: 1}).Run(ctx)
	errs = append(errs, err)
	_, err = conn.Query("SELECT 1").Exec(ctx)
	errs = append(errs, err)
	_, err = conn.QueryUpdate("DELETE FROM people").Exec(ctx)
	errs = append(errs, err)
	errs = append(errs, conn.Init(ctx, "schema.sql"), conn.Ping(ctx), conn.Close())
	_, err = thinorm.Use[Person](conn)
	errs = append(errs, err)

	for i, err := range errs {
		if !errors.Is(err, thinorm.ErrClosed) || !errors.Is(err, thinorm.ErrConnection) {
			t.Errorf("call %d: err=%v want ErrClosed", i, err)
		}
	}
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()
	for _, target := range []string{"", "oracle://scott:tiger@db/orcl", "sqlite://"} {
		_, err := thinorm.Connect(ctx, target)
		if !errors.Is(err, thinorm.ErrConnection) {
			t.Errorf("Connect(%q) err=%v want ErrConnection", target, err)
		}
	}
}

func TestConnectWithConfig(t *testing.T) {
	ctx := context.Background()
	cfg := thinorm.DefaultConfig()
	cfg.ChangeFeed.Type = "memory"
	cfg.Logging.Level = "warn"

	var seen []string
	hook := thinorm.HookFuncs{
		AfterFunc: func(_ context.Context, info *thinorm.StatementInfo, _ thinorm.StatementResult) {
			seen = append(seen, info.Op)
		},
	}
	conn, err := thinorm.ConnectWithConfig(ctx, cfg, thinorm.WithHook(hook))
	if err != nil {
		t.Fatalf("ConnectWithConfig: %v", err)
	}
	defer conn.Close()
	if conn.Dialect() != "sqlite" {
		t.Fatalf("dialect=%s", conn.Dialect())
	}
	if _, err := conn.QueryUpdate("CREATE TABLE t (id INTEGER PRIMARY KEY)").Exec(ctx); err != nil {
		t.Fatal(err)
	}
	if strings.Join(seen, ",") != "query_update" {
		t.Fatalf("hooks saw %v", seen)
	}

	bad := thinorm.DefaultConfig()
	bad.ChangeFeed.Type = "carrier-pigeon"
	if _, err := thinorm.ConnectWithConfig(ctx, bad); !errors.Is(err, thinorm.ErrConfig) {
		t.Fatalf("bad config err=%v", err)
	}
}

type tag struct {
	Code  string
	Label string
}

func TestUseMapping(t *testing.T) {
	conn, _ := setup(t)
	ctx := context.Background()
	if _, err := conn.QueryUpdate("CREATE TABLE tags (code TEXT PRIMARY KEY, label TEXT NOT NULL)").Exec(ctx); err != nil {
		t.Fatal(err)
	}

	mapping := thinorm.Funcs[tag]{
		Table: &thinorm.TableMetadata{
			Name: "tags",
			Columns: []thinorm.Column{
				{Name: "code", PrimaryKey: true, Kind: thinorm.KindText},
				{Name: "label", Kind: thinorm.KindText},
			},
		},
		ToValues: func(tg tag) []thinorm.Value {
			return []thinorm.Value{thinorm.Text(tg.Code), thinorm.Text(tg.Label)}
		},
		FromValues: func(v []thinorm.Value) (tag, error) {
			code, err := v[0].Str()
			if err != nil {
				return tag{}, err
			}
			label, err := v[1].Str()
			return tag{Code: code, Label: label}, err
		},
	}
	tags, err := thinorm.UseMapping[tag](conn, mapping)
	if err != nil {
		t.Fatalf("UseMapping: %v", err)
	}

	got, err := tags.Add(tag{Code: "go", Label: "Golang"}).Apply(ctx)
	if err != nil || got.Label != "Golang" {
		t.Fatalf("add=%+v err=%v", got, err)
	}
	found, err := tags.FindOne("go").Run(ctx)
	if err != nil || found == nil || found.Code != "go" {
		t.Fatalf("find=%+v err=%v", found, err)
	}
	if names := conn.Tables(); strings.Join(names, ",") != "people,tags" {
		t.Fatalf("tables=%v", names)
	}

	conflicting := mapping
	conflicting.Table = &thinorm.TableMetadata{
		Name:    "tags",
		Columns: []thinorm.Column{{Name: "code", PrimaryKey: true, Kind: thinorm.KindText}},
	}
	if _, err := thinorm.UseMapping[tag](conn, conflicting); !errors.Is(err, thinorm.ErrMapping) {
		t.Fatalf("conflicting mapping err=%v", err)
	}
}

func TestInsertErrorOnMissingRow(t *testing.T) {
	conn, people := setup(t)
	ctx := context.Background()

	// The row vanishes before it can be read back.
	if _, err := conn.QueryUpdate(`CREATE TRIGGER vanish AFTER INSERT ON people
		WHEN NEW.name = 'ghost' BEGIN DELETE FROM people WHERE id = NEW.id; END`).Exec(ctx); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	_, err := people.Add(Person{Name: "ghost", Age: 1}).Apply(ctx)
	if !errors.Is(err, thinorm.ErrInsert) {
		t.Fatalf("err=%v want ErrInsert", err)
	}
	var e *thinorm.Error
	if !errors.As(err, &e) || e.Table != "people" {
		t.Fatalf("error=%#v", err)
	}
}

func ExampleTable_FindMany() {
	ctx := context.Background()
	conn, _ := thinorm.Connect(ctx, ":memory:")
	defer conn.Close()

	people, _ := thinorm.Use[Person](conn)
	stmt, _ := people.FindMany("name = " + conn.Protect("O'Brien")).Limit(5).SQL()
	fmt.Println(stmt)
	// Output: SELECT "id", "name", "age" FROM "people" WHERE name = 'O''Brien' LIMIT 5
}
