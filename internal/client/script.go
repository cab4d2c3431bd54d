package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/dialect"
	"github.com/rzpsarthak13/thinorm/internal/query"
)

// Init executes the schema script at path, one statement at a time, in
// order. It stops at the first failing statement.
func (c *Connection) Init(ctx context.Context, path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return closedError("init")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewError(core.ConfigError, "init", fmt.Errorf("failed to read script: %w", err))
	}

	statements := SplitScript(c.dialect, string(data))
	for i, stmt := range statements {
		if _, err := c.exec(ctx, query.RawExec(stmt), "init"); err != nil {
			return atStatement(i+1, err)
		}
	}
	c.logger.Info("schema script executed", "path", path, "statements", len(statements))
	return nil
}

// atStatement names the 1-based statement index in a script failure.
func atStatement(n int, err error) error {
	var e *core.Error
	if !errors.As(err, &e) {
		return &core.Error{Kind: core.SQLError, Op: "init", Err: fmt.Errorf("statement %d: %w", n, err)}
	}
	out := *e
	out.Op = "init"
	out.Err = fmt.Errorf("statement %d: %w", n, e.Err)
	return &out
}

// SplitScript splits a script into statements on semicolons that are
// outside quoted strings, quoted identifiers and comments. Statements are
// trimmed; empty and comment-only statements are dropped.
func SplitScript(d dialect.Dialect, script string) []string {
	backslash := d != nil && d.Quote(`\`) != `'\'`
	return splitScript(script, backslash)
}

func splitScript(script string, backslash bool) []string {
	var (
		out     []string
		start   int
		hasCode bool
	)
	flush := func(end int) {
		if hasCode {
			out = append(out, strings.TrimSpace(script[start:end]))
		}
		start = end + 1
		hasCode = false
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(script, i, backslash && c != '`') - 1
			hasCode = true
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
			} else {
				i += end + 3
			}
		case c == ';':
			flush(i)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			hasCode = true
		}
	}
	if start < len(script) {
		flush(len(script))
	}
	return out
}

// skipQuoted returns the index just past the quoted run starting at i.
// A doubled quote character does not end the run.
func skipQuoted(s string, i int, backslash bool) int {
	q := s[i]
	j := i + 1
	for j < len(s) {
		switch {
		case backslash && s[j] == '\\' && j+1 < len(s):
			j += 2
			continue
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}
