package client

import (
	"context"
	"sync"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/core"
)

// StatementInfo describes a statement about to be executed.
type StatementInfo struct {
	// Op is the public operation name ("add", "find_one", "init", ...).
	Op string

	// Table is the target table, empty for raw statements.
	Table string

	// SQL is the statement with literals inlined.
	SQL string

	// Args are the bound arguments.
	Args []core.Value
}

// StatementResult describes how a statement finished.
type StatementResult struct {
	// Rows is the number of rows returned by a query.
	Rows int

	// RowsAffected is the count reported for a write.
	RowsAffected int64

	// Duration is the backend execution time.
	Duration time.Duration

	// Err is the classified failure, if any.
	Err error
}

// Hook observes statements executed by a connection.
// Hooks are called synchronously, in registration order.
type Hook interface {
	// BeforeStatement is called after rendering and before any I/O.
	// If it returns an error the statement is not executed.
	BeforeStatement(ctx context.Context, info *StatementInfo) error

	// AfterStatement is called once the backend has answered.
	AfterStatement(ctx context.Context, info *StatementInfo, result StatementResult)
}

// HookFuncs is a function-based Hook. Nil functions are skipped.
type HookFuncs struct {
	BeforeFunc func(ctx context.Context, info *StatementInfo) error
	AfterFunc  func(ctx context.Context, info *StatementInfo, result StatementResult)
}

// BeforeStatement calls BeforeFunc if it's not nil.
func (f HookFuncs) BeforeStatement(ctx context.Context, info *StatementInfo) error {
	if f.BeforeFunc != nil {
		return f.BeforeFunc(ctx, info)
	}
	return nil
}

// AfterStatement calls AfterFunc if it's not nil.
func (f HookFuncs) AfterStatement(ctx context.Context, info *StatementInfo, result StatementResult) {
	if f.AfterFunc != nil {
		f.AfterFunc(ctx, info, result)
	}
}

// HookManager holds the hooks of one connection.
type HookManager struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{}
}

// RegisterHook appends a hook.
func (hm *HookManager) RegisterHook(hook Hook) {
	if hook == nil {
		return
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.hooks = append(hm.hooks, hook)
}

// HookCount returns the number of registered hooks.
func (hm *HookManager) HookCount() int {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return len(hm.hooks)
}

func (hm *HookManager) snapshot() []Hook {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if len(hm.hooks) == 0 {
		return nil
	}
	hooks := make([]Hook, len(hm.hooks))
	copy(hooks, hm.hooks)
	return hooks
}

// executeBefore runs every before hook in order and stops at the first error.
func (hm *HookManager) executeBefore(ctx context.Context, info *StatementInfo) error {
	for _, hook := range hm.snapshot() {
		if err := hook.BeforeStatement(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// executeAfter runs every after hook in order.
func (hm *HookManager) executeAfter(ctx context.Context, info *StatementInfo, result StatementResult) {
	for _, hook := range hm.snapshot() {
		hook.AfterStatement(ctx, info, result)
	}
}
