package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// LifecycleHookCoordinator runs hooks around the commit of a lifecycle event.
// Pre-commit hooks run inside the transaction and can veto it; post-commit
// hooks run after it and cannot.
type LifecycleHookCoordinator struct {
	mu         sync.RWMutex
	preCommit  []LifecycleHook
	postCommit []LifecycleHook
}

func NewLifecycleHookCoordinator() *LifecycleHookCoordinator {
	return &LifecycleHookCoordinator{}
}

func (c *LifecycleHookCoordinator) RegisterPreCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preCommit = append(c.preCommit, hook)
}

func (c *LifecycleHookCoordinator) RegisterPostCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postCommit = append(c.postCommit, hook)
}

// ExecutePreCommitAndEnqueue runs pre-commit hooks in registration order and
// writes the event to the transaction's outbox. The first hook error stops the
// chain and the event is not enqueued.
func (c *LifecycleHookCoordinator) ExecutePreCommitAndEnqueue(
	ctx context.Context,
	event LifecycleEvent,
	outbox OutboxStore,
) error {
	if outbox == nil {
		return fmt.Errorf("core: outbox store is required")
	}
	for _, hook := range c.snapshot(true) {
		if err := hook.OnEvent(ctx, event); err != nil {
			return fmt.Errorf("core: pre-commit hook %q rejected %s: %w", hookName(hook), event.Name, err)
		}
	}
	if err := outbox.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("core: enqueue %s failed: %w", event.Name, err)
	}
	return nil
}

// ExecutePostCommit runs every post-commit hook and joins their errors.
func (c *LifecycleHookCoordinator) ExecutePostCommit(ctx context.Context, event LifecycleEvent) error {
	var hookErr error
	for _, hook := range c.snapshot(false) {
		if err := hook.OnEvent(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("post-commit hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *LifecycleHookCoordinator) snapshot(pre bool) []LifecycleHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	source := c.postCommit
	if pre {
		source = c.preCommit
	}
	return append([]LifecycleHook(nil), source...)
}

func hookName(hook LifecycleHook) string {
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}
