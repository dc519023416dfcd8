// Package mock provides a scripted Composer for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// Ensure Composer implements the interface.
var _ driven.Composer = (*Composer)(nil)

// Composer replays scripted responses in order. When the script is
// exhausted the last response repeats. An optional Delay simulates a slow
// model; an Err makes every call fail.
type Composer struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Delay     time.Duration

	calls   int
	prompts []string
}

// Compose returns the next scripted response.
func (c *Composer) Compose(ctx context.Context, prompt string, _ driven.ComposeOptions) (*driven.Composition, error) {
	c.mu.Lock()
	c.calls++
	c.prompts = append(c.prompts, prompt)
	idx := c.calls - 1
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	delay := c.Delay
	err := c.Err
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return &driven.Composition{Provider: "mock", Model: "mock-1"}, nil
	}
	return &driven.Composition{Text: c.Responses[idx], Provider: "mock", Model: "mock-1"}, nil
}

// Calls returns how many times Compose was invoked.
func (c *Composer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Prompts returns the prompts received, in order.
func (c *Composer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
