package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inviter_bot/internal/domain/menu"
)

// MenuCache keeps the parsed menu for a short TTL so button specs are parsed
// once per load instead of on every message.
type MenuCache struct {
	repo menu.Repository
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	menu     *menu.Menu
	loadedAt time.Time
}

func NewMenuCache(repo menu.Repository, ttl time.Duration) *MenuCache {
	return &MenuCache{repo: repo, ttl: ttl, now: time.Now}
}

// Get returns the cached menu, reloading it when the TTL has passed.
func (c *MenuCache) Get(ctx context.Context) (*menu.Menu, error) {
	c.mu.Lock()
	if c.menu != nil && c.now().Sub(c.loadedAt) < c.ttl {
		m := c.menu
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	items, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	m := menu.Build(items)

	c.mu.Lock()
	c.menu, c.loadedAt = m, c.now()
	c.mu.Unlock()
	return m, nil
}

// Invalidate forces the next Get to reload.
func (c *MenuCache) Invalidate() {
	c.mu.Lock()
	c.menu = nil
	c.mu.Unlock()
}
