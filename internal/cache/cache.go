// Package cache implements a cache-aside layer over a key/value Store with
// canonical HTTP route keys and an alias table for key rewriting.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Alias is a literal substring replacement applied to every key and pattern.
type Alias struct {
	From string
	To   string
}

// Cache never fails its caller: store errors are logged and the operation
// degrades to a miss or a no-op. A Cache without a store is "not connected".
type Cache struct {
	store   Store
	aliases []Alias
	logger  logr.Logger
}

func New(store Store, aliases []Alias, logger logr.Logger) *Cache {
	return &Cache{
		store:   store,
		aliases: append([]Alias(nil), aliases...),
		logger:  resolveLogger(logger).WithName("cache"),
	}
}

func resolveLogger(logger logr.Logger) logr.Logger {
	if logger.GetSink() == nil {
		return logr.Discard()
	}
	return logger
}

func (c *Cache) Connected() bool {
	return c != nil && c.store != nil
}

// AliasKey applies the alias table in order.
func (c *Cache) AliasKey(key string) string {
	if c == nil {
		return key
	}
	for _, alias := range c.aliases {
		key = strings.ReplaceAll(key, alias.From, alias.To)
	}
	return key
}

// Get returns the stored value or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) []byte {
	if !c.Connected() {
		c.logger.V(1).Info("cache not connected", "op", "get")
		return nil
	}

	key = c.AliasKey(key)
	value, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error(err, "get from cache failed", "key", key)
		return nil
	}
	return value
}

// Set stores value under key. A nil value clears the key instead.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.Connected() {
		return
	}
	if value == nil {
		c.Clear(ctx, key)
		return
	}

	key = c.AliasKey(key)
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.logger.Error(err, "set in cache failed", "key", key)
	}
}

func (c *Cache) Clear(ctx context.Context, key string) {
	if !c.Connected() {
		return
	}

	key = c.AliasKey(key)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Error(err, "clear from cache failed", "key", key)
	}
}

// ClearPattern removes every key matching the glob pattern and returns how
// many were removed. When condition is set, only keys whose current value
// satisfies it are removed.
func (c *Cache) ClearPattern(ctx context.Context, pattern string, condition func([]byte) bool) int {
	if !c.Connected() {
		return 0
	}

	pattern = c.AliasKey(pattern)
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.logger.Error(err, "list cache keys failed", "pattern", pattern)
		return 0
	}

	cleared := 0
	for _, key := range keys {
		if condition != nil {
			value, err := c.store.Get(ctx, key)
			if err != nil {
				c.logger.Error(err, "get from cache failed", "key", key)
				continue
			}
			if !condition(value) {
				continue
			}
		}

		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Error(err, "clear from cache failed", "key", key)
			continue
		}
		cleared++
	}

	c.logger.V(1).Info("cleared cache pattern", "pattern", pattern, "keys", cleared)
	return cleared
}
