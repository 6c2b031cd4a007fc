package utils

import (
	"sync"
	"time"
)

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      any
	expiration time.Time
}

// TTLCache 进程内缓存，使用 sync.Map 保证并发安全
type TTLCache struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// NewTTLCache ttl <= 0 时默认 10 分钟
func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TTLCache{ttl: ttl, now: time.Now}
}

// Set 设置缓存
func (c *TTLCache) Set(key string, value any) {
	c.items.Store(key, cacheItem{
		value:      value,
		expiration: c.now().Add(c.ttl),
	})
}

// Get 获取缓存并验证是否过期
func (c *TTLCache) Get(key string) (any, bool) {
	val, ok := c.items.Load(key)
	if !ok {
		return nil, false
	}

	item := val.(cacheItem)

	// 检查是否过期
	if c.now().After(item.expiration) {
		c.items.Delete(key) // 懒删除
		return nil, false
	}

	return item.value, true
}
