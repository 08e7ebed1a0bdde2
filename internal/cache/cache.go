package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/credtrust/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyNamespace = "credtrust:v1:"

// Key generates a cache key for a lookup kind and its subject
func Key(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return keyNamespace + prefix + ":" + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached value into v. A nil cache, a miss and a value
// that no longer decodes all report false.
func GetJSON(c Cache, key string, v any) bool {
	if c == nil {
		return false
	}
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it. A nil cache is a no-op.
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(key, data, ttl)
}

// New builds the cache selected by cfg. A disabled cache returns nil.
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(ttl, 10*time.Minute), nil
	case "disk":
		return NewDiskCache(cfg.Dir, ttl), nil
	case "layered":
		return NewLayeredCache(ttl, cfg.Dir, ttl), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis cache requires redis_addr")
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
