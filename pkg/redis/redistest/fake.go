// Package redistest provides an in-memory stand-in for the go-redis commands
// used by pkg/redis.
package redistest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fake implements the command subset of pkg/redis.Cmdable in memory.
type Fake struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	// Err, when set, is returned by every command.
	Err error
}

func NewFake() *Fake {
	return &Fake{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

// TTL returns the expiration recorded for key by the last write.
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Keys returns the number of stored keys.
func (f *Fake) Keys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *Fake) Ping(context.Context) *redis.StatusCmd {
	if f.Err != nil {
		return redis.NewStatusResult("", f.Err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *Fake) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.Err != nil {
		return redis.NewStatusResult("", f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = stringify(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.Err != nil {
		return redis.NewStringResult("", f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *Fake) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if f.Err != nil {
		return redis.NewBoolResult(false, f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = stringify(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.Err != nil {
		return redis.NewIntResult(0, f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			removed++
		}
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (f *Fake) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.Err != nil {
		return redis.NewIntResult(0, f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	current, err := strconv.ParseInt(f.data[key], 10, 64)
	if f.data[key] != "" && err != nil {
		return redis.NewIntResult(0, errors.New("ERR value is not an integer or out of range"))
	}
	current++
	f.data[key] = strconv.FormatInt(current, 10)
	return redis.NewIntResult(current, nil)
}

func (f *Fake) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.Err != nil {
		return redis.NewBoolResult(false, f.Err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

// ExpireNow drops key as if its TTL had elapsed.
func (f *Fake) ExpireNow(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	delete(f.ttls, key)
}

// ErrUnavailable is a convenience error for simulating outages.
var ErrUnavailable = errors.New("redistest: unavailable")

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
