package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/scoopshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	redisclient "github.com/angelmondragon/scoopshop-backend/pkg/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore persists a session's line items. Missing sessions load as an
// empty list.
type SessionStore interface {
	Name() string
	Load(ctx context.Context, sessionID string) ([]LineItem, error)
	Save(ctx context.Context, sessionID string, lines []LineItem) error
	Clear(ctx context.Context, sessionID string) error
}

func encodeLines(lines []LineItem) (string, error) {
	if lines == nil {
		lines = []LineItem{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode cart lines: %w", err)
	}
	return string(payload), nil
}

func decodeLines(raw string) ([]LineItem, error) {
	if raw == "" {
		return []LineItem{}, nil
	}
	var lines []LineItem
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}
	if lines == nil {
		lines = []LineItem{}
	}
	return lines, nil
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]string{}}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]LineItem, error) {
	m.mu.RLock()
	raw, ok := m.carts[sessionID]
	m.mu.RUnlock()
	if !ok {
		return []LineItem{}, nil
	}
	return decodeLines(raw)
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, lines []LineItem) error {
	raw, err := encodeLines(lines)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.carts[sessionID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.carts, sessionID)
	m.mu.Unlock()
	return nil
}

// Sessions returns the number of stored carts.
func (m *MemoryStore) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.carts)
}

type redisKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// RedisStore keeps each cart as a JSON string under ss:cart:<session>.
type RedisStore struct {
	client redisKV
	ttl    time.Duration
}

// NewRedisStore builds a store that refreshes the key TTL on every save.
func NewRedisStore(client redisKV, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]LineItem, error) {
	raw, err := r.client.Get(ctx, r.client.CartKey(sessionID))
	if err != nil {
		if redisclient.IsNil(err) {
			return []LineItem{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart from redis")
	}
	return decodeLines(raw)
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, lines []LineItem) error {
	raw, err := encodeLines(lines)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.client.CartKey(sessionID), raw, r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart to redis")
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.client.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart in redis")
	}
	return nil
}

// SQLStore keeps carts in the cart_sessions table.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Name() string { return "sql" }

func (s *SQLStore) Load(ctx context.Context, sessionID string) ([]LineItem, error) {
	var row models.CartSession
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []LineItem{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart session")
	}
	return decodeLines(row.Items)
}

func (s *SQLStore) Save(ctx context.Context, sessionID string, lines []LineItem) error {
	raw, err := encodeLines(lines)
	if err != nil {
		return err
	}
	row := models.CartSession{
		SessionID: sessionID,
		Items:     raw,
		ItemCount: CountUnits(lines),
		UpdatedAt: s.now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "item_count", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart session")
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.CartSession{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart session")
	}
	return nil
}
