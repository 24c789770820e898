package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-marketplace/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 5 * time.Second
	scanCount   = 200
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(dialCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// SharedStore es el segundo nivel del cache de queries: lo comparten todas las
// réplicas del BFF. Solo guarda datos públicos (catálogos de referencia).
type SharedStore struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

func NewSharedStore(client *redis.Client, prefix string, log logger.Logger) *SharedStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SharedStore{
		client: client,
		prefix: prefix,
		log:    log.With(map[string]any{"component": "redis_shared_store"}),
	}
}

func (s *SharedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *SharedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// DeletePrefix borra todas las claves que empiezan con prefix (SCAN + DEL por lotes).
func (s *SharedStore) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, scanPattern(s.prefix+prefix), scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %q: %w", prefix, err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.log.Debug("shared entries deleted", map[string]any{"prefix": prefix, "count": deleted})
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// scanPattern arma el glob de SCAN: las keys llevan JSON canónico (`["x"]`), así que
// los metacaracteres del prefijo se escapan y solo el `*` final es comodín.
func scanPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}
