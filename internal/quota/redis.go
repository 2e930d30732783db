package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
)

const defaultRedisPrefix = "job-rotator"

// RedisConfig holds connection settings of the redis quota backend.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password" json:"-"`
	Prefix   string `mapstructure:"prefix"`
}

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps each platform record as one JSON string key. A single SET
// replaces the record as a whole.
type RedisStore struct {
	rdb    kv
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, now func() time.Time, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedisStore(rdb, cfg.Prefix, now, logger), nil
}

func newRedisStore(rdb kv, prefix string, now func() time.Time, log *zap.Logger) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    clockOrNow(now),
		logger: logger.OrNop(log),
	}
}

func (s *RedisStore) key(platform string) string {
	return fmt.Sprintf("%s:quota:%s", s.prefix, platform)
}

func (s *RedisStore) Load(ctx context.Context, platform string) State {
	fresh := Fresh(s.now())

	data, err := s.rdb.Get(ctx, s.key(platform)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fresh
	}
	if err != nil {
		s.logger.Warn("quota record is unreadable, starting from zero",
			zap.String("platform", platform),
			zap.Error(err),
		)
		return fresh
	}

	st, err := decodeState(data, s.now().Location())
	if err != nil {
		s.logger.Warn("quota record is corrupt, starting from zero",
			zap.String("platform", platform),
			zap.Error(err),
		)
		return fresh
	}
	return st
}

func (s *RedisStore) Save(ctx context.Context, platform string, st State) error {
	data, err := encodeState(st)
	if err != nil {
		return fmt.Errorf("save %s quota: %w", platform, err)
	}

	if err := s.rdb.Set(ctx, s.key(platform), data, 0).Err(); err != nil {
		return fmt.Errorf("save %s quota: %w", platform, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
