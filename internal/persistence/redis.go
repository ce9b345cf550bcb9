package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

const redisPingTimeout = 3 * time.Second

// Redis holds the client used by the realtime backplane and the readiness probe.
type Redis struct {
	Client *redis.Client
}

// RedisOptions builds client options. Addr is host:port or a redis:// URL;
// an explicit password overrides the one in the URL.
func RedisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if !strings.HasPrefix(cfg.Addr, "redis://") && !strings.HasPrefix(cfg.Addr, "rediss://") {
		return &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}, nil
	}
	opts, err := redis.ParseURL(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_ADDR: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	return opts, nil
}

// NewRedis creates the client and pings it. With required set an unreachable
// server is an error; otherwise it is logged and the client is returned.
func NewRedis(ctx context.Context, cfg config.RedisConfig, required bool, logger *zap.Logger) (*Redis, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	r := &Redis{Client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	switch err := r.Ping(pingCtx); {
	case err == nil:
		logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	case required:
		r.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	default:
		logger.Warn("redis unreachable", zap.String("addr", opts.Addr), zap.Error(err))
	}
	return r, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping reports Redis reachability.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
