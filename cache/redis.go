package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/fabric/cache/serializer"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/xerrors"
)

type redisCache struct {
	name       string
	prefix     string
	defaultTTL time.Duration
	conn       connector.RedisConnector
	serializer serializer.Serializer
	logger     clog.Logger
}

func newRedis(cfg *Config, conn connector.RedisConnector, logger clog.Logger) (Cache, error) {
	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	logger.Debug("redis cache created", clog.String("prefix", cfg.Prefix))
	return &redisCache{
		name:       cfg.Name,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
		conn:       conn,
		serializer: s,
		logger:     logger,
	}, nil
}

func (c *redisCache) Name() string { return c.name }

func (c *redisCache) client() (*redis.Client, error) {
	rc := c.conn.GetClient()
	if rc == nil {
		return nil, connector.ErrNotConnected
	}
	return rc, nil
}

func (c *redisCache) key(k string) string {
	return c.prefix + k
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	rc, err := c.client()
	if err != nil {
		return err
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "cache: encode %s", key)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return rc.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	rc, err := c.client()
	if err != nil {
		return err
	}
	data, err := rc.Get(ctx, c.key(key)).Bytes()
	if xerrors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return c.serializer.Unmarshal(data, dest)
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	rc, err := c.client()
	if err != nil {
		return err
	}
	return rc.Del(ctx, c.key(key)).Err()
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	rc, err := c.client()
	if err != nil {
		return false, err
	}
	n, err := rc.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	rc, err := c.client()
	if err != nil {
		return err
	}
	ok, err := rc.Expire(ctx, c.key(key), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrMiss
	}
	return nil
}

func (c *redisCache) Close() error {
	return nil
}
