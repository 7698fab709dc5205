package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

const redisKeyPrefix = "compliq-mcp:session:"

// redisStore keeps session records in Redis, for deployments where the
// gateway runs on more than one host.
type redisStore struct {
	pool *redis.Pool
}

func newRedisStore(addr string) (*redisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis session store requires an address")
	}
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return &redisStore{pool: pool}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", redisKeyPrefix+key))
	if err == redis.ErrNil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) Put(ctx context.Context, key, value string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", redisKeyPrefix+key, value)
	return err
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", redisKeyPrefix+key)
	return err
}

func (s *redisStore) Close() error {
	return s.pool.Close()
}
