package rings

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liquor-dashboard/internal/errors"
)

const redisKeyPrefix = "rings:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore shares ring documents between dashboard instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.FileHandoffWrap(err, fmt.Sprintf("connect to redis at %s", opts.Addr))
	}

	return NewRedisStoreFromClient(client, opts.TTL), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Put(ctx context.Context, key string, doc *Document) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return errors.InternalWrap(err, "encode ring document")
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return errors.FileHandoffWrap(err, "store ring document in redis")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.FileHandoffWrap(err, "load ring document from redis")
	}

	doc, err := Unmarshal(data)
	if err != nil {
		return nil, errors.FileHandoffWrap(err, "decode ring document")
	}
	return doc, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
