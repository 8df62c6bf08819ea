package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vultisig/vultiserver/contexthelper"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

const defaultRedisKeyPrefix = "tokensync:record:"

var _ RecordStorage = (*RedisRecordStorage)(nil)

type RedisRecordStorage struct {
	cfg    vault_config.Redis
	client *redis.Client
}

func redisOptions(cfg vault_config.Redis) (*redis.Options, error) {
	if cfg.ConnURI != "" {
		opts, err := redis.ParseURL(cfg.ConnURI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URI: %w", err)
		}
		return opts, nil
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required when conn_uri is not provided")
	}

	return &redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func NewRedisRecordStorage(cfg vault_config.Redis) (*RedisRecordStorage, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis opts: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultRedisKeyPrefix
	}
	return &RedisRecordStorage{
		cfg:    cfg,
		client: redis.NewClient(opts),
	}, nil
}

func (r *RedisRecordStorage) key(uid string) string {
	return r.cfg.KeyPrefix + uid
}

func (r *RedisRecordStorage) GetRecord(ctx context.Context, uid string) (*types.Record, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	if err := validUID(uid); err != nil {
		return nil, err
	}
	content, err := r.client.Get(ctx, r.key(uid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotExist
		}
		return nil, fmt.Errorf("failed to get record %s: %w", uid, err)
	}
	return decodeRecord(uid, content)
}

func (r *RedisRecordStorage) SaveRecord(ctx context.Context, record types.Record) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	if err := validUID(record.UID); err != nil {
		return err
	}
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.UID, err)
	}
	return r.client.Set(ctx, r.key(record.UID), content, 0).Err()
}

func (r *RedisRecordStorage) Ping(ctx context.Context) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisRecordStorage) Close() error {
	return r.client.Close()
}
