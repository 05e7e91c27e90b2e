package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldwatch/telemetry-hub/domain"
)

// RedisCache stores the latest value per (sensor, parameter) key as a redis
// hash with value and timestamp fields. Writes are whole-record overwrites
// with no TTL; a sensor that goes silent keeps surfacing its last known
// value, and staleness is judged by the caller from the timestamp.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func entryKey(sensorID int, p domain.Parameter) string {
	return fmt.Sprintf("latest:%d:%s", sensorID, p)
}

func (c *RedisCache) Set(ctx context.Context, sensorID int, p domain.Parameter, value float64, ts time.Time) error {
	err := c.rdb.HSet(ctx, entryKey(sensorID, p),
		"value", strconv.FormatFloat(value, 'g', -1, 64),
		"timestamp", strconv.FormatInt(ts.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, sensorID int, p domain.Parameter) (*domain.Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, entryKey(sensorID, p)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return entryFromFields(fields)
}

func (c *RedisCache) GetAll(ctx context.Context, sensorIDs []int, parameters []domain.Parameter) (domain.Snapshot, error) {
	cmds := map[cacheKey]*redis.MapStringStringCmd{}

	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range sensorIDs {
			for _, p := range parameters {
				cmds[cacheKey{id, p}] = pipe.HGetAll(ctx, entryKey(id, p))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	snapshot := domain.Snapshot{}
	for _, id := range sensorIDs {
		byParam := map[domain.Parameter]*domain.Entry{}
		for _, p := range parameters {
			entry, err := entryFromFields(cmds[cacheKey{id, p}].Val())
			if err != nil {
				return nil, err
			}
			byParam[p] = entry
		}
		snapshot[id] = byParam
	}
	return snapshot, nil
}

// entryFromFields converts a redis hash into an entry. An empty hash means
// the key has never been written, which callers must see as nil rather
// than a zero value.
func entryFromFields(fields map[string]string) (*domain.Entry, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	value, err := strconv.ParseFloat(fields["value"], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt cache value: %s", domain.ErrStoreUnavailable, err.Error())
	}

	millis, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt cache timestamp: %s", domain.ErrStoreUnavailable, err.Error())
	}

	return &domain.Entry{
		Value:     value,
		Timestamp: time.UnixMilli(millis).UTC(),
	}, nil
}
