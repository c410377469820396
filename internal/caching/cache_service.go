package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fleetstock/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StockLevelTTL  = 5 * time.Minute
	IdempotencyTTL = 24 * time.Hour

	// A generation must outlive any read-then-fill window, or an expired
	// counter could reappear at the value a slow reader saw.
	stockGenerationTTL = 24 * time.Hour
)

type CacheService interface {
	// GetStockLevel returns the cached level (nil on a miss) and the pair's
	// invalidation generation, to be handed back to SetStockLevel.
	GetStockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, int64, error)
	// SetStockLevel stores level only if the pair's generation still equals
	// generation, so a fill read before a writer's invalidation is dropped.
	SetStockLevel(ctx context.Context, level *models.StockLevel, generation int64, ttl time.Duration) error
	// DeleteStockLevels drops the cached levels and bumps their generations.
	DeleteStockLevels(ctx context.Context, keys ...models.StockKey) error

	// ClaimIdempotencyKey records key under scope and reports whether this
	// call was the first to claim it.
	ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (bool, error)
	// ReleaseIdempotencyKey drops a claim so the same key can be retried.
	ReleaseIdempotencyKey(ctx context.Context, scope, key string) error

	Ping(ctx context.Context) error
}

func stockLevelKey(itemID, locationID uuid.UUID) string {
	return fmt.Sprintf("fleetstock:stock:%s:%s", itemID.String(), locationID.String())
}

func stockGenerationKey(itemID, locationID uuid.UUID) string {
	return fmt.Sprintf("fleetstock:stockgen:%s:%s", itemID.String(), locationID.String())
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("fleetstock:idempotency:%s:%s", scope, key)
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}

	return &redisCacheService{client: client, logger: logger}
}

func (r *redisCacheService) GetStockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, int64, error) {
	vals, err := r.client.MGet(ctx, stockLevelKey(itemID, locationID), stockGenerationKey(itemID, locationID)).Result()
	if err != nil {
		return nil, 0, err
	}

	generation, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, generation, nil // cache miss
	}

	var level models.StockLevel
	if err := json.Unmarshal([]byte(data), &level); err != nil {
		return nil, generation, err
	}
	return &level, generation, nil
}

func (r *redisCacheService) SetStockLevel(ctx context.Context, level *models.StockLevel, generation int64, ttl time.Duration) error {
	data, err := json.Marshal(level)
	if err != nil {
		return err
	}
	key := stockLevelKey(level.ItemID, level.LocationID)
	genKey := stockGenerationKey(level.ItemID, level.LocationID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != generation {
			return nil // invalidated since the read
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// a writer bumped the generation between WATCH and EXEC
		return nil
	}
	return err
}

func (r *redisCacheService) DeleteStockLevels(ctx context.Context, keys ...models.StockKey) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			genKey := stockGenerationKey(k.ItemID, k.LocationID)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, stockGenerationTTL)
			pipe.Del(ctx, stockLevelKey(k.ItemID, k.LocationID))
		}
		return nil
	})
	return err
}

// parseGeneration reads an MGET/GET value; a missing counter is generation 0.
func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	generation, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stock generation %q: %w", s, err)
	}
	return generation, nil
}

func (r *redisCacheService) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, idempotencyKey(scope, key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *redisCacheService) ReleaseIdempotencyKey(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, idempotencyKey(scope, key)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// noopCacheService always misses and grants every idempotency claim. It
// backs STORE_DRIVER=memory runs and tests that do not exercise Redis.
type noopCacheService struct{}

func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) GetStockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, int64, error) {
	return nil, 0, nil
}

func (noopCacheService) SetStockLevel(ctx context.Context, level *models.StockLevel, generation int64, ttl time.Duration) error {
	return nil
}

func (noopCacheService) DeleteStockLevels(ctx context.Context, keys ...models.StockKey) error {
	return nil
}

func (noopCacheService) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (noopCacheService) ReleaseIdempotencyKey(ctx context.Context, scope, key string) error {
	return nil
}

func (noopCacheService) Ping(ctx context.Context) error {
	return nil
}
