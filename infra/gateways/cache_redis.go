package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openmart/inventory/protocols"
)

const (
	stockKeyPrefix = "stock:sku:"
	stockTTL       = 10 * time.Second
)

// StockCacheRedis is a cache-aside front for the availability read path.
// Entries are short-lived and deleted whenever a mutation touches the SKU.
type StockCacheRedis struct {
	client *redis.Client
}

func NewStockCacheRedis(client *redis.Client) *StockCacheRedis {
	return &StockCacheRedis{client: client}
}

func (c *StockCacheRedis) key(sku string) string {
	return stockKeyPrefix + sku
}

func (c *StockCacheRedis) Get(ctx context.Context, sku string) (*protocols.StockSnapshot, error) {
	data, err := c.client.Get(ctx, c.key(sku)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var snapshot protocols.StockSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("redis unmarshal: %w", err)
	}
	return &snapshot, nil
}

func (c *StockCacheRedis) Set(ctx context.Context, snapshot *protocols.StockSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(snapshot.SKU), raw, stockTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *StockCacheRedis) Invalidate(ctx context.Context, skus ...string) error {
	if len(skus) == 0 {
		return nil
	}
	keys := make([]string, 0, len(skus))
	for _, sku := range skus {
		keys = append(keys, c.key(sku))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
