package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// latestTTL: zařízení, které 24h nic neposlalo, z cache zmizí.
const latestTTL = 24 * time.Hour

// ErrNoLatest znamená, že pro zařízení zatím není poslední hodnota v cache.
var ErrNoLatest = errors.New("žádná poslední lectura")

// LatestCache drží poslední lecturu každého zařízení ve Valkey (Redis).
// Je to "Hot Storage" pro dashboard, historie zůstává ve Store.
type LatestCache struct {
	redis *redis.Client
}

// NewLatestCache připojí klienta a ověří, že server žije.
func NewLatestCache(ctx context.Context, addr string) (*LatestCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}
	return &LatestCache{redis: rdb}, nil
}

func latestKey(deviceID int64) string {
	return fmt.Sprintf("lecture:last:%d", deviceID)
}

// Put přepíše poslední hodnotu zařízení.
func (c *LatestCache) Put(ctx context.Context, rec Record) error {
	payload, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("serializace lectury: %w", err)
	}
	if err := c.redis.Set(ctx, latestKey(rec.DeviceID), payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("chyba update Valkey: %w", err)
	}
	return nil
}

// Get vrátí poslední lecturu zařízení, nebo ErrNoLatest.
func (c *LatestCache) Get(ctx context.Context, deviceID int64) (Record, error) {
	payload, err := c.redis.Get(ctx, latestKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNoLatest
	}
	if err != nil {
		return Record{}, fmt.Errorf("chyba čtení z Valkey: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("poškozený záznam v Valkey: %w", err)
	}
	return rec, nil
}

// Close uzavře spojení.
func (c *LatestCache) Close() error {
	return c.redis.Close()
}
