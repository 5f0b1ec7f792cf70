package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache keeps recently computed balance info in Redis. The advisory
// late fee grows with wall-clock time, so entries are short-lived and every
// movement append invalidates the account's entry.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache constructs a cache with the given TTL.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(accountID int64) string {
	return fmt.Sprintf("ledger:account:%d:balance", accountID)
}

// Get returns the cached info or (nil, nil) on a miss.
func (c *BalanceCache) Get(ctx context.Context, accountID int64) (*BalanceInfo, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, balanceKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var info BalanceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Set stores the info under the account key.
func (c *BalanceCache) Set(ctx context.Context, info BalanceInfo) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, balanceKey(info.AccountID), data, c.ttl).Err()
}

// Invalidate drops the account's entry.
func (c *BalanceCache) Invalidate(ctx context.Context, accountID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, balanceKey(accountID)).Err()
}
