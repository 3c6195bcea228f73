// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package redis implements an admission gate whose token bucket state lives
// in Redis, so that several proxy processes can share one quota per tenant.
package redis

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/redis.v5"

	"github.com/square/writeproxy/config"
	"github.com/square/writeproxy/logging"
)

const (
	tokensNextAvblNanosSuffix = "TNA"
	accumulatedTokensSuffix   = "AT"
	keyTTL                    = 24 * time.Hour
)

// Gate keeps per-tenant token bucket state in Redis. Decisions are made from
// an MGET of the two bucket keys and written back with a pipelined MSET;
// contention between proxies over the same tenant is resolved loosely, which
// is acceptable for admission control.
type Gate struct {
	client *redis.Client
	cfg    *config.ServiceConfig
}

func New(redisOpts *redis.Options, cfg *config.ServiceConfig) (*Gate, error) {
	if cfg == nil {
		cfg = config.NewDefaultServiceConfig()
	} else {
		config.ApplyDefaults(cfg)
	}

	client := redis.NewClient(redisOpts)
	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("redis gate: cannot connect to Redis: %v", err)
	}

	return &Gate{client: client, cfg: cfg}, nil
}

// IsRateLimited decides admission for (tenant, cost). On Redis errors it
// returns the error with limited=false: the limiter being down must never
// stop writes.
func (g *Gate) IsRateLimited(tenant string, cost int64) (bool, error) {
	bCfg := g.cfg.TenantBucket(tenant)
	nanosBetweenTokens := int64(1e9) / bCfg.FillRate

	tnaKey := toRedisKey(tenant, tokensNextAvblNanosSuffix)
	atKey := toRedisKey(tenant, accumulatedTokensSuffix)

	vals, err := g.client.MGet(tnaKey, atKey).Result()
	if err != nil {
		logging.Printf("RedisGate.IsRateLimited read error (%s) %v", tenant, err)
		return false, err
	}

	currentTimeNanos := time.Now().UnixNano()
	lastRefillNanos := toInt64(vals[0], currentTimeNanos)
	accumulatedTokens := toInt64(vals[1], bCfg.Size) // Unseen tenants start full

	if currentTimeNanos > lastRefillNanos {
		freshTokens := (currentTimeNanos - lastRefillNanos) / nanosBetweenTokens
		accumulatedTokens = min(bCfg.Size, accumulatedTokens+freshTokens)
		lastRefillNanos += freshTokens * nanosBetweenTokens
	}

	limited := accumulatedTokens < cost
	if !limited {
		accumulatedTokens -= cost
	}

	_, err = g.client.Pipelined(func(pipe *redis.Pipeline) error {
		pipe.Set(tnaKey, strconv.FormatInt(lastRefillNanos, 10), keyTTL)
		pipe.Set(atKey, strconv.FormatInt(accumulatedTokens, 10), keyTTL)
		return nil
	})

	if err != nil {
		logging.Printf("RedisGate.IsRateLimited write error (%s) %v", tenant, err)
		return false, err
	}

	return limited, nil
}

func (g *Gate) Close() error {
	return g.client.Close()
}

func toRedisKey(tenant, suffix string) string {
	return fmt.Sprintf("writeproxy:%v:%v", tenant, suffix)
}

func toInt64(raw interface{}, def int64) int64 {
	s, ok := raw.(string)
	if !ok {
		return def
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}

	return i
}

func min(x, y int64) int64 {
	if x < y {
		return x
	}
	return y
}
