// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package memory

import (
	"sync"
	"time"

	"github.com/square/writeproxy/config"
)

// tenantBucket is a token bucket that only answers "can I have cost tokens
// right now". There is no waiting and no debt: a request either fits in the
// accumulated tokens or it does not.
type tenantBucket struct {
	mu                 sync.Mutex
	name               string
	cfg                *config.BucketConfig
	nanosBetweenTokens int64
	lastRefillNanos    int64
	accumulatedTokens  int64
	activityMonitor    chan struct{}
}

func newTenantBucket(name string, cfg *config.BucketConfig) *tenantBucket {
	return &tenantBucket{
		name:               name,
		cfg:                cfg,
		nanosBetweenTokens: 1e9 / cfg.FillRate,
		lastRefillNanos:    time.Now().UnixNano(),
		accumulatedTokens:  cfg.Size, // Start full
		activityMonitor:    make(chan struct{}, 1)}
}

func (b *tenantBucket) take(cost int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	currentTimeNanos := time.Now().UnixNano()
	if currentTimeNanos > b.lastRefillNanos {
		freshTokens := (currentTimeNanos - b.lastRefillNanos) / b.nanosBetweenTokens
		b.accumulatedTokens = min(b.cfg.Size, b.accumulatedTokens+freshTokens)
		// Only advance by whole tokens so fractional progress isn't lost.
		b.lastRefillNanos += freshTokens * b.nanosBetweenTokens
	}

	if b.accumulatedTokens < cost {
		return false
	}

	b.accumulatedTokens -= cost
	return true
}

// reportActivity indicates that a bucket is in use. This method doesn't block.
func (b *tenantBucket) reportActivity() {
	select {
	case b.activityMonitor <- struct{}{}:
	// reported activity
	default:
		// Already reported
	}
}

// activityDetected tells you if activity has been detected since the last
// time this method was called.
func (b *tenantBucket) activityDetected() bool {
	select {
	case <-b.activityMonitor:
		return true
	default:
		return false
	}
}

func min(x, y int64) int64 {
	if x < y {
		return x
	}
	return y
}
