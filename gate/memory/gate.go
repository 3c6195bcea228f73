// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package memory implements tenant token buckets in memory, inspired by the
// algorithms used in Guava's RateLimiter library -
// https://github.com/google/guava/blob/master/guava/src/com/google/common/util/concurrent/RateLimiter.java
package memory

import (
	"sync"
	"time"

	"github.com/square/writeproxy/config"
	"github.com/square/writeproxy/logging"
)

// Gate hands out admission decisions from per-tenant token buckets. Buckets
// are created lazily from the config's dynamic tenant template; once
// MaxDynamicTenants is reached, further tenants share one default bucket.
type Gate struct {
	cfg           *config.ServiceConfig
	tenants       map[string]*tenantBucket
	defaultBucket *tenantBucket
	sync.RWMutex  // Embedded mutex
}

func New(cfg *config.ServiceConfig) *Gate {
	if cfg == nil {
		cfg = config.NewDefaultServiceConfig()
	} else {
		config.ApplyDefaults(cfg)
	}

	return &Gate{
		cfg:           cfg,
		tenants:       make(map[string]*tenantBucket),
		defaultBucket: newTenantBucket(config.DefaultTenantName, cfg.DynamicTenantTemplate)}
}

func (g *Gate) IsRateLimited(tenant string, cost int64) (bool, error) {
	return !g.findBucket(tenant).take(cost), nil
}

// Update swaps in a new config. Existing buckets are dropped and recreated
// lazily under the new settings.
func (g *Gate) Update(cfg *config.ServiceConfig) {
	config.ApplyDefaults(cfg)

	g.Lock()
	defer g.Unlock()

	for name := range g.tenants {
		delete(g.tenants, name)
	}

	g.cfg = cfg
	g.defaultBucket = newTenantBucket(config.DefaultTenantName, cfg.DynamicTenantTemplate)
}

// findBucket locates or lazily creates the bucket for a tenant. Thread-safe;
// uses double-checked locking on creation.
func (g *Gate) findBucket(tenant string) *tenantBucket {
	g.RLock()
	b := g.tenants[tenant]
	g.RUnlock()

	if b != nil {
		b.reportActivity()
		return b
	}

	g.Lock()
	defer g.Unlock()

	// Another goroutine may have created the bucket in the meantime.
	if b = g.tenants[tenant]; b != nil {
		b.reportActivity()
		return b
	}

	if g.cfg.MaxDynamicTenants > 0 && int32(len(g.tenants)) >= g.cfg.MaxDynamicTenants {
		logging.Printf("Tenant %v: maxDynamicTenants=%v reached; using default bucket", tenant, g.cfg.MaxDynamicTenants)
		return g.defaultBucket
	}

	b = newTenantBucket(tenant, g.cfg.TenantBucket(tenant))
	g.tenants[tenant] = b
	b.reportActivity()

	if maxIdle := time.Duration(b.cfg.MaxIdleMillis) * time.Millisecond; maxIdle > 0 {
		go g.watch(tenant, b, maxIdle)
	}

	return b
}

// watch watches a tenant bucket for activity, removing it if none has been
// detected after maxIdle.
func (g *Gate) watch(tenant string, b *tenantBucket, maxIdle time.Duration) {
	t := time.NewTicker(maxIdle)
	defer t.Stop()

	for range t.C {
		if !b.activityDetected() {
			break
		}
	}

	g.Lock()
	defer g.Unlock()

	if g.tenants[tenant] == b {
		delete(g.tenants, tenant)
		logging.Printf("Garbage collecting idle tenant bucket %v", tenant)
	}
}

func (g *Gate) exists(tenant string) bool {
	g.RLock()
	defer g.RUnlock()

	return g.tenants[tenant] != nil
}
