// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package redis implements a redis-backed stats listener so admission
// counters survive proxy restarts and aggregate across processes.
package redis

import (
	"fmt"
	"time"

	"gopkg.in/redis.v5"

	"github.com/square/writeproxy/events"
	"github.com/square/writeproxy/logging"
	"github.com/square/writeproxy/stats"
)

type redisListener struct {
	client *redis.Client
}

// NewRedisStatsListener creates a redis-backed stats listener with the
// passed in redis.Options.
func NewRedisStatsListener(redisOpts *redis.Options) stats.Listener {
	client := redis.NewClient(redisOpts)
	_, err := client.Ping().Result()

	if err != nil {
		logging.Fatalf("RedisStatsListener: cannot connect to Redis, %v", err)
	}

	return &redisListener{client}
}

func statsKey(dimension string) string {
	return fmt.Sprintf("writeproxy:stats:%s", dimension)
}

func (l *redisListener) redisTopList(key string) []*stats.TenantScore {
	results, err := l.client.ZRevRangeWithScores(key, 0, 10).Result()

	if err != nil && err.Error() != "redis: nil" {
		logging.Printf("RedisStatsListener.TopList error (%s) %v", key, err)
		return make([]*stats.TenantScore, 0)
	}

	arr := make([]*stats.TenantScore, len(results))

	for i, item := range results {
		arr[i] = &stats.TenantScore{Tenant: item.Member.(string), Score: int64(item.Score)}
	}

	return arr
}

// TopAdmitted returns a sorted list of the 10 tenants with the highest
// number of admitted operations within the current bucketed hour
func (l *redisListener) TopAdmitted() []*stats.TenantScore {
	return l.redisTopList(statsKey("admitted"))
}

// TopDeferred returns a sorted list of the 10 tenants with the highest
// number of deferred operations within the current bucketed hour
func (l *redisListener) TopDeferred() []*stats.TenantScore {
	return l.redisTopList(statsKey("deferred"))
}

// Get returns the admitted and deferred counts for a tenant within the
// current bucketed hour
func (l *redisListener) Get(tenant string) *stats.TenantScores {
	scores := &stats.TenantScores{}

	value, err := l.client.ZScore(statsKey("deferred"), tenant).Result()

	if err != nil && err.Error() != "redis: nil" {
		logging.Printf("RedisStatsListener.Get error (%s) %v", tenant, err)
	} else {
		scores.Deferred = int64(value)
	}

	value, err = l.client.ZScore(statsKey("admitted"), tenant).Result()

	if err != nil && err.Error() != "redis: nil" {
		logging.Printf("RedisStatsListener.Get error (%s) %v", tenant, err)
	} else {
		scores.Admitted = int64(value)
	}

	return scores
}

func nearestHour() time.Time {
	return time.Now().Add(time.Hour).Truncate(time.Hour)
}

// HandleEvent consumes admission events (see events.Event)
func (l *redisListener) HandleEvent(event events.Event) {
	var dimension string

	switch event.EventType() {
	case events.EVENT_WRITE_ADMITTED:
		dimension = "admitted"
	case events.EVENT_WRITE_DEFERRED:
		dimension = "deferred"
	default:
		return
	}

	key := statsKey(dimension)
	tenant := event.Tenant()
	numOps := event.NumOps()

	var incr *redis.FloatCmd
	_, err := l.client.Pipelined(func(pipe *redis.Pipeline) error {
		incr = pipe.ZIncrBy(key, float64(numOps), tenant)
		pipe.ExpireAt(key, nearestHour())
		return nil
	})

	if err != nil || incr.Err() != nil {
		logging.Printf("RedisStatsListener.HandleEvent error (%s, %s, %d) %v, %v",
			key, tenant, numOps, err, incr.Err())
	}
}
