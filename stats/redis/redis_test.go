// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package redis

import (
	"math/rand"
	"testing"
	"time"

	"gopkg.in/redis.v5"

	"github.com/square/writeproxy/events"
	"github.com/square/writeproxy/stats"
)

const characterList = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomTenant() string {
	result := make([]byte, 16)
	for i := range result {
		result[i] = characterList[rand.Intn(len(characterList))]
	}

	return string(result)
}

func setUp(t *testing.T) stats.Listener {
	rand.Seed(time.Now().UTC().UnixNano())

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	if err := client.Ping().Err(); err != nil {
		t.Skipf("Redis not reachable at localhost:6379: %v", err)
	}

	return NewRedisStatsListener(&redis.Options{Addr: "localhost:6379"})
}

func TestHandleEventAccumulatesScores(t *testing.T) {
	listener := setUp(t)

	tenant := randomTenant()
	listener.HandleEvent(events.NewWriteAdmittedEvent(tenant, "set", "users/1", 1))
	listener.HandleEvent(events.NewWriteAdmittedEvent(tenant, "batch", "", 4))
	listener.HandleEvent(events.NewWriteDeferredEvent(tenant, "update", "users/1", 1))

	scores := listener.Get(tenant)
	if scores.Admitted != 5 || scores.Deferred != 1 {
		t.Fatalf("Tenant score was not accurate: %+v != [Admitted=5, Deferred=1]", scores)
	}
}

func TestNonAdmissionEventsAreIgnored(t *testing.T) {
	listener := setUp(t)

	tenant := randomTenant()
	listener.HandleEvent(events.NewWriteFailedEvent(tenant, "set", "users/1"))
	listener.HandleEvent(events.NewRecordReplayedEvent(tenant, "set", "users/1"))

	scores := listener.Get(tenant)
	if scores.Admitted != 0 || scores.Deferred != 0 {
		t.Fatalf("Failure and replay events must not count: %+v", scores)
	}
}

func TestTopListIncludesActiveTenants(t *testing.T) {
	listener := setUp(t)

	tenant := randomTenant()
	listener.HandleEvent(events.NewWriteDeferredEvent(tenant, "set", "users/1", 10000))

	found := false
	for _, score := range listener.TopDeferred() {
		if score.Tenant == tenant {
			found = true
			if score.Score != 10000 {
				t.Fatalf("Top score wrong: %v", score)
			}
		}
	}

	if !found {
		t.Fatalf("Tenant %v missing from top list", tenant)
	}
}
