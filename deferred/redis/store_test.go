// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package redis

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"gopkg.in/redis.v5"

	"github.com/square/writeproxy"
	"github.com/square/writeproxy/docval"
)

func localOpts() *redis.Options {
	return &redis.Options{Addr: "localhost:6379"}
}

func setUp(t *testing.T) *Store {
	rand.Seed(time.Now().UTC().UnixNano())

	client := redis.NewClient(localOpts())
	defer client.Close()
	if err := client.Ping().Err(); err != nil {
		t.Skipf("Redis not reachable at localhost:6379: %v", err)
	}

	s, err := New(localOpts(), fmt.Sprintf("writeproxy:deferred:test:%d", rand.Int63()))
	if err != nil {
		t.Fatal(err)
	}

	return s
}

func record(path string) *writeproxy.DeferredWrite {
	return writeproxy.NewDeferredWrite("acme", writeproxy.OpSet, path, docval.Map{"a": docval.Int(1)}, nil)
}

func TestQueueDrainsHeadFirst(t *testing.T) {
	s := setUp(t)
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Append(record(fmt.Sprintf("users/%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := s.Len(); n != 3 {
		t.Fatalf("Expected 3 queued records, got %v", n)
	}

	var paths []string
	err := s.Process(func(r *writeproxy.DeferredWrite) error {
		paths = append(paths, r.Path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) != 3 || paths[0] != "users/0" || paths[2] != "users/2" {
		t.Fatalf("Drain order wrong: %v", paths)
	}

	if n, _ := s.Len(); n != 0 {
		t.Fatalf("Queue should be empty after a full drain, %v left", n)
	}
}

func TestFailedRecordStaysQueued(t *testing.T) {
	s := setUp(t)
	defer s.Close()

	_ = s.Append(record("users/0"))
	_ = s.Append(record("users/1"))

	boom := errors.New("replay failed")
	err := s.Process(func(r *writeproxy.DeferredWrite) error {
		return boom
	})
	if err != boom {
		t.Fatalf("Expected the handler error back, got %v", err)
	}

	if n, _ := s.Len(); n != 2 {
		t.Fatalf("Failed record must stay queued, %v left", n)
	}

	// A later drain retries the same record first.
	var first string
	_ = s.Process(func(r *writeproxy.DeferredWrite) error {
		if first == "" {
			first = r.Path
		}
		return nil
	})

	if first != "users/0" {
		t.Fatalf("Retry should start at the head, got %v", first)
	}
}

func TestUnreachableRedisIsAConstructionError(t *testing.T) {
	if _, err := New(&redis.Options{Addr: "localhost:1"}, ""); err == nil {
		t.Fatal("Expected a connection error")
	}
}
