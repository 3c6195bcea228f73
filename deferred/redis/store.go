// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package redis implements the deferred write store as a Redis list, so a
// fleet of proxies can share one replay queue.
package redis

import (
	"fmt"

	"gopkg.in/redis.v5"

	"github.com/square/writeproxy"
)

const defaultQueueKey = "writeproxy:deferred"

// Store appends records to a Redis list and drains from its head. A record
// is popped only after its handler succeeds.
type Store struct {
	client *redis.Client
	key    string
}

// New creates a redis-backed store with the passed in redis.Options. An
// empty queueKey selects the default queue.
func New(redisOpts *redis.Options, queueKey string) (*Store, error) {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}

	client := redis.NewClient(redisOpts)
	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("redis store: cannot connect to Redis: %v", err)
	}

	return &Store{client: client, key: queueKey}, nil
}

func (s *Store) Append(r *writeproxy.DeferredWrite) error {
	b, err := r.Encode()
	if err != nil {
		return err
	}

	return s.client.RPush(s.key, string(b)).Err()
}

// Process drains the queue head-first. Handled records are popped; the
// first handler error stops the drain with that record still queued.
func (s *Store) Process(handler func(*writeproxy.DeferredWrite) error) error {
	for {
		raw, err := s.client.LIndex(s.key, 0).Result()
		if err != nil {
			if err == redis.Nil {
				return nil
			}
			return err
		}

		r, err := writeproxy.DecodeDeferredWrite([]byte(raw))
		if err != nil {
			return err
		}

		if err := handler(r); err != nil {
			return err
		}

		if err := s.client.LPop(s.key).Err(); err != nil {
			return err
		}
	}
}

func (s *Store) Len() (int, error) {
	n, err := s.client.LLen(s.key).Result()
	return int(n), err
}

func (s *Store) Close() error {
	return s.client.Close()
}
