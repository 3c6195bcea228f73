// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package memory implements the deferred write store in memory. Useful for
// tests and for deployments that accept losing parked writes on restart.
package memory

import (
	"sync"

	"github.com/square/writeproxy"
)

// Store is an ordered in-memory record queue.
type Store struct {
	mu      sync.Mutex
	records []*writeproxy.DeferredWrite
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(r *writeproxy.DeferredWrite) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
	return nil
}

// Process drains records in submission order. The first handler error stops
// the drain with that record still parked.
func (s *Store) Process(handler func(*writeproxy.DeferredWrite) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.records) > 0 {
		if err := handler(s.records[0]); err != nil {
			return err
		}

		s.records = s.records[1:]
	}

	return nil
}

func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records), nil
}

func (s *Store) Close() error {
	return nil
}
