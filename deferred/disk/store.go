// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package disk implements the deferred write store as an append-only
// JSON-lines journal on the local filesystem. Appends are fsynced so an
// accepted-for-later write survives a crash; Process rewrites the journal
// with whatever records remain unprocessed.
package disk

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"os"
	"sync"

	"github.com/square/writeproxy"
)

// Store journals records to a single file, one JSON document per line.
type Store struct {
	mu       sync.Mutex
	location string
	f        *os.File
}

func New(location string) (*Store, error) {
	f, err := os.OpenFile(location, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Store{location: location, f: f}, nil
}

func (s *Store) Append(r *writeproxy.DeferredWrite) error {
	b, err := r.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Write(append(b, '\n')); err != nil {
		return err
	}

	return s.f.Sync()
}

// Process reads the whole journal, invokes handler per record in order, and
// truncates the journal down to the records that were not handled. The
// first handler error stops the drain.
func (s *Store) Process(handler func(*writeproxy.DeferredWrite) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAllLocked()
	if err != nil {
		return err
	}

	processed := 0
	var handlerErr error
	for _, r := range records {
		if handlerErr = handler(r); handlerErr != nil {
			break
		}
		processed++
	}

	if err := s.rewriteLocked(records[processed:]); err != nil {
		return err
	}

	return handlerErr
}

func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAllLocked()
	if err != nil {
		return 0, err
	}

	return len(records), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.f.Close()
}

func (s *Store) readAllLocked() ([]*writeproxy.DeferredWrite, error) {
	b, err := ioutil.ReadFile(s.location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []*writeproxy.DeferredWrite
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		r, err := writeproxy.DecodeDeferredWrite(line)
		if err != nil {
			return nil, err
		}

		records = append(records, r)
	}

	return records, scanner.Err()
}

// rewriteLocked replaces the journal contents with the given records and
// reopens the append handle.
func (s *Store) rewriteLocked(records []*writeproxy.DeferredWrite) error {
	if err := s.f.Close(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, r := range records {
		b, err := r.Encode()
		if err != nil {
			return err
		}

		buf.Write(b)
		buf.WriteByte('\n')
	}

	if err := ioutil.WriteFile(s.location, buf.Bytes(), 0644); err != nil {
		return err
	}

	f, err := os.OpenFile(s.location, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	s.f = f
	return nil
}
