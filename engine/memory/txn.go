// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package memory

import (
	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

type opType int

const (
	opSet opType = iota
	opUpdate
	opDelete
)

type bufferedWrite struct {
	op   opType
	path string
	data docval.Map
	opts engine.SetOptions
}

// txn holds the versions observed by reads and the writes buffered for
// commit. commit validates every observed version under the engine lock and
// applies all writes only when none have moved.
type txn struct {
	e      *Engine
	reads  map[string]int64
	writes []bufferedWrite
}

func (t *txn) Get(path string) (*engine.Snapshot, error) {
	t.e.mu.RLock()
	defer t.e.mu.RUnlock()

	t.reads[path] = t.e.versionLocked(path)
	return t.e.snapshotLocked(path), nil
}

func (t *txn) Set(path string, data docval.Map, opts engine.SetOptions) error {
	t.writes = append(t.writes, bufferedWrite{op: opSet, path: path, data: data.Clone(), opts: opts})
	return nil
}

func (t *txn) Update(path string, data docval.Map) error {
	t.writes = append(t.writes, bufferedWrite{op: opUpdate, path: path, data: data.Clone()})
	return nil
}

func (t *txn) Delete(path string) error {
	t.writes = append(t.writes, bufferedWrite{op: opDelete, path: path})
	return nil
}

func (t *txn) commit() bool {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()

	for path, version := range t.reads {
		if t.e.versionLocked(path) != version {
			return false
		}
	}

	for _, w := range t.writes {
		switch w.op {
		case opSet:
			t.e.setLocked(w.path, w.data, w.opts)
		case opUpdate:
			// Inside a transaction an update of a concurrently deleted document
			// is applied as a set. The read-set validation above already
			// guarantees the caller saw a consistent view.
			if _, err := t.e.updateLocked(w.path, w.data); err != nil {
				t.e.setLocked(w.path, w.data, engine.SetOptions{})
			}
		case opDelete:
			t.e.deleteLocked(w.path)
		}
	}

	return true
}
