// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package memory implements the engine interfaces in process memory. Writes
// are versioned per document, batches commit under a single lock, and
// transactions are optimistic: reads record the versions they observed, and
// commit is retried when any observed version has moved.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
	"github.com/square/writeproxy/logging"
)

const maxTxnAttempts = 10

type document struct {
	data       docval.Map
	version    int64
	updateTime time.Time
}

// Engine is an in-memory document store.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]*document
}

func New() *Engine {
	return &Engine{docs: make(map[string]*document)}
}

func (e *Engine) Create(ctx context.Context, collectionPath string, data docval.Map) (string, engine.WriteResult, error) {
	path := collectionPath + "/" + uuid.New().String()

	e.mu.Lock()
	defer e.mu.Unlock()

	wr := e.putLocked(path, data.Clone())
	return path, wr, nil
}

func (e *Engine) Set(ctx context.Context, path string, data docval.Map, opts engine.SetOptions) (engine.WriteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.setLocked(path, data, opts), nil
}

func (e *Engine) Update(ctx context.Context, path string, data docval.Map) (engine.WriteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.updateLocked(path, data)
}

func (e *Engine) Delete(ctx context.Context, path string) (engine.WriteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.deleteLocked(path), nil
}

func (e *Engine) Get(ctx context.Context, path string) (*engine.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.snapshotLocked(path), nil
}

func (e *Engine) Query(ctx context.Context, collectionPath string, pred func(*engine.Snapshot) bool) ([]*engine.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var results []*engine.Snapshot
	prefix := collectionPath + "/"
	for path := range e.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}

		snap := e.snapshotLocked(path)
		if pred == nil || pred(snap) {
			results = append(results, snap)
		}
	}

	return results, nil
}

func (e *Engine) Batch() engine.Batch {
	return &batch{e: e}
}

// RunTransaction retries fn until its buffered writes commit against
// unchanged reads, or the attempt budget runs out.
func (e *Engine) RunTransaction(ctx context.Context, fn func(engine.Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := &txn{e: e, reads: make(map[string]int64)}
		if err := fn(t); err != nil {
			return err
		}

		if t.commit() {
			return nil
		}

		logging.Printf("Transaction conflict on attempt %v; retrying", attempt+1)
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}

	return engine.ErrContention
}

func (e *Engine) putLocked(path string, data docval.Map) engine.WriteResult {
	now := time.Now()
	d := e.docs[path]
	if d == nil {
		d = &document{}
		e.docs[path] = d
	}

	d.data = data
	d.version++
	d.updateTime = now

	return engine.WriteResult{UpdateTime: now}
}

func (e *Engine) setLocked(path string, data docval.Map, opts engine.SetOptions) engine.WriteResult {
	if opts.Merge {
		if d := e.docs[path]; d != nil {
			merged := d.data.Clone()
			for k, v := range data {
				merged[k] = v.Clone()
			}
			return e.putLocked(path, merged)
		}
	}

	return e.putLocked(path, data.Clone())
}

func (e *Engine) updateLocked(path string, data docval.Map) (engine.WriteResult, error) {
	d := e.docs[path]
	if d == nil {
		return engine.WriteResult{}, engine.ErrNotFound
	}

	merged := d.data.Clone()
	for k, v := range data {
		merged[k] = v.Clone()
	}

	return e.putLocked(path, merged), nil
}

func (e *Engine) deleteLocked(path string) engine.WriteResult {
	delete(e.docs, path)
	return engine.WriteResult{UpdateTime: time.Now()}
}

func (e *Engine) snapshotLocked(path string) *engine.Snapshot {
	d := e.docs[path]
	if d == nil {
		return &engine.Snapshot{Path: path}
	}

	return &engine.Snapshot{
		Path:       path,
		Exists:     true,
		Data:       d.data.Clone(),
		UpdateTime: d.updateTime}
}

func (e *Engine) versionLocked(path string) int64 {
	if d := e.docs[path]; d != nil {
		return d.version
	}
	return 0
}
