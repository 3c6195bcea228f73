// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

type batchOp struct {
	op   opType
	path string
	data docval.Map
	opts engine.SetOptions
	gen  bool
}

// batch accumulates writes and applies them under one lock acquisition.
// Updates of missing documents fail the whole batch before anything is
// applied.
type batch struct {
	e   *Engine
	ops []batchOp
}

func (b *batch) Create(collectionPath string, data docval.Map) {
	b.ops = append(b.ops, batchOp{op: opSet, path: collectionPath, data: data.Clone(), gen: true})
}

func (b *batch) Set(path string, data docval.Map, opts engine.SetOptions) {
	b.ops = append(b.ops, batchOp{op: opSet, path: path, data: data.Clone(), opts: opts})
}

func (b *batch) Update(path string, data docval.Map) {
	b.ops = append(b.ops, batchOp{op: opUpdate, path: path, data: data.Clone()})
}

func (b *batch) Delete(path string) {
	b.ops = append(b.ops, batchOp{op: opDelete, path: path})
}

func (b *batch) Commit(ctx context.Context) ([]engine.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.e.mu.Lock()
	defer b.e.mu.Unlock()

	// Validate before applying anything so the batch stays all-or-nothing.
	for _, op := range b.ops {
		if op.op == opUpdate && b.e.docs[op.path] == nil {
			return nil, engine.ErrNotFound
		}
	}

	results := make([]engine.WriteResult, len(b.ops))
	for i, op := range b.ops {
		path := op.path
		if op.gen {
			path = op.path + "/" + uuid.New().String()
		}

		switch op.op {
		case opSet:
			results[i] = b.e.setLocked(path, op.data, op.opts)
		case opUpdate:
			wr, err := b.e.updateLocked(path, op.data)
			if err != nil {
				// Unreachable after validation; kept for safety.
				return nil, err
			}
			results[i] = wr
		case opDelete:
			results[i] = b.e.deleteLocked(path)
		}
	}

	return results, nil
}
