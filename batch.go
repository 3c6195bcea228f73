// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

// intent is one accumulated, not-yet-executed batch operation.
type intent struct {
	kind    OpKind
	path    string
	payload docval.Map
	opts    *engine.SetOptions
}

// WriteBatch accumulates write intents without executing anything. On
// Commit the injected admit function decides the whole batch's fate using
// the intent count as cost: admitted batches delegate to the engine's
// native all-or-nothing batch, rejected ones are handed to the injected
// fallback which defers them one record per operation. The unit never
// talks to the deferred store itself.
type WriteBatch struct {
	e         engine.Engine
	admit     func(ctx context.Context, numOps int64) (tenant string, admitted bool, err error)
	fallback  func(tenant string, intents []intent) (*BatchOutcome, error)
	onCommit  func(tenant string, intents []intent, err error)
	intents   []intent
	committed bool
}

// Add accumulates a create-with-generated-id intent.
func (b *WriteBatch) Add(collectionPath string, data docval.Map) *WriteBatch {
	b.intents = append(b.intents, intent{kind: OpCreate, path: collectionPath, payload: data.Clone()})
	return b
}

func (b *WriteBatch) Set(path string, data docval.Map, opts engine.SetOptions) *WriteBatch {
	o := opts
	b.intents = append(b.intents, intent{kind: OpSet, path: path, payload: data.Clone(), opts: &o})
	return b
}

func (b *WriteBatch) Update(path string, data docval.Map) *WriteBatch {
	b.intents = append(b.intents, intent{kind: OpUpdate, path: path, payload: data.Clone()})
	return b
}

func (b *WriteBatch) Delete(path string) *WriteBatch {
	b.intents = append(b.intents, intent{kind: OpDelete, path: path})
	return b
}

// Len reports the number of accumulated intents.
func (b *WriteBatch) Len() int {
	return len(b.intents)
}

// Commit decides admission for the batch as a whole and either commits it
// atomically or defers every member. A WriteBatch can be committed once.
func (b *WriteBatch) Commit(ctx context.Context) (*BatchOutcome, error) {
	if b.committed {
		return nil, newError("batch has already been committed", ER_BATCH_COMMITTED)
	}
	b.committed = true

	if len(b.intents) == 0 {
		return &BatchOutcome{Status: Committed}, nil
	}

	tenant, admitted, err := b.admit(ctx, int64(len(b.intents)))
	if err != nil {
		return nil, err
	}

	if !admitted {
		return b.fallback(tenant, b.intents)
	}

	eb := b.e.Batch()
	for _, it := range b.intents {
		switch it.kind {
		case OpCreate:
			eb.Create(it.path, it.payload)
		case OpSet:
			opts := engine.SetOptions{}
			if it.opts != nil {
				opts = *it.opts
			}
			eb.Set(it.path, it.payload, opts)
		case OpUpdate:
			eb.Update(it.path, it.payload)
		case OpDelete:
			eb.Delete(it.path)
		}
	}

	writes, err := eb.Commit(ctx)
	if b.onCommit != nil {
		b.onCommit(tenant, b.intents, err)
	}

	if err != nil {
		return nil, err
	}

	return &BatchOutcome{Status: Committed, Writes: writes}, nil
}
