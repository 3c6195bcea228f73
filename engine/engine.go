// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package engine defines the interface the proxy expects from an underlying
// document database: CRUD per document path, predicate queries, atomic
// batched writes and serializable transactions with retry on conflict.
// Adapters for managed databases implement these interfaces; the memory
// subpackage provides a complete in-process implementation.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/square/writeproxy/docval"
)

var (
	// ErrNotFound is returned when an operation targets a document that does not exist.
	ErrNotFound = errors.New("engine: no such document")
	// ErrContention is returned when a transaction could not commit within the
	// engine's retry budget.
	ErrContention = errors.New("engine: too much contention")
)

// SetOptions control how Set applies data to an existing document.
type SetOptions struct {
	// Merge merges the given fields into an existing document instead of
	// replacing its contents.
	Merge bool `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// WriteResult acknowledges a committed write.
type WriteResult struct {
	UpdateTime time.Time
}

// Snapshot is a point-in-time view of a document.
type Snapshot struct {
	Path       string
	Exists     bool
	Data       docval.Map
	UpdateTime time.Time
}

// Engine is the underlying document database.
type Engine interface {
	// Create stores data under a generated document ID within collectionPath,
	// returning the new document's path.
	Create(ctx context.Context, collectionPath string, data docval.Map) (string, WriteResult, error)
	Set(ctx context.Context, path string, data docval.Map, opts SetOptions) (WriteResult, error)
	// Update merges the given fields into an existing document. It fails with
	// ErrNotFound if the document does not exist.
	Update(ctx context.Context, path string, data docval.Map) (WriteResult, error)
	// Delete removes a document. Deleting a nonexistent document is not an error.
	Delete(ctx context.Context, path string) (WriteResult, error)
	Get(ctx context.Context, path string) (*Snapshot, error)
	// Query returns snapshots of the documents directly within collectionPath
	// that satisfy pred. A nil pred matches everything.
	Query(ctx context.Context, collectionPath string, pred func(*Snapshot) bool) ([]*Snapshot, error)
	// Batch returns an accumulator for an all-or-nothing set of writes.
	Batch() Batch
	// RunTransaction runs fn against a snapshot-isolated transaction,
	// automatically retrying fn on write conflict. Errors returned by fn abort
	// the transaction and are propagated unmodified.
	RunTransaction(ctx context.Context, fn func(Txn) error) error
}

// Batch accumulates writes and commits them atomically.
type Batch interface {
	Create(collectionPath string, data docval.Map)
	Set(path string, data docval.Map, opts SetOptions)
	Update(path string, data docval.Map)
	Delete(path string)
	// Commit applies all accumulated writes as one atomic unit.
	Commit(ctx context.Context) ([]WriteResult, error)
}

// Txn is the restricted operation surface available inside RunTransaction.
// Reads are snapshot-consistent; writes are buffered until commit.
type Txn interface {
	Get(path string) (*Snapshot, error)
	Set(path string, data docval.Map, opts SetOptions) error
	Update(path string, data docval.Map) error
	Delete(path string) error
}
