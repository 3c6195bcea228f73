// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
	"github.com/square/writeproxy/logging"
)

// DeferredPathPrefix is the collection placeholder document refs for
// deferred Adds live under. Callers can detect a pending ref by this
// prefix; this is a documented leak of the deferral mechanism, kept so
// accepted and deferred Adds share one return shape.
const DeferredPathPrefix = "__deferred__"

// CollectionRef is a stateless decorator over a collection path. Every
// method traces and delegates to the engine unchanged; there is no admission
// logic at this layer.
type CollectionRef struct {
	e    engine.Engine
	path string
}

// DocumentRef is a stateless decorator over a document path. Writes issued
// through a DocumentRef go straight to the engine; admission-controlled
// writes go through the Proxy surface instead.
type DocumentRef struct {
	e    engine.Engine
	path string
}

func (c *CollectionRef) Path() string {
	return c.path
}

// Doc navigates to a document within this collection.
func (c *CollectionRef) Doc(id string) *DocumentRef {
	path := c.path + "/" + id
	logging.Printf("[writeproxy] doc: %v", path)
	return &DocumentRef{e: c.e, path: path}
}

// Query delegates a predicate scan over this collection.
func (c *CollectionRef) Query(ctx context.Context, pred func(*engine.Snapshot) bool) ([]*engine.Snapshot, error) {
	logging.Printf("[writeproxy] query: %v", c.path)
	return c.e.Query(ctx, c.path, pred)
}

func (d *DocumentRef) Path() string {
	return d.path
}

// Pending reports whether this ref is a placeholder for a deferred write.
func (d *DocumentRef) Pending() bool {
	return len(d.path) > len(DeferredPathPrefix) && d.path[:len(DeferredPathPrefix)] == DeferredPathPrefix
}

// Collection navigates to a subcollection within this document.
func (d *DocumentRef) Collection(name string) *CollectionRef {
	path := d.path + "/" + name
	logging.Printf("[writeproxy] collection: %v", path)
	return &CollectionRef{e: d.e, path: path}
}

func (d *DocumentRef) Get(ctx context.Context) (*engine.Snapshot, error) {
	logging.Printf("[writeproxy] get: %v", d.path)
	return d.e.Get(ctx, d.path)
}

func (d *DocumentRef) Set(ctx context.Context, data docval.Map, opts engine.SetOptions) (engine.WriteResult, error) {
	logging.Printf("[writeproxy] set: %v", d.path)
	return d.e.Set(ctx, d.path, data, opts)
}

func (d *DocumentRef) Update(ctx context.Context, data docval.Map) (engine.WriteResult, error) {
	logging.Printf("[writeproxy] update: %v", d.path)
	return d.e.Update(ctx, d.path, data)
}

func (d *DocumentRef) Delete(ctx context.Context) (engine.WriteResult, error) {
	logging.Printf("[writeproxy] delete: %v", d.path)
	return d.e.Delete(ctx, d.path)
}
