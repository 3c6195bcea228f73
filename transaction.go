// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
	"github.com/square/writeproxy/logging"
)

// Transaction presents the restricted, wrapped-reference surface of one
// engine transaction attempt. Snapshot isolation and retry on conflict are
// the engine's job; this layer adds no admission or retry logic of its own.
type Transaction struct {
	t engine.Txn
}

// Get reads a document within the transaction, recording it in the
// transaction's read set.
func (t *Transaction) Get(doc *DocumentRef) (*engine.Snapshot, error) {
	logging.Printf("[writeproxy] txn get: %v", doc.Path())
	return t.t.Get(doc.Path())
}

func (t *Transaction) Set(doc *DocumentRef, data docval.Map, opts engine.SetOptions) error {
	logging.Printf("[writeproxy] txn set: %v", doc.Path())
	return t.t.Set(doc.Path(), data, opts)
}

func (t *Transaction) Update(doc *DocumentRef, data docval.Map) error {
	logging.Printf("[writeproxy] txn update: %v", doc.Path())
	return t.t.Update(doc.Path(), data)
}

func (t *Transaction) Delete(doc *DocumentRef) error {
	logging.Printf("[writeproxy] txn delete: %v", doc.Path())
	return t.t.Delete(doc.Path())
}
