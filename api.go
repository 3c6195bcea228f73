// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

// Store is the durable queue deferred writes are parked in. Implementations
// live under deferred/; the proxy only appends, and an out-of-band replay
// worker drains.
//
// Delivery is at least once: a record whose handler fails stays in the
// store, so handlers must tolerate seeing the same record twice.
type Store interface {
	// Append durably persists a record.
	Append(r *DeferredWrite) error
	// Process drains the store in submission order, invoking handler once per
	// record. Records whose handler returns nil are removed; the first
	// handler error stops the drain and keeps that record and all later ones.
	Process(handler func(*DeferredWrite) error) error
	// Len reports the number of parked records.
	Len() (int, error)
	Close() error
}

// RecoveryFunc is a recoverability predicate. Returning true claims the
// error, short-circuiting the rest of the chain and the dead-letter sink.
// "Recoverable" strictly means "do not dead-letter": the proxy never retries
// on the predicate's behalf.
type RecoveryFunc func(err error, r *DeferredWrite) bool

// DLQFunc is the terminal dead-letter sink, invoked exactly once per failed
// write no predicate claimed.
type DLQFunc func(err error, r *DeferredWrite)
