// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package gate defines the admission decision interface consumed by the
// proxy. Implementations answer, per (tenant, cost) pair, whether a write
// may proceed now or must be deferred.
package gate

// Gate is an admission gate.
type Gate interface {
	// IsRateLimited reports whether a tenant has exhausted its quota for an
	// operation costing the given number of document writes. An error means
	// the gate itself could not decide; callers are expected to fail open so
	// that limiter availability never blocks writes.
	IsRateLimited(tenant string, cost int64) (bool, error)
}
