// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"github.com/square/writeproxy/logging"
)

// recoveryChain triages delegate failures. Predicates run in registration
// order; the first to claim an error stops evaluation. Unclaimed errors go
// to the dead-letter sink, if one is set. The chain is a triage side
// channel only: it never suppresses or retries the failed write.
type recoveryChain struct {
	handlers []RecoveryFunc
	dlq      DLQFunc
}

func (c *recoveryChain) register(f RecoveryFunc) {
	if f == nil {
		panic("Cannot register a nil recovery handler")
	}

	c.handlers = append(c.handlers, f)
}

func (c *recoveryChain) registerDLQ(f DLQFunc) {
	if f == nil {
		panic("Cannot register a nil DLQ handler")
	}

	// Last registration wins.
	c.dlq = f
}

// triage runs the chain for one failure. Returns true if some predicate
// claimed the error as recoverable.
func (c *recoveryChain) triage(err error, r *DeferredWrite) bool {
	for i, h := range c.handlers {
		if safeRecoveryCall(i, h, err, r) {
			return true
		}
	}

	if c.dlq != nil {
		c.dlq(err, r)
	}

	return false
}

// safeRecoveryCall guards against a predicate itself panicking; a panicking
// predicate is logged and treated as "not recoverable", and evaluation
// continues with the next one.
func safeRecoveryCall(i int, h RecoveryFunc, err error, r *DeferredWrite) (recoverable bool) {
	defer func() {
		if p := recover(); p != nil {
			logging.Printf("Recovery handler %v panicked on %v: %v", i, r.ID, p)
			recoverable = false
		}
	}()

	return h(err, r)
}
