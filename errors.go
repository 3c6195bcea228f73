// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package writeproxy places an admission-controlled write proxy in front of
// a document database client. Write operations are classified per call,
// rate limited per tenant, and on rejection captured into durable deferred
// records instead of being executed; reads always pass straight through.
package writeproxy

import (
	"errors"
)

// ErrorReason provides details on why proxy calls may fail.
type ErrorReason int

const (
	// Proxy constructed with an incomplete or contradictory configuration
	ER_MISCONFIGURED ErrorReason = iota

	// No tenant on the request context in admission-controlled mode
	ER_NO_TENANT

	// The deferred store refused a record
	ER_STORE_FAILED

	// A deferred record failed validation
	ER_BAD_RECORD

	// A batch was committed more than once
	ER_BATCH_COMMITTED
)

type ProxyError struct {
	error
	Reason ErrorReason
}

func (e ProxyError) Error() string {
	return e.error.Error()
}

func newError(msg string, reason ErrorReason) ProxyError {
	return ProxyError{error: errors.New(msg), Reason: reason}
}
