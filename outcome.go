// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"time"

	"github.com/square/writeproxy/engine"
)

// OutcomeStatus distinguishes writes the engine committed from writes parked
// for later replay.
type OutcomeStatus int

const (
	Committed OutcomeStatus = iota
	Deferred
)

func (s OutcomeStatus) String() string {
	switch s {
	case Committed:
		return "Committed"
	case Deferred:
		return "Deferred"
	default:
		return "Unknown"
	}
}

// Outcome is the result of a proxied write. Callers who care whether their
// write actually committed branch on Status; callers who do not can treat
// every outcome uniformly.
type Outcome struct {
	Status OutcomeStatus
	// Write is the engine's native result for committed writes. For deferred
	// writes it carries the record's submission time, which is NOT a commit
	// acknowledgment.
	Write engine.WriteResult
	// RecordID identifies the deferred record; empty for committed writes.
	RecordID string
	// Ref points at the written document for Add calls. For deferred Adds it
	// is a placeholder under "__deferred__/<recordID>"; such refs do not
	// resolve to a real document until the record is replayed.
	Ref *DocumentRef
}

func committedOutcome(wr engine.WriteResult, ref *DocumentRef) *Outcome {
	return &Outcome{Status: Committed, Write: wr, Ref: ref}
}

func deferredOutcome(r *DeferredWrite, ref *DocumentRef) *Outcome {
	return &Outcome{
		Status:   Deferred,
		Write:    engine.WriteResult{UpdateTime: time.Now()},
		RecordID: r.ID,
		Ref:      ref}
}

// BatchOutcome is the result of committing a proxied batch.
type BatchOutcome struct {
	Status OutcomeStatus
	// Writes holds the engine's native per-operation results when the batch
	// committed.
	Writes []engine.WriteResult
	// RecordIDs holds one record ID per operation when the batch was
	// decomposed and deferred.
	RecordIDs []string
}
