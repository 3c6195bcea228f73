// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

// OpKind enumerates the operations a deferred record can describe. These
// values are part of the persisted record contract and must remain stable
// across versions.
type OpKind string

const (
	OpCreate      OpKind = "create"
	OpSet         OpKind = "set"
	OpUpdate      OpKind = "update"
	OpDelete      OpKind = "delete"
	OpBatchMember OpKind = "batch-member"
)

func (k OpKind) Valid() bool {
	switch k {
	case OpCreate, OpSet, OpUpdate, OpDelete, OpBatchMember:
		return true
	}
	return false
}

// carriesPayload reports whether records of this kind must have a payload.
// Batch members defer to their member verb.
func (k OpKind) carriesPayload() bool {
	return k == OpCreate || k == OpSet || k == OpUpdate
}

// DeferredWrite is the durable, replayable description of one write that was
// not executed immediately. Field names and the operation enumeration form
// the at-rest contract: records may be replayed by a different process
// version than the one that wrote them.
type DeferredWrite struct {
	ID        string `json:"id"`
	Operation OpKind `json:"operation"`
	// Member carries the member's own verb when Operation is "batch-member";
	// empty otherwise.
	Member     OpKind             `json:"member,omitempty"`
	Path       string             `json:"path"`
	Payload    docval.Map         `json:"payload"`
	Options    *engine.SetOptions `json:"options,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	CustomerID string             `json:"customerId"`
}

// NewDeferredWrite builds a record for a single rejected write. CreatedAt is
// the logical submission time, not a commit time.
func NewDeferredWrite(tenant string, op OpKind, path string, payload docval.Map, opts *engine.SetOptions) *DeferredWrite {
	return &DeferredWrite{
		ID:         newRecordID(),
		Operation:  op,
		Path:       path,
		Payload:    payload.Clone(),
		Options:    opts,
		CreatedAt:  time.Now(),
		CustomerID: tenant}
}

// NewBatchMemberWrite builds a record for one member of a rejected batch.
func NewBatchMemberWrite(tenant string, member OpKind, path string, payload docval.Map, opts *engine.SetOptions) *DeferredWrite {
	r := NewDeferredWrite(tenant, OpBatchMember, path, payload, opts)
	r.Member = member
	return r
}

// Verb resolves the operation a record describes, unwrapping batch members.
func (r *DeferredWrite) Verb() OpKind {
	if r.Operation == OpBatchMember {
		return r.Member
	}
	return r.Operation
}

// Validate checks the structural invariants of a record, most importantly
// that payload presence matches the operation kind.
func (r *DeferredWrite) Validate() error {
	if r.ID == "" {
		return newError("deferred record has no id", ER_BAD_RECORD)
	}

	if !r.Operation.Valid() {
		return newError(fmt.Sprintf("unknown operation %q in record %v", r.Operation, r.ID), ER_BAD_RECORD)
	}

	if r.Operation == OpBatchMember {
		if !r.Member.Valid() || r.Member == OpBatchMember {
			return newError(fmt.Sprintf("batch member record %v has invalid member verb %q", r.ID, r.Member), ER_BAD_RECORD)
		}
	} else if r.Member != "" {
		return newError(fmt.Sprintf("record %v carries a member verb but is not a batch member", r.ID), ER_BAD_RECORD)
	}

	if r.Path == "" {
		return newError(fmt.Sprintf("record %v has no path", r.ID), ER_BAD_RECORD)
	}

	if r.Verb().carriesPayload() {
		if r.Payload == nil {
			return newError(fmt.Sprintf("%v record %v has no payload", r.Verb(), r.ID), ER_BAD_RECORD)
		}
	} else if r.Payload != nil {
		return newError(fmt.Sprintf("%v record %v must not carry a payload", r.Verb(), r.ID), ER_BAD_RECORD)
	}

	return nil
}

// Encode marshals the record to its stable JSON layout.
func (r *DeferredWrite) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	return json.Marshal(r)
}

// DecodeDeferredWrite unmarshals and validates a record previously produced
// by Encode.
func DecodeDeferredWrite(b []byte) (*DeferredWrite, error) {
	r := &DeferredWrite{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, newError(fmt.Sprintf("cannot decode deferred record: %v", err), ER_BAD_RECORD)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// newRecordID produces identifiers that sort roughly by submission time, so
// stores that order by ID replay in a sensible order, while the uuid suffix
// keeps them unique across processes.
func newRecordID() string {
	return fmt.Sprintf("%020d-%s", time.Now().UnixNano(), uuid.New())
}
