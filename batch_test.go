// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"
	"errors"
	"testing"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

func fourOpBatch(p *Proxy) *WriteBatch {
	return p.Batch().
		Add("users", docval.Map{"name": docval.String("kit")}).
		Set("users/1", docval.Map{"name": docval.String("pat")}, engine.SetOptions{Merge: true}).
		Update("users/2", docval.Map{"active": docval.Bool(false)}).
		Delete("users/3")
}

func TestBatchAdmissionIsAllOrNothing(t *testing.T) {
	e := &MockEngine{}
	g := &MockGate{}
	p := newAdmissionProxy(t, e, g, &MockStore{})
	p.Start()
	defer p.Stop()

	o, err := fourOpBatch(p).Commit(acmeCtx())
	if err != nil {
		t.Fatal(err)
	}

	if o.Status != Committed || len(o.Writes) != 4 {
		t.Fatalf("Expected four committed writes, got %+v", o)
	}

	if g.CheckCount() != 1 || g.Costs[0] != 4 {
		t.Fatalf("Batch admission must be one check at full cost: %v", g.Costs)
	}

	calls := e.WriteCalls()
	if len(calls) != 1 || calls[0] != "batch 4" {
		t.Fatalf("Batch must delegate to the engine's native batch: %v", calls)
	}
}

func TestRejectedBatchDefersOneRecordPerOperation(t *testing.T) {
	e := &MockEngine{}
	s := &MockStore{}
	p := newAdmissionProxy(t, e, &MockGate{Limited: true}, s)
	p.Start()
	defer p.Stop()

	o, err := fourOpBatch(p).Commit(acmeCtx())
	if err != nil {
		t.Fatal(err)
	}

	if o.Status != Deferred || len(o.RecordIDs) != 4 {
		t.Fatalf("Expected four deferred records, got %+v", o)
	}

	if len(e.WriteCalls()) != 0 {
		t.Fatal("Rejected batch must not touch the engine")
	}

	if len(s.Records) != 4 {
		t.Fatalf("Expected four records in the store, got %v", len(s.Records))
	}

	wantVerbs := []OpKind{OpCreate, OpSet, OpUpdate, OpDelete}
	for i, r := range s.Records {
		if r.Operation != OpBatchMember {
			t.Fatalf("Record %v is not a batch member: %+v", i, r)
		}

		if r.Verb() != wantVerbs[i] {
			t.Fatalf("Record %v has verb %v, want %v", i, r.Verb(), wantVerbs[i])
		}

		if r.ID != o.RecordIDs[i] {
			t.Fatalf("Record IDs out of order at %v", i)
		}

		if err := r.Validate(); err != nil {
			t.Fatalf("Record %v failed validation: %v", i, err)
		}
	}

	if s.Records[1].Options == nil || !s.Records[1].Options.Merge {
		t.Fatal("Set member lost its options")
	}
}

func TestBatchCommitsOnlyOnce(t *testing.T) {
	p := newAdmissionProxy(t, &MockEngine{}, &MockGate{}, &MockStore{})
	p.Start()
	defer p.Stop()

	b := fourOpBatch(p)
	if _, err := b.Commit(acmeCtx()); err != nil {
		t.Fatal(err)
	}

	_, err := b.Commit(acmeCtx())
	if err == nil || err.(ProxyError).Reason != ER_BATCH_COMMITTED {
		t.Fatalf("Expected ER_BATCH_COMMITTED, got %v", err)
	}
}

func TestEmptyBatchCommitsWithoutAdmission(t *testing.T) {
	g := &MockGate{Limited: true}
	p := newAdmissionProxy(t, &MockEngine{}, g, &MockStore{})
	p.Start()
	defer p.Stop()

	o, err := p.Batch().Commit(acmeCtx())
	if err != nil {
		t.Fatal(err)
	}

	if o.Status != Committed || g.CheckCount() != 0 {
		t.Fatalf("Empty batch should commit trivially: %+v, checks=%v", o, g.CheckCount())
	}
}

func TestFailedBatchDelegateTriagesEachMember(t *testing.T) {
	e := &MockEngine{FailWith: errors.New("backend unavailable")}
	p := newAdmissionProxy(t, e, &MockGate{}, &MockStore{})

	dlqPaths := []string{}
	p.RegisterDLQHandler(func(err error, r *DeferredWrite) {
		dlqPaths = append(dlqPaths, r.Path)
	})

	p.Start()
	defer p.Stop()

	_, err := fourOpBatch(p).Commit(acmeCtx())
	if err == nil {
		t.Fatal("Expected the engine's batch error to surface")
	}

	if len(dlqPaths) != 4 {
		t.Fatalf("Each batch member should be triaged: %v", dlqPaths)
	}
}

func TestBatchRequiresTenant(t *testing.T) {
	p := newAdmissionProxy(t, &MockEngine{}, &MockGate{}, &MockStore{})
	p.Start()
	defer p.Stop()

	_, err := fourOpBatch(p).Commit(context.Background())
	if err == nil || err.(ProxyError).Reason != ER_NO_TENANT {
		t.Fatalf("Expected ER_NO_TENANT, got %v", err)
	}
}
