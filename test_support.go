// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
)

var mockUpdateTime = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

// MockEngine answers every write with a fixed result and records the calls
// it receives, so tests can assert exactly which operations reached the
// engine.
type MockEngine struct {
	sync.Mutex
	FailWith error
	Calls    []string
}

func (e *MockEngine) called(format string, args ...interface{}) {
	e.Lock()
	defer e.Unlock()

	e.Calls = append(e.Calls, fmt.Sprintf(format, args...))
}

func (e *MockEngine) WriteCalls() []string {
	e.Lock()
	defer e.Unlock()

	calls := make([]string, len(e.Calls))
	copy(calls, e.Calls)
	return calls
}

func (e *MockEngine) Create(ctx context.Context, collectionPath string, data docval.Map) (string, engine.WriteResult, error) {
	e.called("create %v", collectionPath)
	if e.FailWith != nil {
		return "", engine.WriteResult{}, e.FailWith
	}

	return collectionPath + "/mock-id", engine.WriteResult{UpdateTime: mockUpdateTime}, nil
}

func (e *MockEngine) Set(ctx context.Context, path string, data docval.Map, opts engine.SetOptions) (engine.WriteResult, error) {
	e.called("set %v", path)
	if e.FailWith != nil {
		return engine.WriteResult{}, e.FailWith
	}

	return engine.WriteResult{UpdateTime: mockUpdateTime}, nil
}

func (e *MockEngine) Update(ctx context.Context, path string, data docval.Map) (engine.WriteResult, error) {
	e.called("update %v", path)
	if e.FailWith != nil {
		return engine.WriteResult{}, e.FailWith
	}

	return engine.WriteResult{UpdateTime: mockUpdateTime}, nil
}

func (e *MockEngine) Delete(ctx context.Context, path string) (engine.WriteResult, error) {
	e.called("delete %v", path)
	if e.FailWith != nil {
		return engine.WriteResult{}, e.FailWith
	}

	return engine.WriteResult{UpdateTime: mockUpdateTime}, nil
}

func (e *MockEngine) Get(ctx context.Context, path string) (*engine.Snapshot, error) {
	e.called("get %v", path)
	return &engine.Snapshot{Path: path}, nil
}

func (e *MockEngine) Query(ctx context.Context, collectionPath string, pred func(*engine.Snapshot) bool) ([]*engine.Snapshot, error) {
	e.called("query %v", collectionPath)
	return nil, nil
}

func (e *MockEngine) Batch() engine.Batch {
	return &mockBatch{e: e}
}

func (e *MockEngine) RunTransaction(ctx context.Context, fn func(engine.Txn) error) error {
	e.called("transaction")
	return fn(&mockTxn{e: e})
}

type mockBatch struct {
	e   *MockEngine
	ops int
}

func (b *mockBatch) Create(collectionPath string, data docval.Map)            { b.ops++ }
func (b *mockBatch) Set(path string, data docval.Map, opts engine.SetOptions) { b.ops++ }
func (b *mockBatch) Update(path string, data docval.Map)                      { b.ops++ }
func (b *mockBatch) Delete(path string)                                       { b.ops++ }

func (b *mockBatch) Commit(ctx context.Context) ([]engine.WriteResult, error) {
	b.e.called("batch %v", b.ops)
	if b.e.FailWith != nil {
		return nil, b.e.FailWith
	}

	writes := make([]engine.WriteResult, b.ops)
	for i := range writes {
		writes[i] = engine.WriteResult{UpdateTime: mockUpdateTime}
	}
	return writes, nil
}

type mockTxn struct {
	e *MockEngine
}

func (t *mockTxn) Get(path string) (*engine.Snapshot, error) {
	t.e.called("txn get %v", path)
	return &engine.Snapshot{Path: path}, nil
}

func (t *mockTxn) Set(path string, data docval.Map, opts engine.SetOptions) error {
	t.e.called("txn set %v", path)
	return nil
}

func (t *mockTxn) Update(path string, data docval.Map) error {
	t.e.called("txn update %v", path)
	return nil
}

func (t *mockTxn) Delete(path string) error {
	t.e.called("txn delete %v", path)
	return nil
}

// MockGate serves a scripted admission decision and records every check.
type MockGate struct {
	sync.Mutex
	Limited bool
	Err     error
	Tenants []string
	Costs   []int64
}

func (g *MockGate) IsRateLimited(tenant string, cost int64) (bool, error) {
	g.Lock()
	defer g.Unlock()

	g.Tenants = append(g.Tenants, tenant)
	g.Costs = append(g.Costs, cost)
	return g.Limited, g.Err
}

func (g *MockGate) CheckCount() int {
	g.Lock()
	defer g.Unlock()

	return len(g.Tenants)
}

// MockStore is an in-memory Store with failure injection.
type MockStore struct {
	sync.Mutex
	FailWith error
	Records  []*DeferredWrite
}

func (s *MockStore) Append(r *DeferredWrite) error {
	s.Lock()
	defer s.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}

	s.Records = append(s.Records, r)
	return nil
}

func (s *MockStore) Process(handler func(*DeferredWrite) error) error {
	s.Lock()
	defer s.Unlock()

	for len(s.Records) > 0 {
		if err := handler(s.Records[0]); err != nil {
			return err
		}

		s.Records = s.Records[1:]
	}

	return nil
}

func (s *MockStore) Len() (int, error) {
	s.Lock()
	defer s.Unlock()

	return len(s.Records), nil
}

func (s *MockStore) Close() error {
	return nil
}

func ExpectingPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("Did not panic()")
		} else {
			fmt.Print(r)
		}
	}()

	f()
}
