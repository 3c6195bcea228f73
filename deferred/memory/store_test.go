// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package memory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/square/writeproxy"
	"github.com/square/writeproxy/docval"
)

func record(path string) *writeproxy.DeferredWrite {
	return writeproxy.NewDeferredWrite("acme", writeproxy.OpSet, path, docval.Map{"a": docval.Int(1)}, nil)
}

func TestProcessDrainsInSubmissionOrder(t *testing.T) {
	s := New()

	for i := 0; i < 5; i++ {
		if err := s.Append(record(fmt.Sprintf("users/%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := s.Len(); n != 5 {
		t.Fatalf("Expected 5 records, got %v", n)
	}

	var paths []string
	err := s.Process(func(r *writeproxy.DeferredWrite) error {
		paths = append(paths, r.Path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range paths {
		if want := fmt.Sprintf("users/%d", i); p != want {
			t.Fatalf("Drain order wrong at %v: %v", i, paths)
		}
	}

	if n, _ := s.Len(); n != 0 {
		t.Fatalf("Processed records should be removed, %v left", n)
	}
}

func TestHandlerErrorStopsDrainAndKeepsRecord(t *testing.T) {
	s := New()

	for i := 0; i < 3; i++ {
		_ = s.Append(record(fmt.Sprintf("users/%d", i)))
	}

	boom := errors.New("replay failed")
	calls := 0
	err := s.Process(func(r *writeproxy.DeferredWrite) error {
		calls++
		if r.Path == "users/1" {
			return boom
		}
		return nil
	})
	if err != boom {
		t.Fatalf("Expected the handler error back, got %v", err)
	}

	if calls != 2 {
		t.Fatalf("Drain should stop at the failing record, made %v calls", calls)
	}

	// The failed record and everything after it stay parked.
	if n, _ := s.Len(); n != 2 {
		t.Fatalf("Expected 2 parked records, got %v", n)
	}

	// A later drain retries the same record first.
	var first string
	_ = s.Process(func(r *writeproxy.DeferredWrite) error {
		if first == "" {
			first = r.Path
		}
		return nil
	})

	if first != "users/1" {
		t.Fatalf("Retry should start at the failed record, got %v", first)
	}
}

func TestAppendValidates(t *testing.T) {
	s := New()

	bad := record("users/1")
	bad.Operation = writeproxy.OpKind("bogus")
	if err := s.Append(bad); err == nil {
		t.Fatal("Malformed record accepted")
	}

	if n, _ := s.Len(); n != 0 {
		t.Fatal("Rejected record was stored")
	}
}
