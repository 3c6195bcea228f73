// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package disk

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/square/writeproxy"
	"github.com/square/writeproxy/docval"
)

func journalLocation(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "writeproxy-journal")
	if err != nil {
		t.Fatal(err)
	}

	return filepath.Join(dir, "deferred.jsonl"), func() { os.RemoveAll(dir) }
}

func record(path string) *writeproxy.DeferredWrite {
	return writeproxy.NewDeferredWrite("acme", writeproxy.OpUpdate, path, docval.Map{"a": docval.Int(1)}, nil)
}

func TestJournalSurvivesReopen(t *testing.T) {
	location, cleanup := journalLocation(t)
	defer cleanup()

	s, err := New(location)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Append(record(fmt.Sprintf("users/%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// A new store over the same file sees everything.
	s, err = New(location)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if n, _ := s.Len(); n != 3 {
		t.Fatalf("Expected 3 records after reopen, got %v", n)
	}

	var paths []string
	err = s.Process(func(r *writeproxy.DeferredWrite) error {
		paths = append(paths, r.Path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) != 3 || paths[0] != "users/0" || paths[2] != "users/2" {
		t.Fatalf("Drain order wrong: %v", paths)
	}

	if n, _ := s.Len(); n != 0 {
		t.Fatalf("Journal should be empty after a full drain, %v left", n)
	}
}

func TestFailedRecordStaysInJournal(t *testing.T) {
	location, cleanup := journalLocation(t)
	defer cleanup()

	s, err := New(location)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		_ = s.Append(record(fmt.Sprintf("users/%d", i)))
	}

	boom := errors.New("replay failed")
	err = s.Process(func(r *writeproxy.DeferredWrite) error {
		if r.Path == "users/1" {
			return boom
		}
		return nil
	})
	if err != boom {
		t.Fatalf("Expected the handler error back, got %v", err)
	}

	if n, _ := s.Len(); n != 2 {
		t.Fatalf("Failed record and successors should stay, got %v", n)
	}

	// The journal keeps accepting appends after a partial drain.
	if err := s.Append(record("users/9")); err != nil {
		t.Fatal(err)
	}

	var paths []string
	_ = s.Process(func(r *writeproxy.DeferredWrite) error {
		paths = append(paths, r.Path)
		return nil
	})

	want := []string{"users/1", "users/2", "users/9"}
	if len(paths) != 3 {
		t.Fatalf("Drain after partial failure wrong: %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("Drain after partial failure wrong at %v: %v", i, paths)
		}
	}
}

func TestJournalIgnoresBlankLines(t *testing.T) {
	location, cleanup := journalLocation(t)
	defer cleanup()

	s, err := New(location)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Append(record("users/1")); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(location, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("\n\n")
	f.Close()

	if n, _ := s.Len(); n != 1 {
		t.Fatalf("Blank lines must not count as records: %v", n)
	}
}

func TestCorruptJournalSurfacesError(t *testing.T) {
	location, cleanup := journalLocation(t)
	defer cleanup()

	if err := ioutil.WriteFile(location, []byte("not json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := New(location)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Len(); err == nil {
		t.Fatal("Expected an error for a corrupt journal")
	}
}
