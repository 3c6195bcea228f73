// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"
	"sync"
	"testing"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
	"github.com/square/writeproxy/engine/memory"
)

func TestRunTransactionReadModifyWrite(t *testing.T) {
	p, err := New(memory.New(), Config{Mode: PassThrough})
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	ctx := context.Background()
	if _, err := p.Set(ctx, "counters/c", docval.Map{"n": docval.Int(1)}, engine.SetOptions{}); err != nil {
		t.Fatal(err)
	}

	doc := p.Doc("counters/c")
	err = p.RunTransaction(ctx, func(txn *Transaction) error {
		snap, err := txn.Get(doc)
		if err != nil {
			return err
		}

		n := snap.Data["n"].Int()
		return txn.Update(doc, docval.Map{"n": docval.Int(n + 1)})
	})
	if err != nil {
		t.Fatal("Transaction failed:", err)
	}

	snap, err := p.Get(ctx, "counters/c")
	if err != nil {
		t.Fatal(err)
	}

	if got := snap.Data["n"].Int(); got != 2 {
		t.Fatalf("Expected counter 2, got %v", got)
	}
}

// Ten concurrent conditional updates racing on the same document must leave
// it at the largest value, with every transaction either observing the
// condition or retrying.
func TestConcurrentConditionalTransactions(t *testing.T) {
	p, err := New(memory.New(), Config{Mode: PassThrough})
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	ctx := context.Background()
	if _, err := p.Set(ctx, "users/1", docval.Map{"status": docval.Int(0)}, engine.SetOptions{}); err != nil {
		t.Fatal(err)
	}

	doc := p.Doc("users/1")
	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(target int64) {
			defer wg.Done()

			errs <- p.RunTransaction(ctx, func(txn *Transaction) error {
				snap, err := txn.Get(doc)
				if err != nil {
					return err
				}

				if snap.Data["status"].Int() >= target {
					return nil
				}

				return txn.Update(doc, docval.Map{"status": docval.Int(target)})
			})
		}(int64(i))
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal("Transaction failed:", err)
		}
	}

	snap, err := p.Get(ctx, "users/1")
	if err != nil {
		t.Fatal(err)
	}

	if got := snap.Data["status"].Int(); got != 10 {
		t.Fatalf("Expected final status 10, got %v", got)
	}
}

func TestTransactionAbortPropagatesError(t *testing.T) {
	p, err := New(memory.New(), Config{Mode: PassThrough})
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	ctx := context.Background()
	if _, err := p.Set(ctx, "users/1", docval.Map{"a": docval.Int(1)}, engine.SetOptions{}); err != nil {
		t.Fatal(err)
	}

	abort := newError("nope", ER_BAD_RECORD)
	doc := p.Doc("users/1")
	err = p.RunTransaction(ctx, func(txn *Transaction) error {
		if err := txn.Delete(doc); err != nil {
			return err
		}

		return abort
	})
	if err != abort {
		t.Fatalf("Expected the abort error back, got %v", err)
	}

	snap, err := p.Get(ctx, "users/1")
	if err != nil {
		t.Fatal(err)
	}

	if !snap.Exists {
		t.Fatal("Aborted transaction must not apply buffered writes")
	}
}
