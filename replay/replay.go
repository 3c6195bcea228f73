// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package replay drains deferred write stores back into the engine. It runs
// out of band with the write path: the proxy parks records, a Replayer
// applies them later through the proxy's Apply callback.
package replay

import (
	"context"
	"time"

	"github.com/square/writeproxy"
	"github.com/square/writeproxy/logging"
)

// Applier executes one deferred record. *writeproxy.Proxy implements this
// with its Apply method.
type Applier interface {
	Apply(ctx context.Context, r *writeproxy.DeferredWrite) error
}

// Replayer periodically drains a deferred store. Delivery is at least once;
// a record whose apply fails stays parked for the next pass.
type Replayer struct {
	store    writeproxy.Store
	applier  Applier
	interval time.Duration
	shutdown chan struct{}
	done     chan struct{}
}

func New(store writeproxy.Store, applier Applier, interval time.Duration) *Replayer {
	return &Replayer{
		store:    store,
		applier:  applier,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{})}
}

// Drain performs one replay pass, applying parked records in submission
// order until the store is empty or an apply fails.
func (r *Replayer) Drain(ctx context.Context) error {
	return r.store.Process(func(record *writeproxy.DeferredWrite) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		return r.applier.Apply(ctx, record)
	})
}

// Start begins periodic draining in a background goroutine.
func (r *Replayer) Start() {
	go func() {
		defer close(r.done)

		for {
			select {
			case <-time.After(r.interval):
				if err := r.Drain(context.Background()); err != nil {
					logging.Printf("Replay pass stopped early: %v", err)
				}
			case <-r.shutdown:
				logging.Println("Received shutdown signal, shutting down replayer")
				return
			}
		}
	}()
}

// Stop terminates periodic draining and waits for the current pass to end.
func (r *Replayer) Stop() {
	close(r.shutdown)
	<-r.done
}
