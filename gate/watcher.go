// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package gate

import (
	"github.com/square/writeproxy/config"
	"github.com/square/writeproxy/logging"
)

// Updatable is a gate whose limits can be replaced at runtime.
type Updatable interface {
	Gate
	Update(cfg *config.ServiceConfig)
}

// ConfigWatcher drives persisted configuration changes into a gate. It runs
// out of band with the write path: an admin persists a new config through a
// ConfigPersister, the watcher picks up the change notification and swaps
// the gate's limits.
type ConfigWatcher struct {
	persister config.ConfigPersister
	gate      Updatable
	shutdown  chan struct{}
	done      chan struct{}
}

func NewConfigWatcher(persister config.ConfigPersister, gate Updatable) *ConfigWatcher {
	return &ConfigWatcher{
		persister: persister,
		gate:      gate,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{})}
}

// Reload reads the persisted config and applies it to the gate. A read
// failure leaves the gate's current limits in place.
func (w *ConfigWatcher) Reload() error {
	cfg, err := w.persister.ReadPersistedConfig()
	if err != nil {
		return err
	}

	w.gate.Update(cfg)
	return nil
}

// Start applies the currently persisted config, then follows change
// notifications in a background goroutine.
func (w *ConfigWatcher) Start() {
	if err := w.Reload(); err != nil {
		logging.Println("error reading persisted config", err)
	}

	go func() {
		defer close(w.done)

		ch := w.persister.ConfigChangedWatcher()
		for {
			select {
			case <-ch:
				if err := w.Reload(); err != nil {
					logging.Println("error reading persisted config", err)
				}
			case <-w.shutdown:
				logging.Println("Received shutdown signal, shutting down config watcher")
				return
			}
		}
	}()
}

// Stop terminates the notification loop and waits for it to exit.
func (w *ConfigWatcher) Stop() {
	close(w.shutdown)
	<-w.done
}
