// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"sync"
)

// ConfigPersister is an interface that persists configs and notifies a
// channel of changes.
type ConfigPersister interface {
	// PersistAndNotify persists a configuration passed in.
	PersistAndNotify(cfg *ServiceConfig) error
	// ConfigChangedWatcher returns a channel that is notified whenever
	// configuration changes are detected. Changes are coalesced so that a
	// single notification may be emitted for multiple changes.
	ConfigChangedWatcher() <-chan struct{}
	// ReadPersistedConfig provides a config previously persisted.
	ReadPersistedConfig() (*ServiceConfig, error)
}

// MemoryConfigPersister keeps configs in memory.
type MemoryConfigPersister struct {
	cfg *ServiceConfig
	*Notifier
	*sync.RWMutex
}

func NewMemoryConfigPersister() *MemoryConfigPersister {
	p := &MemoryConfigPersister{
		cfg:      NewDefaultServiceConfig(),
		Notifier: NewNotifier(),
		RWMutex:  &sync.RWMutex{}}

	p.Notify()
	return p
}

func (m *MemoryConfigPersister) PersistAndNotify(cfg *ServiceConfig) error {
	m.Lock()
	m.cfg = CloneConfig(cfg)
	m.Unlock()

	// ... and notify
	m.Notify()
	return nil
}

func (m *MemoryConfigPersister) ReadPersistedConfig() (*ServiceConfig, error) {
	m.RLock()
	defer m.RUnlock()

	return CloneConfig(m.cfg), nil
}

func (m *MemoryConfigPersister) ConfigChangedWatcher() <-chan struct{} {
	return m.Notifier.Watcher
}

// DiskConfigPersister saves configs to the local filesystem as YAML.
type DiskConfigPersister struct {
	location string
	*Notifier
}

// NewDiskConfigPersister creates a new DiskConfigPersister
func NewDiskConfigPersister(location string) (*DiskConfigPersister, error) {
	_, e := os.Stat(location)
	// This will catch nonexistent paths, as well as passing in a directory
	// instead of a file. Nonexistent files in an existing path, however, is
	// allowed.
	if e != nil && !os.IsNotExist(e) {
		return nil, e
	}

	return &DiskConfigPersister{location, NewNotifier()}, nil
}

func (d *DiskConfigPersister) PersistAndNotify(cfg *ServiceConfig) error {
	r, err := Marshal(cfg)
	if err != nil {
		return err
	}

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(d.location, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return err
	}

	if _, err = f.Write(b); err != nil {
		f.Close()
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	// ... and notify
	d.Notify()
	return nil
}

func (d *DiskConfigPersister) ReadPersistedConfig() (*ServiceConfig, error) {
	b, err := ioutil.ReadFile(d.location)
	if err != nil {
		return nil, err
	}

	return Unmarshal(bytes.NewReader(b))
}

func (d *DiskConfigPersister) ConfigChangedWatcher() <-chan struct{} {
	return d.Notifier.Watcher
}
