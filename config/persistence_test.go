// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForNotification(t *testing.T, watcher <-chan struct{}) {
	select {
	case <-watcher:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for config change notification")
	}
}

func TestMemoryPersister(t *testing.T) {
	p := NewMemoryConfigPersister()

	// A new persister announces its initial config.
	waitForNotification(t, p.ConfigChangedWatcher())

	cfg := NewDefaultServiceConfig()
	cfg.Version = 9
	if err := p.PersistAndNotify(cfg); err != nil {
		t.Fatal(err)
	}

	waitForNotification(t, p.ConfigChangedWatcher())

	read, err := p.ReadPersistedConfig()
	if err != nil {
		t.Fatal(err)
	}

	if read.Version != 9 {
		t.Fatalf("Read back version %v, want 9", read.Version)
	}

	// The persister hands out copies, not its own state.
	read.Version = 123
	again, _ := p.ReadPersistedConfig()
	if again.Version != 9 {
		t.Fatal("ReadPersistedConfig leaked internal state")
	}
}

func TestDiskPersister(t *testing.T) {
	dir, err := ioutil.TempDir("", "writeproxy-config")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	location := filepath.Join(dir, "config.yaml")
	p, err := NewDiskConfigPersister(location)
	if err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultServiceConfig()
	cfg.Version = 4
	cfg.Tenants["vip"] = &BucketConfig{Size: 5000, FillRate: 100, MaxIdleMillis: -1}
	if err := p.PersistAndNotify(cfg); err != nil {
		t.Fatal(err)
	}

	waitForNotification(t, p.ConfigChangedWatcher())

	read, err := p.ReadPersistedConfig()
	if err != nil {
		t.Fatal(err)
	}

	if read.Version != 4 || read.Tenants["vip"].Size != 5000 {
		t.Fatalf("Read back wrong config: %+v", read)
	}

	// A fresh persister at the same location sees the same config.
	p2, err := NewDiskConfigPersister(location)
	if err != nil {
		t.Fatal(err)
	}

	read, err = p2.ReadPersistedConfig()
	if err != nil {
		t.Fatal(err)
	}

	if read.Version != 4 {
		t.Fatalf("Second persister read version %v, want 4", read.Version)
	}
}

func TestDiskPersisterRejectsBadLocation(t *testing.T) {
	if _, err := NewDiskConfigPersister(string([]byte{0})); err == nil {
		t.Fatal("Expected an error for an invalid location")
	}
}

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()

	n.Notify()
	n.Notify()
	n.Notify()

	<-n.Watcher

	select {
	case <-n.Watcher:
		t.Fatal("Notifications should coalesce to one")
	default:
	}
}
