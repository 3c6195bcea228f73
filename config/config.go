// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package config implements configs for the write proxy and its admission
// gates.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

const (
	// DefaultTenantName identifies the shared bucket used for tenants beyond
	// the dynamic-tenant cap.
	DefaultTenantName = "___DEFAULT_TENANT___"
	initialVersion    = 0
)

// ServiceConfig is the tuning surface for a proxy deployment. Tenant buckets
// are created on demand from DynamicTenantTemplate; named entries in Tenants
// override the template for specific customers.
type ServiceConfig struct {
	Version               int                      `yaml:"version"`
	User                  string                   `yaml:"user,omitempty"`
	Date                  int64                    `yaml:"date,omitempty"`
	DynamicTenantTemplate *BucketConfig            `yaml:"dynamic_tenant_template,omitempty"`
	Tenants               map[string]*BucketConfig `yaml:"tenants,omitempty"`
	MaxDynamicTenants     int32                    `yaml:"max_dynamic_tenants,omitempty"`
	EventQueueBufSize     int                      `yaml:"event_queue_buf_size,omitempty"`
}

// BucketConfig configures one tenant's token bucket.
type BucketConfig struct {
	// Size is the maximum number of tokens the bucket accumulates.
	Size int64 `yaml:"size,omitempty"`
	// FillRate is tokens per second.
	FillRate int64 `yaml:"fill_rate,omitempty"`
	// MaxIdleMillis is how long an untouched dynamic bucket survives before
	// being reaped. Negative disables reaping.
	MaxIdleMillis int64 `yaml:"max_idle_millis,omitempty"`
}

func NewDefaultServiceConfig() *ServiceConfig {
	sc := &ServiceConfig{
		Version: initialVersion,
		Tenants: make(map[string]*BucketConfig)}
	ApplyDefaults(sc)
	return sc
}

func NewDefaultBucketConfig() *BucketConfig {
	b := &BucketConfig{}
	ApplyBucketDefaults(b)
	return b
}

func ApplyDefaults(sc *ServiceConfig) {
	if sc.DynamicTenantTemplate == nil {
		sc.DynamicTenantTemplate = NewDefaultBucketConfig()
	} else {
		ApplyBucketDefaults(sc.DynamicTenantTemplate)
	}

	if sc.Tenants == nil {
		sc.Tenants = make(map[string]*BucketConfig)
	}

	for _, b := range sc.Tenants {
		ApplyBucketDefaults(b)
	}

	if sc.EventQueueBufSize == 0 {
		sc.EventQueueBufSize = 100
	}
}

func ApplyBucketDefaults(b *BucketConfig) {
	if b.Size == 0 {
		b.Size = 100
	}

	if b.FillRate == 0 {
		b.FillRate = 50
	}

	if b.MaxIdleMillis == 0 {
		b.MaxIdleMillis = -1
	}
}

// TenantBucket resolves the bucket config for a tenant, falling back to the
// dynamic template.
func (sc *ServiceConfig) TenantBucket(tenant string) *BucketConfig {
	if b, exists := sc.Tenants[tenant]; exists {
		return b
	}
	return sc.DynamicTenantTemplate
}

func Marshal(sc *ServiceConfig) (io.Reader, error) {
	b, err := yaml.Marshal(sc)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(b), nil
}

func Unmarshal(r io.Reader) (*ServiceConfig, error) {
	if r == nil {
		return nil, errors.New("config: nil reader")
	}

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	sc := &ServiceConfig{}
	if err := yaml.Unmarshal(b, sc); err != nil {
		return nil, fmt.Errorf("config: cannot unmarshal: %v", err)
	}

	ApplyDefaults(sc)
	return sc, nil
}

// CloneConfig deep-copies a ServiceConfig.
func CloneConfig(sc *ServiceConfig) *ServiceConfig {
	if sc == nil {
		return nil
	}

	c := *sc
	if sc.DynamicTenantTemplate != nil {
		t := *sc.DynamicTenantTemplate
		c.DynamicTenantTemplate = &t
	}

	c.Tenants = make(map[string]*BucketConfig, len(sc.Tenants))
	for name, b := range sc.Tenants {
		cb := *b
		c.Tenants[name] = &cb
	}

	return &c
}
