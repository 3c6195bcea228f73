// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import "context"

type tenantKeyType struct{}

var tenantKey tenantKeyType

// WithTenant returns a context carrying the tenant identity all admission
// checks and deferred records for requests under it will use. Tenant
// identity is request-scoped on purpose: a proxy instance is shared across
// concurrent callers and holds no tenant state of its own.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFromContext extracts the tenant set by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(tenantKey).(string)
	return tenant, ok && tenant != ""
}
