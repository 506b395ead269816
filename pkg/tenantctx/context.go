package tenantctx

import "context"

type keyType string

const tenantIDKey keyType = "tenant_id"

// WithTenantID annotates ctx with the acting tenant.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantID returns the tenant id carried by ctx, if any.
func TenantID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantIDKey).(string)
	return id, ok && id != ""
}
