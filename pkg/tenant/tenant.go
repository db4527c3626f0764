package tenant

import (
	"context"
	"fmt"
	"time"
)

// Status represents tenant status
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is the isolated customer context every operation is scoped to.
// It is passed explicitly; nothing in this module reads it from ambient state
// except the HTTP edge, which resolves it once per request.
type Tenant struct {
	ID       int64          `json:"id"`
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Timezone string         `json:"timezone"`
	Currency string         `json:"currency"`
	Status   Status         `json:"status"`
	Settings map[string]any `json:"settings,omitempty"`
}

// StoragePrefix is the path namespace owning all of this tenant's blobs
func (t *Tenant) StoragePrefix() string {
	return fmt.Sprintf("tenants/tenant_%d", t.ID)
}

// Location returns the tenant's configured time zone, falling back to UTC
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsActive reports whether requests may be served for this tenant
func (t *Tenant) IsActive() bool {
	return t.Status == "" || t.Status == StatusActive
}

// Validate checks that the tenant can scope data and storage
func (t *Tenant) Validate() error {
	if t == nil {
		return fmt.Errorf("tenant context is required")
	}
	if t.ID <= 0 {
		return fmt.Errorf("invalid tenant id %d", t.ID)
	}
	return nil
}

// Resolver looks up tenants
type Resolver interface {
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
}

type contextKey string

const tenantKey contextKey = "tenant"

// WithTenant stores the resolved tenant in ctx. Only the HTTP edge uses
// this; downstream code receives the tenant as a parameter.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// FromContext returns the tenant stored by the HTTP edge
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(*Tenant)
	return t, ok && t != nil
}
