package capability

import (
	"context"
	"fmt"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Action names a per-record capability
type Action string

const (
	ActionView           Action = "view"
	ActionDownload       Action = "download"
	ActionUpload         Action = "upload"
	ActionEdit           Action = "edit"
	ActionDelete         Action = "delete"
	ActionRestore        Action = "restore"
	ActionForceDelete    Action = "force_delete"
	ActionReplaceContent Action = "replace_content"
)

// Checker answers per-record questions over already-loaded files. The
// checks are pure; only Check and Authorize record metrics.
type Checker struct {
	builder *access.Builder
	metrics *observability.Metrics
}

// NewChecker creates a new Checker. metrics may be nil.
func NewChecker(builder *access.Builder, metrics *observability.Metrics) *Checker {
	if builder == nil {
		builder = access.NewBuilder(access.DefaultConfig(), nil)
	}
	return &Checker{builder: builder, metrics: metrics}
}

func isOwner(o *rbac.Oracle, f *models.File) bool {
	return f.UploadedBy == o.UserID()
}

func isAdministrator(o *rbac.Oracle) bool {
	return o.IsSuperUser() || o.HasRole(rbac.RoleAdmin, rbac.RoleSuperUser)
}

func inTenant(tc *tenant.Tenant, f *models.File) bool {
	return tc != nil && f != nil && f.TenantID == tc.ID
}

// CanView reports whether o may see f. Inactive files are never visible
// through this check.
func (c *Checker) CanView(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	if !inTenant(tc, f) || !f.IsActive {
		return false
	}
	if o.HasPermission(rbac.PermManageAllFiles) || isOwner(o, f) {
		return true
	}
	return query.Matches(c.builder.Files(tc, o), f)
}

// CanDownload is CanView
func (c *Checker) CanDownload(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	return c.CanView(tc, o, f)
}

// CanUpload reports whether o may create files at all
func (c *Checker) CanUpload(o *rbac.Oracle) bool {
	return o.HasPermission(rbac.PermUploadFiles)
}

// CanEdit reports whether o may change f's metadata. Inactive files stay
// editable so they can be reactivated.
func (c *Checker) CanEdit(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	if !inTenant(tc, f) {
		return false
	}
	if o.HasPermission(rbac.PermEditFiles) && isAdministrator(o) {
		return true
	}
	if isOwner(o, f) && o.HasPermission(rbac.PermEditOwnFiles) {
		return true
	}
	if o.HasPermission(rbac.PermEditFilesByGrower) {
		if id, ok := f.GrowerID(); ok && o.OwnsGrower(id) {
			return true
		}
	}
	return false
}

// CanDelete reports whether o may move f to the trash
func (c *Checker) CanDelete(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	if !inTenant(tc, f) {
		return false
	}
	if o.HasPermission(rbac.PermDeleteFiles) {
		return true
	}
	return isOwner(o, f) && o.HasPermission(rbac.PermDeleteOwnFiles)
}

// CanRestore reports whether o may bring f back from the trash. Whoever
// could trash it may restore it.
func (c *Checker) CanRestore(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	return f != nil && f.IsTrashed() && c.CanDelete(tc, o, f)
}

// CanForceDelete reports whether o may purge f permanently
func (c *Checker) CanForceDelete(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	return inTenant(tc, f) && o.HasPermission(rbac.PermDeleteFiles) && isAdministrator(o)
}

// CanReplaceContent reports whether o may swap f's stored bytes. Replacement
// is accepted up to storage.MaxReplaceSize.
func (c *Checker) CanReplaceContent(tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	return inTenant(tc, f) && o.HasPermission(rbac.PermEditFiles) && isAdministrator(o)
}

// Allowed evaluates action against f. ActionUpload ignores f.
func (c *Checker) Allowed(action Action, tc *tenant.Tenant, o *rbac.Oracle, f *models.File) (bool, error) {
	switch action {
	case ActionView:
		return c.CanView(tc, o, f), nil
	case ActionDownload:
		return c.CanDownload(tc, o, f), nil
	case ActionUpload:
		return c.CanUpload(o), nil
	case ActionEdit:
		return c.CanEdit(tc, o, f), nil
	case ActionDelete:
		return c.CanDelete(tc, o, f), nil
	case ActionRestore:
		return c.CanRestore(tc, o, f), nil
	case ActionForceDelete:
		return c.CanForceDelete(tc, o, f), nil
	case ActionReplaceContent:
		return c.CanReplaceContent(tc, o, f), nil
	}
	return false, fmt.Errorf("unknown action %q", action)
}

// Check evaluates action and records the decision
func (c *Checker) Check(ctx context.Context, action Action, tc *tenant.Tenant, o *rbac.Oracle, f *models.File) bool {
	allowed, err := c.Allowed(action, tc, o, f)
	if err != nil {
		allowed = false
	}
	c.metrics.RecordAccessDecision(ctx, string(action), allowed)
	return allowed
}

// Authorize turns a negative decision into an AuthorizationDenied error
func (c *Checker) Authorize(ctx context.Context, action Action, tc *tenant.Tenant, o *rbac.Oracle, f *models.File) error {
	allowed, err := c.Allowed(action, tc, o, f)
	if err != nil {
		return apperrors.Internal("capability.Authorize", err)
	}
	c.metrics.RecordAccessDecision(ctx, string(action), allowed)
	if !allowed {
		return apperrors.Denied("capability.Authorize", fmt.Sprintf("you may not %s this file", humanize(action)))
	}
	return nil
}

func humanize(a Action) string {
	switch a {
	case ActionForceDelete:
		return "permanently delete"
	case ActionReplaceContent:
		return "replace the content of"
	}
	return string(a)
}
