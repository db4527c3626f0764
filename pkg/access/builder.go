package access

import (
	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Config selects the file types that drive the grower and customer branches
type Config struct {
	// GrowerRestricted are the types only their own grower may see
	GrowerRestricted filetypes.Selector `yaml:"grower_restricted_file_types"`
	// CustomerExcluded are the types hidden from the customer branch
	CustomerExcluded filetypes.Selector `yaml:"customer_excluded_file_types"`
}

// DefaultConfig restricts grower-attribute types in both directions
func DefaultConfig() Config {
	grower := filetypes.Selector{AttributeTypes: []models.AttributeType{models.AttributeGrower}}
	return Config{
		GrowerRestricted: grower,
		CustomerExcluded: grower,
	}
}

// Builder computes the visibility predicate of each entity kind for a user.
// Grants are OR-ed; tenant scope and active state are AND-ed on top. A user
// with no applicable grant gets query.False, never an open filter.
type Builder struct {
	cfg   Config
	types *filetypes.Resolver
}

// NewBuilder creates a Builder
func NewBuilder(cfg Config, types *filetypes.Resolver) *Builder {
	if types == nil {
		types = filetypes.NewResolver()
	}
	return &Builder{cfg: cfg, types: types}
}

// Config returns the builder's configuration
func (b *Builder) Config() Config {
	return b.cfg
}

func tenantScope(tc *tenant.Tenant) query.Predicate {
	return query.Eq{Field: "tenant_id", Value: tc.ID}
}

// has folds a relation filter whose inner predicate can never match
func has(relation string, where query.Predicate) query.Predicate {
	if query.IsFalse(where) {
		return query.False
	}
	return query.Has{Relation: relation, Where: where}
}

func growerIDStrings(o *rbac.Oracle) []string {
	ids := o.GrowerIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = query.FormatID(id)
	}
	return out
}

// Files returns the predicate over File records (files or documents) the
// user may list.
func (b *Builder) Files(tc *tenant.Tenant, o *rbac.Oracle) query.Predicate {
	scope := query.And(tenantScope(tc), query.Eq{Field: "is_active", Value: true})
	if o.IsSuperUser() || o.HasPermission(rbac.PermManageAllFiles) {
		return scope
	}

	myGrowers := growerIDStrings(o)
	ownGrowerMetadata := query.JSONStringIn("metadata", "grower_id", myGrowers)
	growerRestricted := has("file_type", b.cfg.GrowerRestricted.Predicate())
	heldCommodity := has("commodities", query.Int64In("id", o.CommodityIDs()))
	typeVisible := b.fileTypeVisible(o)

	var grants []query.Predicate

	if o.HasRole(rbac.RoleGrower) && o.HasPermission(rbac.PermViewFilesByGrower) {
		grants = append(grants, query.And(ownGrowerMetadata, growerRestricted))
	}
	if o.HasRole(rbac.RoleCustomer) {
		grants = append(grants, query.And(
			query.Eq{Field: "is_public", Value: false},
			heldCommodity,
			query.Not(has("file_type", b.cfg.CustomerExcluded.Predicate())),
			typeVisible,
		))
	}
	if o.HasPermission(rbac.PermViewPublicFiles) {
		grants = append(grants, query.And(
			query.Eq{Field: "is_public", Value: true},
			heldCommodity,
			typeVisible,
		))
	}
	if o.HasPermission(rbac.PermViewFiles) {
		grants = append(grants, query.Eq{Field: "uploaded_by", Value: o.UserID()})
	}

	union := query.Or(grants...)
	if query.IsFalse(union) {
		return query.False
	}

	if o.HasRole(rbac.RoleGrower) {
		// Another grower's restricted files stay hidden whichever branch matched
		union = query.And(union, query.Or(query.Not(growerRestricted), ownGrowerMetadata))
	}

	return query.And(scope, union)
}

// fileTypeVisible matches files without a type or whose type o may see
func (b *Builder) fileTypeVisible(o *rbac.Oracle) query.Predicate {
	visible := b.types.VisibilityPredicate(o)
	if query.IsTrue(visible) {
		return query.True
	}
	return query.Or(query.IsNull{Field: "file_type_id"}, has("file_type", visible))
}

// Growers returns the predicate over Grower records
func (b *Builder) Growers(tc *tenant.Tenant, o *rbac.Oracle) query.Predicate {
	switch {
	case o.IsSuperUser() || o.HasPermission(rbac.PermManageAllGrowers):
		return tenantScope(tc)
	case o.HasPermission(rbac.PermViewGrowers):
		return query.And(tenantScope(tc), query.Int64In("id", o.GrowerIDs()))
	}
	return query.False
}

// Fbos returns the predicate over Fbo records. Growers only see the FBOs
// of their own growers; the unrestricted branch includes inactive FBOs.
func (b *Builder) Fbos(tc *tenant.Tenant, o *rbac.Oracle) query.Predicate {
	switch {
	case o.IsSuperUser() || o.HasPermission(rbac.PermManageAllFbos):
		return tenantScope(tc)
	case o.HasRole(rbac.RoleGrower) && o.HasPermission(rbac.PermViewFbos):
		return query.And(
			tenantScope(tc),
			has("growers", query.Int64In("id", o.GrowerIDs())),
			query.Eq{Field: "is_active", Value: true},
		)
	}
	return query.False
}

// Commodities returns the predicate over Commodity records
func (b *Builder) Commodities(tc *tenant.Tenant, o *rbac.Oracle) query.Predicate {
	switch {
	case o.IsSuperUser() || o.HasPermission(rbac.PermEditCommodities):
		return tenantScope(tc)
	case o.HasPermission(rbac.PermViewCommodities):
		return query.And(tenantScope(tc), query.Int64In("id", o.CommodityIDs()))
	}
	return query.False
}

// FileTypes returns the predicate over FileType records, either top-level
// types or sub-types.
func (b *Builder) FileTypes(tc *tenant.Tenant, o *rbac.Oracle, topLevel bool) query.Predicate {
	var level query.Predicate = query.IsNull{Field: "parent_id"}
	if !topLevel {
		level = query.Not(level)
	}
	return query.And(tenantScope(tc), level, b.types.VisibilityPredicate(o))
}
