package filetypes

import (
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
)

// roleAttributes maps the roles that unlock an attribute-restricted type
var roleAttributes = []struct {
	role rbac.Role
	attr models.AttributeType
}{
	{rbac.RoleGrower, models.AttributeGrower},
	{rbac.RoleCustomer, models.AttributeCustomer},
	{rbac.RoleAdmin, models.AttributeAdmin},
	{rbac.RoleSuperUser, models.AttributeSuperUser},
}

// Resolver decides file type visibility from the type's attribute_type and
// the roles the user holds. Attribute gating wins over any broader grant;
// only "manage all files" (or a super-user) sees every type.
type Resolver struct{}

// NewResolver creates a Resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Unrestricted reports whether o sees every file type
func (r *Resolver) Unrestricted(o *rbac.Oracle) bool {
	return o.IsSuperUser() || o.HasPermission(rbac.PermManageAllFiles)
}

// VisibleAttributes returns the attribute types unlocked by o's roles
func (r *Resolver) VisibleAttributes(o *rbac.Oracle) []string {
	var out []string
	for _, ra := range roleAttributes {
		if o.HasRole(ra.role) {
			out = append(out, string(ra.attr))
		}
	}
	return out
}

// VisibilityPredicate matches the file types o may see. It is evaluated
// against FileType records (fields attribute_type, name, parent_id).
func (r *Resolver) VisibilityPredicate(o *rbac.Oracle) query.Predicate {
	if r.Unrestricted(o) {
		return query.True
	}
	return query.Or(
		query.IsNull{Field: "attribute_type"},
		query.Eq{Field: "attribute_type", Value: string(models.AttributeNone)},
		query.StringIn("attribute_type", r.VisibleAttributes(o)),
	)
}

// IsVisible checks a single file type, e.g. a file_type_id chosen on upload.
// It applies exactly the predicate used for listings.
func (r *Resolver) IsVisible(ft *models.FileType, o *rbac.Oracle) bool {
	if ft == nil {
		return false
	}
	return query.Matches(r.VisibilityPredicate(o), ft)
}

// Selector names a set of file types by attribute type and/or explicit name
type Selector struct {
	AttributeTypes []models.AttributeType `yaml:"attribute_types" json:"attribute_types"`
	Names          []string               `yaml:"names" json:"names"`
}

// IsEmpty reports a selector matching nothing
func (s Selector) IsEmpty() bool {
	return len(s.AttributeTypes) == 0 && len(s.Names) == 0
}

// Predicate matches FileType records selected by s. An empty selector is False.
func (s Selector) Predicate() query.Predicate {
	attrs := make([]string, len(s.AttributeTypes))
	for i, a := range s.AttributeTypes {
		attrs[i] = string(a)
	}
	return query.Or(
		query.StringIn("attribute_type", attrs),
		query.StringIn("name", s.Names),
	)
}

// Matches checks a single file type against s
func (s Selector) Matches(ft *models.FileType) bool {
	if ft == nil {
		return false
	}
	return query.Matches(s.Predicate(), ft)
}
