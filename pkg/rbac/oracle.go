package rbac

import (
	"sort"
)

// Options tunes how principals are interpreted
type Options struct {
	// LegacyUnassignedSuperUser treats users with neither a company nor a
	// property as super-users. Kept for compatibility with existing user
	// records; see IsUnassigned.
	LegacyUnassignedSuperUser bool
}

// DefaultOptions returns the options matching existing deployments
func DefaultOptions() Options {
	return Options{LegacyUnassignedSuperUser: true}
}

// Oracle answers role, permission and group questions for one principal.
// Role and group permissions are flattened into a set at construction, so
// every query is a map lookup.
type Oracle struct {
	principal    Principal
	roles        map[Role]struct{}
	permissions  map[Permission]struct{}
	groups       map[string]struct{}
	growerIDs    []int64
	commodityIDs []int64
	opts         Options
}

// NewOracle builds an Oracle from a loaded principal
func NewOracle(p *Principal, opts Options) *Oracle {
	o := &Oracle{
		principal:    *p,
		roles:        make(map[Role]struct{}, len(p.Roles)),
		permissions:  make(map[Permission]struct{}, len(p.Permissions)),
		groups:       make(map[string]struct{}, len(p.Groups)),
		growerIDs:    sortedInt64s(p.GrowerIDs),
		commodityIDs: sortedInt64s(p.CommodityIDs),
		opts:         opts,
	}

	for _, r := range p.Roles {
		o.roles[r] = struct{}{}
	}
	for _, perm := range p.Permissions {
		o.permissions[perm] = struct{}{}
	}
	for _, g := range p.Groups {
		if !g.IsActive {
			continue
		}
		o.groups[g.Name] = struct{}{}
		for _, perm := range g.Permissions {
			o.permissions[perm] = struct{}{}
		}
	}

	return o
}

// UserID returns the principal's user id
func (o *Oracle) UserID() int64 {
	return o.principal.UserID
}

// TenantID returns the tenant the principal was loaded for
func (o *Oracle) TenantID() int64 {
	return o.principal.TenantID
}

// HasPermission reports whether the permission was granted by a role or an active group
func (o *Oracle) HasPermission(p Permission) bool {
	_, ok := o.permissions[p]
	return ok
}

// HasAnyPermission reports whether any of perms is granted
func (o *Oracle) HasAnyPermission(perms ...Permission) bool {
	for _, p := range perms {
		if o.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal holds any of roles
func (o *Oracle) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if _, ok := o.roles[r]; ok {
			return true
		}
	}
	return false
}

// InGroup reports membership of an active group
func (o *Oracle) InGroup(name string) bool {
	_, ok := o.groups[name]
	return ok
}

// IsUnassigned reports whether the user has neither a company nor a property.
// Such users are super-users when LegacyUnassignedSuperUser is enabled.
func (o *Oracle) IsUnassigned() bool {
	return o.principal.CompanyID == nil && o.principal.PropertyID == nil
}

// IsSuperUser reports full, unfiltered access
func (o *Oracle) IsSuperUser() bool {
	if o.HasRole(RoleSuperUser) {
		return true
	}
	return o.opts.LegacyUnassignedSuperUser && o.IsUnassigned()
}

// CompanyID returns the user's company, if any
func (o *Oracle) CompanyID() *int64 {
	return o.principal.CompanyID
}

// GrowerIDs returns the sorted ids of the growers the user is assigned to
func (o *Oracle) GrowerIDs() []int64 {
	return append([]int64(nil), o.growerIDs...)
}

// CommodityIDs returns the sorted ids of the commodities the user holds
func (o *Oracle) CommodityIDs() []int64 {
	return append([]int64(nil), o.commodityIDs...)
}

// OwnsGrower reports assignment to the grower
func (o *Oracle) OwnsGrower(id int64) bool {
	i := sort.Search(len(o.growerIDs), func(i int) bool { return o.growerIDs[i] >= id })
	return i < len(o.growerIDs) && o.growerIDs[i] == id
}

// HoldsCommodity reports whether the user holds the commodity
func (o *Oracle) HoldsCommodity(id int64) bool {
	i := sort.Search(len(o.commodityIDs), func(i int) bool { return o.commodityIDs[i] >= id })
	return i < len(o.commodityIDs) && o.commodityIDs[i] == id
}

// Roles returns the held roles in sorted order
func (o *Oracle) Roles() []Role {
	out := make([]Role, 0, len(o.roles))
	for r := range o.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Permissions returns the flattened permission set in sorted order
func (o *Oracle) Permissions() []Permission {
	out := make([]Permission, 0, len(o.permissions))
	for p := range o.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
