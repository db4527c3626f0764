package rbac

import (
	"sort"
)

// Permission is a named capability granted through roles or user groups.
// The set is closed: strings loaded from storage that do not parse are ignored.
type Permission string

const (
	PermManageAllFiles    Permission = "manage all files"
	PermViewFiles         Permission = "view files"
	PermViewFilesByGrower Permission = "view files by grower"
	PermViewPublicFiles   Permission = "view public files"
	PermUploadFiles       Permission = "upload files"
	PermEditFiles         Permission = "edit files"
	PermEditOwnFiles      Permission = "edit own files"
	PermEditFilesByGrower Permission = "edit files by grower"
	PermDeleteFiles       Permission = "delete files"
	PermDeleteOwnFiles    Permission = "delete own files"

	PermManageAllGrowers Permission = "manage all growers"
	PermViewGrowers      Permission = "view growers"

	PermManageAllFbos Permission = "manage all fbos"
	PermViewFbos      Permission = "view fbos"

	PermEditCommodities Permission = "edit commodities"
	PermViewCommodities Permission = "view commodities"
)

var allPermissions = []Permission{
	PermManageAllFiles,
	PermViewFiles,
	PermViewFilesByGrower,
	PermViewPublicFiles,
	PermUploadFiles,
	PermEditFiles,
	PermEditOwnFiles,
	PermEditFilesByGrower,
	PermDeleteFiles,
	PermDeleteOwnFiles,
	PermManageAllGrowers,
	PermViewGrowers,
	PermManageAllFbos,
	PermViewFbos,
	PermEditCommodities,
	PermViewCommodities,
}

var permissionIndex = func() map[string]Permission {
	m := make(map[string]Permission, len(allPermissions))
	for _, p := range allPermissions {
		m[string(p)] = p
	}
	return m
}()

// AllPermissions returns every known permission
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission resolves a stored permission name
func ParsePermission(name string) (Permission, bool) {
	p, ok := permissionIndex[name]
	return p, ok
}

// Role is a named role held by a user
type Role string

// Built-in role names
const (
	RoleSuperUser Role = "super-user"
	RoleAdmin     Role = "admin"
	RoleGrower    Role = "grower"
	RoleCustomer  Role = "customer"
)

// Group is a user group, an additive access channel alongside roles
type Group struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	IsActive    bool         `json:"is_active"`
	Permissions []Permission `json:"permissions"`
}

// Principal is the authorization-relevant view of a user, loaded once per request
type Principal struct {
	UserID       int64        `json:"user_id"`
	TenantID     int64        `json:"tenant_id"`
	CompanyID    *int64       `json:"company_id,omitempty"`
	PropertyID   *int64       `json:"property_id,omitempty"`
	Roles        []Role       `json:"roles"`
	Permissions  []Permission `json:"permissions"` // direct role permissions
	Groups       []Group      `json:"groups"`
	GrowerIDs    []int64      `json:"grower_ids"`
	CommodityIDs []int64      `json:"commodity_ids"`
	GrowerNumber string       `json:"grower_number,omitempty"`
}

// sortedInt64s returns a sorted, de-duplicated copy of ids
func sortedInt64s(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
