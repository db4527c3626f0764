package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("manage all files")
	assert.True(t, ok)
	assert.Equal(t, PermManageAllFiles, p)

	_, ok = ParsePermission("manage everything")
	assert.False(t, ok)

	assert.Len(t, AllPermissions(), 16)
}

func TestOracle_FlattensRoleAndGroupPermissions(t *testing.T) {
	o := NewOracle(&Principal{
		UserID:      1,
		CompanyID:   int64Ptr(10),
		Roles:       []Role{RoleCustomer},
		Permissions: []Permission{PermViewPublicFiles},
		Groups: []Group{
			{Name: "quality", IsActive: true, Permissions: []Permission{PermUploadFiles}},
			{Name: "retired", IsActive: false, Permissions: []Permission{PermDeleteFiles}},
		},
	}, DefaultOptions())

	assert.True(t, o.HasPermission(PermViewPublicFiles))
	assert.True(t, o.HasPermission(PermUploadFiles), "active group permissions are additive")
	assert.False(t, o.HasPermission(PermDeleteFiles), "inactive groups grant nothing")
	assert.True(t, o.HasAnyPermission(PermDeleteFiles, PermUploadFiles))
	assert.False(t, o.HasAnyPermission())
	assert.True(t, o.InGroup("quality"))
	assert.False(t, o.InGroup("retired"))
	assert.Equal(t, []Permission{PermUploadFiles, PermViewPublicFiles}, o.Permissions())
}

func TestOracle_HasRole(t *testing.T) {
	o := NewOracle(&Principal{CompanyID: int64Ptr(1), Roles: []Role{RoleGrower, RoleCustomer}}, DefaultOptions())

	assert.True(t, o.HasRole(RoleGrower))
	assert.True(t, o.HasRole(RoleAdmin, RoleCustomer))
	assert.False(t, o.HasRole(RoleAdmin))
	assert.False(t, o.HasRole())
	assert.Equal(t, []Role{RoleCustomer, RoleGrower}, o.Roles())
}

func TestOracle_IsSuperUser(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
		opts      Options
		want      bool
	}{
		{
			name:      "super-user role",
			principal: Principal{CompanyID: int64Ptr(1), Roles: []Role{RoleSuperUser}},
			opts:      DefaultOptions(),
			want:      true,
		},
		{
			name:      "unassigned user with legacy rule",
			principal: Principal{Roles: []Role{RoleCustomer}},
			opts:      DefaultOptions(),
			want:      true,
		},
		{
			name:      "unassigned user without legacy rule",
			principal: Principal{Roles: []Role{RoleCustomer}},
			opts:      Options{LegacyUnassignedSuperUser: false},
			want:      false,
		},
		{
			name:      "property only is assigned",
			principal: Principal{PropertyID: int64Ptr(4), Roles: []Role{RoleCustomer}},
			opts:      DefaultOptions(),
			want:      false,
		},
		{
			name:      "company admin",
			principal: Principal{CompanyID: int64Ptr(1), Roles: []Role{RoleAdmin}},
			opts:      DefaultOptions(),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.principal
			assert.Equal(t, tt.want, NewOracle(&p, tt.opts).IsSuperUser())
		})
	}
}

func TestOracle_Assignments(t *testing.T) {
	o := NewOracle(&Principal{
		CompanyID:    int64Ptr(1),
		GrowerIDs:    []int64{42, 7, 42},
		CommodityIDs: []int64{3},
	}, DefaultOptions())

	assert.Equal(t, []int64{7, 42}, o.GrowerIDs())
	assert.True(t, o.OwnsGrower(42))
	assert.False(t, o.OwnsGrower(8))
	assert.True(t, o.HoldsCommodity(3))
	assert.False(t, o.HoldsCommodity(4))

	ids := o.GrowerIDs()
	ids[0] = 999
	assert.Equal(t, []int64{7, 42}, o.GrowerIDs(), "callers get a copy")
}
