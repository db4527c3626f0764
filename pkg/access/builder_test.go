package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

var (
	acme  = &tenant.Tenant{ID: 1, Slug: "acme"}
	other = &tenant.Tenant{ID: 2, Slug: "other"}

	growerType   = &models.FileType{ID: 1, TenantID: 1, Name: "Spray diary", AttributeType: models.AttributeGrower}
	customerType = &models.FileType{ID: 2, TenantID: 1, Name: "Certificate", AttributeType: models.AttributeCustomer}
	openType     = &models.FileType{ID: 3, TenantID: 1, Name: "General", AttributeType: models.AttributeNone}

	avocado = models.Commodity{ID: 8, TenantID: 1, Name: "Avocado", IsActive: true}
	citrus  = models.Commodity{ID: 9, TenantID: 1, Name: "Citrus", IsActive: true}
)

type userSpec struct {
	id          int64
	roles       []rbac.Role
	perms       []rbac.Permission
	growers     []int64
	commodities []int64
	unassigned  bool
}

func newOracle(u userSpec) *rbac.Oracle {
	p := &rbac.Principal{
		UserID:       u.id,
		TenantID:     1,
		Roles:        u.roles,
		Permissions:  u.perms,
		GrowerIDs:    u.growers,
		CommodityIDs: u.commodities,
	}
	if !u.unassigned {
		company := int64(100)
		p.CompanyID = &company
	}
	return rbac.NewOracle(p, rbac.DefaultOptions())
}

type fileOpt func(*models.File)

func withGrower(id int64) fileOpt {
	return func(f *models.File) { f.Metadata.GrowerID = &id }
}

func withType(ft *models.FileType) fileOpt {
	return func(f *models.File) {
		f.FileType = ft
		f.FileTypeID = &ft.ID
	}
}

func withCommodities(cs ...models.Commodity) fileOpt {
	return func(f *models.File) { f.Commodities = cs }
}

func public(f *models.File)   { f.IsPublic = true }
func inactive(f *models.File) { f.IsActive = false }

func uploadedBy(id int64) fileOpt {
	return func(f *models.File) { f.UploadedBy = id }
}

func inTenant(id int64) fileOpt {
	return func(f *models.File) { f.TenantID = id }
}

func newFile(id int64, opts ...fileOpt) *models.File {
	f := &models.File{Kind: models.KindFile, ID: id, TenantID: 1, Title: "file", IsActive: true, UploadedBy: 999}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func visibleIDs(p query.Predicate, files []*models.File) []int64 {
	var ids []int64
	for _, f := range query.Filter(p, files) {
		ids = append(ids, f.ID)
	}
	return ids
}

func TestFiles_EndToEndGrowerScenario(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	u := newOracle(userSpec{
		id:          5,
		roles:       []rbac.Role{rbac.RoleGrower},
		perms:       []rbac.Permission{rbac.PermViewFilesByGrower},
		growers:     []int64{42},
		commodities: []int64{8},
	})

	files := []*models.File{
		newFile(1, withGrower(42), withType(growerType)),
		newFile(2, withGrower(99), withType(growerType)),
		newFile(3, public, withCommodities(avocado), withType(customerType)),
	}

	assert.Equal(t, []int64{1}, visibleIDs(b.Files(acme, u), files))
}

func TestFiles_ManageAllFilesSeesEveryActiveFile(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	admin := newOracle(userSpec{id: 1, roles: []rbac.Role{rbac.RoleAdmin}, perms: []rbac.Permission{rbac.PermManageAllFiles}})

	files := []*models.File{
		newFile(1, withGrower(42), withType(growerType)),
		newFile(2, public, withType(customerType)),
		newFile(3, uploadedBy(77)),
		newFile(4, inactive),
		newFile(5, inTenant(2)),
	}

	assert.Equal(t, []int64{1, 2, 3}, visibleIDs(b.Files(acme, admin), files))
}

func TestFiles_SuperUserBypassesFilters(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)

	for name, o := range map[string]*rbac.Oracle{
		"role":              newOracle(userSpec{id: 1, roles: []rbac.Role{rbac.RoleSuperUser}}),
		"legacy unassigned": newOracle(userSpec{id: 1, unassigned: true}),
	} {
		t.Run(name, func(t *testing.T) {
			p := b.Files(acme, o)
			assert.Equal(t, query.And(query.Eq{Field: "tenant_id", Value: int64(1)}, query.Eq{Field: "is_active", Value: true}), p)
		})
	}
}

func TestFiles_GrowerIsolation(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	u := newOracle(userSpec{
		id:          5,
		roles:       []rbac.Role{rbac.RoleGrower},
		perms:       []rbac.Permission{rbac.PermViewFilesByGrower, rbac.PermViewPublicFiles, rbac.PermViewFiles},
		growers:     []int64{1},
		commodities: []int64{8},
	})

	files := []*models.File{
		newFile(1, withGrower(1), withType(growerType)),
		// Public, shared commodity, but another grower's restricted file
		newFile(2, public, withGrower(2), withType(growerType), withCommodities(avocado)),
		// Uploaded by the user, still another grower's restricted file
		newFile(3, uploadedBy(5), withGrower(2), withType(growerType)),
		// Public and unrestricted
		newFile(4, public, withType(openType), withCommodities(avocado)),
		// Public grower file of the user's own grower
		newFile(5, public, withGrower(1), withType(growerType), withCommodities(avocado)),
	}

	assert.Equal(t, []int64{1, 4, 5}, visibleIDs(b.Files(acme, u), files))
}

func TestFiles_CustomerExclusion(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	u := newOracle(userSpec{
		id:          6,
		roles:       []rbac.Role{rbac.RoleCustomer, rbac.RoleGrower},
		commodities: []int64{8},
	})

	files := []*models.File{
		newFile(1, withType(growerType), withCommodities(avocado)),
		newFile(2, withType(customerType), withCommodities(avocado)),
		newFile(3, withCommodities(avocado)),
		newFile(4, withType(customerType), withCommodities(citrus)),
		newFile(5, public, withType(customerType), withCommodities(avocado)),
	}

	assert.Equal(t, []int64{2, 3}, visibleIDs(b.Files(acme, u), files))
}

func TestFiles_CustomerExclusionByName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CustomerExcluded = filetypes.Selector{Names: []string{"Certificate"}}
	b := NewBuilder(cfg, nil)
	u := newOracle(userSpec{id: 6, roles: []rbac.Role{rbac.RoleCustomer}, commodities: []int64{8}})

	files := []*models.File{
		newFile(1, withType(customerType), withCommodities(avocado)),
		newFile(2, withType(openType), withCommodities(avocado)),
	}

	assert.Equal(t, []int64{2}, visibleIDs(b.Files(acme, u), files))
}

func TestFiles_CustomerBranchRespectsTypeVisibility(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CustomerExcluded = filetypes.Selector{}
	b := NewBuilder(cfg, nil)
	u := newOracle(userSpec{id: 6, roles: []rbac.Role{rbac.RoleCustomer}, commodities: []int64{8}})

	// Nothing is excluded, but grower types are still invisible to a customer
	files := []*models.File{newFile(1, withType(growerType), withCommodities(avocado))}
	assert.Empty(t, visibleIDs(b.Files(acme, u), files))
}

func TestFiles_PublicAndOwnerBranches(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	u := newOracle(userSpec{
		id:          7,
		perms:       []rbac.Permission{rbac.PermViewPublicFiles, rbac.PermViewFiles},
		commodities: []int64{9},
	})

	files := []*models.File{
		newFile(1, public, withCommodities(citrus)),
		newFile(2, public, withCommodities(avocado)),
		newFile(3, withCommodities(citrus)),
		newFile(4, uploadedBy(7)),
		newFile(5, uploadedBy(7), inactive),
		newFile(6, public, withCommodities(citrus), inTenant(2)),
	}

	assert.Equal(t, []int64{1, 4}, visibleIDs(b.Files(acme, u), files))
	assert.Equal(t, []int64{6}, visibleIDs(b.Files(other, u), files))
}

func TestFiles_EmptyGrantShortCircuit(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)

	tests := []struct {
		name string
		user userSpec
	}{
		{name: "no permissions", user: userSpec{id: 1}},
		{name: "grower role without view files by grower", user: userSpec{id: 1, roles: []rbac.Role{rbac.RoleGrower}, growers: []int64{1}}},
		{name: "public permission without commodities", user: userSpec{id: 1, perms: []rbac.Permission{rbac.PermViewPublicFiles}}},
		{name: "customer without commodities", user: userSpec{id: 1, roles: []rbac.Role{rbac.RoleCustomer}}},
		{
			name: "grower branch without assignments",
			user: userSpec{id: 1, roles: []rbac.Role{rbac.RoleGrower}, perms: []rbac.Permission{rbac.PermViewFilesByGrower}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := b.Files(acme, newOracle(tt.user))
			assert.True(t, query.IsFalse(p), "expected False, got %#v", p)
		})
	}
}

func TestFiles_EmptyGrowerSelectorDisablesGrowerBranch(t *testing.T) {
	cfg := Config{}
	b := NewBuilder(cfg, nil)
	u := newOracle(userSpec{id: 5, roles: []rbac.Role{rbac.RoleGrower}, perms: []rbac.Permission{rbac.PermViewFilesByGrower}, growers: []int64{42}})

	assert.True(t, query.IsFalse(b.Files(acme, u)))
}

func TestFileTypes_AttributePrecedence(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	sub := &models.FileType{ID: 4, TenantID: 1, Name: "Spray diary: chemicals", ParentID: &growerType.ID, AttributeType: models.AttributeNone}
	types := []*models.FileType{growerType, customerType, openType, sub}

	admin := newOracle(userSpec{id: 1, roles: []rbac.Role{rbac.RoleAdmin}})
	assert.Equal(t, []*models.FileType{openType}, query.Filter(b.FileTypes(acme, admin, true), types))
	assert.Equal(t, []*models.FileType{sub}, query.Filter(b.FileTypes(acme, admin, false), types))

	manager := newOracle(userSpec{id: 1, roles: []rbac.Role{rbac.RoleAdmin}, perms: []rbac.Permission{rbac.PermManageAllFiles}})
	assert.Equal(t, []*models.FileType{growerType, customerType, openType}, query.Filter(b.FileTypes(acme, manager, true), types))

	assert.Empty(t, query.Filter(b.FileTypes(other, manager, true), types))
}

func TestGrowers(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	growers := []*models.Grower{{ID: 1, TenantID: 1}, {ID: 2, TenantID: 1}, {ID: 3, TenantID: 2}}

	manager := newOracle(userSpec{id: 1, perms: []rbac.Permission{rbac.PermManageAllGrowers}})
	assert.Len(t, query.Filter(b.Growers(acme, manager), growers), 2)

	viewer := newOracle(userSpec{id: 1, perms: []rbac.Permission{rbac.PermViewGrowers}, growers: []int64{2, 3}})
	got := query.Filter(b.Growers(acme, viewer), growers)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	assert.True(t, query.IsFalse(b.Growers(acme, newOracle(userSpec{id: 1}))))
}

func TestFbos(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	fbos := []*models.Fbo{
		{ID: 1, TenantID: 1, Code: "PUC1", Type: models.FboPUC, IsActive: true, GrowerIDs: []int64{42}},
		{ID: 2, TenantID: 1, Code: "PHC2", Type: models.FboPHC, IsActive: true, GrowerIDs: []int64{99}},
		{ID: 3, TenantID: 1, Code: "PUC3", Type: models.FboPUC, IsActive: false, GrowerIDs: []int64{42}},
	}

	admin := newOracle(userSpec{id: 1, roles: []rbac.Role{rbac.RoleAdmin}, perms: []rbac.Permission{rbac.PermManageAllFbos}})
	assert.Len(t, query.Filter(b.Fbos(acme, admin), fbos), 3, "the unrestricted branch includes inactive FBOs")

	grower := newOracle(userSpec{id: 2, roles: []rbac.Role{rbac.RoleGrower}, perms: []rbac.Permission{rbac.PermViewFbos}, growers: []int64{42}})
	got := query.Filter(b.Fbos(acme, grower), fbos)
	assert.Len(t, got, 1)
	assert.Equal(t, "PUC1", got[0].Code)

	// view fbos without the grower role grants nothing
	viewer := newOracle(userSpec{id: 3, perms: []rbac.Permission{rbac.PermViewFbos}, growers: []int64{42}})
	assert.True(t, query.IsFalse(b.Fbos(acme, viewer)))
}

func TestCommodities(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	commodities := []*models.Commodity{&avocado, &citrus}

	editor := newOracle(userSpec{id: 1, perms: []rbac.Permission{rbac.PermEditCommodities}})
	assert.Len(t, query.Filter(b.Commodities(acme, editor), commodities), 2)

	viewer := newOracle(userSpec{id: 1, perms: []rbac.Permission{rbac.PermViewCommodities}, commodities: []int64{9}})
	got := query.Filter(b.Commodities(acme, viewer), commodities)
	assert.Len(t, got, 1)
	assert.Equal(t, "Citrus", got[0].Name)

	assert.True(t, query.IsFalse(b.Commodities(acme, newOracle(userSpec{id: 1}))))
}
