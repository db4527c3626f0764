package growers

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/audit"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// memStore evaluates filters in memory over seeded records
type memStore struct {
	growers     []*models.Grower
	fbos        []*models.Fbo
	commodities []*models.Commodity
	assigned    map[int64][]int64
	err         error
}

func (m *memStore) ListGrowers(_ context.Context, _ *tenant.Tenant, filter query.Predicate) ([]*models.Grower, error) {
	return query.Filter(filter, m.growers), nil
}

func (m *memStore) ListFbos(_ context.Context, _ *tenant.Tenant, filter query.Predicate) ([]*models.Fbo, error) {
	return query.Filter(filter, m.fbos), nil
}

func (m *memStore) ListCommodities(_ context.Context, _ *tenant.Tenant, filter query.Predicate) ([]*models.Commodity, error) {
	return query.Filter(filter, m.commodities), nil
}

func (m *memStore) number(userID int64) string {
	ids := m.assigned[userID]
	if len(ids) == 0 {
		return ""
	}
	last := ids[len(ids)-1]
	for _, g := range m.growers {
		if g.ID == last {
			return g.GrowerNumber
		}
	}
	return ""
}

func (m *memStore) Assign(_ context.Context, _ *tenant.Tenant, userID, growerID int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.assigned[userID] = append(m.assigned[userID], growerID)
	return m.number(userID), nil
}

func (m *memStore) Unassign(_ context.Context, _ *tenant.Tenant, userID, growerID int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var kept []int64
	for _, id := range m.assigned[userID] {
		if id != growerID {
			kept = append(kept, id)
		}
	}
	m.assigned[userID] = kept
	return m.number(userID), nil
}

type invalidations struct {
	users []int64
	err   error
}

func (i *invalidations) Invalidate(_ context.Context, _, userID int64) error {
	i.users = append(i.users, userID)
	return i.err
}

type events struct{ logged []*audit.Event }

func (e *events) Log(_ context.Context, event *audit.Event) error {
	e.logged = append(e.logged, event)
	return nil
}

func (e *events) Close() error { return nil }

func seeded() *memStore {
	return &memStore{
		growers: []*models.Grower{
			{ID: 42, TenantID: 1, Name: "Blue Hills", GrowerNumber: "G-042"},
			{ID: 99, TenantID: 1, Name: "Riverside", GrowerNumber: "G-099"},
			{ID: 7, TenantID: 2, Name: "Elsewhere", GrowerNumber: "G-007"},
		},
		fbos: []*models.Fbo{
			{ID: 5, TenantID: 1, Code: "P042", Type: models.FboPUC, IsActive: true, GrowerIDs: []int64{42}},
			{ID: 6, TenantID: 1, Code: "P099", Type: models.FboPUC, IsActive: true, GrowerIDs: []int64{99}},
			{ID: 8, TenantID: 1, Code: "H042", Type: models.FboPHC, IsActive: false, GrowerIDs: []int64{42}},
		},
		commodities: []*models.Commodity{
			{ID: 11, TenantID: 1, Name: "Citrus", IsActive: true},
			{ID: 12, TenantID: 1, Name: "Grapes", IsActive: true},
		},
		assigned: map[int64][]int64{},
	}
}

func oracle(id int64, roles []rbac.Role, perms []rbac.Permission, growers ...int64) *rbac.Oracle {
	company := int64(100)
	return rbac.NewOracle(&rbac.Principal{
		UserID:       id,
		TenantID:     1,
		CompanyID:    &company,
		Roles:        roles,
		Permissions:  perms,
		GrowerIDs:    growers,
		CommodityIDs: []int64{12},
	}, rbac.DefaultOptions())
}

var acmeAdmin = oracle(1, []rbac.Role{rbac.RoleAdmin}, []rbac.Permission{
	rbac.PermManageAllGrowers, rbac.PermManageAllFbos, rbac.PermEditCommodities,
})

var acmeGrower = oracle(2, []rbac.Role{rbac.RoleGrower}, []rbac.Permission{
	rbac.PermViewGrowers, rbac.PermViewFbos, rbac.PermViewCommodities,
}, 42)

func newService(store *memStore, opts ...Option) *Service {
	return NewService(store, access.NewBuilder(access.DefaultConfig(), nil), opts...)
}

func TestService_Visibility(t *testing.T) {
	svc := newService(seeded())
	ctx := context.Background()

	growers, err := svc.Growers(ctx, acme, acmeAdmin)
	require.NoError(t, err)
	assert.Len(t, growers, 2, "other tenants' growers are never visible")

	growers, err = svc.Growers(ctx, acme, acmeGrower)
	require.NoError(t, err)
	require.Len(t, growers, 1)
	assert.Equal(t, int64(42), growers[0].ID)

	fbos, err := svc.Fbos(ctx, acme, acmeAdmin)
	require.NoError(t, err)
	assert.Len(t, fbos, 3, "administrators see inactive FBOs too")

	fbos, err = svc.Fbos(ctx, acme, acmeGrower)
	require.NoError(t, err)
	require.Len(t, fbos, 1, "growers see only their own active FBOs")
	assert.Equal(t, "P042", fbos[0].Code)

	commodities, err := svc.Commodities(ctx, acme, acmeGrower)
	require.NoError(t, err)
	require.Len(t, commodities, 1)
	assert.Equal(t, "Grapes", commodities[0].Name)

	none := oracle(3, nil, nil)
	growers, err = svc.Growers(ctx, acme, none)
	require.NoError(t, err)
	assert.Empty(t, growers)
}

func TestService_AssignAndUnassign(t *testing.T) {
	store := seeded()
	inv := &invalidations{}
	log := &events{}
	svc := newService(store, WithInvalidator(inv), WithActivityLogger(log))
	ctx := context.Background()

	number, err := svc.Assign(ctx, acme, acmeAdmin, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, "G-042", number)

	number, err = svc.Assign(ctx, acme, acmeAdmin, 5, 99)
	require.NoError(t, err)
	assert.Equal(t, "G-099", number, "the latest assignment is authoritative")

	number, err = svc.Unassign(ctx, acme, acmeAdmin, 5, 99)
	require.NoError(t, err)
	assert.Equal(t, "G-042", number)

	assert.Equal(t, []int64{5, 5, 5}, inv.users)
	require.Len(t, log.logged, 3)
	assert.Equal(t, audit.EventTypeGrowerAssign, log.logged[0].EventType)
	assert.Equal(t, audit.EventTypeGrowerUnassign, log.logged[2].EventType)
	assert.Equal(t, []int64{99}, log.logged[2].ResourceIDs)
	assert.Equal(t, int64(5), log.logged[2].Metadata["user_id"])
	assert.Equal(t, "G-042", log.logged[2].Metadata["grower_number"])
}

func TestService_AssignRequiresManagePermission(t *testing.T) {
	store := seeded()
	svc := newService(store)

	_, err := svc.Assign(context.Background(), acme, acmeGrower, 5, 42)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorizationDenied))
	_, err = svc.Unassign(context.Background(), acme, acmeGrower, 5, 42)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorizationDenied))
	assert.Empty(t, store.assigned[5])
}

func TestService_AssignStoreFailure(t *testing.T) {
	store := seeded()
	store.err = apperrors.NotFound("growers.Assign", "grower")
	log := &events{}
	svc := newService(store, WithActivityLogger(log))

	_, err := svc.Assign(context.Background(), acme, acmeAdmin, 5, 1000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, log.logged, "failed assignments are not recorded")
}

func TestService_InvalidationFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	inv := &invalidations{err: errors.New("redis down")}
	svc := newService(seeded(), WithInvalidator(inv), WithLogger(logger))

	_, err := svc.Assign(context.Background(), acme, acmeAdmin, 5, 42)
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Failed to invalidate cached principal", hook.LastEntry().Message)
}
