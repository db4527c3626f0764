package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/documents"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// mockDocuments is a mock implementation of Documents for testing
type mockDocuments struct {
	listFunc     func(kind models.AssetKind, opts documents.ListOptions) ([]*models.File, error)
	getFunc      func(kind models.AssetKind, id int64) (*models.File, error)
	downloadFunc func(kind models.AssetKind, id int64) (*models.File, []byte, error)
	bulkErr      error

	lastOracle *rbac.Oracle
	lastTenant *tenant.Tenant
	bulkCalls  map[string][]int64
}

func (m *mockDocuments) seen(tc *tenant.Tenant, o *rbac.Oracle) {
	m.lastTenant = tc
	m.lastOracle = o
}

func (m *mockDocuments) List(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, opts documents.ListOptions) ([]*models.File, error) {
	m.seen(tc, o)
	if m.listFunc != nil {
		return m.listFunc(kind, opts)
	}
	return nil, nil
}

func (m *mockDocuments) Get(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, error) {
	m.seen(tc, o)
	if m.getFunc != nil {
		return m.getFunc(kind, id)
	}
	return &models.File{Kind: kind, ID: id}, nil
}

func (m *mockDocuments) Download(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, []byte, error) {
	m.seen(tc, o)
	return m.downloadFunc(kind, id)
}

func (m *mockDocuments) record(op string, kind models.AssetKind, ids []int64) error {
	if m.bulkCalls == nil {
		m.bulkCalls = make(map[string][]int64)
	}
	m.bulkCalls[op+":"+string(kind)] = ids
	return m.bulkErr
}

func (m *mockDocuments) Trash(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	m.seen(tc, o)
	return m.record("trash", kind, ids)
}

func (m *mockDocuments) Restore(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	m.seen(tc, o)
	return m.record("restore", kind, ids)
}

func (m *mockDocuments) ForceDelete(_ context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	m.seen(tc, o)
	return m.record("force", kind, ids)
}

type mockTenants map[string]*tenant.Tenant

func (m mockTenants) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	for _, t := range m {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperrors.NotFound("tenant.Get", "tenant")
}

func (m mockTenants) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	if t, ok := m[slug]; ok {
		return t, nil
	}
	return nil, apperrors.NotFound("tenant.Get", "tenant")
}

// mockPrincipals knows user 5 in tenant 1
type mockPrincipals struct{}

func (mockPrincipals) Resolve(_ context.Context, tenantID, userID int64) (*rbac.Oracle, error) {
	if tenantID != 1 || userID != 5 {
		return nil, apperrors.NotFound("rbac.LoadPrincipal", "user")
	}
	p := &rbac.Principal{UserID: userID, TenantID: tenantID, Permissions: []rbac.Permission{rbac.PermViewFiles}}
	return rbac.NewOracle(p, rbac.DefaultOptions()), nil
}

var testTenants = mockTenants{
	"acme":    {ID: 1, Slug: "acme", Status: tenant.StatusActive},
	"dormant": {ID: 2, Slug: "dormant", Status: tenant.StatusSuspended},
}

func setupHandler(t *testing.T, docs *mockDocuments, opts Options) http.Handler {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	h := NewHandler(docs, testTenants, HeaderAuthenticator{}, mockPrincipals{}, logger, opts)
	return h.Router()
}

func do(router http.Handler, method, path string, body []byte, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandler_List(t *testing.T) {
	var got documents.ListOptions
	docs := &mockDocuments{
		listFunc: func(kind models.AssetKind, opts documents.ListOptions) ([]*models.File, error) {
			assert.Equal(t, models.KindDocument, kind)
			got = opts
			return []*models.File{{Kind: kind, ID: 3, Title: "Audit"}}, nil
		},
	}
	router := setupHandler(t, docs, Options{})

	rec := do(router, "GET", "/tenants/acme/documents?scope=trashed&sort=title&desc=true&limit=10&offset=20&q=audit", nil, "5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.Equal(t, documents.ListOptions{
		Scope: documents.ScopeTrashed, SortBy: "title", Desc: true, Limit: 10, Offset: 20, Search: "audit",
	}, got)
	assert.Equal(t, int64(1), docs.lastTenant.ID)
	assert.Equal(t, int64(5), docs.lastOracle.UserID())

	var resp ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Audit", resp.Items[0].Title)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 20, resp.Offset)
}

func TestHandler_ListEmpty(t *testing.T) {
	router := setupHandler(t, &mockDocuments{}, Options{})

	rec := do(router, "GET", "/tenants/acme/files", nil, "5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"limit":50,"offset":0}`, rec.Body.String())
}

func TestHandler_ListInvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		rule  string
	}{
		{name: "negative limit", query: "limit=-1", rule: "limit"},
		{name: "bad offset", query: "offset=abc", rule: "offset"},
		{name: "bad desc", query: "desc=maybe", rule: "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupHandler(t, &mockDocuments{}, Options{})
			rec := do(router, "GET", "/tenants/acme/files?"+tt.query, nil, "5")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.rule, decodeError(t, rec).Rule)
		})
	}
}

func TestHandler_TenantAndAuthentication(t *testing.T) {
	tests := []struct {
		name string
		path string
		user string
		want int
	}{
		{name: "unknown tenant", path: "/tenants/nobody/files", user: "5", want: http.StatusNotFound},
		{name: "suspended tenant", path: "/tenants/dormant/files", user: "5", want: http.StatusNotFound},
		{name: "no credentials", path: "/tenants/acme/files", user: "", want: http.StatusUnauthorized},
		{name: "malformed user id", path: "/tenants/acme/files", user: "five", want: http.StatusUnauthorized},
		{name: "user outside tenant", path: "/tenants/acme/files", user: "6", want: http.StatusForbidden},
		{name: "unknown collection", path: "/tenants/acme/invoices", user: "5", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupHandler(t, &mockDocuments{}, Options{})
			rec := do(router, "GET", tt.path, nil, tt.user)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandler_GetDenied(t *testing.T) {
	docs := &mockDocuments{
		getFunc: func(models.AssetKind, int64) (*models.File, error) {
			return nil, apperrors.Denied("documents.Get", "you may not view this file")
		},
	}

	rec := do(setupHandler(t, docs, Options{}), "GET", "/tenants/acme/files/9", nil, "5")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "you may not view this file", decodeError(t, rec).Error)

	rec = do(setupHandler(t, docs, Options{HideForbidden: true}), "GET", "/tenants/acme/files/9", nil, "5")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "view this file")
}

func TestHandler_Get(t *testing.T) {
	docs := &mockDocuments{}
	rec := do(setupHandler(t, docs, Options{}), "GET", "/tenants/acme/files/9", nil, "5")
	require.Equal(t, http.StatusOK, rec.Code)

	var f models.File
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&f))
	assert.Equal(t, int64(9), f.ID)
	assert.Equal(t, models.KindFile, f.Kind)
}

func TestHandler_InternalErrorHidesCause(t *testing.T) {
	docs := &mockDocuments{
		getFunc: func(models.AssetKind, int64) (*models.File, error) {
			return nil, errors.New("pq: connection refused to 10.0.0.3")
		},
	}

	req := httptest.NewRequest("GET", "/tenants/acme/files/9", nil)
	req.Header.Set("X-User-ID", "5")
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	setupHandler(t, docs, Options{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	resp := decodeError(t, rec)
	assert.Equal(t, "req-123", resp.RequestID)
	assert.NotContains(t, resp.Error, "10.0.0.3")
}

func TestHandler_Download(t *testing.T) {
	docs := &mockDocuments{
		downloadFunc: func(kind models.AssetKind, id int64) (*models.File, []byte, error) {
			return &models.File{Kind: kind, ID: id, OriginalFilename: "spray record.pdf", MimeType: "application/pdf"}, []byte("%PDF-1.7"), nil
		},
	}

	rec := do(setupHandler(t, docs, Options{}), "GET", "/tenants/acme/documents/4/download", nil, "5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="spray record.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
}

func TestHandler_Bulk(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		op     string
	}{
		{name: "trash", method: "POST", path: "/tenants/acme/files/trash", op: "trash:file"},
		{name: "restore", method: "POST", path: "/tenants/acme/documents/restore", op: "restore:document"},
		{name: "force delete", method: "DELETE", path: "/tenants/acme/files", op: "force:file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := &mockDocuments{}
			rec := do(setupHandler(t, docs, Options{}), tt.method, tt.path, []byte(`{"ids":[3,4]}`), "5")
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, []int64{3, 4}, docs.bulkCalls[tt.op])
		})
	}
}

func TestHandler_BulkRejected(t *testing.T) {
	t.Run("no ids", func(t *testing.T) {
		docs := &mockDocuments{}
		rec := do(setupHandler(t, docs, Options{}), "POST", "/tenants/acme/files/trash", []byte(`{"ids":[]}`), "5")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "ids", decodeError(t, rec).Rule)
		assert.Empty(t, docs.bulkCalls)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(setupHandler(t, &mockDocuments{}, Options{}), "POST", "/tenants/acme/files/trash", []byte(`[1,2]`), "5")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "body", decodeError(t, rec).Rule)
	})

	t.Run("restore of live record", func(t *testing.T) {
		docs := &mockDocuments{bulkErr: apperrors.Validation("documents.Restore", "not_trashed", "only trashed files can be restored")}
		rec := do(setupHandler(t, docs, Options{}), "POST", "/tenants/acme/files/restore", []byte(`{"ids":[3]}`), "5")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "not_trashed", decodeError(t, rec).Rule)
	})
}

func TestHandler_RecoversPanic(t *testing.T) {
	docs := &mockDocuments{
		getFunc: func(models.AssetKind, int64) (*models.File, error) {
			panic("boom")
		},
	}

	rec := do(setupHandler(t, docs, Options{}), "GET", "/tenants/acme/files/1", nil, "5")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Metrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router := setupHandler(t, &mockDocuments{}, Options{Metrics: metrics})

	do(router, "GET", "/tenants/acme/files", nil, "5")
	do(router, "GET", "/tenants/acme/documents", nil, "5")

	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/tenants/{tenant}/{kind:files|documents}", "200")))
}

func TestHeaderAuthenticator(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-User", "12")

	id, err := HeaderAuthenticator{Header: "X-Forwarded-User"}.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = HeaderAuthenticator{}.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
