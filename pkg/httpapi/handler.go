package httpapi

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/documents"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Documents is the part of documents.Service the HTTP edge serves
type Documents interface {
	List(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, opts documents.ListOptions) ([]*models.File, error)
	Get(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, error)
	Download(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, []byte, error)
	Trash(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error
	Restore(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error
	ForceDelete(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error
}

// Options configures the HTTP edge
type Options struct {
	// HideForbidden answers denied requests with 404 so that callers
	// cannot probe for records they may not see
	HideForbidden bool

	// Metrics instruments every matched route when set
	Metrics *observability.Metrics

	// Catalog serves the grower, FBO and commodity routes when set
	Catalog Catalog

	// FileTypes serves the file type routes when set
	FileTypes FileTypes

	// Usage serves the storage usage route when set
	Usage UsageReporter
}

// Handler serves files and documents under /tenants/{tenant}/{kind}
type Handler struct {
	docs       Documents
	tenants    tenant.Resolver
	auth       Authenticator
	principals PrincipalResolver
	logger     logrus.FieldLogger
	opts       Options
}

// NewHandler creates a new Handler
func NewHandler(docs Documents, tenants tenant.Resolver, auth Authenticator, principals PrincipalResolver, logger logrus.FieldLogger, opts Options) *Handler {
	return &Handler{
		docs:       docs,
		tenants:    tenants,
		auth:       auth,
		principals: principals,
		logger:     logger,
		opts:       opts,
	}
}

// Router returns a router with every route registered
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the asset routes on router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Use(requestIDMiddleware, h.recoveryMiddleware)
	if h.opts.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(h.opts.Metrics, routeTemplate))
	}

	sub := router.PathPrefix("/tenants/{tenant}").Subrouter()
	sub.Use(h.tenantMiddleware, h.authMiddleware)

	sub.HandleFunc("/{kind:files|documents}", h.List).Methods("GET")
	sub.HandleFunc("/{kind:files|documents}", h.ForceDelete).Methods("DELETE")
	sub.HandleFunc("/{kind:files|documents}/trash", h.Trash).Methods("POST")
	sub.HandleFunc("/{kind:files|documents}/restore", h.Restore).Methods("POST")
	sub.HandleFunc("/{kind:files|documents}/{id:[0-9]+}", h.Get).Methods("GET")
	sub.HandleFunc("/{kind:files|documents}/{id:[0-9]+}/download", h.Download).Methods("GET")

	if h.opts.Catalog != nil {
		h.registerCatalog(sub)
	}
	if h.opts.FileTypes != nil {
		h.registerFileTypes(sub)
	}
	if h.opts.Usage != nil {
		h.registerUsage(sub)
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// request carries what the middleware resolved for a handler
type request struct {
	tenant *tenant.Tenant
	oracle *rbac.Oracle
	kind   models.AssetKind
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) (request, bool) {
	kind, err := models.ParseAssetKind(mux.Vars(r)["kind"])
	if err != nil {
		writeMessage(w, r, http.StatusNotFound, "unknown collection")
		return request{}, false
	}
	tc, _ := tenant.FromContext(r.Context())
	return request{tenant: tc, oracle: oracleFrom(r.Context()), kind: kind}, true
}

// ListResponse is the body of a listing
type ListResponse struct {
	Items  []*models.File `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// List handles GET /tenants/{tenant}/{kind}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.docs.List(r.Context(), req.tenant, req.oracle, req.kind, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.File{}
	}

	opts, _ = opts.Normalize()
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Limit: opts.Limit, Offset: opts.Offset})
}

// listOptions reads scope, sort, desc, limit, offset and q
func listOptions(r *http.Request) (documents.ListOptions, error) {
	const op = "httpapi.List"
	q := r.URL.Query()
	opts := documents.ListOptions{
		Scope:  documents.Scope(q.Get("scope")),
		SortBy: q.Get("sort"),
		Search: q.Get("q"),
	}

	if v := q.Get("desc"); v != "" {
		desc, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apperrors.Validation(op, "desc", "desc must be true or false")
		}
		opts.Desc = desc
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperrors.Validation(op, name, name+" must be a non-negative integer")
		}
		*dst = n
	}
	return opts, nil
}

func pathID(r *http.Request) int64 {
	// the route pattern only matches digits
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// Get handles GET /tenants/{tenant}/{kind}/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	f, err := h.docs.Get(r.Context(), req.tenant, req.oracle, req.kind, pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Download handles GET /tenants/{tenant}/{kind}/{id}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	f, data, err := h.docs.Download(r.Context(), req.tenant, req.oracle, req.kind, pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalFilename}); disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BulkRequest names the records of a trash, restore or force-delete
type BulkRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, apply func(context.Context, *tenant.Tenant, *rbac.Oracle, models.AssetKind, ...int64) error) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	var body BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, apperrors.Validation("httpapi.bulk", "body", "request body must be a JSON object with ids"))
		return
	}
	if len(body.IDs) == 0 {
		h.writeError(w, r, apperrors.Validation("httpapi.bulk", "ids", "at least one id is required"))
		return
	}

	if err := apply(r.Context(), req.tenant, req.oracle, req.kind, body.IDs...); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trash handles POST /tenants/{tenant}/{kind}/trash
func (h *Handler) Trash(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.docs.Trash)
}

// Restore handles POST /tenants/{tenant}/{kind}/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.docs.Restore)
}

// ForceDelete handles DELETE /tenants/{tenant}/{kind}
func (h *Handler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.docs.ForceDelete)
}
