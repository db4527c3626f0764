package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Catalog is the part of growers.Service the HTTP edge serves
type Catalog interface {
	Growers(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Grower, error)
	Fbos(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Fbo, error)
	Commodities(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Commodity, error)
	Assign(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, userID, growerID int64) (string, error)
	Unassign(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, userID, growerID int64) (string, error)
}

func (h *Handler) registerCatalog(sub *mux.Router) {
	sub.HandleFunc("/growers", h.ListGrowers).Methods("GET")
	sub.HandleFunc("/fbos", h.ListFbos).Methods("GET")
	sub.HandleFunc("/commodities", h.ListCommodities).Methods("GET")
	sub.HandleFunc("/users/{user:[0-9]+}/growers/{grower:[0-9]+}", h.AssignGrower).Methods("PUT")
	sub.HandleFunc("/users/{user:[0-9]+}/growers/{grower:[0-9]+}", h.UnassignGrower).Methods("DELETE")
}

func caller(r *http.Request) (*tenant.Tenant, *rbac.Oracle) {
	tc, _ := tenant.FromContext(r.Context())
	return tc, oracleFrom(r.Context())
}

func listed[T any](h *Handler, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// ListGrowers handles GET /tenants/{tenant}/growers
func (h *Handler) ListGrowers(w http.ResponseWriter, r *http.Request) {
	tc, o := caller(r)
	items, err := h.opts.Catalog.Growers(r.Context(), tc, o)
	listed(h, w, r, items, err)
}

// ListFbos handles GET /tenants/{tenant}/fbos
func (h *Handler) ListFbos(w http.ResponseWriter, r *http.Request) {
	tc, o := caller(r)
	items, err := h.opts.Catalog.Fbos(r.Context(), tc, o)
	listed(h, w, r, items, err)
}

// ListCommodities handles GET /tenants/{tenant}/commodities
func (h *Handler) ListCommodities(w http.ResponseWriter, r *http.Request) {
	tc, o := caller(r)
	items, err := h.opts.Catalog.Commodities(r.Context(), tc, o)
	listed(h, w, r, items, err)
}

// AssignmentResponse reports the user's grower number after a change
type AssignmentResponse struct {
	UserID       int64  `json:"user_id"`
	GrowerNumber string `json:"grower_number"`
}

func (h *Handler) assignment(w http.ResponseWriter, r *http.Request, apply func(context.Context, *tenant.Tenant, *rbac.Oracle, int64, int64) (string, error)) {
	vars := mux.Vars(r)
	userID, _ := strconv.ParseInt(vars["user"], 10, 64)
	growerID, _ := strconv.ParseInt(vars["grower"], 10, 64)

	tc, o := caller(r)
	number, err := apply(r.Context(), tc, o, userID, growerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssignmentResponse{UserID: userID, GrowerNumber: number})
}

// AssignGrower handles PUT /tenants/{tenant}/users/{user}/growers/{grower}
func (h *Handler) AssignGrower(w http.ResponseWriter, r *http.Request) {
	h.assignment(w, r, h.opts.Catalog.Assign)
}

// UnassignGrower handles DELETE /tenants/{tenant}/users/{user}/growers/{grower}
func (h *Handler) UnassignGrower(w http.ResponseWriter, r *http.Request) {
	h.assignment(w, r, h.opts.Catalog.Unassign)
}
