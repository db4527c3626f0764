package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/storage"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// UsageReporter scans a tenant's stored blobs; storage.Store implements it
type UsageReporter interface {
	Usage(ctx context.Context, tc *tenant.Tenant) (*storage.Usage, error)
}

func (h *Handler) registerUsage(sub *mux.Router) {
	sub.HandleFunc("/storage/usage", h.StorageUsage).Methods("GET")
}

// StorageUsage handles GET /tenants/{tenant}/storage/usage. The scan is
// bounded, so a large tenant may get a partial count.
func (h *Handler) StorageUsage(w http.ResponseWriter, r *http.Request) {
	tc, o := caller(r)
	if !o.IsSuperUser() && !o.HasPermission(rbac.PermManageAllFiles) {
		h.writeError(w, r, apperrors.Denied("httpapi.StorageUsage", "you are not allowed to view storage usage"))
		return
	}

	usage, err := h.opts.Usage.Usage(r.Context(), tc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
