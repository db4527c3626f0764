package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// FileTypes is the part of filetypes.Service the HTTP edge serves
type FileTypes interface {
	List(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, topLevel bool) ([]*models.FileType, error)
	Create(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, ft *models.FileType) error
	Delete(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, id int64, force bool) error
}

func (h *Handler) registerFileTypes(sub *mux.Router) {
	sub.HandleFunc("/file-types", h.ListFileTypes).Methods("GET")
	sub.HandleFunc("/file-types", h.CreateFileType).Methods("POST")
	sub.HandleFunc("/file-types/{id:[0-9]+}", h.DeleteFileType).Methods("DELETE")
}

// ListFileTypes handles GET /tenants/{tenant}/file-types?level=top|sub
func (h *Handler) ListFileTypes(w http.ResponseWriter, r *http.Request) {
	topLevel := true
	switch r.URL.Query().Get("level") {
	case "", "top":
	case "sub":
		topLevel = false
	default:
		h.writeError(w, r, apperrors.Validation("httpapi.ListFileTypes", "level", "level must be top or sub"))
		return
	}

	tc, o := caller(r)
	items, err := h.opts.FileTypes.List(r.Context(), tc, o, topLevel)
	listed(h, w, r, items, err)
}

// FileTypeRequest is the body of a file type creation
type FileTypeRequest struct {
	Name          string               `json:"name"`
	ParentID      *int64               `json:"parent_id,omitempty"`
	AttributeType models.AttributeType `json:"attribute_type,omitempty"`
}

// CreateFileType handles POST /tenants/{tenant}/file-types
func (h *Handler) CreateFileType(w http.ResponseWriter, r *http.Request) {
	var body FileTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, apperrors.Validation("httpapi.CreateFileType", "body", "request body must be a JSON file type"))
		return
	}

	tc, o := caller(r)
	ft := &models.FileType{Name: body.Name, ParentID: body.ParentID, AttributeType: body.AttributeType}
	if err := h.opts.FileTypes.Create(r.Context(), tc, o, ft); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ft)
}

// DeleteFileType handles DELETE /tenants/{tenant}/file-types/{id}?force=true
func (h *Handler) DeleteFileType(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, apperrors.Validation("httpapi.DeleteFileType", "force", "force must be a boolean"))
			return
		}
		force = parsed
	}

	tc, o := caller(r)
	if err := h.opts.FileTypes.Delete(r.Context(), tc, o, id, force); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
