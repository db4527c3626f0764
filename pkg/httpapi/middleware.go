package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// ErrUnauthenticated is returned by an Authenticator when the request
// carries no usable credentials
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator identifies the user behind a request. Token, session or
// proxy handling lives behind this interface.
type Authenticator interface {
	Authenticate(r *http.Request) (userID int64, err error)
}

// HeaderAuthenticator trusts a user id header set by an authenticating
// proxy in front of the service
type HeaderAuthenticator struct {
	Header string
}

// Authenticate implements Authenticator
func (a HeaderAuthenticator) Authenticate(r *http.Request) (int64, error) {
	header := a.Header
	if header == "" {
		header = "X-User-ID"
	}
	value := strings.TrimSpace(r.Header.Get(header))
	if value == "" {
		return 0, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

// PrincipalResolver builds the permission oracle for a user of a tenant
type PrincipalResolver interface {
	Resolve(ctx context.Context, tenantID, userID int64) (*rbac.Oracle, error)
}

type oracleKey struct{}

func withOracle(ctx context.Context, o *rbac.Oracle) context.Context {
	return context.WithValue(ctx, oracleKey{}, o)
}

func oracleFrom(ctx context.Context) *rbac.Oracle {
	o, _ := ctx.Value(oracleKey{}).(*rbac.Oracle)
	return o
}

// requestIDMiddleware reuses the caller's request id or generates one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), requestID)))
	})
}

// recoveryMiddleware turns a panic into a 500 response
func (h *Handler) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.writeError(w, r, apperrors.Internal("httpapi", observability.MustRecover(rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// tenantMiddleware resolves the {tenant} path variable. Unknown and
// inactive tenants both answer 404.
func (h *Handler) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["tenant"]
		tc, err := h.tenants.GetTenantBySlug(r.Context(), slug)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !tc.IsActive() {
			h.writeError(w, r, apperrors.NotFound("httpapi.tenant", "tenant"))
			return
		}

		ctx := tenant.WithTenant(r.Context(), tc)
		ctx = observability.WithTenantID(ctx, tc.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware authenticates the user and resolves their oracle within
// the request's tenant. A user unknown to the tenant is forbidden.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.auth.Authenticate(r)
		if err != nil {
			writeMessage(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		tc, _ := tenant.FromContext(r.Context())

		o, err := h.principals.Resolve(r.Context(), tc.ID, userID)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			err = apperrors.Denied("httpapi.auth", "you are not a member of this tenant")
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := observability.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(withOracle(ctx, o)))
	})
}
