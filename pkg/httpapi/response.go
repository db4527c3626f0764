package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/observability"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Rule      string `json:"rule,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeMessage writes an error response with a fixed message
func writeMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:     message,
		RequestID: observability.GetRequestID(r.Context()),
	})
}

// writeError maps err to a status code and a message that is safe to show.
// Internal and storage failures are logged with their cause; the client only
// sees the public message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	message := apperrors.PublicMessage(err)
	if status == http.StatusForbidden && h.opts.HideForbidden {
		status = http.StatusNotFound
		message = apperrors.PublicMessage(apperrors.ErrNotFound)
	}

	log := observability.FromContext(r.Context(), h.logger).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}

	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Rule:      apperrors.RuleOf(err),
		RequestID: observability.GetRequestID(r.Context()),
	})
}
