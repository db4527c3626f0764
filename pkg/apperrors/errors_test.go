package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Denied("documents.Get", "not yours"))

	assert.True(t, errors.Is(err, ErrAuthorizationDenied))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsKind(err, KindAuthorizationDenied))
}

func TestError_IsMatchesRule(t *testing.T) {
	err := Validation("storage.Upload", "max_size", "file is too large")

	assert.True(t, errors.Is(err, &Error{Kind: KindValidation, Rule: "max_size"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindValidation, Rule: "mime_type"}))
	assert.Equal(t, "max_size", RuleOf(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"denied", Denied("op", "no"), http.StatusForbidden},
		{"validation", Validation("op", "r", "bad"), http.StatusUnprocessableEntity},
		{"not found", NotFound("op", "file"), http.StatusNotFound},
		{"conflict", Conflict("op", "in use"), http.StatusConflict},
		{"storage", Storage("op", errors.New("disk gone")), http.StatusServiceUnavailable},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesInternals(t *testing.T) {
	err := Storage("storage.Put", errors.New("dial tcp 10.0.0.3:9000: connection refused"))

	msg := PublicMessage(err)
	assert.Equal(t, "file storage is unavailable", msg)
	assert.NotContains(t, msg, "10.0.0.3")

	assert.Equal(t, "an unexpected error occurred, please try again", PublicMessage(errors.New("pq: syntax error")))
}

func TestError_ErrorString(t *testing.T) {
	err := NotFound("documents.Get", "file")
	assert.Equal(t, "documents.Get: file not found", err.Error())
}
