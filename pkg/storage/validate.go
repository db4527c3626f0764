package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// Upload limits
const (
	MaxUploadSize  int64 = 15 << 20 // create flows
	MaxReplaceSize int64 = 50 << 20 // administrative content replacement
)

// Validation failures, matched with errors.Is by rule
var (
	ErrTypeNotAllowed = apperrors.Validation("storage.Upload", "file_type", "this type of file is not allowed")
	ErrTooLarge       = apperrors.Validation("storage.Upload", "file_size", "the file is too large")
	ErrEmptyFile      = apperrors.Validation("storage.Upload", "file_required", "a file is required")
)

var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"doc":  {},
	"docx": {},
	"xls":  {},
	"xlsx": {},
	"zip":  {},
}

var allowedMimeTypes = map[string]struct{}{
	"application/pdf":    {},
	"image/jpeg":         {},
	"image/png":          {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/zip":              {},
	"application/x-zip-compressed": {},
}

// Extension returns the lower-cased extension of name without the dot
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func normalizeMimeType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// ValidateType reports whether both the declared MIME type and the file
// extension are on the allow-list. Either signal alone is not enough.
func ValidateType(mimeType, extension string) bool {
	if _, ok := allowedMimeTypes[normalizeMimeType(mimeType)]; !ok {
		return false
	}
	_, ok := allowedExtensions[strings.ToLower(strings.TrimPrefix(extension, "."))]
	return ok
}

// MaxSize returns the limit for create flows
func MaxSize() int64 {
	return MaxUploadSize
}

func tooLarge(limit int64) error {
	return &apperrors.Error{
		Kind:    apperrors.KindValidation,
		Op:      "storage.Upload",
		Rule:    ErrTooLarge.Rule,
		Message: fmt.Sprintf("the file may not be larger than %d MB", limit>>20),
	}
}
