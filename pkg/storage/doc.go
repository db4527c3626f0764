// Package storage keeps uploaded file bytes, namespaced per tenant.
//
// # Overview
//
// A Backend is a flat blob store keyed by slash-separated paths. Two
// implementations exist:
//
//   - FilesystemBackend: plain files below a root directory. Writes go to a
//     temporary file that is renamed into place.
//   - S3Backend: any S3-compatible bucket (AWS, MinIO) through aws-sdk-go-v2.
//     Every call is traced with OpenTelemetry.
//
// Backends know nothing about tenants. Store wraps a Backend and is the
// only entry point the rest of the module uses.
//
// # Tenant Namespacing
//
// Every key written by Store.Upload has the form
//
//	tenants/tenant_<id>/<directory hint>/<yyyymmddhhmmss>_<random>.<ext>
//
// The directory hint is sanitized so it cannot climb out of the tenant
// prefix. Exists, Get and Delete refuse keys outside the caller's prefix
// with ErrOutsideTenant, an AuthorizationDenied error.
//
// # Validation
//
// Uploads are validated before anything is written:
//
//   - the MIME type and the extension must both be on the allow-list
//     (pdf, jpg/jpeg, png, doc/docx, xls/xlsx, zip)
//   - the size must not exceed MaxUploadSize (15 MiB), or MaxReplaceSize
//     (50 MiB) when UploadRequest.MaxSize says so
//
// Failures are apperrors Validation errors carrying the rule that failed;
// compare them with errors.Is against ErrTypeNotAllowed, ErrTooLarge and
// ErrEmptyFile.
//
// # Usage
//
//	backend, err := storage.NewBackend(ctx, cfg)
//	store := storage.NewStore(backend,
//		storage.WithMetrics(metrics),
//		storage.WithLogger(logger),
//	)
//
//	stored, err := store.Upload(ctx, tc, storage.UploadRequest{
//		Data:          body,
//		OriginalName:  "spray-diary.pdf",
//		MimeType:      "application/pdf",
//		DirectoryHint: "files",
//	})
//
// Get returns empty bytes, not an error, for a blob that no longer exists.
// Backend failures surface as Storage-kind errors.
//
// Store.Usage walks a tenant's prefix with a time budget (30s by default)
// and marks the result Partial when the budget runs out.
package storage
