// Package documents manages the lifecycle of files and documents.
//
// Files and documents are two kinds of the same record (models.File with a
// different Kind). They live in separate tables with separate join tables
// but share every rule.
//
// # Lifecycle
//
//	Create ──> active ──Trash──> trashed ──ForceDelete──> gone (row + blob)
//	              ^                 │
//	              └────Restore──────┘
//
// Active records can also be deactivated with SetActive. Deactivated
// records stay out of everyone's sight except unrestricted users.
//
// # Access
//
// Listings compile the access predicate built by the access package into
// the WHERE clause, so unauthorized records never leave the database.
// Single-record operations load the record and ask the capability checker.
// Bulk operations (Trash, Restore, ForceDelete) are all-or-nothing: one
// missing id or one denied record fails the whole call.
//
// # Blobs
//
// Content is written to the storage.Store before the row. When the row
// cannot be written the blob is removed again; when that fails too the
// blob is reported as orphaned (metric, error log and activity event).
// Blobs of purged or replaced records are removed after the database
// commit and follow the same orphan reporting.
//
// # Usage Example
//
//	svc := documents.NewService(
//		documents.NewPostgresRepository(db),
//		store,
//		filetypes.NewRepository(db.Replica()),
//		growerRepo,
//		documents.WithActivityLogger(activity),
//		documents.WithMetrics(metrics),
//		documents.WithLogger(logger),
//	)
//
//	files, err := svc.List(ctx, tc, oracle, models.KindFile, documents.ListOptions{
//		Scope:  documents.ScopeActive,
//		SortBy: "title",
//	})
package documents
