// Package audit records the activity trail of file operations.
//
// # Overview
//
// Every state change of a file or document (create, update, replace,
// activate/deactivate, trash, restore, force delete) and every grower
// assignment produces one Event. Bulk operations produce a single event
// listing all affected ids. Blobs that could not be removed are recorded
// as storage.blob_orphaned so they can be reconciled later.
//
// # Loggers
//
//   - DBLogger: inserts into the activity_log table
//   - LogrusLogger: structured log lines through logrus
//   - MultiLogger: fans out to several loggers, optionally asynchronously
//   - NoOp: drops everything
//
// # Usage Example
//
//	activity := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(logger))
//	activity.SetAsync(true)
//
//	event := audit.NewEvent(ctx, audit.EventTypeFileTrash, tc.ID, o.UserID())
//	event.ResourceType = audit.ResourceTypeFile
//	event.ResourceIDs = ids
//	activity.Log(ctx, event)
//
// Failures to record an event never fail the operation that caused it.
package audit
