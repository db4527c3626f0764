// Package capability answers per-record questions: may this user view,
// download, edit, delete, restore, force-delete or replace this file.
//
// View decisions reuse the access filter of the record's kind, so a record
// is viewable exactly when it would appear in the user's listing. Every
// decision is counted in docvault_access_decisions_total.
//
// Authorize returns an apperrors AuthorizationDenied error instead of a
// bool and is what services call.
package capability
