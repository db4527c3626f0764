// Package httpapi is a thin HTTP edge over the documents service.
//
// Routes, all under /tenants/{tenant}:
//
//	GET    /{kind}                list (scope, sort, desc, limit, offset, q)
//	GET    /{kind}/{id}           metadata
//	GET    /{kind}/{id}/download  content
//	POST   /{kind}/trash          {"ids": [...]}
//	POST   /{kind}/restore        {"ids": [...]}
//	DELETE /{kind}                {"ids": [...]} permanent removal
//
// With a Catalog configured:
//
//	GET    /growers, /fbos, /commodities
//	PUT    /users/{user}/growers/{grower}   assign, returns grower_number
//	DELETE /users/{user}/growers/{grower}   unassign
//
// With FileTypes configured:
//
//	GET    /file-types?level=top|sub
//	POST   /file-types            {"name", "parent_id", "attribute_type"}
//	DELETE /file-types/{id}       force=true also counts trashed files
//
// With a UsageReporter configured:
//
//	GET    /storage/usage         bounded blob count for the tenant
//
// kind is files or documents. Authentication is delegated to an
// Authenticator; the tenant comes from the path and the permission oracle
// is resolved once per request.
package httpapi
