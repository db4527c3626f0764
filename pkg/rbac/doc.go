// Package rbac answers "who is this user and what may they do" for docvault.
//
// # Overview
//
// A user's effective rights come from two additive channels:
//
//  1. Roles: each role carries a set of permissions (role_user, permission_role).
//  2. User groups: each active group carries a set of permissions
//     (user_group_user, permission_user_group). Inactive groups grant nothing.
//
// Alongside permissions a user carries assignments that scope row-level
// access: the growers they belong to (grower_user) and the commodities they
// hold (commodity_user).
//
// # Principal and Oracle
//
// Store.LoadPrincipal reads all of this for one tenant in a fixed number of
// queries. NewOracle flattens the result into sets so that every question
// asked while building filters or checking capabilities is a map lookup:
//
//	resolver := rbac.NewResolver(rbac.NewStore(db), rbac.DefaultOptions())
//	oracle, err := resolver.Resolve(ctx, tenantID, userID)
//	if err != nil {
//		return err
//	}
//	if oracle.HasPermission(rbac.PermUploadFiles) {
//		// ...
//	}
//
// # Super-users
//
// A user is a super-user when they hold the "super-user" role. Existing
// deployments also treat users with neither a company nor a property as
// super-users; this behaviour is controlled by Options.LegacyUnassignedSuperUser
// and is on in DefaultOptions. Fixtures and tests that model ordinary users
// should always set a CompanyID.
//
// # Caching
//
// Principals can be cached per process (MemoryCache, an expiring LRU) or
// across replicas (RedisCache). CachedLoader wraps any Loader, collapses
// concurrent loads of the same user into one query, and treats cache errors
// as misses. Invalidate a user after changing their roles, groups or
// assignments.
package rbac
