// Package growers lists the growers, FBOs and commodities a user may see
// and manages user to grower assignments.
//
// Listings compile the predicates of the access package, so a grower only
// ever receives the FBOs linked to their own growers while administrators
// see every FBO of the tenant, inactive ones included.
//
// A user's grower_number column caches the number of their most recently
// assigned grower. Assign and Unassign recompute it in the same
// transaction that changes the assignment, and drop the user's cached
// principal afterwards.
package growers
