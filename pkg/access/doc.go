// Package access builds the visibility filters applied to every listing.
//
// # Overview
//
// A Builder turns a user's permission oracle into a query.Predicate for
// one entity kind. The same predicate is compiled to SQL by repositories
// and evaluated in memory by tests and services, so listing and
// per-record checks cannot drift apart.
//
// # File Visibility
//
// Unrestricted users (super-user or manage all files) see every active
// file of the tenant. Everyone else gets the union of the grants they
// hold:
//
//	grower    own grower_id in metadata and a grower-restricted type
//	customer  private files of a held commodity, customer-excluded types removed
//	public    public files of a held commodity
//	owner     files the user uploaded (view files)
//
// Grower users additionally never see another grower's restricted files,
// whichever grant matched. No grant at all yields query.False.
//
// # Configuration
//
// Which file types count as grower-restricted or customer-excluded comes
// from Config, normally loaded from the access rules file:
//
//	builder := access.NewBuilder(cfg.AccessConfig(), filetypes.NewResolver())
//	filter := builder.Files(tc, oracle)
package access
