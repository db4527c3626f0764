package documents

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/query"
)

// Scope selects records by soft-delete state
type Scope string

const (
	ScopeActive  Scope = "active"  // not trashed (default)
	ScopeTrashed Scope = "trashed" // only trashed
	ScopeAll     Scope = "all"     // both
)

// Predicate returns the deleted_at condition of s
func (s Scope) Predicate() query.Predicate {
	switch s {
	case ScopeTrashed:
		return query.Not(query.IsNull{Field: "deleted_at"})
	case ScopeAll:
		return query.True
	}
	return query.IsNull{Field: "deleted_at"}
}

// Listing defaults
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// sortKeys whitelists the columns a listing may be ordered by
var sortKeys = map[string]bool{
	"title":       true,
	"created_at":  true,
	"updated_at":  true,
	"file_size":   true,
	"expiry_date": true,
	"season_year": true,
}

// ListOptions controls a listing. Order is determined only by SortBy and
// Desc, with id as the tie-breaker.
type ListOptions struct {
	Scope  Scope
	SortBy string
	Desc   bool
	Limit  int
	Offset int
	// Search matches title or original filename, case-insensitively
	Search string
}

// Normalize fills defaults and rejects unknown sort keys and scopes
func (o ListOptions) Normalize() (ListOptions, error) {
	const op = "documents.List"

	switch o.Scope {
	case "":
		o.Scope = ScopeActive
	case ScopeActive, ScopeTrashed, ScopeAll:
	default:
		return o, apperrors.Validation(op, "scope", fmt.Sprintf("unknown scope %q", o.Scope))
	}

	o.SortBy = strings.ToLower(strings.TrimSpace(o.SortBy))
	if o.SortBy == "" {
		o.SortBy = "created_at"
		o.Desc = true
	}
	if !sortKeys[o.SortBy] {
		return o, apperrors.Validation(op, "sort_key", fmt.Sprintf("cannot sort by %q", o.SortBy))
	}

	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	o.Search = strings.TrimSpace(o.Search)
	return o, nil
}

// orderBy renders the ORDER BY clause for alias
func (o ListOptions) orderBy(alias string) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s.%s %s NULLS LAST, %s.id %s", alias, o.SortBy, dir, alias, dir)
}
