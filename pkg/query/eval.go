package query

import (
	"fmt"
	"strconv"
)

// Record is a loaded row that predicates can be evaluated against
type Record interface {
	// Value returns the field value (nil for NULL) and whether the field exists
	Value(field string) (any, bool)
	// JSONValue returns the string stored under key in a JSON object field
	JSONValue(field, key string) (string, bool)
	// Related returns the already-loaded records reachable through relation
	Related(relation string) []Record
}

// Matches evaluates p against rec. Unknown fields never match.
func Matches(p Predicate, rec Record) bool {
	switch v := p.(type) {
	case constant:
		return bool(v)
	case Eq:
		got, ok := rec.Value(v.Field)
		if !ok {
			return false
		}
		if v.Value == nil {
			return got == nil
		}
		return got != nil && equal(got, v.Value)
	case In:
		got, ok := rec.Value(v.Field)
		if !ok || got == nil {
			return false
		}
		for _, want := range v.Values {
			if equal(got, want) {
				return true
			}
		}
		return false
	case IsNull:
		got, ok := rec.Value(v.Field)
		return ok && got == nil
	case JSONIn:
		got, ok := rec.JSONValue(v.Field, v.Key)
		if !ok {
			return false
		}
		for _, want := range v.Values {
			if got == want {
				return true
			}
		}
		return false
	case Has:
		for _, related := range rec.Related(v.Relation) {
			if Matches(v.Where, related) {
				return true
			}
		}
		return false
	case AndExpr:
		for _, t := range v.Terms {
			if !Matches(t, rec) {
				return false
			}
		}
		return true
	case OrExpr:
		for _, t := range v.Terms {
			if Matches(t, rec) {
				return true
			}
		}
		return false
	case NotExpr:
		return !Matches(v.Term, rec)
	default:
		return false
	}
}

// Filter returns the records matching p, preserving order
func Filter[R Record](p Predicate, records []R) []R {
	var out []R
	for _, r := range records {
		if Matches(p, r) {
			out = append(out, r)
		}
	}
	return out
}

// equal compares scalar values, treating all integer kinds as int64
func equal(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		bi, ok := toInt64(b)
		return ok && ai == bi
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case *int64:
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	return 0, false
}

// FormatID renders an id the way JSON metadata stores it
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
