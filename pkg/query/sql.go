package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Schema describes how predicate fields map onto a Postgres table. Only
// declared fields and relations compile, so the schema doubles as the
// column allow-list.
type Schema struct {
	Table       string
	Alias       string
	Columns     map[string]string // field -> column
	JSONColumns map[string]string // field -> jsonb column
	Relations   map[string]Relation
}

// Relation is a table reachable from a Schema inside an EXISTS subquery
type Relation struct {
	// On joins the related alias to the parent alias, e.g. "cf.file_id = f.id"
	On     string
	Schema *Schema
}

// Column returns the qualified column for field
func (s *Schema) Column(field string) (string, error) {
	col, ok := s.Columns[field]
	if !ok {
		return "", fmt.Errorf("unknown field %q on %s", field, s.Table)
	}
	return s.Alias + "." + col, nil
}

// Args collects positional parameters for a statement
type Args struct {
	Values []any
}

// Add appends v and returns its placeholder
func (a *Args) Add(v any) string {
	a.Values = append(a.Values, v)
	return "$" + strconv.Itoa(len(a.Values))
}

var jsonKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Compile translates p into a boolean SQL expression over schema,
// appending parameters to args.
func Compile(p Predicate, schema *Schema, args *Args) (string, error) {
	switch v := p.(type) {
	case constant:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case Eq:
		col, err := schema.Column(v.Field)
		if err != nil {
			return "", err
		}
		if v.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + args.Add(v.Value), nil
	case In:
		col, err := schema.Column(v.Field)
		if err != nil {
			return "", err
		}
		if len(v.Values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(v.Values))
		for i, val := range v.Values {
			placeholders[i] = args.Add(val)
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	case IsNull:
		col, err := schema.Column(v.Field)
		if err != nil {
			return "", err
		}
		return col + " IS NULL", nil
	case JSONIn:
		col, ok := schema.JSONColumns[v.Field]
		if !ok {
			return "", fmt.Errorf("unknown json field %q on %s", v.Field, schema.Table)
		}
		if !jsonKeyPattern.MatchString(v.Key) {
			return "", fmt.Errorf("invalid json key %q", v.Key)
		}
		if len(v.Values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(v.Values))
		for i, val := range v.Values {
			placeholders[i] = args.Add(val)
		}
		return fmt.Sprintf("(%s.%s->>'%s') IN (%s)", schema.Alias, col, v.Key, strings.Join(placeholders, ", ")), nil
	case Has:
		rel, ok := schema.Relations[v.Relation]
		if !ok || rel.Schema == nil {
			return "", fmt.Errorf("unknown relation %q on %s", v.Relation, schema.Table)
		}
		inner, err := Compile(v.Where, rel.Schema, args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s AND %s)",
			rel.Schema.Table, rel.Schema.Alias, rel.On, inner), nil
	case AndExpr:
		return compileTerms(v.Terms, " AND ", schema, args)
	case OrExpr:
		return compileTerms(v.Terms, " OR ", schema, args)
	case NotExpr:
		inner, err := Compile(v.Term, schema, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func compileTerms(terms []Predicate, sep string, schema *Schema, args *Args) (string, error) {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		sql, err := Compile(t, schema, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}
