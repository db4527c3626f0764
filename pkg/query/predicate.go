package query

// Predicate is a node of a declarative filter tree. Trees are built with
// the constructors in this package, evaluated in memory with Matches and
// translated to SQL with Compile.
type Predicate interface {
	predicate()
}

type constant bool

func (constant) predicate() {}

var (
	// True matches every record
	True Predicate = constant(true)
	// False matches no record
	False Predicate = constant(false)
)

// Eq matches records whose field equals Value. A nil Value matches NULL.
type Eq struct {
	Field string
	Value any
}

// In matches records whose field equals any of Values. Empty Values match nothing.
type In struct {
	Field  string
	Values []any
}

// IsNull matches records whose field is NULL
type IsNull struct {
	Field string
}

// JSONIn matches records whose JSON object column Field holds, under Key,
// a string equal to one of Values.
type JSONIn struct {
	Field  string
	Key    string
	Values []string
}

// Has matches records with at least one related record (through Relation)
// that matches Where.
type Has struct {
	Relation string
	Where    Predicate
}

// AndExpr matches when every term matches
type AndExpr struct {
	Terms []Predicate
}

// OrExpr matches when any term matches
type OrExpr struct {
	Terms []Predicate
}

// NotExpr negates Term
type NotExpr struct {
	Term Predicate
}

func (Eq) predicate()      {}
func (In) predicate()      {}
func (IsNull) predicate()  {}
func (JSONIn) predicate()  {}
func (Has) predicate()     {}
func (AndExpr) predicate() {}
func (OrExpr) predicate()  {}
func (NotExpr) predicate() {}

// And combines terms with AND, folding constants. And() is True.
func And(terms ...Predicate) Predicate {
	out := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
			continue
		case constant:
			if !v {
				return False
			}
		case AndExpr:
			out = append(out, v.Terms...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return True
	case 1:
		return out[0]
	}
	return AndExpr{Terms: out}
}

// Or combines terms with OR, folding constants. Or() is False, so a union
// of zero grants never degrades into an unfiltered query.
func Or(terms ...Predicate) Predicate {
	out := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
			continue
		case constant:
			if v {
				return True
			}
		case OrExpr:
			out = append(out, v.Terms...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return False
	case 1:
		return out[0]
	}
	return OrExpr{Terms: out}
}

// Not negates p
func Not(p Predicate) Predicate {
	switch v := p.(type) {
	case constant:
		return constant(!v)
	case NotExpr:
		return v.Term
	}
	return NotExpr{Term: p}
}

// Int64In matches field against ids; an empty id list yields False
func Int64In(field string, ids []int64) Predicate {
	if len(ids) == 0 {
		return False
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In{Field: field, Values: values}
}

// StringIn matches field against values; an empty list yields False
func StringIn(field string, values []string) Predicate {
	if len(values) == 0 {
		return False
	}
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return In{Field: field, Values: vs}
}

// JSONStringIn matches a JSON key against values; an empty list yields False
func JSONStringIn(field, key string, values []string) Predicate {
	if len(values) == 0 {
		return False
	}
	return JSONIn{Field: field, Key: key, Values: values}
}

// IsTrue reports whether p is the constant True
func IsTrue(p Predicate) bool {
	c, ok := p.(constant)
	return ok && bool(c)
}

// IsFalse reports whether p is the constant False. Callers use it to skip
// the store entirely for provably empty results.
func IsFalse(p Predicate) bool {
	c, ok := p.(constant)
	return ok && !bool(c)
}
