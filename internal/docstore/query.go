package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Op is a comparison operator in a query filter.
type Op string

// Supported operators.
const (
	Eq  Op = "=="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

var opSQL = map[Op]string{
	Eq:  "=",
	Gt:  ">",
	Gte: ">=",
	Lt:  "<",
	Lte: "<=",
}

// Filter compares one top-level field against a value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from one collection. All filters must match.
type Query struct {
	Collection string
	Filters    []Filter
}

// Collection starts a query over every document in name.
func Collection(name string) Query {
	return Query{Collection: name}
}

// Where returns a copy of q with an extra filter.
func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Key is a stable textual form of the query, used in logs and as a map key.
func (q Query) Key() string {
	parts := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		parts = append(parts, fmt.Sprintf("%s%s%v", f.Field, f.Op, f.Value))
	}
	sort.Strings(parts)
	if len(parts) == 0 {
		return q.Collection
	}
	return q.Collection + "?" + strings.Join(parts, "&")
}

func (q Query) sql() (string, []any, error) {
	if !identRe.MatchString(q.Collection) {
		return "", nil, fmt.Errorf("%w: collection %q", ErrInvalidQuery, q.Collection)
	}

	clauses := []string{"collection = ?"}
	args := []any{q.Collection}
	for _, f := range q.Filters {
		if !identRe.MatchString(f.Field) {
			return "", nil, fmt.Errorf("%w: field %q", ErrInvalidQuery, f.Field)
		}
		op, ok := opSQL[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
		v, err := bindValue(f.Value)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "json_extract(data, ?) "+op+" ?")
		args = append(args, "$."+f.Field, v)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int, int64, float64:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: filter value %q", ErrInvalidQuery, x)
		}
		return f, nil
	case bool:
		// json_extract yields 1/0 for JSON booleans.
		if x {
			return 1, nil
		}
		return 0, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter value %T", ErrInvalidQuery, v)
	}
}
