package store

import (
	entsql "entgo.io/ent/dialect/sql"
)

type op int

const (
	opEQ op = iota
	opNEQ
	opLT
	opLTE
	opGT
	opGTE
	opIn
)

// Predicate filters documents on a single field.
type Predicate struct {
	Field  string
	op     op
	values []any
}

func Eq(field string, v any) Predicate  { return Predicate{Field: field, op: opEQ, values: []any{v}} }
func Neq(field string, v any) Predicate { return Predicate{Field: field, op: opNEQ, values: []any{v}} }
func Lt(field string, v any) Predicate  { return Predicate{Field: field, op: opLT, values: []any{v}} }
func Lte(field string, v any) Predicate { return Predicate{Field: field, op: opLTE, values: []any{v}} }
func Gt(field string, v any) Predicate  { return Predicate{Field: field, op: opGT, values: []any{v}} }
func Gte(field string, v any) Predicate { return Predicate{Field: field, op: opGTE, values: []any{v}} }

// In matches documents whose field equals any of values. An empty list
// matches nothing.
func In[T any](field string, values []T) Predicate {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Predicate{Field: field, op: opIn, values: vs}
}

// matchesNothing reports whether the predicate can be decided without a
// round trip.
func (p Predicate) matchesNothing() bool {
	return p.op == opIn && len(p.values) == 0
}

func (p Predicate) sql() *entsql.Predicate {
	switch p.op {
	case opNEQ:
		return entsql.NEQ(p.Field, p.values[0])
	case opLT:
		return entsql.LT(p.Field, p.values[0])
	case opLTE:
		return entsql.LTE(p.Field, p.values[0])
	case opGT:
		return entsql.GT(p.Field, p.values[0])
	case opGTE:
		return entsql.GTE(p.Field, p.values[0])
	case opIn:
		return entsql.In(p.Field, p.values...)
	default:
		if p.values[0] == nil {
			return entsql.IsNull(p.Field)
		}
		return entsql.EQ(p.Field, p.values[0])
	}
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Query selects documents of one collection.
type Query struct {
	Where   []Predicate
	OrderBy []Order
	// Limit caps the number of returned documents. Zero means no limit.
	Limit int
}

func wherePredicates(coll string, preds []Predicate) (*entsql.Predicate, bool, error) {
	if len(preds) == 0 {
		return nil, false, nil
	}
	out := make([]*entsql.Predicate, 0, len(preds))
	for _, p := range preds {
		if err := checkField(coll, p.Field); err != nil {
			return nil, false, err
		}
		if p.matchesNothing() {
			return nil, true, nil
		}
		out = append(out, p.sql())
	}
	return entsql.And(out...), false, nil
}
