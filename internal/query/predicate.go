// Package query holds the typed predicate tree that search filters compile
// into, plus the pagination and sort resolution shared by every entity.
// The package is pure: it never touches the network or a store, and the same
// filter input always compiles to the same predicate. Store backends render
// the tree into their own query vocabulary.
package query

import "fmt"

// Op identifies a single-field comparison.
type Op int

const (
	OpEquals Op = iota
	OpContains
	OpStartsWith
	OpEndsWith
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIsNull
	OpNotNull
)

// String returns a stable name for the operator, used in rendering errors.
func (op Op) String() string {
	switch op {
	case OpEquals:
		return "equals"
	case OpContains:
		return "contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpGT:
		return "gt"
	case OpGTE:
		return "gte"
	case OpLT:
		return "lt"
	case OpLTE:
		return "lte"
	case OpIsNull:
		return "isNull"
	case OpNotNull:
		return "notNull"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Condition is one comparison against a field of the target entity.
// Value is nil for OpIsNull and OpNotNull.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// RelationCondition constrains the target entity through a named to-many or
// to-one relation, one level deep. When Exists is true at least one related
// record must match Where; when false no related record may match.
type RelationCondition struct {
	Relation string
	Exists   bool
	Where    []Condition
}

// Predicate is the compiled form of a search filter: an implicit conjunction
// of field conditions and relation conditions. The zero value matches all
// records.
type Predicate struct {
	Conds     []Condition
	Relations []RelationCondition
}

// IsEmpty reports whether the predicate matches everything.
func (p Predicate) IsEmpty() bool {
	return len(p.Conds) == 0 && len(p.Relations) == 0
}

// Options bundles a compiled predicate with ordering and bounds for a fetch.
type Options struct {
	Predicate Predicate
	OrderBy   string
	OrderDesc bool
	Limit     int
	Offset    int
}
