package queryir

// Predicate is a node of a where-clause tree.
//
// This is a sealed interface: only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches rows where Column = Value.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// In matches rows where Column is one of Values. An empty Values list
// matches nothing.
type In struct {
	Column string
	Values []any
}

func (In) predicateNode() {}

// CompareOp is a binary ordering operator.
type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpNotEqual     CompareOp = "!="
)

// Compare matches rows where Column <Op> Value.
type Compare struct {
	Column string
	Op     CompareOp
	Value  any
}

func (Compare) predicateNode() {}

// IsNull matches rows where Column IS NULL, or IS NOT NULL when Not is set.
type IsNull struct {
	Column string
	Not    bool
}

func (IsNull) predicateNode() {}

// And matches rows satisfying every predicate. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches rows satisfying at least one predicate. Empty means never.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// InSubquery matches rows where Column is in the single-column result of
// Sub.
type InSubquery struct {
	Column string
	Sub    *ReadRequest
}

func (InSubquery) predicateNode() {}

// Eq returns an Equals predicate.
func Eq(column string, value any) Predicate {
	return Equals{Column: column, Value: value}
}

// OneOf returns an In predicate over values.
func OneOf[T any](column string, values []T) Predicate {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In{Column: column, Values: vals}
}

// Gt returns column > value.
func Gt(column string, value any) Predicate { return Compare{column, OpGreater, value} }

// Ge returns column >= value.
func Ge(column string, value any) Predicate { return Compare{column, OpGreaterEqual, value} }

// Lt returns column < value.
func Lt(column string, value any) Predicate { return Compare{column, OpLess, value} }

// Le returns column <= value.
func Le(column string, value any) Predicate { return Compare{column, OpLessEqual, value} }

// AllOf conjoins the non-nil predicates. It returns nil when none remain and
// the single predicate when only one does.
func AllOf(preds ...Predicate) Predicate {
	kept := compact(preds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// AnyOf disjoins the non-nil predicates, collapsing like AllOf.
func AnyOf(preds ...Predicate) Predicate {
	kept := compact(preds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Or{Predicates: kept}
}

func compact(preds []Predicate) []Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return kept
}
