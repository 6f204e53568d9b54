package queryir

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern accepts column or table names, optionally qualified
// ("table.column" or "table.*").
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.([A-Za-z_][A-Za-z0-9_]*|\*))?$`)

// ValidationResult lists structural problems found in a request.
type ValidationResult struct {
	Problems []string
}

// Valid reports whether no problems were found.
func (r ValidationResult) Valid() bool {
	return len(r.Problems) == 0
}

// Err returns nil for a valid result, otherwise an error listing every
// problem.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("invalid request: %s", strings.Join(r.Problems, "; "))
}

// Validate checks a request for structural problems: unsafe identifiers,
// missing tables, unfiltered deletes, nil nodes.
//
// node is one of *ReadRequest, *UpsertRequest, *DeleteRequest,
// *CreateTableRequest or a Predicate. Validate is a pure function.
func Validate(node any) ValidationResult {
	v := &validator{}
	switch n := node.(type) {
	case *ReadRequest:
		v.validateRead(n)
	case *UpsertRequest:
		v.validateUpsert(n)
	case *DeleteRequest:
		v.validateDelete(n)
	case *CreateTableRequest:
		v.validateCreate(n)
	case Predicate:
		v.validatePredicate(n)
	default:
		v.addProblem("unsupported request type %T", node)
	}
	return ValidationResult{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) identifier(kind, name string) {
	if name == "*" {
		return
	}
	if !identifierPattern.MatchString(name) {
		v.addProblem("invalid %s identifier %q", kind, name)
	}
}

func (v *validator) table(name string) {
	if name == "" {
		v.addProblem("missing table name")
		return
	}
	if strings.Contains(name, ".") {
		v.addProblem("invalid table identifier %q", name)
		return
	}
	v.identifier("table", name)
}

func (v *validator) validateRead(r *ReadRequest) {
	if r == nil {
		v.addProblem("nil read request")
		return
	}
	v.table(r.Table)
	for _, col := range r.Columns {
		v.identifier("column", col)
	}
	for j := r.Join; j != nil; j = j.Next {
		v.table(j.Table)
		v.identifier("column", j.SelfColumn)
		v.identifier("column", j.OtherColumn)
		if j.Filter != nil {
			v.validatePredicate(j.Filter)
		}
	}
	if r.Where != nil {
		v.validatePredicate(r.Where)
	}
	for _, o := range r.OrderBy {
		v.identifier("order-by", o.Column)
	}
	if r.Limit < 0 {
		v.addProblem("negative limit %d", r.Limit)
	}
	for i, leg := range r.Unions {
		if leg == nil {
			v.addProblem("union leg %d is nil", i)
			continue
		}
		if len(leg.Unions) > 0 {
			v.addProblem("union leg %d has nested unions", i)
		}
		v.validateRead(leg)
	}
}

func (v *validator) validateUpsert(u *UpsertRequest) {
	if u == nil {
		v.addProblem("nil upsert request")
		return
	}
	v.table(u.Table)
	if len(u.Values) == 0 {
		v.addProblem("upsert into %s has no values", u.Table)
	}
	for col := range u.Values {
		v.identifier("column", col)
	}
	for _, group := range u.UniqueGroups {
		if len(group) == 0 {
			v.addProblem("empty unique group on %s", u.Table)
		}
		for _, col := range group {
			v.identifier("column", col)
		}
	}
	for _, child := range u.Children {
		v.identifier("column", child.ParentColumn)
		v.validateUpsert(child.Request)
	}
	for _, ct := range u.ReplaceChildren {
		v.table(ct.Table)
		v.identifier("column", ct.ParentColumn)
	}
}

func (v *validator) validateDelete(d *DeleteRequest) {
	if d == nil {
		v.addProblem("nil delete request")
		return
	}
	v.table(d.Table)
	if (d.IDs != nil || d.SubSelect != nil) && d.IDColumn == "" {
		v.addProblem("delete from %s filters by id without an id column", d.Table)
	}
	if d.IDColumn != "" {
		v.identifier("column", d.IDColumn)
	}
	if d.OwnerColumn != "" {
		v.identifier("column", d.OwnerColumn)
	}
	if d.Where != nil {
		v.validatePredicate(d.Where)
	}
	if d.SubSelect != nil {
		v.validateSubSelect(d.SubSelect)
	}
	if d.Predicate() == nil && !d.All {
		v.addProblem("unfiltered delete from %s", d.Table)
	}
}

func (v *validator) validateSubSelect(r *ReadRequest) {
	v.validateRead(r)
	if r != nil && len(r.Columns) != 1 {
		v.addProblem("sub-select on %s must select exactly one column", r.Table)
	}
}

func (v *validator) validateCreate(c *CreateTableRequest) {
	if c == nil {
		v.addProblem("nil create table request")
		return
	}
	v.table(c.Table)
	if len(c.Columns) == 0 {
		v.addProblem("table %s has no columns", c.Table)
	}
	for _, col := range c.Columns {
		v.identifier("column", col.Name)
		if col.Type == "" {
			v.addProblem("column %s.%s has no type", c.Table, col.Name)
		}
	}
	for _, fk := range c.ForeignKeys {
		if _, ok := c.Column(fk.Column); !ok {
			v.addProblem("foreign key on unknown column %s.%s", c.Table, fk.Column)
		}
		v.table(fk.RefTable)
		v.identifier("column", fk.RefColumn)
	}
	for _, idx := range c.Indexes {
		v.identifier("index", idx.Name)
		for _, col := range idx.Columns {
			if _, ok := c.Column(col); !ok {
				v.addProblem("index %s on unknown column %s.%s", idx.Name, c.Table, col)
			}
		}
	}
	for _, child := range c.Children {
		v.validateCreate(child)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("nil predicate")
	case Equals:
		v.identifier("column", pred.Column)
	case In:
		v.identifier("column", pred.Column)
	case Compare:
		v.identifier("column", pred.Column)
		switch pred.Op {
		case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpNotEqual:
		default:
			v.addProblem("unknown comparison operator %q", pred.Op)
		}
	case IsNull:
		v.identifier("column", pred.Column)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case InSubquery:
		v.identifier("column", pred.Column)
		if pred.Sub == nil {
			v.addProblem("nil sub-select for %s", pred.Column)
			return
		}
		v.validateSubSelect(pred.Sub)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}
