package queryir

// JoinKind selects inner or left join semantics.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// Join links the previous table of a pipeline to Table on a column pair.
//
// The first link's previous table is the ReadRequest's table; each attached
// link's previous table is the Table of the link before it. Filter is scoped
// to Table and is applied as part of the join condition.
type Join struct {
	Kind        JoinKind
	Table       string
	SelfColumn  string // column of the previous table
	OtherColumn string // column of Table
	Filter      Predicate
	Next        *Join
}

// InnerJoin returns an inner join link.
func InnerJoin(table, selfColumn, otherColumn string) *Join {
	return &Join{Kind: JoinInner, Table: table, SelfColumn: selfColumn, OtherColumn: otherColumn}
}

// LeftJoin returns a left join link.
func LeftJoin(table, selfColumn, otherColumn string) *Join {
	return &Join{Kind: JoinLeft, Table: table, SelfColumn: selfColumn, OtherColumn: otherColumn}
}

// Attach appends next to the end of the pipeline and returns the head.
func (j *Join) Attach(next *Join) *Join {
	tail := j
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = next
	return j
}

// WithFilter sets the pushdown filter of this link and returns it.
func (j *Join) WithFilter(p Predicate) *Join {
	j.Filter = p
	return j
}

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Column string
	Desc   bool
}

// ReadRequest selects rows from Table.
//
// When Unions is non-empty the request and every union leg are combined with
// a deduplicating UNION (never UNION ALL); OrderBy and Limit of the receiver
// then apply to the combined result and those of the legs are ignored.
type ReadRequest struct {
	Table    string
	Columns  []string // nil selects Table.*
	Join     *Join
	Where    Predicate
	OrderBy  []OrderTerm
	Limit    int // 0 means no limit
	Distinct bool
	Unions   []*ReadRequest
}

// Read starts a ReadRequest over table.
func Read(table string) *ReadRequest {
	return &ReadRequest{Table: table}
}

// Select sets the selected columns.
func (r *ReadRequest) Select(columns ...string) *ReadRequest {
	r.Columns = columns
	return r
}

// Filter conjoins p with the current where-clause.
func (r *ReadRequest) Filter(p Predicate) *ReadRequest {
	r.Where = AllOf(r.Where, p)
	return r
}

// WithJoin attaches a join link to the request's pipeline.
func (r *ReadRequest) WithJoin(j *Join) *ReadRequest {
	if r.Join == nil {
		r.Join = j
	} else {
		r.Join.Attach(j)
	}
	return r
}

// Order appends an ORDER BY key.
func (r *ReadRequest) Order(column string, desc bool) *ReadRequest {
	r.OrderBy = append(r.OrderBy, OrderTerm{Column: column, Desc: desc})
	return r
}

// WithLimit sets the row limit.
func (r *ReadRequest) WithLimit(n int) *ReadRequest {
	r.Limit = n
	return r
}

// Union adds deduplicating UNION legs.
func (r *ReadRequest) Union(legs ...*ReadRequest) *ReadRequest {
	r.Unions = append(r.Unions, legs...)
	return r
}

// ChildTable names a child table and the column holding its parent's row id.
type ChildTable struct {
	Table        string
	ParentColumn string
}

// ChildUpsert inserts a child row once the parent row id is known. The
// parent's row id is written to ParentColumn of Request.
type ChildUpsert struct {
	ParentColumn string
	Request      *UpsertRequest
}

// UpsertRequest writes one logical row.
//
// UniqueGroups lists column groups that each identify "the same logical row";
// a stored row matching any group collides with this one. Groups with a nil
// value never collide, matching SQL unique-index NULL semantics.
//
// On update, rows of every table in ReplaceChildren that reference the parent
// are deleted before Children are re-inserted: children are never diffed.
type UpsertRequest struct {
	Table           string
	Values          map[string]any
	UniqueGroups    [][]string
	Children        []ChildUpsert
	ReplaceChildren []ChildTable
}

// ConflictLookup returns the read that finds stored rows colliding with r,
// selecting the given columns. It returns nil when no unique group can
// collide.
func (r *UpsertRequest) ConflictLookup(columns ...string) *ReadRequest {
	var groups []Predicate
	for _, group := range r.UniqueGroups {
		var eqs []Predicate
		collides := len(group) > 0
		for _, col := range group {
			v, ok := r.Values[col]
			if !ok || v == nil {
				collides = false
				break
			}
			eqs = append(eqs, Eq(col, v))
		}
		if collides {
			groups = append(groups, AllOf(eqs...))
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return Read(r.Table).Select(columns...).Filter(AnyOf(groups...))
}

// DeleteRequest removes rows from Table.
//
// Filters combine with AND: IDs restricts IDColumn, OwnerColumn/OwnerID
// restricts ownership, Where is an arbitrary predicate, and SubSelect keeps
// only rows whose IDColumn is in the sub-select's result. SubSelect exists
// because the engine cannot delete through a join: the join runs as a read
// and the delete filters by the resulting id set.
//
// A request with no filter at all is rejected unless All is set.
type DeleteRequest struct {
	Table       string
	IDColumn    string
	IDs         []any
	OwnerColumn string
	OwnerID     any
	Where       Predicate
	SubSelect   *ReadRequest
	All         bool
}

// Predicate returns the combined filter of the request, or nil.
func (d *DeleteRequest) Predicate() Predicate {
	var preds []Predicate
	if d.IDs != nil {
		preds = append(preds, In{Column: d.IDColumn, Values: d.IDs})
	}
	if d.OwnerColumn != "" {
		preds = append(preds, Eq(d.OwnerColumn, d.OwnerID))
	}
	preds = append(preds, d.Where)
	if d.SubSelect != nil {
		preds = append(preds, InSubquery{Column: d.IDColumn, Sub: d.SubSelect})
	}
	return AllOf(preds...)
}

// ColumnDef defines one table column.
//
// Generated holds an expression for a virtual generated column; the
// expression is trusted schema text, never caller input.
type ColumnDef struct {
	Name          string
	Type          string // INTEGER, TEXT, REAL, BLOB
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Generated     string
}

// ForeignKey references another table's column.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string // "", "CASCADE", "SET NULL"
}

// IndexDef defines a secondary index.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

// CreateTableRequest defines a table and, recursively, its child tables.
type CreateTableRequest struct {
	Table       string
	Columns     []ColumnDef
	ForeignKeys []ForeignKey
	Indexes     []IndexDef
	Children    []*CreateTableRequest
}

// Column returns the named column definition.
func (c *CreateTableRequest) Column(name string) (ColumnDef, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDef{}, false
}

// Walk visits c and every descendant table, parents first.
func (c *CreateTableRequest) Walk(fn func(*CreateTableRequest)) {
	fn(c)
	for _, child := range c.Children {
		child.Walk(fn)
	}
}
