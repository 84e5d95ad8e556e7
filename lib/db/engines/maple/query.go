package maple

import (
	"strings"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple/internal"
)

type condOp uint8

const (
	opEqual condOp = iota
	opNotEqual
	opGreater
	opGreaterEqual
	opLess
	opLessEqual
	opIsNull
	opIsNotNull
	opBeginsWith
	opContains
)

// condition is a single predicate on one column, value holds the normalized operand
type condition struct {
	col   int
	op    condOp
	kind  db.Kind
	value any
}

func (c condition) match(r *internal.Row) bool {
	cell := r.Cells[c.col]
	switch c.op {
	case opIsNull:
		return cell == nil
	case opIsNotNull:
		return cell != nil
	case opNotEqual:
		return cell == nil || internal.Compare(c.kind, cell, c.value) != 0
	}

	if cell == nil {
		return false
	}

	switch c.op {
	case opEqual:
		return internal.Compare(c.kind, cell, c.value) == 0
	case opGreater:
		return internal.Compare(c.kind, cell, c.value) > 0
	case opGreaterEqual:
		return internal.Compare(c.kind, cell, c.value) >= 0
	case opLess:
		return internal.Compare(c.kind, cell, c.value) < 0
	case opLessEqual:
		return internal.Compare(c.kind, cell, c.value) <= 0
	case opBeginsWith:
		return strings.HasPrefix(cell.(string), c.value.(string))
	case opContains:
		return strings.Contains(cell.(string), c.value.(string))
	default:
		return false
	}
}

// query implements db.Query. Queries are immutable, every builder returns a copy.
type query struct {
	t        *table
	restrict *linkList // Only rows of this link list in list order (optional)
	conds    []condition
	err      error
}

func (q *query) with(col int, op condOp, value any) db.Query {
	next := &query{
		t:        q.t,
		restrict: q.restrict,
		conds:    append(q.conds[:len(q.conds):len(q.conds)], condition{}),
		err:      q.err,
	}
	if next.err != nil {
		return next
	}
	if col < 0 || col >= len(q.t.columns) {
		next.err = db.ErrColumnOutOfRange
		return next
	}

	kind := q.t.columns[col].Kind
	c := condition{col: col, op: op, kind: kind}

	switch op {
	case opIsNull, opIsNotNull:
	case opBeginsWith, opContains:
		if kind != db.KindString {
			next.err = db.ErrTypeMismatch
			return next
		}
		c.value = value
	default:
		if !kind.IsPrimitive() {
			next.err = db.ErrUnsupported
			return next
		}
		if value == nil {
			// comparing against null only makes sense for (not) equal
			switch op {
			case opEqual:
				c.op = opIsNull
			case opNotEqual:
				c.op = opIsNotNull
			default:
				next.err = db.ErrTypeMismatch
				return next
			}
			break
		}
		v, err := internal.Normalize(kind, value)
		if err != nil {
			next.err = err
			return next
		}
		c.value = v
	}

	next.conds[len(next.conds)-1] = c
	return next
}

// candidates returns the rows the query runs over. The caller must hold the group lock.
func (q *query) candidates() []*internal.Row {
	if !q.t.attached {
		return nil
	}
	if q.restrict == nil {
		return q.t.rows
	}
	if !q.restrict.attached {
		return nil
	}
	rows := make([]*internal.Row, 0, len(q.restrict.targets))
	for _, k := range q.restrict.targets {
		if pos := q.t.position(k); pos != db.NotFound {
			rows = append(rows, q.t.rows[pos])
		}
	}
	return rows
}

func (q *query) matches(r *internal.Row) bool {
	for _, c := range q.conds {
		if !c.match(r) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// db.Query Interface
// --------------------------------------------------------------------------

func (q *query) Table() db.Table {
	return q.t
}

func (q *query) Err() error {
	return q.err
}

func (q *query) Equal(col int, value any) db.Query {
	return q.with(col, opEqual, value)
}

func (q *query) NotEqual(col int, value any) db.Query {
	return q.with(col, opNotEqual, value)
}

func (q *query) Greater(col int, value any) db.Query {
	return q.with(col, opGreater, value)
}

func (q *query) GreaterEqual(col int, value any) db.Query {
	return q.with(col, opGreaterEqual, value)
}

func (q *query) Less(col int, value any) db.Query {
	return q.with(col, opLess, value)
}

func (q *query) LessEqual(col int, value any) db.Query {
	return q.with(col, opLessEqual, value)
}

func (q *query) IsNull(col int) db.Query {
	return q.with(col, opIsNull, nil)
}

func (q *query) IsNotNull(col int) db.Query {
	return q.with(col, opIsNotNull, nil)
}

func (q *query) BeginsWith(col int, prefix string) db.Query {
	return q.with(col, opBeginsWith, prefix)
}

func (q *query) Contains(col int, substr string) db.Query {
	return q.with(col, opContains, substr)
}

// And combines the conditions of both queries. Both must run over the same table.
func (q *query) And(other db.Query) db.Query {
	next := &query{
		t:        q.t,
		restrict: q.restrict,
		conds:    q.conds[:len(q.conds):len(q.conds)],
		err:      q.err,
	}
	if next.err != nil {
		return next
	}

	o, ok := other.(*query)
	if !ok || o.t != q.t {
		next.err = db.ErrWrongTable
		return next
	}
	if o.err != nil {
		next.err = o.err
		return next
	}
	next.conds = append(next.conds, o.conds...)
	return next
}

func (q *query) Count() int {
	q.t.g.mu.RLock()
	defer q.t.g.mu.RUnlock()
	if q.err != nil {
		return 0
	}

	count := 0
	for _, r := range q.candidates() {
		if q.matches(r) {
			count++
		}
	}
	return count
}

// Find returns the table index of the first matching row or db.NotFound
func (q *query) Find() int {
	q.t.g.mu.RLock()
	defer q.t.g.mu.RUnlock()
	if q.err != nil {
		return db.NotFound
	}

	for _, r := range q.candidates() {
		if q.matches(r) {
			return q.t.index[r.Key]
		}
	}
	return db.NotFound
}

// FindAll materializes all matching rows. A query with an error yields an empty view.
func (q *query) FindAll() db.View {
	q.t.g.mu.RLock()
	defer q.t.g.mu.RUnlock()

	v := &view{t: q.t, version: q.t.g.version.Load()}
	if q.err != nil {
		return v
	}
	for _, r := range q.candidates() {
		if q.matches(r) {
			v.keys = append(v.keys, r.Key)
		}
	}
	return v
}
