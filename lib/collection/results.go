package collection

import (
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
)

// Results are the rows of a table, a query or a materialized view.
//
// Results in the Query mode are live: the view is rebuilt on access once the data
// changed. Snapshot and Distinct return frozen results in the View mode; rows deleted
// later read as "no value" there.
//
// Not thread-safe: results may only be used on the goroutine of their session.
type Results struct {
	base *resultsBase
}

// NewResults returns results holding all rows of the table in table order
func NewResults(s Session, t db.Table) *Results {
	return &Results{base: newTableResults(s, t, t)}
}

// NewQueryResults returns live results of the query
func NewQueryResults(s Session, q db.Query) *Results {
	return &Results{base: newQueryResults(s, q.Table(), q)}
}

// EmptyResults returns results without backing
func EmptyResults() *Results {
	return &Results{base: newEmptyResults()}
}

func wrapResults(base *resultsBase, err error) (*Results, error) {
	if err != nil {
		return nil, err
	}
	return &Results{base: base}, nil
}

// Mode returns how the results are backed
func (r *Results) Mode() Mode {
	return r.base.mode
}

// IsValid reports whether the session is open and the backing still attached.
// Empty results are always valid.
func (r *Results) IsValid() bool {
	return r.base.isValid()
}

// Table returns the table the rows belong to, nil for empty results
func (r *Results) Table() db.Table {
	return r.base.table
}

// Size returns the number of rows, rebuilding the view of query results if needed
func (r *Results) Size() (int, error) {
	return r.base.size()
}

// Get returns the i-th row. ok is false when the row was deleted after a snapshot was taken.
func (r *Results) Get(i int) (row db.Row, ok bool, err error) {
	idx, ok, err := r.base.rowAt(i)
	if err != nil || !ok {
		return db.Row{}, false, err
	}
	return r.base.table.Row(idx), true, nil
}

// First returns the first row, ok is false for empty results
func (r *Results) First() (db.Row, bool, error) {
	size, err := r.Size()
	if err != nil || size == 0 {
		return db.Row{}, false, err
	}
	return r.Get(0)
}

// Last returns the last row, ok is false for empty results
func (r *Results) Last() (db.Row, bool, error) {
	size, err := r.Size()
	if err != nil || size == 0 {
		return db.Row{}, false, err
	}
	return r.Get(size - 1)
}

// GetValue reads a column of the i-th row
func (r *Results) GetValue(col, i int) (value any, ok bool, err error) {
	return r.base.get(col, i)
}

// IndexOf returns the index of the row or db.NotFound.
// Rows of other tables and detached rows are never found.
func (r *Results) IndexOf(row db.Row) (int, error) {
	if err := r.base.verify(); err != nil {
		return db.NotFound, err
	}
	if r.base.mode == ModeEmpty || row.Table() == nil || row.Table().Identity() != r.base.table.Identity() {
		return db.NotFound, nil
	}
	return r.base.indexOfRow(row.Key())
}

// IndexOfValue returns the index of the first row holding the value in the column, nil searches for null
func (r *Results) IndexOfValue(col int, value any) (int, error) {
	return r.base.indexOf(col, value)
}

// Min returns the smallest non-null value of the column, ok is false when there is none
func (r *Results) Min(col int) (any, bool, error) {
	return r.base.aggregate(db.AggMin, col)
}

// Max returns the largest non-null value of the column, ok is false when there is none
func (r *Results) Max(col int) (any, bool, error) {
	return r.base.aggregate(db.AggMax, col)
}

// Sum returns the sum of the non-null values of the column. The sum over no values is zero.
func (r *Results) Sum(col int) (any, bool, error) {
	return r.base.aggregate(db.AggSum, col)
}

// Average returns the mean of the non-null values of the column, ok is false when there is none
func (r *Results) Average(col int) (float64, bool, error) {
	v, ok, err := r.base.aggregate(db.AggAverage, col)
	if !ok || err != nil {
		return 0, false, err
	}
	return v.(float64), true, nil
}

// Sort returns live results ordered by the clauses
func (r *Results) Sort(clauses ...db.SortClause) (*Results, error) {
	return wrapResults(r.base.sorted(clauses))
}

// Filter returns live results matching both the current query and q
func (r *Results) Filter(q db.Query) (*Results, error) {
	return wrapResults(r.base.filtered(q))
}

// Distinct returns a snapshot keeping the first row for every value of the column
func (r *Results) Distinct(col int) (*Results, error) {
	return wrapResults(r.base.distinctOn(col))
}

// Snapshot returns a frozen copy that does not reflect later changes
func (r *Results) Snapshot() (*Results, error) {
	return wrapResults(r.base.snapshot())
}

// AddNotificationCallback registers a callback for changes of these results
func (r *Results) AddNotificationCallback(fn notify.Callback) (*notify.Token, error) {
	return r.base.addCallback(fn)
}
