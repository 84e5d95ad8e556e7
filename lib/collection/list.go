package collection

import (
	"fmt"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
)

// List is an ordered list of rows of a target table.
//
// A list is usually backed by a link list, in which case every element is a link
// to a row of the target table and the list order is independent of the table order.
// A list can also be backed directly by a table (the rows of an embedded list);
// link operations and Move fail with ErrLogic then.
//
// Not thread-safe: a list may only be used on the goroutine of its session.
type List struct {
	handle
	links db.LinkList // nil for table backed lists
	table db.Table    // target table, or the backing table
}

// NewList creates a list backed by a link list
func NewList(s Session, links db.LinkList) List {
	return List{
		handle: handle{session: s, backing: links},
		links:  links,
		table:  links.TargetTable(),
	}
}

// NewTableList creates a list holding the rows of a table in table order
func NewTableList(s Session, t db.Table) List {
	return List{
		handle: handle{session: s, backing: t},
		table:  t,
	}
}

// ListOf returns the list stored in a link list or list column of a row
func ListOf(s Session, parent db.Table, col, row int) (List, error) {
	if err := s.VerifyThread(); err != nil {
		return List{}, err
	}
	columns := parent.Columns()
	if col < 0 || col >= len(columns) {
		return List{}, db.ErrColumnOutOfRange
	}

	switch columns[col].Kind {
	case db.KindLinkList:
		links, err := parent.LinkList(col, row)
		if err != nil {
			return List{}, err
		}
		return NewList(s, links), nil
	case db.KindList:
		sub, err := parent.Subtable(col, row)
		if err != nil {
			return List{}, err
		}
		return NewTableList(s, sub), nil
	default:
		return List{}, fmt.Errorf("list on a %s column: %w", columns[col].Kind, db.ErrTypeMismatch)
	}
}

// IsLinkBacked reports whether the list is backed by a link list
func (l List) IsLinkBacked() bool {
	return l.links != nil
}

// TargetTable returns the table the rows of the list belong to
func (l List) TargetTable() db.Table {
	return l.table
}

// ToStorageIndex maps a list index to a row of the target table
func (l List) ToStorageIndex(i int) int {
	if l.links != nil {
		return l.links.Get(i)
	}
	return i
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Size returns the number of elements, ErrInvalidated if the list was detached
func (l List) Size() (int, error) {
	return l.sizeAttached()
}

// Get returns the row at index i
func (l List) Get(i int) (db.Row, error) {
	size, err := l.sizeAttached()
	if err != nil {
		return db.Row{}, err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return db.Row{}, err
	}
	return l.table.Row(l.ToStorageIndex(i)), nil
}

// Find returns the index of the row in the list or db.NotFound.
// Detached rows and rows of other tables are never found.
func (l List) Find(row db.Row) (int, error) {
	if err := l.VerifyAttached(); err != nil {
		return db.NotFound, err
	}
	if !row.IsAttached() || row.Table().Identity() != l.table.Identity() {
		return db.NotFound, nil
	}
	if l.links != nil {
		return l.links.Find(row.Index()), nil
	}
	return row.Index(), nil
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// linkWrite verifies a write that only link backed lists support
func (l List) linkWrite() (int, error) {
	size, err := l.sizeInTransaction()
	if err != nil {
		return 0, err
	}
	if l.links == nil {
		return 0, ErrLogic
	}
	return size, nil
}

// Add appends a link to the target row
func (l List) Add(targetRow int) error {
	if _, err := l.linkWrite(); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.links.Add(targetRow)
}

// Insert inserts a link to the target row at index i, i == Size() appends
func (l List) Insert(i, targetRow int) error {
	size, err := l.linkWrite()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, true); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.links.Insert(i, targetRow)
}

// Set replaces the link at index i
func (l List) Set(i, targetRow int) error {
	size, err := l.linkWrite()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.links.Set(i, targetRow)
}

// Remove removes the element at index i. For link backed lists only the link
// is removed, the target row stays.
func (l List) Remove(i int) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	collectionWrites.Inc()
	if l.links != nil {
		return l.links.Remove(i)
	}
	return l.table.RemoveRow(i)
}

// RemoveAll removes every element. Target rows of links stay.
func (l List) RemoveAll() error {
	if err := l.VerifyInTransaction(); err != nil {
		return err
	}
	collectionWrites.Inc()
	if l.links != nil {
		return l.links.Clear()
	}
	return l.table.Clear()
}

// DeleteAll deletes every row the list refers to from the target table.
// The list is empty afterwards.
func (l List) DeleteAll() error {
	if err := l.VerifyInTransaction(); err != nil {
		return err
	}
	collectionWrites.Inc()
	if l.links == nil {
		return l.table.Clear()
	}
	return l.links.RemoveAllTargetRows()
}

// Swap exchanges the elements at i and j
func (l List) Swap(i, j int) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	if err := verifyValidRow(j, size, false); err != nil {
		return err
	}
	collectionWrites.Inc()
	if l.links != nil {
		return l.links.Swap(i, j)
	}
	return l.table.SwapRows(i, j)
}

// Move moves the element at src to dst. Only link backed lists support moves.
func (l List) Move(src, dst int) error {
	size, err := l.linkWrite()
	if err != nil {
		return err
	}
	if err := verifyValidRow(src, size, false); err != nil {
		return err
	}
	if err := verifyValidRow(dst, size, false); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.links.Move(src, dst)
}

// --------------------------------------------------------------------------
// Values of the first column
// --------------------------------------------------------------------------

// verifyValueColumn checks that the first column of the target table stores T
func verifyValueColumn[T Element](t db.Table) error {
	columns := t.Columns()
	if len(columns) == 0 {
		return db.ErrColumnOutOfRange
	}
	return verifyElementColumn[T](columns[valueColumn])
}

// GetValue reads the first column of the row at index i
func GetValue[T Element](l List, i int) (T, error) {
	var zero T
	size, err := l.sizeAttached()
	if err != nil {
		return zero, err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return zero, err
	}
	if err := verifyValueColumn[T](l.table); err != nil {
		return zero, err
	}
	v, err := l.table.Get(valueColumn, l.ToStorageIndex(i))
	if err != nil {
		return zero, err
	}
	return fromStorage[T](v), nil
}

// FindValue returns the index of the first element whose first column holds the value
func FindValue[T Element](l List, value T) (int, error) {
	if err := l.VerifyAttached(); err != nil {
		return db.NotFound, err
	}
	if err := verifyValueColumn[T](l.table); err != nil {
		return db.NotFound, err
	}
	kind, _ := elementKind[T]()
	v := searchValue(kind, toStorage(value))

	if l.links == nil {
		return l.table.FindFirst(valueColumn, v), nil
	}
	q := l.links.Where()
	if v == nil {
		q = q.IsNull(valueColumn)
	} else {
		q = q.Equal(valueColumn, v)
	}
	row := q.Find()
	if row == db.NotFound {
		return db.NotFound, nil
	}
	return l.links.Find(row), nil
}

// valueWrite verifies a value write, which only table backed lists support
func valueWrite[T Element](l List) (int, error) {
	size, err := l.sizeInTransaction()
	if err != nil {
		return 0, err
	}
	if l.links != nil {
		return 0, ErrLogic
	}
	if err := verifyValueColumn[T](l.table); err != nil {
		return 0, err
	}
	return size, nil
}

func setValue[T Element](t db.Table, row int, value T) error {
	collectionWrites.Inc()
	v := toStorage(value)
	if v == nil {
		return t.SetNull(valueColumn, row)
	}
	return t.Set(valueColumn, row, v)
}

// AddValue appends a row holding the value to a table backed list
func AddValue[T Element](l List, value T) error {
	size, err := valueWrite[T](l)
	if err != nil {
		return err
	}
	return insertValue(l.table, size, value)
}

// InsertValue inserts a row holding the value at index i of a table backed list
func InsertValue[T Element](l List, i int, value T) error {
	size, err := valueWrite[T](l)
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, true); err != nil {
		return err
	}
	return insertValue(l.table, i, value)
}

func insertValue[T Element](t db.Table, i int, value T) error {
	if err := t.InsertEmptyRow(i); err != nil {
		return err
	}
	if err := setValue(t, i, value); err != nil {
		_ = t.RemoveRow(i)
		return err
	}
	return nil
}

// SetValue replaces the value of the row at index i of a table backed list
func SetValue[T Element](l List, i int, value T) error {
	size, err := valueWrite[T](l)
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	return setValue(l.table, i, value)
}

// --------------------------------------------------------------------------
// Results and Aggregates
// --------------------------------------------------------------------------

// Results returns live results over the rows of the list in list order
func (l List) Results() (*Results, error) {
	if err := l.VerifyAttached(); err != nil {
		return nil, err
	}
	if l.links != nil {
		return &Results{base: newQueryResults(l.session, l.links, l.links.Where())}, nil
	}
	return &Results{base: newTableResults(l.session, l.table, l.table)}, nil
}

// Query returns a query matching the rows of the list
func (l List) Query() (db.Query, error) {
	if err := l.VerifyAttached(); err != nil {
		return nil, err
	}
	if l.links != nil {
		return l.links.Where(), nil
	}
	return l.table.Where(), nil
}

// Sort returns live results ordered by the clauses
func (l List) Sort(clauses ...db.SortClause) (*Results, error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Sort(clauses...)
}

// Filter returns live results of the rows matching q
func (l List) Filter(q db.Query) (*Results, error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Filter(q)
}

// Snapshot returns a frozen copy of the rows
func (l List) Snapshot() (*Results, error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Snapshot()
}

// Min returns the smallest value of a target table column over the rows of the list
func (l List) Min(col int) (any, bool, error) {
	r, err := l.Results()
	if err != nil {
		return nil, false, err
	}
	return r.Min(col)
}

// Max returns the largest value of a target table column over the rows of the list
func (l List) Max(col int) (any, bool, error) {
	r, err := l.Results()
	if err != nil {
		return nil, false, err
	}
	return r.Max(col)
}

// Sum returns the sum of a target table column over the rows of the list
func (l List) Sum(col int) (any, error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	v, _, err := r.Sum(col)
	return v, err
}

// Average returns the mean of a target table column over the rows of the list
func (l List) Average(col int) (float64, bool, error) {
	r, err := l.Results()
	if err != nil {
		return 0, false, err
	}
	return r.Average(col)
}

// --------------------------------------------------------------------------
// Identity
// --------------------------------------------------------------------------

// Equal reports whether both lists are backed by the same link list or table.
// Link lists are identified by origin table, column and origin row.
func (l List) Equal(other List) bool {
	return l.handle.equal(other.handle)
}

// Hash is consistent with Equal
func (l List) Hash() uint64 {
	return l.hash()
}

// OriginRowIndex returns the index of the row owning the list
func (l List) OriginRowIndex() (int, error) {
	if err := l.VerifyAttached(); err != nil {
		return db.NotFound, err
	}
	if l.links != nil {
		return l.links.OriginRow(), nil
	}
	_, row := l.table.Parent()
	return row, nil
}

// AddNotificationCallback registers a callback for changes of the list.
// Link backed lists also report changes of the linked rows as modifications.
func (l List) AddNotificationCallback(fn notify.Callback) (*notify.Token, error) {
	if l.links != nil {
		links := l.links
		return l.addCallback(func() ([]db.RowState, bool) {
			return links.RowStates(), links.IsAttached()
		}, fn)
	}
	t := l.table
	return l.addCallback(func() ([]db.RowState, bool) {
		return t.RowStates(), t.IsAttached()
	}, fn)
}
