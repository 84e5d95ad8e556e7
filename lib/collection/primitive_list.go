package collection

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
)

var collectionWrites = metrics.GetOrCreateCounter("dobj_collection_writes_total")

// PrimitiveList is an ordered list of values of type T, stored in the single
// column of a subtable owned by a row.
//
// The list is a handle: it can be copied freely and is validated on every call.
// Reads require a valid list, writes additionally an active write transaction.
//
// Not thread-safe: a list may only be used on the goroutine of its session.
type PrimitiveList[T Element] struct {
	handle
	table db.Table
	kind  db.Kind
}

// NewPrimitiveList creates a list on a table whose first column stores T
func NewPrimitiveList[T Element](s Session, t db.Table) (PrimitiveList[T], error) {
	kind, _ := elementKind[T]()
	columns := t.Columns()
	if len(columns) == 0 {
		return PrimitiveList[T]{}, fmt.Errorf("primitive list on %s: %w", t.Identity(), db.ErrColumnOutOfRange)
	}
	if err := verifyElementColumn[T](columns[valueColumn]); err != nil {
		return PrimitiveList[T]{}, fmt.Errorf("primitive list on %s: %w", t.Identity(), err)
	}
	return PrimitiveList[T]{
		handle: handle{session: s, backing: t},
		table:  t,
		kind:   kind,
	}, nil
}

// PrimitiveListOf returns the list stored in a list column of a row
func PrimitiveListOf[T Element](s Session, parent db.Table, col, row int) (PrimitiveList[T], error) {
	if err := s.VerifyThread(); err != nil {
		return PrimitiveList[T]{}, err
	}
	sub, err := parent.Subtable(col, row)
	if err != nil {
		return PrimitiveList[T]{}, err
	}
	return NewPrimitiveList[T](s, sub)
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Size returns the number of values, ErrInvalidated if the list was detached
func (l PrimitiveList[T]) Size() (int, error) {
	return l.sizeAttached()
}

// ToStorageIndex maps a list index to a row of the backing table
func (l PrimitiveList[T]) ToStorageIndex(i int) int {
	return i
}

// Get returns the value at index i. A null reads as an invalid Optional.
func (l PrimitiveList[T]) Get(i int) (T, error) {
	var zero T
	size, err := l.sizeAttached()
	if err != nil {
		return zero, err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return zero, err
	}
	v, err := l.table.Get(valueColumn, l.ToStorageIndex(i))
	if err != nil {
		return zero, err
	}
	return fromStorage[T](v), nil
}

// GetUnchecked reads without any validation, for iteration over a verified list
func (l PrimitiveList[T]) GetUnchecked(i int) T {
	v, _ := l.table.Get(valueColumn, l.ToStorageIndex(i))
	return fromStorage[T](v)
}

// Values returns all values in order
func (l PrimitiveList[T]) Values() ([]T, error) {
	size, err := l.sizeAttached()
	if err != nil {
		return nil, err
	}
	values := make([]T, size)
	for i := range values {
		values[i] = l.GetUnchecked(i)
	}
	return values, nil
}

// Find returns the index of the first occurrence of the value or db.NotFound.
// An invalid Optional searches for the first null.
func (l PrimitiveList[T]) Find(value T) (int, error) {
	if err := l.VerifyAttached(); err != nil {
		return db.NotFound, err
	}
	v := toStorage(value)
	if v == nil {
		return l.table.FindFirstNull(valueColumn), nil
	}
	return l.table.FindFirst(valueColumn, searchValue(l.kind, v)), nil
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// set writes a value to a row, null goes through SetNull
func (l PrimitiveList[T]) set(row int, value T) error {
	collectionWrites.Inc()
	v := toStorage(value)
	if v == nil {
		return l.table.SetNull(valueColumn, row)
	}
	return l.table.Set(valueColumn, row, v)
}

// Add appends a value
func (l PrimitiveList[T]) Add(value T) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	return l.insert(size, value)
}

// Insert inserts a value at index i, i == Size() appends
func (l PrimitiveList[T]) Insert(i int, value T) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, true); err != nil {
		return err
	}
	return l.insert(i, value)
}

func (l PrimitiveList[T]) insert(i int, value T) error {
	if err := l.table.InsertEmptyRow(i); err != nil {
		return err
	}
	if err := l.set(i, value); err != nil {
		// do not leave the empty row behind
		_ = l.table.RemoveRow(i)
		return err
	}
	return nil
}

// Set replaces the value at index i
func (l PrimitiveList[T]) Set(i int, value T) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	return l.set(l.ToStorageIndex(i), value)
}

// Remove removes the value at index i, later values move down by one
func (l PrimitiveList[T]) Remove(i int) error {
	size, err := l.sizeInTransaction()
	if err != nil {
		return err
	}
	if err := verifyValidRow(i, size, false); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.table.RemoveRow(l.ToStorageIndex(i))
}

// RemoveAll removes every value
func (l PrimitiveList[T]) RemoveAll() error {
	if err := l.VerifyInTransaction(); err != nil {
		return err
	}
	collectionWrites.Inc()
	return l.table.Clear()
}

// Swap exchanges the values at i and j
func (l PrimitiveList[T]) Swap(i, j int) error {
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
	return l.table.SwapRows(l.ToStorageIndex(i), l.ToStorageIndex(j))
}

// Move moves the value at src to dst. Both indices are checked against the size before the move.
func (l PrimitiveList[T]) Move(src, dst int) error {
	size, err := l.sizeInTransaction()
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
	return l.table.MoveRow(l.ToStorageIndex(src), l.ToStorageIndex(dst))
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// Results returns live results over all values in list order
func (l PrimitiveList[T]) Results() (*PrimitiveResults[T], error) {
	if err := l.VerifyAttached(); err != nil {
		return nil, err
	}
	return &PrimitiveResults[T]{base: newTableResults(l.session, l.table, l.table)}, nil
}

// Sort returns live results ordered by value
func (l PrimitiveList[T]) Sort(ascending bool) (*PrimitiveResults[T], error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Sort(ascending)
}

// Filter returns live results of the values matching q, q must be built on Query()
func (l PrimitiveList[T]) Filter(q db.Query) (*PrimitiveResults[T], error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Filter(q)
}

// Snapshot returns a frozen copy of the values
func (l PrimitiveList[T]) Snapshot() (*PrimitiveResults[T], error) {
	r, err := l.Results()
	if err != nil {
		return nil, err
	}
	return r.Snapshot()
}

// Query returns a query matching every value of the list
func (l PrimitiveList[T]) Query() (db.Query, error) {
	if err := l.VerifyAttached(); err != nil {
		return nil, err
	}
	return l.table.Where(), nil
}

// Min returns the smallest non-null value. ok is false for an empty list.
func (l PrimitiveList[T]) Min() (T, bool, error) {
	r, err := l.Results()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.Min()
}

// Max returns the largest non-null value. ok is false for an empty list.
func (l PrimitiveList[T]) Max() (T, bool, error) {
	r, err := l.Results()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.Max()
}

// Sum returns the sum of the non-null values, zero for an empty list
func (l PrimitiveList[T]) Sum() (T, error) {
	r, err := l.Results()
	if err != nil {
		var zero T
		return zero, err
	}
	v, _, err := r.Sum()
	return v, err
}

// Average returns the mean of the non-null values, ok is false if there are none
func (l PrimitiveList[T]) Average() (float64, bool, error) {
	r, err := l.Results()
	if err != nil {
		return 0, false, err
	}
	return r.Average()
}

// --------------------------------------------------------------------------
// Identity
// --------------------------------------------------------------------------

// Equal reports whether both lists are backed by the same subtable
func (l PrimitiveList[T]) Equal(other PrimitiveList[T]) bool {
	return l.handle.equal(other.handle)
}

// Hash is consistent with Equal
func (l PrimitiveList[T]) Hash() uint64 {
	return l.hash()
}

// OriginRowIndex returns the index of the row owning the list
func (l PrimitiveList[T]) OriginRowIndex() (int, error) {
	if err := l.VerifyAttached(); err != nil {
		return db.NotFound, err
	}
	_, row := l.table.Parent()
	return row, nil
}

// AddNotificationCallback registers a callback for changes of the list.
// All callbacks of the list in one session share a notifier.
func (l PrimitiveList[T]) AddNotificationCallback(fn notify.Callback) (*notify.Token, error) {
	t := l.table
	return l.addCallback(func() ([]db.RowState, bool) {
		return t.RowStates(), t.IsAttached()
	}, fn)
}
