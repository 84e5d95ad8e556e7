package collection

import (
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
)

// valueColumn is the column holding the values of a primitive list
const valueColumn = 0

// PrimitiveResults are the results of a primitive list: sorted, filtered,
// distinct or snapshotted values of type T.
type PrimitiveResults[T Element] struct {
	base *resultsBase
}

// EmptyPrimitiveResults returns results without backing
func EmptyPrimitiveResults[T Element]() *PrimitiveResults[T] {
	return &PrimitiveResults[T]{base: newEmptyResults()}
}

func wrapPrimitive[T Element](base *resultsBase, err error) (*PrimitiveResults[T], error) {
	if err != nil {
		return nil, err
	}
	return &PrimitiveResults[T]{base: base}, nil
}

// Mode returns how the results are backed
func (r *PrimitiveResults[T]) Mode() Mode {
	return r.base.mode
}

// IsValid reports whether the session is open and the backing still attached.
// Empty results are always valid.
func (r *PrimitiveResults[T]) IsValid() bool {
	return r.base.isValid()
}

// Size returns the number of values, rebuilding the view of query results if needed
func (r *PrimitiveResults[T]) Size() (int, error) {
	return r.base.size()
}

// Get returns the i-th value. ok is false when the row was deleted after a snapshot was taken.
func (r *PrimitiveResults[T]) Get(i int) (value T, ok bool, err error) {
	v, ok, err := r.base.get(valueColumn, i)
	return fromStorage[T](v), ok, err
}

// First returns the first value, ok is false for empty results
func (r *PrimitiveResults[T]) First() (value T, ok bool, err error) {
	v, ok, err := r.base.first(valueColumn)
	return fromStorage[T](v), ok, err
}

// Last returns the last value, ok is false for empty results
func (r *PrimitiveResults[T]) Last() (value T, ok bool, err error) {
	v, ok, err := r.base.last(valueColumn)
	return fromStorage[T](v), ok, err
}

// IndexOf returns the index of the first occurrence of the value or db.NotFound.
// An invalid Optional searches for null.
func (r *PrimitiveResults[T]) IndexOf(value T) (int, error) {
	return r.base.indexOf(valueColumn, toStorage(value))
}

// Min returns the smallest non-null value, ok is false when there is none
func (r *PrimitiveResults[T]) Min() (value T, ok bool, err error) {
	return aggregateAs[T](r.base, db.AggMin)
}

// Max returns the largest non-null value, ok is false when there is none
func (r *PrimitiveResults[T]) Max() (value T, ok bool, err error) {
	return aggregateAs[T](r.base, db.AggMax)
}

// Sum returns the sum of all non-null values, zero for no values.
// ok is only false for empty results.
func (r *PrimitiveResults[T]) Sum() (value T, ok bool, err error) {
	return aggregateAs[T](r.base, db.AggSum)
}

// Average returns the mean of all non-null values, ok is false when there is none
func (r *PrimitiveResults[T]) Average() (value float64, ok bool, err error) {
	v, ok, err := r.base.aggregate(db.AggAverage, valueColumn)
	if !ok || err != nil {
		return 0, false, err
	}
	return v.(float64), true, nil
}

func aggregateAs[T Element](base *resultsBase, op db.AggregateOp) (T, bool, error) {
	v, ok, err := base.aggregate(op, valueColumn)
	if !ok || err != nil {
		var zero T
		return zero, false, err
	}
	return fromStorage[T](v), true, nil
}

// Sort returns live results ordered by value
func (r *PrimitiveResults[T]) Sort(ascending bool) (*PrimitiveResults[T], error) {
	return wrapPrimitive[T](r.base.sorted([]db.SortClause{{Column: valueColumn, Ascending: ascending}}))
}

// Filter returns live results matching both the current query and q
func (r *PrimitiveResults[T]) Filter(q db.Query) (*PrimitiveResults[T], error) {
	return wrapPrimitive[T](r.base.filtered(q))
}

// Distinct returns a snapshot keeping the first occurrence of every value
func (r *PrimitiveResults[T]) Distinct() (*PrimitiveResults[T], error) {
	return wrapPrimitive[T](r.base.distinctOn(valueColumn))
}

// Snapshot returns a frozen copy that does not reflect later changes
func (r *PrimitiveResults[T]) Snapshot() (*PrimitiveResults[T], error) {
	return wrapPrimitive[T](r.base.snapshot())
}

// Values returns all values in order, rows deleted after a snapshot are skipped
func (r *PrimitiveResults[T]) Values() ([]T, error) {
	size, err := r.base.size()
	if err != nil {
		return nil, err
	}
	values := make([]T, 0, size)
	for i := 0; i < size; i++ {
		v, ok, err := r.Get(i)
		if err != nil {
			return nil, err
		}
		if ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// AddNotificationCallback registers a callback for changes of these results
func (r *PrimitiveResults[T]) AddNotificationCallback(fn notify.Callback) (*notify.Token, error) {
	return r.base.addCallback(fn)
}
