package collection

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dObj/lib/db"
)

var (
	// ErrInvalidated is returned when the collection was deleted or its session closed.
	// The accessor has to be fetched again.
	ErrInvalidated = errors.New("collection is no longer valid")

	// ErrInvalidTransaction is returned by writes outside a write transaction
	ErrInvalidTransaction = errors.New("cannot modify a collection outside of a write transaction")

	// ErrLogic is returned for operations the backing of a collection does not support
	ErrLogic = errors.New("operation not supported by this collection")

	// ErrUnsupportedAggregate matches every *UnsupportedAggregateError
	ErrUnsupportedAggregate = errors.New("aggregate not supported")

	// ErrOutOfBounds matches every *OutOfBoundsIndexError
	ErrOutOfBounds = errors.New("index out of bounds")
)

// OutOfBoundsIndexError reports an index outside the legal range of an access.
// ValidCount is the collection size, plus one for insertions.
type OutOfBoundsIndexError struct {
	Requested  int
	ValidCount int
}

func (e *OutOfBoundsIndexError) Error() string {
	return fmt.Sprintf("requested index %d is out of bounds (valid count: %d)", e.Requested, e.ValidCount)
}

// Is makes errors.Is(err, ErrOutOfBounds) hold
func (e *OutOfBoundsIndexError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// UnsupportedAggregateError reports an aggregate without meaning for a column type
type UnsupportedAggregateError struct {
	Op   db.AggregateOp
	Kind db.Kind
}

func (e *UnsupportedAggregateError) Error() string {
	return fmt.Sprintf("%s is not supported for %s columns", e.Op, e.Kind)
}

// Is makes errors.Is(err, ErrUnsupportedAggregate) hold
func (e *UnsupportedAggregateError) Is(target error) bool {
	return target == ErrUnsupportedAggregate
}
