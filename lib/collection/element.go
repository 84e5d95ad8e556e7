package collection

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
)

// --------------------------------------------------------------------------
// Element Types
// --------------------------------------------------------------------------

// Optional is a value of a nullable column. Valid is false for null.
type Optional[V bool | int64 | float32 | float64] struct {
	Value V
	Valid bool
}

// Some returns a non-null optional
func Some[V bool | int64 | float32 | float64](v V) Optional[V] {
	return Optional[V]{Value: v, Valid: true}
}

// None returns a null optional
func None[V bool | int64 | float32 | float64]() Optional[V] {
	return Optional[V]{}
}

func (o Optional[V]) storage() any {
	if !o.Valid {
		return nil
	}
	return o.Value
}

// nullable is implemented by every Optional
type nullable interface {
	storage() any
}

// Element is the closed set of types a PrimitiveList can hold
type Element interface {
	bool | int64 | float32 | float64 | string | []byte | time.Time |
		Optional[bool] | Optional[int64] | Optional[float32] | Optional[float64]
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// elementKind maps an element type to the column kind storing it and
// whether the element type can hold null
func elementKind[T Element]() (kind db.Kind, isNullable bool) {
	var zero T
	switch any(zero).(type) {
	case bool:
		return db.KindBool, false
	case int64:
		return db.KindInt, false
	case float32:
		return db.KindFloat, false
	case float64:
		return db.KindDouble, false
	case string:
		return db.KindString, false
	case []byte:
		return db.KindBinary, false
	case time.Time:
		return db.KindTimestamp, false
	case Optional[bool]:
		return db.KindBool, true
	case Optional[int64]:
		return db.KindInt, true
	case Optional[float32]:
		return db.KindFloat, true
	default: // Optional[float64]
		return db.KindDouble, true
	}
}

// verifyElementColumn checks that a column can be read as T. A nullable column
// needs an Optional element type, otherwise a stored null would read as zero.
func verifyElementColumn[T Element](c db.ColumnSpec) error {
	kind, isNullable := elementKind[T]()
	if c.Kind != kind {
		return fmt.Errorf("element of %s on a %s column: %w", kind, c.Kind, db.ErrTypeMismatch)
	}
	if c.Nullable && !isNullable {
		return fmt.Errorf("non-nullable element of %s on a nullable column: %w", kind, db.ErrTypeMismatch)
	}
	return nil
}

// toStorage converts an element into the value written to storage, nil for null
func toStorage[T Element](v T) any {
	if n, ok := any(v).(nullable); ok {
		return n.storage()
	}
	return any(v)
}

// fromStorage converts a stored value into an element. Null yields the zero
// value, which is an invalid Optional for nullable element types.
func fromStorage[T Element](v any) T {
	var out T
	switch p := any(&out).(type) {
	case *bool:
		*p, _ = v.(bool)
	case *int64:
		*p, _ = v.(int64)
	case *float32:
		*p, _ = v.(float32)
	case *float64:
		*p, _ = v.(float64)
	case *string:
		*p, _ = v.(string)
	case *[]byte:
		*p, _ = v.([]byte)
	case *time.Time:
		*p, _ = v.(time.Time)
	case *Optional[bool]:
		*p = optionalFrom[bool](v)
	case *Optional[int64]:
		*p = optionalFrom[int64](v)
	case *Optional[float32]:
		*p = optionalFrom[float32](v)
	case *Optional[float64]:
		*p = optionalFrom[float64](v)
	}
	return out
}

func optionalFrom[V bool | int64 | float32 | float64](v any) Optional[V] {
	x, ok := v.(V)
	return Optional[V]{Value: x, Valid: ok}
}

// searchValue converts a value for a search on a column of the given kind.
// Booleans are stored as integers and searched as such.
func searchValue(kind db.Kind, v any) any {
	if b, ok := v.(bool); ok && kind == db.KindBool {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// aggregateValue converts the value of an aggregate result into the storage form of the kind
func aggregateValue(kind db.Kind, v any) any {
	switch kind {
	case db.KindFloat:
		if f, ok := v.(float64); ok {
			return float32(f)
		}
	case db.KindDouble:
		if f, ok := v.(float32); ok {
			return float64(f)
		}
	}
	return v
}
