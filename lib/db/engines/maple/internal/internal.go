package internal

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
)

// --------------------------------------------------------------------------
// Row Type (storage representation of a single row)
// --------------------------------------------------------------------------

// Row stores the cells of one row with metadata.
//
// Cell representation per kind:
//   - int, bool: int64 (bool as 0/1)
//   - float: float32, double: float64
//   - string: string, binary: []byte, timestamp: time.Time
//   - link: db.RowKey of the target row
//   - link list and list: engine specific pointer
//
// A nil cell is null.
type Row struct {
	Key     db.RowKey
	Version uint64 // Data version of the last modification
	Cells   []any
}

// --------------------------------------------------------------------------
// Value Conversion
// --------------------------------------------------------------------------

// Normalize converts a caller provided value into the storage representation of the kind
func Normalize(kind db.Kind, v any) (any, error) {
	switch kind {
	case db.KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		}
	case db.KindBool:
		switch x := v.(type) {
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case int64:
			if x != 0 {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case db.KindFloat:
		switch x := v.(type) {
		case float32:
			return x, nil
		case float64:
			return float32(x), nil
		}
	case db.KindDouble:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
	case db.KindString:
		if x, ok := v.(string); ok {
			return x, nil
		}
	case db.KindBinary:
		if x, ok := v.([]byte); ok {
			// copy value to prevent memory corruption
			c := make([]byte, len(x))
			copy(c, x)
			return c, nil
		}
	case db.KindTimestamp:
		if x, ok := v.(time.Time); ok {
			return x, nil
		}
	}
	return nil, db.ErrTypeMismatch
}

// Denormalize converts a stored cell into the value handed out to callers
func Denormalize(kind db.Kind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case db.KindBool:
		return v.(int64) != 0
	case db.KindBinary:
		b := v.([]byte)
		c := make([]byte, len(b))
		copy(c, b)
		return c
	default:
		return v
	}
}

// Compare orders two stored cells of the same kind. Null sorts before every value.
func Compare(kind db.Kind, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch kind {
	case db.KindInt, db.KindBool:
		return cmp.Compare(a.(int64), b.(int64))
	case db.KindFloat:
		return cmp.Compare(a.(float32), b.(float32))
	case db.KindDouble:
		return cmp.Compare(a.(float64), b.(float64))
	case db.KindString:
		return strings.Compare(a.(string), b.(string))
	case db.KindBinary:
		return bytes.Compare(a.([]byte), b.([]byte))
	case db.KindTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	case db.KindLink:
		return cmp.Compare(a.(db.RowKey), b.(db.RowKey))
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Binary Encoding
// --------------------------------------------------------------------------

// Encoder writes little endian values and keeps the first error
type Encoder struct {
	w   *bufio.Writer
	err error
}

func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) Raw(s string) {
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

func (e *Encoder) Uint8(v uint8) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *Encoder) Uint32(v uint32) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *Encoder) Uint64(v uint64) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

// Bytes writes a length prefixed byte slice
func (e *Encoder) Bytes(b []byte) {
	e.Uint32(uint32(len(b)))
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *Encoder) String(s string) {
	e.Bytes([]byte(s))
}

// Cell writes a null flag followed by the value of a primitive or link cell
func (e *Encoder) Cell(kind db.Kind, v any) {
	if v == nil {
		e.Uint8(0)
		return
	}
	e.Uint8(1)

	switch kind {
	case db.KindInt, db.KindBool:
		e.Uint64(uint64(v.(int64)))
	case db.KindFloat:
		e.Uint32(math.Float32bits(v.(float32)))
	case db.KindDouble:
		e.Uint64(math.Float64bits(v.(float64)))
	case db.KindString:
		e.String(v.(string))
	case db.KindBinary:
		e.Bytes(v.([]byte))
	case db.KindTimestamp:
		b, err := v.(time.Time).MarshalBinary()
		if err != nil && e.err == nil {
			e.err = err
		}
		e.Bytes(b)
	case db.KindLink:
		e.Uint64(uint64(v.(db.RowKey)))
	}
}

// Decoder reads values written by an Encoder and keeps the first error
type Decoder struct {
	r   *bufio.Reader
	err error
}

func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) Err() error {
	return d.err
}

// Fail records an error if none occurred so far
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) Raw(n int) string {
	if d.err != nil {
		return ""
	}
	b := make([]byte, n)
	_, d.err = io.ReadFull(d.r, b)
	return string(b)
}

func (d *Decoder) Uint8() (v uint8) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return v
}

func (d *Decoder) Uint32() (v uint32) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return v
}

func (d *Decoder) Uint64() (v uint64) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return v
}

func (d *Decoder) Bool() bool {
	return d.Uint8() != 0
}

func (d *Decoder) Bytes() []byte {
	n := d.Uint32()
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, d.err = io.ReadFull(d.r, b)
	return b
}

func (d *Decoder) String() string {
	return string(d.Bytes())
}

// Cell reads a value written by Encoder.Cell
func (d *Decoder) Cell(kind db.Kind) any {
	if d.Uint8() == 0 || d.err != nil {
		return nil
	}

	switch kind {
	case db.KindInt, db.KindBool:
		return int64(d.Uint64())
	case db.KindFloat:
		return math.Float32frombits(d.Uint32())
	case db.KindDouble:
		return math.Float64frombits(d.Uint64())
	case db.KindString:
		return d.String()
	case db.KindBinary:
		return d.Bytes()
	case db.KindTimestamp:
		var t time.Time
		if err := t.UnmarshalBinary(d.Bytes()); err != nil {
			d.Fail(err)
		}
		return t
	case db.KindLink:
		return db.RowKey(d.Uint64())
	default:
		d.Fail(db.ErrUnsupported)
		return nil
	}
}
