package maple

import (
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple/internal"
)

// number is the set of cell types that support every aggregate
type number interface {
	~int64 | ~float32 | ~float64
}

// aggregate runs op over column col of rows. Nil rows (detached) and null cells are skipped.
// The Row of a min/max result is the index into rows.
func aggregate(kind db.Kind, op db.AggregateOp, col int, rows []*internal.Row) (db.AggregateResult, error) {
	switch kind {
	case db.KindInt:
		return aggregateNumbers[int64](op, col, rows)
	case db.KindFloat:
		return aggregateNumbers[float32](op, col, rows)
	case db.KindDouble:
		return aggregateNumbers[float64](op, col, rows)
	case db.KindTimestamp:
		if op != db.AggMin && op != db.AggMax {
			return db.AggregateResult{Row: db.NotFound}, db.ErrUnsupported
		}
		return extreme(op, col, rows, func(a, b time.Time) bool { return a.Before(b) }), nil
	default:
		return db.AggregateResult{Row: db.NotFound}, db.ErrUnsupported
	}
}

func aggregateNumbers[T number](op db.AggregateOp, col int, rows []*internal.Row) (db.AggregateResult, error) {
	switch op {
	case db.AggMin, db.AggMax:
		return extreme(op, col, rows, func(a, b T) bool { return a < b }), nil

	case db.AggSum, db.AggAverage:
		var (
			isum  int64
			fsum  float64
			count int
		)
		for _, r := range rows {
			if r == nil {
				continue
			}
			v, ok := r.Cells[col].(T)
			if !ok {
				continue
			}
			switch x := any(v).(type) {
			case int64:
				isum += x
				fsum += float64(x)
			case float32:
				fsum += float64(x)
			case float64:
				fsum += x
			}
			count++
		}

		res := db.AggregateResult{Row: db.NotFound, Count: count}
		if op == db.AggAverage {
			if count > 0 {
				res.Value = fsum / float64(count)
			}
			return res, nil
		}

		var zero T
		if _, isInt := any(zero).(int64); isInt {
			res.Value = isum
		} else {
			res.Value = fsum
		}
		return res, nil

	default:
		return db.AggregateResult{Row: db.NotFound}, db.ErrUnsupported
	}
}

// extreme finds the minimum or maximum non-null cell
func extreme[T any](op db.AggregateOp, col int, rows []*internal.Row, less func(a, b T) bool) db.AggregateResult {
	res := db.AggregateResult{Row: db.NotFound}
	var best T
	for i, r := range rows {
		if r == nil {
			continue
		}
		v, ok := r.Cells[col].(T)
		if !ok {
			continue
		}
		res.Count++
		if res.Row == db.NotFound ||
			(op == db.AggMin && less(v, best)) ||
			(op == db.AggMax && less(best, v)) {
			best = v
			res.Row = i
		}
	}
	if res.Row != db.NotFound {
		res.Value = best
	}
	return res
}
