package collection

import (
	"github.com/ValentinKolb/dObj/lib/db"
)

// capability lists the aggregates a column kind supports
type capability struct {
	min, max, sum, average bool
}

var numeric = capability{min: true, max: true, sum: true, average: true}

// capabilities holds every kind with at least one aggregate.
// Booleans, strings, binaries and links have none.
var capabilities = map[db.Kind]capability{
	db.KindInt:       numeric,
	db.KindFloat:     numeric,
	db.KindDouble:    numeric,
	db.KindTimestamp: {min: true, max: true},
}

func supportsAggregate(kind db.Kind, op db.AggregateOp) bool {
	c := capabilities[kind]
	switch op {
	case db.AggMin:
		return c.min
	case db.AggMax:
		return c.max
	case db.AggSum:
		return c.sum
	case db.AggAverage:
		return c.average
	default:
		return false
	}
}
