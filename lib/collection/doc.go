/*
Package collection provides typed, observable accessors for the collections of a group.

There are three kinds of accessors:

  - PrimitiveList[T]: an ordered list of values (bool, int64, float32, float64, string,
    []byte, time.Time and the nullable Optional variants) stored in a subtable
  - List: an ordered list of rows of a target table, backed by a link list or by a table
  - Results / PrimitiveResults[T]: sorted, filtered, distinct or frozen views of a table,
    a query or a list

Accessors are handles. They hold no state of their own besides the backing storage
structure and the owning session, and every call validates them again:

  - the session must be used from the goroutine that opened it (session.ErrWrongGoroutine)
  - the backing structure must still be attached (ErrInvalidated)
  - writes need an active write transaction (ErrInvalidTransaction)
  - indices are checked against the current size (*OutOfBoundsIndexError)

Results have one of four modes (see Mode). Table results enumerate the rows of a table,
query results keep a materialized view that is rebuilt on access once the data version
changed, and view results (from Snapshot or Distinct) are frozen: a row deleted after
the snapshot reads as "no value" instead of failing.

Aggregates are checked against the column kind first. Sum and average exist for int,
float and double columns, min and max additionally for timestamps. Everything else
fails with *UnsupportedAggregateError.

Example:

	list, err := collection.PrimitiveListOf[int64](s, owners, col, row)
	if err != nil { ... }

	err = s.Write(func() error {
		return list.Add(42)
	})

	token, err := list.AddNotificationCallback(func(cs notify.ChangeSet) { ... })
	defer token.Unregister()
*/
package collection

import "github.com/lni/dragonboat/v4/logger"

// Logger is the logger of the collection package
var Logger = logger.GetLogger("collection")
