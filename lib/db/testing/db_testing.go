package testing

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
)

// GroupFactory is a function that creates a new, empty instance of a db.Group implementation
type GroupFactory func() db.Group

// RunEngineTests runs a comprehensive test suite for a storage engine implementation.
func RunEngineTests(t *testing.T, name string, factory GroupFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Tables", func(t *testing.T) {
			testTables(t, factory())
		})

		t.Run("RowOperations", func(t *testing.T) {
			testRowOperations(t, factory())
		})

		t.Run("Cells", func(t *testing.T) {
			testCells(t, factory())
		})

		t.Run("FindFirst", func(t *testing.T) {
			testFindFirst(t, factory())
		})

		t.Run("LinkLists", func(t *testing.T) {
			testLinkLists(t, factory())
		})

		t.Run("LinkCascade", func(t *testing.T) {
			testLinkCascade(t, factory())
		})

		t.Run("PrimitiveLists", func(t *testing.T) {
			testPrimitiveLists(t, factory())
		})

		t.Run("Queries", func(t *testing.T) {
			testQueries(t, factory())
		})

		t.Run("Views", func(t *testing.T) {
			testViews(t, factory())
		})

		t.Run("Aggregates", func(t *testing.T) {
			testAggregates(t, factory())
		})

		t.Run("Versions", func(t *testing.T) {
			testVersions(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, group db.Group, feature db.Feature) {
	if !group.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustTable creates a table or fails the test
func mustTable(t testing.TB, group db.Group, name string, columns ...db.ColumnSpec) db.Table {
	t.Helper()
	table, err := group.AddTable(name, columns...)
	if err != nil {
		t.Fatalf("Failed to add table %s: %v", name, err)
	}
	return table
}

// addRows appends rows and sets column 0 of each row to the given values
func addRows(t testing.TB, table db.Table, values ...any) {
	t.Helper()
	for _, v := range values {
		row, err := table.AddEmptyRow()
		if err != nil {
			t.Fatalf("Failed to add row: %v", err)
		}
		if err := table.Set(0, row, v); err != nil {
			t.Fatalf("Failed to set value %v: %v", v, err)
		}
	}
}

func viewInts(t testing.TB, v db.View, col int) []int64 {
	t.Helper()
	out := make([]int64, 0, v.Size())
	for i := 0; i < v.Size(); i++ {
		row := v.Get(i)
		if row == db.NotFound {
			continue
		}
		val, err := v.Table().Get(col, row)
		if err != nil {
			t.Fatalf("Failed to read row %d: %v", row, err)
		}
		out = append(out, val.(int64))
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testTables(t *testing.T, group db.Group) {
	defer group.Close()

	people := mustTable(t, group, "people", db.ColumnSpec{Name: "name", Kind: db.KindString})
	if people.Name() != "people" {
		t.Errorf("Expected table name people, got %s", people.Name())
	}
	if people.ColumnIndex("name") != 0 || people.ColumnIndex("missing") != db.NotFound {
		t.Errorf("Unexpected column indices")
	}

	if _, err := group.AddTable("people"); !errors.Is(err, db.ErrTableExists) {
		t.Errorf("Expected ErrTableExists, got %v", err)
	}
	if _, err := group.AddTable("dogs", db.ColumnSpec{Name: "owner", Kind: db.KindLink, Target: "cats"}); !errors.Is(err, db.ErrNoSuchTable) {
		t.Errorf("Expected ErrNoSuchTable, got %v", err)
	}

	mustTable(t, group, "nodes", db.ColumnSpec{Name: "children", Kind: db.KindLinkList, Target: "nodes"})

	names := group.TableNames()
	if len(names) != 2 || names[0] != "people" || names[1] != "nodes" {
		t.Errorf("Unexpected table names %v", names)
	}

	found, ok := group.Table("people")
	if !ok || found.Identity() != people.Identity() {
		t.Errorf("Expected to find table people")
	}
	if _, ok := group.Table("dogs"); ok {
		t.Errorf("Failed table must not be registered")
	}
}

func testRowOperations(t *testing.T, group db.Group) {
	defer group.Close()

	table := mustTable(t, group, "numbers", db.ColumnSpec{Name: "value", Kind: db.KindInt})
	addRows(t, table, int64(0), int64(1), int64(2))

	key1 := table.RowKey(1)
	if err := table.InsertEmptyRow(0); err != nil {
		t.Fatalf("InsertEmptyRow failed: %v", err)
	}
	if err := table.Set(0, 0, int64(-1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if table.Position(key1) != 2 {
		t.Errorf("Expected row key to follow its row, got position %d", table.Position(key1))
	}
	if !equalInts(viewInts(t, table.View(), 0), []int64{-1, 0, 1, 2}) {
		t.Errorf("Unexpected rows after insert: %v", viewInts(t, table.View(), 0))
	}

	if err := table.InsertEmptyRow(5); !errors.Is(err, db.ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange, got %v", err)
	}

	if err := table.MoveRow(0, 3); err != nil {
		t.Fatalf("MoveRow failed: %v", err)
	}
	if !equalInts(viewInts(t, table.View(), 0), []int64{0, 1, 2, -1}) {
		t.Errorf("Unexpected rows after move: %v", viewInts(t, table.View(), 0))
	}

	if err := table.SwapRows(0, 3); err != nil {
		t.Fatalf("SwapRows failed: %v", err)
	}
	if !equalInts(viewInts(t, table.View(), 0), []int64{-1, 1, 2, 0}) {
		t.Errorf("Unexpected rows after swap: %v", viewInts(t, table.View(), 0))
	}

	if err := table.RemoveRow(1); err != nil {
		t.Fatalf("RemoveRow failed: %v", err)
	}
	if table.Position(key1) != db.NotFound {
		t.Errorf("Removed row must not be found")
	}
	if table.Size() != 3 {
		t.Errorf("Expected 3 rows, got %d", table.Size())
	}

	row := table.Row(0)
	if err := table.InsertEmptyRow(0); err != nil {
		t.Fatalf("InsertEmptyRow failed: %v", err)
	}
	if row.Index() != 1 || !row.IsAttached() {
		t.Errorf("Row handle must follow the row, got index %d", row.Index())
	}

	if err := table.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if table.Size() != 0 || row.IsAttached() {
		t.Errorf("Expected empty table after clear")
	}
}

func testCells(t *testing.T, group db.Group) {
	defer group.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	table := mustTable(t, group, "cells",
		db.ColumnSpec{Name: "int", Kind: db.KindInt},
		db.ColumnSpec{Name: "bool", Kind: db.KindBool},
		db.ColumnSpec{Name: "float", Kind: db.KindFloat},
		db.ColumnSpec{Name: "double", Kind: db.KindDouble, Nullable: true},
		db.ColumnSpec{Name: "string", Kind: db.KindString},
		db.ColumnSpec{Name: "binary", Kind: db.KindBinary},
		db.ColumnSpec{Name: "time", Kind: db.KindTimestamp},
	)
	row, _ := table.AddEmptyRow()

	// defaults
	if v, _ := table.Get(0, row); v != int64(0) {
		t.Errorf("Expected default 0, got %v", v)
	}
	if null, _ := table.IsNull(3, row); !null {
		t.Errorf("Expected nullable column to default to null")
	}

	values := []any{int64(42), true, float32(1.5), 2.25, "hello", []byte("bytes"), now}
	for col, v := range values {
		if err := table.Set(col, row, v); err != nil {
			t.Fatalf("Set column %d failed: %v", col, err)
		}
	}
	for col, want := range values {
		got, err := table.Get(col, row)
		if err != nil {
			t.Fatalf("Get column %d failed: %v", col, err)
		}
		switch w := want.(type) {
		case []byte:
			if !bytes.Equal(got.([]byte), w) {
				t.Errorf("Column %d: expected %v, got %v", col, w, got)
			}
		case time.Time:
			if !got.(time.Time).Equal(w) {
				t.Errorf("Column %d: expected %v, got %v", col, w, got)
			}
		default:
			if got != want {
				t.Errorf("Column %d: expected %v, got %v", col, want, got)
			}
		}
	}

	// returned binary values are copies
	b, _ := table.Get(5, row)
	b.([]byte)[0] = 'X'
	if again, _ := table.Get(5, row); again.([]byte)[0] != 'b' {
		t.Errorf("Stored binary must not be modified through a returned value")
	}

	if err := table.SetNull(3, row); err != nil {
		t.Errorf("SetNull on nullable column failed: %v", err)
	}
	if err := table.SetNull(0, row); !errors.Is(err, db.ErrNotNullable) {
		t.Errorf("Expected ErrNotNullable, got %v", err)
	}
	if err := table.Set(0, row, "wrong"); !errors.Is(err, db.ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if err := table.Set(9, row, int64(1)); !errors.Is(err, db.ErrColumnOutOfRange) {
		t.Errorf("Expected ErrColumnOutOfRange, got %v", err)
	}
	if _, err := table.Get(0, 1); !errors.Is(err, db.ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange, got %v", err)
	}
}

func testFindFirst(t *testing.T, group db.Group) {
	defer group.Close()

	table := mustTable(t, group, "values",
		db.ColumnSpec{Name: "value", Kind: db.KindInt, Nullable: true},
		db.ColumnSpec{Name: "flag", Kind: db.KindBool},
	)
	addRows(t, table, int64(3), nil, int64(7), int64(3))
	_ = table.Set(1, 2, true)

	if idx := table.FindFirst(0, int64(3)); idx != 0 {
		t.Errorf("Expected 0, got %d", idx)
	}
	if idx := table.FindFirst(0, int64(7)); idx != 2 {
		t.Errorf("Expected 2, got %d", idx)
	}
	if idx := table.FindFirst(0, nil); idx != 1 {
		t.Errorf("Expected null at 1, got %d", idx)
	}
	if idx := table.FindFirstNull(0); idx != 1 {
		t.Errorf("Expected null at 1, got %d", idx)
	}
	if idx := table.FindFirst(0, int64(99)); idx != db.NotFound {
		t.Errorf("Expected NotFound, got %d", idx)
	}
	if idx := table.FindFirst(1, true); idx != 2 {
		t.Errorf("Expected bool true at 2, got %d", idx)
	}
	if idx := table.FindFirst(1, int64(1)); idx != 2 {
		t.Errorf("Expected bool searchable by integer representation, got %d", idx)
	}
}

func testLinkLists(t *testing.T, group db.Group) {
	defer group.Close()

	requireFeature(t, group, db.FeatureLinkLists)

	dogs := mustTable(t, group, "dogs", db.ColumnSpec{Name: "age", Kind: db.KindInt})
	people := mustTable(t, group, "people", db.ColumnSpec{Name: "dogs", Kind: db.KindLinkList, Target: "dogs"})
	addRows(t, dogs, int64(1), int64(2), int64(3), int64(4))
	owner, _ := people.AddEmptyRow()

	ll, err := people.LinkList(0, owner)
	if err != nil {
		t.Fatalf("LinkList failed: %v", err)
	}
	again, _ := people.LinkList(0, owner)
	if ll.Identity() != again.Identity() {
		t.Errorf("Link list identity must be stable")
	}
	if ll.TargetTable().Identity() != dogs.Identity() || ll.OriginRow() != owner {
		t.Errorf("Unexpected origin or target")
	}

	_ = ll.Add(0)
	_ = ll.Add(2)
	_ = ll.Insert(1, 3) // 0 3 2
	if ll.Size() != 3 || ll.Get(0) != 0 || ll.Get(1) != 3 || ll.Get(2) != 2 {
		t.Errorf("Unexpected links after insert")
	}
	if err := ll.Insert(5, 0); !errors.Is(err, db.ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange, got %v", err)
	}
	if err := ll.Add(10); !errors.Is(err, db.ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange for invalid target, got %v", err)
	}

	_ = ll.Set(0, 1)  // 1 3 2
	_ = ll.Move(0, 2) // 3 2 1
	if ll.Get(0) != 3 || ll.Get(1) != 2 || ll.Get(2) != 1 {
		t.Errorf("Unexpected links after move: %d %d %d", ll.Get(0), ll.Get(1), ll.Get(2))
	}
	_ = ll.Swap(0, 2) // 1 2 3
	if ll.Find(3) != 2 || ll.Find(0) != db.NotFound {
		t.Errorf("Unexpected find results")
	}

	// moving a target row does not change the list
	_ = dogs.MoveRow(3, 0) // dogs: 4 1 2 3
	if ll.Get(2) != 0 {
		t.Errorf("Link must follow the moved target row, got %d", ll.Get(2))
	}

	_ = ll.Remove(0)
	if ll.Size() != 2 || dogs.Size() != 4 {
		t.Errorf("Remove must only remove the link")
	}

	_ = ll.Clear()
	if ll.Size() != 0 {
		t.Errorf("Expected empty list after clear")
	}
}

func testLinkCascade(t *testing.T, group db.Group) {
	defer group.Close()

	requireFeature(t, group, db.FeatureLinkLists)

	dogs := mustTable(t, group, "dogs", db.ColumnSpec{Name: "age", Kind: db.KindInt})
	people := mustTable(t, group, "people",
		db.ColumnSpec{Name: "dogs", Kind: db.KindLinkList, Target: "dogs"},
		db.ColumnSpec{Name: "best", Kind: db.KindLink, Target: "dogs"},
	)
	addRows(t, dogs, int64(1), int64(2), int64(3))
	owner, _ := people.AddEmptyRow()
	ll, _ := people.LinkList(0, owner)
	_ = ll.Add(0)
	_ = ll.Add(1)
	_ = ll.Add(1)
	_ = ll.Add(2)
	_ = people.Set(1, owner, 1)

	if best, _ := people.Get(1, owner); best != 1 {
		t.Errorf("Expected link to row 1, got %v", best)
	}

	// removing a target row removes all links to it
	_ = dogs.RemoveRow(1)
	if ll.Size() != 2 {
		t.Errorf("Expected links to removed row to be gone, size %d", ll.Size())
	}
	if null, _ := people.IsNull(1, owner); !null {
		t.Errorf("Expected single link to be nullified")
	}

	if err := ll.RemoveAllTargetRows(); err != nil {
		t.Fatalf("RemoveAllTargetRows failed: %v", err)
	}
	if dogs.Size() != 0 || ll.Size() != 0 {
		t.Errorf("Expected all target rows deleted, dogs=%d links=%d", dogs.Size(), ll.Size())
	}

	// removing the owner detaches the list
	_ = people.RemoveRow(owner)
	if ll.IsAttached() {
		t.Errorf("Link list must be detached after its row was removed")
	}
	if err := ll.Add(0); !errors.Is(err, db.ErrDetached) {
		t.Errorf("Expected ErrDetached, got %v", err)
	}
}

func testPrimitiveLists(t *testing.T, group db.Group) {
	defer group.Close()

	requireFeature(t, group, db.FeaturePrimitiveLists)

	owners := mustTable(t, group, "owners",
		db.ColumnSpec{Name: "scores", Kind: db.KindList, Element: db.KindInt, ElementNullable: true},
	)
	_, _ = owners.AddEmptyRow()
	row, _ := owners.AddEmptyRow()

	sub, err := owners.Subtable(0, row)
	if err != nil {
		t.Fatalf("Subtable failed: %v", err)
	}
	cols := sub.Columns()
	if len(cols) != 1 || cols[0].Kind != db.KindInt || !cols[0].Nullable {
		t.Errorf("Unexpected subtable columns %v", cols)
	}

	parent, parentRow := sub.Parent()
	if parent == nil || parent.Identity() != owners.Identity() || parentRow != row {
		t.Errorf("Unexpected parent %v %d", parent, parentRow)
	}

	again, _ := owners.Subtable(0, row)
	if sub.Identity() != again.Identity() {
		t.Errorf("Subtable identity must be stable")
	}
	other, _ := owners.Subtable(0, 0)
	if sub.Identity() == other.Identity() {
		t.Errorf("Subtables of different rows must differ")
	}

	addRows(t, sub, int64(5), nil)
	if sub.Size() != 2 {
		t.Errorf("Expected 2 elements, got %d", sub.Size())
	}

	_ = owners.RemoveRow(0)
	if _, parentRow := sub.Parent(); parentRow != 0 {
		t.Errorf("Parent row must follow the owner, got %d", parentRow)
	}

	_ = owners.RemoveRow(0)
	if sub.IsAttached() {
		t.Errorf("Subtable must be detached after its row was removed")
	}
	if sub.Size() != 0 {
		t.Errorf("Detached subtable must report size 0")
	}
}

func testQueries(t *testing.T, group db.Group) {
	defer group.Close()

	requireFeature(t, group, db.FeatureQuery)

	table := mustTable(t, group, "items",
		db.ColumnSpec{Name: "value", Kind: db.KindInt, Nullable: true},
		db.ColumnSpec{Name: "name", Kind: db.KindString},
	)
	names := []string{"apple", "banana", "avocado", "cherry", "apricot"}
	for i, n := range names {
		row, _ := table.AddEmptyRow()
		_ = table.Set(0, row, int64(i))
		_ = table.Set(1, row, n)
	}
	_ = table.SetNull(0, 3)

	if c := table.Where().Count(); c != 5 {
		t.Errorf("Expected 5, got %d", c)
	}
	if c := table.Where().Greater(0, int64(1)).Count(); c != 2 {
		t.Errorf("Expected 2 rows > 1 (null excluded), got %d", c)
	}
	if c := table.Where().IsNull(0).Count(); c != 1 {
		t.Errorf("Expected 1 null, got %d", c)
	}
	if c := table.Where().NotEqual(0, int64(0)).Count(); c != 4 {
		t.Errorf("Expected 4 (null counts as not equal), got %d", c)
	}
	if c := table.Where().BeginsWith(1, "a").Count(); c != 3 {
		t.Errorf("Expected 3 names starting with a, got %d", c)
	}

	q := table.Where().BeginsWith(1, "a").And(table.Where().LessEqual(0, int64(2)))
	if c := q.Count(); c != 2 {
		t.Errorf("Expected 2, got %d", c)
	}
	if idx := q.Find(); idx != 0 {
		t.Errorf("Expected first match at 0, got %d", idx)
	}
	if v := q.FindAll(); v.Size() != 2 || v.Get(1) != 2 {
		t.Errorf("Unexpected view")
	}

	// builders are immutable
	base := table.Where()
	_ = base.Equal(0, int64(1))
	if base.Count() != 5 {
		t.Errorf("Builder must not modify the receiver")
	}

	if err := table.Where().Equal(0, "wrong").Err(); !errors.Is(err, db.ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if err := table.Where().Contains(0, "x").Err(); !errors.Is(err, db.ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}

	requireFeature(t, group, db.FeatureLinkLists)

	owners := mustTable(t, group, "owners", db.ColumnSpec{Name: "items", Kind: db.KindLinkList, Target: "items"})
	owner, _ := owners.AddEmptyRow()
	ll, _ := owners.LinkList(0, owner)
	_ = ll.Add(4)
	_ = ll.Add(1)
	_ = ll.Add(2)

	v := ll.Where().FindAll()
	if !equalInts(viewInts(t, v, 0), []int64{4, 1, 2}) {
		t.Errorf("Restricted query must keep list order, got %v", viewInts(t, v, 0))
	}
	if c := ll.Where().Greater(0, int64(1)).Count(); c != 2 {
		t.Errorf("Expected 2, got %d", c)
	}
}

func testViews(t *testing.T, group db.Group) {
	defer group.Close()

	table := mustTable(t, group, "items",
		db.ColumnSpec{Name: "value", Kind: db.KindInt},
		db.ColumnSpec{Name: "group", Kind: db.KindString},
	)
	values := []int64{3, 1, 2, 3, 1}
	groups := []string{"a", "b", "a", "c", "b"}
	for i := range values {
		row, _ := table.AddEmptyRow()
		_ = table.Set(0, row, values[i])
		_ = table.Set(1, row, groups[i])
	}

	v := table.View()
	if v.Version() != group.Version() {
		t.Errorf("View must record the version it was built at")
	}

	requireFeature(t, group, db.FeatureSort|db.FeatureDistinct)

	sorted := v.Sort(db.SortClause{Column: 0, Ascending: true})
	if !equalInts(viewInts(t, sorted, 0), []int64{1, 1, 2, 3, 3}) {
		t.Errorf("Unexpected ascending order %v", viewInts(t, sorted, 0))
	}
	if !equalInts(viewInts(t, v, 0), values) {
		t.Errorf("Sort must not modify the receiver")
	}

	desc := v.Sort(db.SortClause{Column: 1, Ascending: false}, db.SortClause{Column: 0, Ascending: true})
	if !equalInts(viewInts(t, desc, 0), []int64{3, 1, 1, 2, 3}) {
		t.Errorf("Unexpected multi column order %v", viewInts(t, desc, 0))
	}

	distinct := v.Distinct(0)
	if !equalInts(viewInts(t, distinct, 0), []int64{3, 1, 2}) {
		t.Errorf("Unexpected distinct values %v", viewInts(t, distinct, 0))
	}

	if idx := v.FindFirst(0, int64(2)); idx != 2 {
		t.Errorf("Expected 2, got %d", idx)
	}

	// removed rows read as detached
	_ = table.RemoveRow(0)
	if v.IsRowAttached(0) || v.Get(0) != db.NotFound {
		t.Errorf("Expected removed row to be detached in view")
	}
	if !v.IsRowAttached(1) || v.Get(1) != 0 {
		t.Errorf("Expected remaining row to be found at its new position")
	}
	if v.Size() != 5 {
		t.Errorf("View size must not change, got %d", v.Size())
	}
	if states := v.RowStates(); len(states) != 4 {
		t.Errorf("Expected 4 attached row states, got %d", len(states))
	}
}

func testAggregates(t *testing.T, group db.Group) {
	defer group.Close()

	requireFeature(t, group, db.FeatureAggregate)

	table := mustTable(t, group, "numbers",
		db.ColumnSpec{Name: "int", Kind: db.KindInt, Nullable: true},
		db.ColumnSpec{Name: "float", Kind: db.KindFloat},
		db.ColumnSpec{Name: "double", Kind: db.KindDouble},
		db.ColumnSpec{Name: "time", Kind: db.KindTimestamp},
		db.ColumnSpec{Name: "string", Kind: db.KindString},
	)

	// empty table
	res, err := table.Aggregate(db.AggMax, 0)
	if err != nil || res.Row != db.NotFound || res.Value != nil {
		t.Errorf("Expected no value over zero rows, got %+v %v", res, err)
	}
	res, _ = table.Aggregate(db.AggSum, 0)
	if res.Value != int64(0) {
		t.Errorf("Expected sum 0 over zero rows, got %v", res.Value)
	}
	res, _ = table.Aggregate(db.AggAverage, 0)
	if res.Value != nil || res.Count != 0 {
		t.Errorf("Expected no average over zero rows, got %+v", res)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ints := []any{int64(4), nil, int64(10), int64(-2)}
	for i, v := range ints {
		row, _ := table.AddEmptyRow()
		_ = table.Set(0, row, v)
		_ = table.Set(1, row, float32(i)+0.5)
		_ = table.Set(2, row, float64(i)*2)
		_ = table.Set(3, row, base.Add(time.Duration(i)*time.Hour))
	}

	if res, _ := table.Aggregate(db.AggMin, 0); res.Value != int64(-2) || res.Row != 3 {
		t.Errorf("Unexpected min %+v", res)
	}
	if res, _ := table.Aggregate(db.AggMax, 0); res.Value != int64(10) || res.Row != 2 {
		t.Errorf("Unexpected max %+v", res)
	}
	if res, _ := table.Aggregate(db.AggSum, 0); res.Value != int64(12) {
		t.Errorf("Unexpected sum %+v", res)
	}
	if res, _ := table.Aggregate(db.AggAverage, 0); res.Value != 4.0 || res.Count != 3 {
		t.Errorf("Unexpected average %+v", res)
	}
	if res, _ := table.Aggregate(db.AggSum, 1); res.Value != 8.0 {
		t.Errorf("Expected float sum as float64 8, got %v", res.Value)
	}
	if res, _ := table.Aggregate(db.AggMax, 2); res.Value != 6.0 {
		t.Errorf("Unexpected double max %v", res.Value)
	}
	if res, _ := table.Aggregate(db.AggMax, 3); !res.Value.(time.Time).Equal(base.Add(3 * time.Hour)) {
		t.Errorf("Unexpected timestamp max %v", res.Value)
	}

	if _, err := table.Aggregate(db.AggSum, 3); !errors.Is(err, db.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for timestamp sum, got %v", err)
	}
	if _, err := table.Aggregate(db.AggMin, 4); !errors.Is(err, db.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for string min, got %v", err)
	}

	// view aggregates only see attached rows and report view indices
	v := table.Where().IsNotNull(0).FindAll()
	_ = table.RemoveRow(2)
	if res, _ := v.Aggregate(db.AggMax, 0); res.Value != int64(4) || res.Row != 0 {
		t.Errorf("Unexpected view max %+v", res)
	}
}

func testVersions(t *testing.T, group db.Group) {
	defer group.Close()

	table := mustTable(t, group, "numbers", db.ColumnSpec{Name: "value", Kind: db.KindInt})
	before := group.Version()
	row, _ := table.AddEmptyRow()
	afterAdd := group.Version()
	if afterAdd <= before {
		t.Errorf("Expected version to advance on add")
	}

	states := table.RowStates()
	_ = table.Set(0, row, int64(5))
	if group.Version() <= afterAdd {
		t.Errorf("Expected version to advance on set")
	}
	after := table.RowStates()
	if after[0].Key != states[0].Key || after[0].Version <= states[0].Version {
		t.Errorf("Expected row version to advance on set")
	}

	// reads don't change the version
	v := group.Version()
	_, _ = table.Get(0, row)
	_ = table.View()
	if group.Version() != v {
		t.Errorf("Reads must not change the version")
	}
}

func testSaveLoad(t *testing.T, factory GroupFactory) {
	group := factory()
	defer group.Close()

	requireFeature(t, group, db.FeatureSave|db.FeatureLoad)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dogs := mustTable(t, group, "dogs",
		db.ColumnSpec{Name: "name", Kind: db.KindString},
		db.ColumnSpec{Name: "born", Kind: db.KindTimestamp},
		db.ColumnSpec{Name: "weight", Kind: db.KindDouble, Nullable: true},
	)
	people := mustTable(t, group, "people",
		db.ColumnSpec{Name: "dogs", Kind: db.KindLinkList, Target: "dogs"},
		db.ColumnSpec{Name: "scores", Kind: db.KindList, Element: db.KindInt, ElementNullable: true},
	)
	addRows(t, dogs, "rex", "fido")
	_ = dogs.Set(1, 0, now)
	_ = dogs.Set(2, 1, 12.5)
	owner, _ := people.AddEmptyRow()
	ll, _ := people.LinkList(0, owner)
	_ = ll.Add(1)
	_ = ll.Add(0)
	sub, _ := people.Subtable(1, owner)
	addRows(t, sub, int64(7), nil)

	var buf bytes.Buffer
	if err := group.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data := buf.Bytes()

	// load into a fresh group
	loaded := factory()
	defer loaded.Close()
	if err := loaded.Load(bytes.NewReader(data)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ldogs, ok := loaded.Table("dogs")
	if !ok || ldogs.Size() != 2 {
		t.Fatalf("Expected dogs table with 2 rows")
	}
	if name, _ := ldogs.Get(0, 1); name != "fido" {
		t.Errorf("Expected fido, got %v", name)
	}
	if born, _ := ldogs.Get(1, 0); !born.(time.Time).Equal(now) {
		t.Errorf("Expected %v, got %v", now, born)
	}
	if null, _ := ldogs.IsNull(2, 0); !null {
		t.Errorf("Expected null weight")
	}
	if w, _ := ldogs.Get(2, 1); w != 12.5 {
		t.Errorf("Expected 12.5, got %v", w)
	}

	lpeople, _ := loaded.Table("people")
	lll, _ := lpeople.LinkList(0, 0)
	if lll.Size() != 2 || lll.Get(0) != 1 || lll.Get(1) != 0 {
		t.Errorf("Unexpected loaded link list")
	}
	lsub, _ := lpeople.Subtable(1, 0)
	if lsub.Size() != 2 {
		t.Errorf("Expected 2 list elements, got %d", lsub.Size())
	}
	if null, _ := lsub.IsNull(0, 1); !null {
		t.Errorf("Expected null list element")
	}

	// loading into the original group detaches everything handed out before
	before := group.Version()
	if err := group.Load(bytes.NewReader(data)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if dogs.IsAttached() || ll.IsAttached() || sub.IsAttached() {
		t.Errorf("Expected old accessors to be detached after load")
	}
	if group.Version() <= before {
		t.Errorf("Expected version to advance on load")
	}

	// invalid data
	if err := loaded.Load(bytes.NewReader([]byte("garbage!"))); err == nil {
		t.Errorf("Expected error on invalid data")
	}
}

func testClose(t *testing.T, group db.Group) {
	table := mustTable(t, group, "numbers", db.ColumnSpec{Name: "value", Kind: db.KindInt})
	if err := group.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if table.IsAttached() {
		t.Errorf("Expected table to be detached after close")
	}
	if _, err := group.AddTable("other"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
