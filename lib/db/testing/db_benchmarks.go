package testing

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dObj/lib/db"
)

// benchRows is the number of rows prepared for read benchmarks
const benchRows = 10_000

// RunEngineBenchmarks runs all benchmarks for a storage engine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory GroupFactory) {

	b.Run("AddRow", func(b *testing.B) {
		benchmarkAddRow(b, factory())
	})

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("FindFirst", func(b *testing.B) {
		benchmarkFindFirst(b, factory())
	})

	b.Run("QueryFindAll", func(b *testing.B) {
		benchmarkQueryFindAll(b, factory())
	})

	b.Run("ViewSort", func(b *testing.B) {
		benchmarkViewSort(b, factory())
	})

	b.Run("LinkListAdd", func(b *testing.B) {
		benchmarkLinkListAdd(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// prepareTable creates a table with benchRows rows of random integers
func prepareTable(b *testing.B, group db.Group) db.Table {
	b.Helper()
	table := mustTable(b, group, "bench",
		db.ColumnSpec{Name: "value", Kind: db.KindInt},
		db.ColumnSpec{Name: "name", Kind: db.KindString},
	)
	for i := 0; i < benchRows; i++ {
		row, _ := table.AddEmptyRow()
		_ = table.Set(0, row, rand.Int63n(1000))
		_ = table.Set(1, row, "row")
	}
	return table
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkAddRow(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	table := mustTable(b, group, "bench", db.ColumnSpec{Name: "value", Kind: db.KindInt})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.AddEmptyRow(); err != nil {
			b.Fatalf("AddEmptyRow failed: %v", err)
		}
	}
}

func benchmarkSet(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	table := prepareTable(b, group)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = table.Set(0, i%benchRows, int64(i))
	}
}

func benchmarkGet(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	table := prepareTable(b, group)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = table.Get(0, counter%benchRows)
			counter++
		}
	})
}

func benchmarkFindFirst(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	table := prepareTable(b, group)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.FindFirst(0, int64(i%1000))
	}
}

func benchmarkQueryFindAll(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	requireFeature(b, group, db.FeatureQuery)
	table := prepareTable(b, group)
	q := table.Where().Greater(0, int64(500))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.FindAll()
	}
}

func benchmarkViewSort(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	requireFeature(b, group, db.FeatureSort)
	table := prepareTable(b, group)
	v := table.View()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Sort(db.SortClause{Column: 0, Ascending: i%2 == 0})
	}
}

func benchmarkLinkListAdd(b *testing.B, group db.Group) {
	b.Cleanup(func() {
		group.Close()
	})

	requireFeature(b, group, db.FeatureLinkLists)
	table := prepareTable(b, group)
	owners := mustTable(b, group, "owners", db.ColumnSpec{Name: "items", Kind: db.KindLinkList, Target: "bench"})
	row, _ := owners.AddEmptyRow()
	ll, _ := owners.LinkList(0, row)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ll.Add(i % table.Size())
	}
}

func benchmarkSaveLoad(b *testing.B, factory GroupFactory) {
	group := factory()
	b.Cleanup(func() {
		group.Close()
	})

	requireFeature(b, group, db.FeatureSave|db.FeatureLoad)
	prepareTable(b, group)

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := group.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	data := buf.Bytes()
	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
		}
	})
}
