// Package maple provides an in-memory implementation of the db.Group interface.
//
// All tables of a group live in memory and are guarded by a single RWMutex,
// so readers (e.g. the notification worker) can run next to a writer.
// Rows carry a stable key and the data version of their last modification,
// which views and notifiers use to track rows across moves.
//
// Groups can be persisted with Save and restored with Load using a simple
// binary format.
//
// Usage:
//
//	g := maple.NewMapleGroup(nil)
//	people, _ := g.AddTable("people",
//		db.ColumnSpec{Name: "name", Kind: db.KindString},
//		db.ColumnSpec{Name: "age", Kind: db.KindInt, Nullable: true},
//	)
//	row, _ := people.AddEmptyRow()
//	_ = people.Set(0, row, "Ada")
package maple
