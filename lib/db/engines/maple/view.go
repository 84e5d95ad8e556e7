package maple

import (
	"slices"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple/internal"
)

// view implements db.View. It stores row keys so rows can move without
// invalidating the view, removed rows read as detached.
type view struct {
	t       *table
	keys    []db.RowKey
	version uint64
}

// resolve returns the row behind every key (nil when detached).
// The caller must hold the group lock.
func (v *view) resolve() []*internal.Row {
	rows := make([]*internal.Row, len(v.keys))
	for i, k := range v.keys {
		if pos := v.t.position(k); pos != db.NotFound {
			rows[i] = v.t.rows[pos]
		}
	}
	return rows
}

func (v *view) Table() db.Table {
	return v.t
}

func (v *view) Version() uint64 {
	return v.version
}

func (v *view) Size() int {
	return len(v.keys)
}

func (v *view) Get(i int) int {
	if i < 0 || i >= len(v.keys) {
		return db.NotFound
	}
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()
	return v.t.position(v.keys[i])
}

func (v *view) Key(i int) db.RowKey {
	if i < 0 || i >= len(v.keys) {
		return 0
	}
	return v.keys[i]
}

func (v *view) IsRowAttached(i int) bool {
	return v.Get(i) != db.NotFound
}

func (v *view) RowStates() []db.RowState {
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()

	states := make([]db.RowState, 0, len(v.keys))
	for _, r := range v.resolve() {
		if r != nil {
			states = append(states, db.RowState{Key: r.Key, Version: r.Version})
		}
	}
	return states
}

// Sort returns a new view ordered by the clauses. Detached rows are moved to the end.
func (v *view) Sort(clauses ...db.SortClause) db.View {
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()

	type entry struct {
		key db.RowKey
		row *internal.Row
	}
	rows := v.resolve()
	entries := make([]entry, len(rows))
	for i, r := range rows {
		entries[i] = entry{key: v.keys[i], row: r}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.row == nil && b.row == nil:
			return 0
		case a.row == nil:
			return 1
		case b.row == nil:
			return -1
		}
		for _, c := range clauses {
			if c.Column < 0 || c.Column >= len(v.t.columns) {
				continue
			}
			res := internal.Compare(v.t.columns[c.Column].Kind, a.row.Cells[c.Column], b.row.Cells[c.Column])
			if !c.Ascending {
				res = -res
			}
			if res != 0 {
				return res
			}
		}
		return 0
	})

	sorted := &view{t: v.t, version: v.version, keys: make([]db.RowKey, len(entries))}
	for i, e := range entries {
		sorted.keys[i] = e.key
	}
	return sorted
}

// distinctKey maps a cell to a comparable value with the same equality
func distinctKey(cell any) any {
	switch c := cell.(type) {
	case nil:
		return struct{}{}
	case []byte:
		return string(c)
	case time.Time:
		return c.UnixNano()
	default:
		return c
	}
}

// Distinct returns a new view keeping the first attached row for every value of the column
func (v *view) Distinct(col int) db.View {
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()

	distinct := &view{t: v.t, version: v.version}
	if col < 0 || col >= len(v.t.columns) {
		return distinct
	}

	seen := make(map[any]struct{}, len(v.keys))
	for _, r := range v.resolve() {
		if r == nil {
			continue
		}
		k := distinctKey(r.Cells[col])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		distinct.keys = append(distinct.keys, r.Key)
	}
	return distinct
}

func (v *view) FindFirst(col int, value any) int {
	if value == nil {
		return v.FindFirstNull(col)
	}

	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()
	if col < 0 || col >= len(v.t.columns) {
		return db.NotFound
	}
	kind := v.t.columns[col].Kind
	needle, err := internal.Normalize(kind, value)
	if err != nil {
		return db.NotFound
	}
	for i, r := range v.resolve() {
		if r != nil && r.Cells[col] != nil && internal.Compare(kind, r.Cells[col], needle) == 0 {
			return i
		}
	}
	return db.NotFound
}

func (v *view) FindFirstNull(col int) int {
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()
	if col < 0 || col >= len(v.t.columns) {
		return db.NotFound
	}
	for i, r := range v.resolve() {
		if r != nil && r.Cells[col] == nil {
			return i
		}
	}
	return db.NotFound
}

func (v *view) Aggregate(op db.AggregateOp, col int) (db.AggregateResult, error) {
	v.t.g.mu.RLock()
	defer v.t.g.mu.RUnlock()
	if col < 0 || col >= len(v.t.columns) {
		return db.AggregateResult{Row: db.NotFound}, db.ErrColumnOutOfRange
	}
	return aggregate(v.t.columns[col].Kind, op, col, v.resolve())
}
