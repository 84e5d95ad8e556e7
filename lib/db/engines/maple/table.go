package maple

import (
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple/internal"
)

// listValueColumn is the name of the single column of a primitive list subtable
const listValueColumn = "!value"

// table implements db.Table for top level tables and for the subtables behind primitive lists
type table struct {
	g        *mapleGroup
	key      uint64
	name     string
	columns  []db.ColumnSpec
	targets  []*table // Target table per link column (nil for other columns)
	rows     []*internal.Row
	index    map[db.RowKey]int // Row key -> position, maintained on every mutation
	nextKey  db.RowKey
	attached bool

	// subtables only
	parent    *table
	parentCol int
	parentKey db.RowKey
}

func newTable(g *mapleGroup, name string, columns []db.ColumnSpec) *table {
	cols := make([]db.ColumnSpec, len(columns))
	copy(cols, columns)
	return &table{
		g:        g,
		key:      g.allocTableKey(),
		name:     name,
		columns:  cols,
		targets:  make([]*table, len(cols)),
		rows:     make([]*internal.Row, 0, g.rowCapacity),
		index:    make(map[db.RowKey]int, g.rowCapacity),
		nextKey:  1,
		attached: true,
	}
}

// newSubtable creates the table backing a primitive list column of the row with the given key
func newSubtable(parent *table, col int, parentKey db.RowKey) *table {
	spec := parent.columns[col]
	t := newTable(parent.g, parent.name+"."+spec.Name, []db.ColumnSpec{{
		Name:     listValueColumn,
		Kind:     spec.Element,
		Nullable: spec.ElementNullable,
	}})
	t.parent = parent
	t.parentCol = col
	t.parentKey = parentKey
	return t
}

// --------------------------------------------------------------------------
// Internal helpers (the caller must hold the group lock)
// --------------------------------------------------------------------------

// newRow creates a row with empty cells. Link lists and subtables are created eagerly.
func (t *table) newRow(version uint64) *internal.Row {
	r := &internal.Row{
		Key:     t.nextKey,
		Version: version,
		Cells:   make([]any, len(t.columns)),
	}
	t.nextKey++

	for i, c := range t.columns {
		switch c.Kind {
		case db.KindLinkList:
			r.Cells[i] = &linkList{origin: t, col: i, originKey: r.Key, attached: true}
		case db.KindList:
			r.Cells[i] = newSubtable(t, i, r.Key)
		case db.KindInt, db.KindBool:
			if !c.Nullable {
				r.Cells[i] = int64(0)
			}
		case db.KindFloat:
			if !c.Nullable {
				r.Cells[i] = float32(0)
			}
		case db.KindDouble:
			if !c.Nullable {
				r.Cells[i] = float64(0)
			}
		case db.KindString:
			if !c.Nullable {
				r.Cells[i] = ""
			}
		case db.KindBinary:
			if !c.Nullable {
				r.Cells[i] = []byte{}
			}
		case db.KindTimestamp:
			if !c.Nullable {
				r.Cells[i] = time.Unix(0, 0).UTC()
			}
		}
	}
	return r
}

// reindex updates the position index for all rows in [from, to)
func (t *table) reindex(from, to int) {
	for i := from; i < to; i++ {
		t.index[t.rows[i].Key] = i
	}
}

func (t *table) checkRow(row int) error {
	if !t.attached {
		return db.ErrDetached
	}
	if row < 0 || row >= len(t.rows) {
		return db.ErrRowOutOfRange
	}
	return nil
}

func (t *table) checkCell(col, row int) error {
	if err := t.checkRow(row); err != nil {
		return err
	}
	if col < 0 || col >= len(t.columns) {
		return db.ErrColumnOutOfRange
	}
	return nil
}

// position returns the position of the row with the given key or db.NotFound
func (t *table) position(key db.RowKey) int {
	if !t.attached {
		return db.NotFound
	}
	if pos, ok := t.index[key]; ok {
		return pos
	}
	return db.NotFound
}

// detach marks the table and everything owned by its rows as detached
func (t *table) detach() {
	t.attached = false
	for _, r := range t.rows {
		detachCells(r)
	}
}

// detachCells detaches the link lists and subtables owned by a row
func detachCells(r *internal.Row) {
	for _, cell := range r.Cells {
		switch c := cell.(type) {
		case *linkList:
			c.attached = false
		case *table:
			c.detach()
		}
	}
}

// removeRow removes the row at the given position and everything pointing at it
func (t *table) removeRow(pos int) {
	r := t.rows[pos]
	detachCells(r)

	copy(t.rows[pos:], t.rows[pos+1:])
	t.rows[len(t.rows)-1] = nil
	t.rows = t.rows[:len(t.rows)-1]
	delete(t.index, r.Key)
	t.reindex(pos, len(t.rows))

	version := t.g.bump()
	t.g.removeLinksTo(t, r.Key, version)
}

// removeLinksTo nullifies links and removes link list entries pointing at a removed row
func (g *mapleGroup) removeLinksTo(target *table, key db.RowKey, version uint64) {
	if target.parent != nil {
		return
	}
	for _, t := range g.tables {
		for col, c := range t.columns {
			if t.targets[col] != target {
				continue
			}
			for _, r := range t.rows {
				switch c.Kind {
				case db.KindLink:
					if k, ok := r.Cells[col].(db.RowKey); ok && k == key {
						r.Cells[col] = nil
						r.Version = version
					}
				case db.KindLinkList:
					r.Cells[col].(*linkList).removeKey(key)
				}
			}
		}
	}
}

// rowSize estimates the encoded size of a row in bytes
func (t *table) rowSize(r *internal.Row) int {
	size := 0
	for _, cell := range r.Cells {
		switch c := cell.(type) {
		case nil:
			size++
		case string:
			size += len(c) + 4
		case []byte:
			size += len(c) + 4
		case *linkList:
			size += 8 * len(c.targets)
		case *table:
			for _, sr := range c.rows {
				size += c.rowSize(sr)
			}
		default:
			size += 8
		}
	}
	return size
}

// --------------------------------------------------------------------------
// db.Table Interface - Metadata
// --------------------------------------------------------------------------

func (t *table) Identity() db.Identity {
	if t.parent != nil {
		return db.Identity{Table: t.parent.key, Column: t.parentCol, Row: t.parentKey}
	}
	return db.Identity{Table: t.key, Column: -1}
}

func (t *table) Name() string {
	return t.name
}

func (t *table) IsAttached() bool {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	return t.attached
}

func (t *table) Columns() []db.ColumnSpec {
	cols := make([]db.ColumnSpec, len(t.columns))
	copy(cols, t.columns)
	return cols
}

func (t *table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return db.NotFound
}

func (t *table) Size() int {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if !t.attached {
		return 0
	}
	return len(t.rows)
}

func (t *table) RowKey(row int) db.RowKey {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if t.checkRow(row) != nil {
		return 0
	}
	return t.rows[row].Key
}

func (t *table) Position(key db.RowKey) int {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	return t.position(key)
}

func (t *table) RowStates() []db.RowState {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if !t.attached {
		return nil
	}
	states := make([]db.RowState, len(t.rows))
	for i, r := range t.rows {
		states[i] = db.RowState{Key: r.Key, Version: r.Version}
	}
	return states
}

func (t *table) Parent() (db.Table, int) {
	if t.parent == nil {
		return nil, db.NotFound
	}
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	return t.parent, t.parent.position(t.parentKey)
}

func (t *table) Row(row int) db.Row {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if t.checkRow(row) != nil {
		return db.Row{}
	}
	return db.NewRow(t, t.rows[row].Key)
}

// --------------------------------------------------------------------------
// db.Table Interface - Row Operations
// --------------------------------------------------------------------------

// AddEmptyRow appends a row with default values.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *table) AddEmptyRow() (int, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if !t.attached {
		return db.NotFound, db.ErrDetached
	}

	r := t.newRow(t.g.bump())
	t.rows = append(t.rows, r)
	t.index[r.Key] = len(t.rows) - 1
	return len(t.rows) - 1, nil
}

// InsertEmptyRow inserts a row with default values at the given position (0 <= row <= size)
func (t *table) InsertEmptyRow(row int) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if !t.attached {
		return db.ErrDetached
	}
	if row < 0 || row > len(t.rows) {
		return db.ErrRowOutOfRange
	}

	r := t.newRow(t.g.bump())
	t.rows = append(t.rows, nil)
	copy(t.rows[row+1:], t.rows[row:])
	t.rows[row] = r
	t.reindex(row, len(t.rows))
	return nil
}

// RemoveRow removes a row. Links to the row are removed, link lists and
// primitive lists owned by the row are detached.
func (t *table) RemoveRow(row int) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if err := t.checkRow(row); err != nil {
		return err
	}
	t.removeRow(row)
	return nil
}

// MoveRow moves the row at from so that it ends up at position to
func (t *table) MoveRow(from, to int) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if err := t.checkRow(from); err != nil {
		return err
	}
	if err := t.checkRow(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	r := t.rows[from]
	if from < to {
		copy(t.rows[from:to], t.rows[from+1:to+1])
	} else {
		copy(t.rows[to+1:from+1], t.rows[to:from])
	}
	t.rows[to] = r
	t.reindex(min(from, to), max(from, to)+1)
	t.g.bump()
	return nil
}

func (t *table) SwapRows(a, b int) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if err := t.checkRow(a); err != nil {
		return err
	}
	if err := t.checkRow(b); err != nil {
		return err
	}
	if a == b {
		return nil
	}

	t.rows[a], t.rows[b] = t.rows[b], t.rows[a]
	t.index[t.rows[a].Key] = a
	t.index[t.rows[b].Key] = b
	t.g.bump()
	return nil
}

// Clear removes all rows
func (t *table) Clear() error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if !t.attached {
		return db.ErrDetached
	}

	removed := t.rows
	t.rows = make([]*internal.Row, 0, t.g.rowCapacity)
	t.index = make(map[db.RowKey]int, t.g.rowCapacity)

	version := t.g.bump()
	for _, r := range removed {
		detachCells(r)
		t.g.removeLinksTo(t, r.Key, version)
	}
	return nil
}

// --------------------------------------------------------------------------
// db.Table Interface - Cell Operations
// --------------------------------------------------------------------------

func (t *table) Get(col, row int) (any, error) {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if err := t.checkCell(col, row); err != nil {
		return nil, err
	}

	c := t.columns[col]
	cell := t.rows[row].Cells[col]
	switch {
	case c.Kind.IsPrimitive():
		return internal.Denormalize(c.Kind, cell), nil
	case c.Kind == db.KindLink:
		if cell == nil {
			return nil, nil
		}
		return t.targets[col].position(cell.(db.RowKey)), nil
	default:
		return nil, db.ErrUnsupported
	}
}

func (t *table) IsNull(col, row int) (bool, error) {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if err := t.checkCell(col, row); err != nil {
		return false, err
	}
	return t.rows[row].Cells[col] == nil, nil
}

// Set writes a cell. Link columns take the index of the target row.
// A nil value is the same as SetNull.
func (t *table) Set(col, row int, value any) error {
	if value == nil {
		return t.SetNull(col, row)
	}

	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if err := t.checkCell(col, row); err != nil {
		return err
	}

	c := t.columns[col]
	var stored any
	switch {
	case c.Kind.IsPrimitive():
		v, err := internal.Normalize(c.Kind, value)
		if err != nil {
			return err
		}
		stored = v
	case c.Kind == db.KindLink:
		targetRow, ok := value.(int)
		if !ok {
			return db.ErrTypeMismatch
		}
		target := t.targets[col]
		if targetRow < 0 || targetRow >= len(target.rows) {
			return db.ErrRowOutOfRange
		}
		stored = target.rows[targetRow].Key
	default:
		return db.ErrUnsupported
	}

	r := t.rows[row]
	r.Cells[col] = stored
	r.Version = t.g.bump()
	return nil
}

func (t *table) SetNull(col, row int) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if err := t.checkCell(col, row); err != nil {
		return err
	}

	c := t.columns[col]
	switch {
	case c.Kind == db.KindLink:
	case c.Kind.IsPrimitive():
		if !c.Nullable {
			return db.ErrNotNullable
		}
	default:
		return db.ErrUnsupported
	}

	r := t.rows[row]
	r.Cells[col] = nil
	r.Version = t.g.bump()
	return nil
}

// FindFirst returns the first row whose cell equals the value or db.NotFound.
// A nil value searches for null.
func (t *table) FindFirst(col int, value any) int {
	if value == nil {
		return t.FindFirstNull(col)
	}

	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if !t.attached || col < 0 || col >= len(t.columns) {
		return db.NotFound
	}
	kind := t.columns[col].Kind
	v, err := internal.Normalize(kind, value)
	if err != nil {
		return db.NotFound
	}
	for i, r := range t.rows {
		if r.Cells[col] != nil && internal.Compare(kind, r.Cells[col], v) == 0 {
			return i
		}
	}
	return db.NotFound
}

func (t *table) FindFirstNull(col int) int {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if !t.attached || col < 0 || col >= len(t.columns) {
		return db.NotFound
	}
	for i, r := range t.rows {
		if r.Cells[col] == nil {
			return i
		}
	}
	return db.NotFound
}

func (t *table) Aggregate(op db.AggregateOp, col int) (db.AggregateResult, error) {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if !t.attached {
		return db.AggregateResult{Row: db.NotFound}, db.ErrDetached
	}
	if col < 0 || col >= len(t.columns) {
		return db.AggregateResult{Row: db.NotFound}, db.ErrColumnOutOfRange
	}
	return aggregate(t.columns[col].Kind, op, col, t.rows)
}

// --------------------------------------------------------------------------
// db.Table Interface - Nested Structures and Queries
// --------------------------------------------------------------------------

func (t *table) LinkList(col, row int) (db.LinkList, error) {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if err := t.checkCell(col, row); err != nil {
		return nil, err
	}
	ll, ok := t.rows[row].Cells[col].(*linkList)
	if !ok {
		return nil, db.ErrTypeMismatch
	}
	return ll, nil
}

func (t *table) Subtable(col, row int) (db.Table, error) {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	if err := t.checkCell(col, row); err != nil {
		return nil, err
	}
	sub, ok := t.rows[row].Cells[col].(*table)
	if !ok {
		return nil, db.ErrTypeMismatch
	}
	return sub, nil
}

func (t *table) Where() db.Query {
	return &query{t: t}
}

func (t *table) View() db.View {
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()

	v := &view{t: t, version: t.g.version.Load()}
	if t.attached {
		v.keys = make([]db.RowKey, len(t.rows))
		for i, r := range t.rows {
			v.keys[i] = r.Key
		}
	}
	return v
}
