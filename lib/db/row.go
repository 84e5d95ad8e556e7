package db

// Row is a handle to a single row that survives moves of the row.
// The zero value is a detached row.
type Row struct {
	table Table
	key   RowKey
}

// NewRow creates a row handle for the row with the given key
func NewRow(t Table, key RowKey) Row {
	return Row{table: t, key: key}
}

func (r Row) Table() Table {
	return r.table
}

func (r Row) Key() RowKey {
	return r.key
}

// IsAttached reports whether the table is attached and still contains the row
func (r Row) IsAttached() bool {
	return r.table != nil && r.table.IsAttached() && r.table.Position(r.key) != NotFound
}

// Index returns the current index of the row or NotFound
func (r Row) Index() int {
	if r.table == nil {
		return NotFound
	}
	return r.table.Position(r.key)
}

// Get reads a cell of the row
func (r Row) Get(col int) (any, error) {
	idx := r.Index()
	if idx == NotFound {
		return nil, ErrDetached
	}
	return r.table.Get(col, idx)
}

// Set writes a cell of the row
func (r Row) Set(col int, value any) error {
	idx := r.Index()
	if idx == NotFound {
		return ErrDetached
	}
	return r.table.Set(col, idx, value)
}

// Equal reports whether both handles point to the same row of the same table
func (r Row) Equal(other Row) bool {
	if r.table == nil || other.table == nil {
		return r.table == nil && other.table == nil
	}
	return r.key == other.key && r.table.Identity() == other.table.Identity()
}
