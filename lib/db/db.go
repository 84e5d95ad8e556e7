package db

import (
	"errors"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// NotFound is returned by every search operation that did not find a match
const NotFound = -1

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureQuery          Feature = 1 << iota // Support for query building and evaluation
	FeatureSort                               // Support for sorting views
	FeatureDistinct                           // Support for distinct views
	FeatureLinkLists                          // Support for link list columns
	FeaturePrimitiveLists                     // Support for primitive list (subtable) columns
	FeatureAggregate                          // Support for min, max, sum and average
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureQuery:
		return "Query"
	case FeatureSort:
		return "Sort"
	case FeatureDistinct:
		return "Distinct"
	case FeatureLinkLists:
		return "LinkLists"
	case FeaturePrimitiveLists:
		return "PrimitiveLists"
	case FeatureAggregate:
		return "Aggregate"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Kind is the storage type of a column
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindFloat
	KindDouble
	KindString
	KindBinary
	KindTimestamp
	KindLink
	KindLinkList
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindTimestamp:
		return "timestamp"
	case KindLink:
		return "link"
	case KindLinkList:
		return "linklist"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// IsPrimitive reports whether values of this kind are stored inline in a cell
func (k Kind) IsPrimitive() bool {
	return k <= KindTimestamp
}

// ColumnSpec describes a single column of a table.
//
// Target names the table a link or link list column points to.
// Element and ElementNullable describe the values of a primitive list column,
// which is stored as a subtable with a single column.
type ColumnSpec struct {
	Name            string
	Kind            Kind
	Nullable        bool
	Target          string
	Element         Kind
	ElementNullable bool
}

// RowKey identifies a row for its whole lifetime, independent of its position
type RowKey uint64

// RowState is the key and last modification version of a row
type RowState struct {
	Key     RowKey
	Version uint64
}

// Identity is a stable identity for tables, subtables and link lists.
// Top level tables use Column -1 and Row 0, nested structures use the
// owning table, the owning column and the key of the owning row.
type Identity struct {
	Table  uint64
	Column int
	Row    RowKey
}

func (id Identity) String() string {
	return fmt.Sprintf("%d/%d/%d", id.Table, id.Column, id.Row)
}

// SortClause orders a view by one column
type SortClause struct {
	Column    int
	Ascending bool
}

// AggregateOp selects an aggregate function
type AggregateOp uint8

const (
	AggMin AggregateOp = iota
	AggMax
	AggSum
	AggAverage
)

func (op AggregateOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAverage:
		return "average"
	default:
		return "unknown"
	}
}

// AggregateResult holds the outcome of an aggregate.
//
//   - min/max: Value is the extreme value, Row its row index (NotFound over zero non-null rows)
//   - sum: Value is an int64 for int columns and a float64 for float and double columns
//   - average: Value is a float64, Count the number of non-null values that went into it
type AggregateResult struct {
	Value any
	Row   int
	Count int
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrDetached         = errors.New("accessor is detached")
	ErrRowOutOfRange    = errors.New("row index out of range")
	ErrColumnOutOfRange = errors.New("column index out of range")
	ErrTypeMismatch     = errors.New("value does not match column type")
	ErrNotNullable      = errors.New("column is not nullable")
	ErrTableExists      = errors.New("table already exists")
	ErrNoSuchTable      = errors.New("no such table")
	ErrWrongTable       = errors.New("row belongs to a different table")
	ErrUnsupported      = errors.New("operation not supported for column type")
	ErrClosed           = errors.New("group is closed")
)

// --------------------------------------------------------------------------
// Engine Interfaces
// --------------------------------------------------------------------------

// Group is a set of named tables sharing one data version.
// Every mutation of any table, link list or subtable of the group
// advances the version.
type Group interface {

	// Key returns a random key which identifies this group in the process
	Key() uint64

	// AddTable creates a new top level table.
	// Link and link list columns must name an existing table (or the new table itself) as target.
	AddTable(name string, columns ...ColumnSpec) (Table, error)

	// Table returns the table with the given name
	Table(name string) (t Table, ok bool)

	// TableNames returns the names of all top level tables in creation order
	TableNames() []string

	// Version returns the current data version
	Version() uint64

	// Save persists all tables to the provided io.Writer
	Save(w io.Writer) (err error)

	// Load replaces all tables with the data provided by an io.Reader.
	// Every table, link list, subtable and view handed out before is detached.
	Load(r io.Reader) (err error)

	// SupportsFeature checks if the engine supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the group.
	GetInfo() (info DatabaseInfo)

	// Close detaches all tables. The group can't be used afterward.
	Close() (err error)
}

// Table is an ordered set of rows with typed columns.
// Primitive lists are tables with a single column owned by a row of another table.
type Table interface {
	Identity() Identity
	Name() string
	IsAttached() bool
	Columns() []ColumnSpec
	ColumnIndex(name string) int

	// Size returns the number of rows, 0 when detached
	Size() int

	// RowKey returns the key of the row at the given index
	RowKey(row int) RowKey

	// Position returns the current index of the row with the given key or NotFound
	Position(key RowKey) int

	// RowStates returns key and version of every row in order
	RowStates() []RowState

	// Parent returns the owning table and row index of a subtable, (nil, NotFound) for top level tables
	Parent() (Table, int)

	// Row returns a handle to the row at the given index
	Row(row int) Row

	AddEmptyRow() (row int, err error)
	InsertEmptyRow(row int) error
	RemoveRow(row int) error
	MoveRow(from, to int) error
	SwapRows(a, b int) error
	Clear() error

	Get(col, row int) (value any, err error)
	IsNull(col, row int) (null bool, err error)
	Set(col, row int, value any) error
	SetNull(col, row int) error

	FindFirst(col int, value any) int
	FindFirstNull(col int) int

	Aggregate(op AggregateOp, col int) (AggregateResult, error)

	// LinkList returns the link list stored in a link list column
	LinkList(col, row int) (LinkList, error)

	// Subtable returns the table backing a primitive list column
	Subtable(col, row int) (Table, error)

	// Where starts a query matching every row
	Where() Query

	// View returns a view of every row in table order
	View() View
}

// LinkList is an ordered list of links from one row to rows of a target table.
type LinkList interface {
	Identity() Identity
	IsAttached() bool
	OriginTable() Table
	OriginRow() int
	TargetTable() Table

	Size() int

	// Get returns the target row index of the link at position i, NotFound when out of range
	Get(i int) int

	// Find returns the position of the first link to the given target row or NotFound
	Find(targetRow int) int

	// RowStates returns key and version of every linked target row in list order
	RowStates() []RowState

	Add(targetRow int) error
	Insert(i, targetRow int) error
	Set(i, targetRow int) error
	Remove(i int) error
	Move(from, to int) error
	Swap(a, b int) error
	Clear() error

	// RemoveAllTargetRows deletes every linked row from the target table
	RemoveAllTargetRows() error

	// Where starts a query restricted to the linked rows, keeping list order
	Where() Query
}

// Query is an immutable predicate over the rows of a table.
// All builder methods return a new query.
type Query interface {
	Table() Table

	// Err returns the first error that occurred while building the query
	Err() error

	Equal(col int, value any) Query
	NotEqual(col int, value any) Query
	Greater(col int, value any) Query
	GreaterEqual(col int, value any) Query
	Less(col int, value any) Query
	LessEqual(col int, value any) Query
	IsNull(col int) Query
	IsNotNull(col int) Query
	BeginsWith(col int, prefix string) Query
	Contains(col int, substr string) Query

	// And returns a query matching rows that match both queries.
	// The restriction (e.g. to a link list) of the receiver is kept.
	And(other Query) Query

	Count() int
	Find() int
	FindAll() View
}

// View is a materialized list of rows.
// Views keep row keys, rows deleted after materialization read as detached.
type View interface {
	Table() Table

	// Version returns the data version the view was materialized at
	Version() uint64

	Size() int

	// Get returns the row index of the i-th row, NotFound when detached or out of range
	Get(i int) int
	Key(i int) RowKey
	IsRowAttached(i int) bool
	RowStates() []RowState

	// Sort returns a new view ordered by the given clauses (stable)
	Sort(clauses ...SortClause) View

	// Distinct returns a new view keeping the first row for every distinct value of the column
	Distinct(col int) View

	// FindFirst returns the view index of the first attached row matching the value or NotFound
	FindFirst(col int, value any) int
	FindFirstNull(col int) int

	// Aggregate runs the aggregate over attached rows. Row in the result is a view index.
	Aggregate(op AggregateOp, col int) (AggregateResult, error)
}
