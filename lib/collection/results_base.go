package collection

import (
	"slices"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
)

var (
	viewRebuilds   = metrics.GetOrCreateCounter("dobj_results_view_rebuilds_total")
	snapshotsTaken = metrics.GetOrCreateCounter("dobj_results_snapshots_total")
)

// Mode is the backing of a results instance
type Mode uint8

const (
	ModeEmpty Mode = iota // no backing, every access yields nothing
	ModeTable             // all rows of a table in table order
	ModeQuery             // a query with a lazily rebuilt view
	ModeView              // a materialized view that is never rebuilt
)

// String returns the name of the mode
func (m Mode) String() string {
	switch m {
	case ModeEmpty:
		return "empty"
	case ModeTable:
		return "table"
	case ModeQuery:
		return "query"
	case ModeView:
		return "view"
	default:
		return "unknown"
	}
}

// resultsVariants hands out a notifier variant per results instance
var resultsVariants atomic.Uint64

// resultsBase implements the shared behaviour of Results and PrimitiveResults.
//
// A resultsBase never changes its mode, query, sort or distinct settings;
// Sort, Filter, Distinct and Snapshot derive new instances. Only the cached view
// of the Query mode is replaced when it became stale.
type resultsBase struct {
	session Session
	backing backing // structure whose detachment invalidates the results
	mode    Mode
	table   db.Table
	query   db.Query
	view    db.View

	sort        []db.SortClause
	distinct    bool
	distinctCol int
	variant     uint64
}

func newEmptyResults() *resultsBase {
	return &resultsBase{mode: ModeEmpty, variant: resultsVariants.Add(1)}
}

func newTableResults(s Session, b backing, t db.Table) *resultsBase {
	return &resultsBase{
		session: s,
		backing: b,
		mode:    ModeTable,
		table:   t,
		query:   t.Where(),
		variant: resultsVariants.Add(1),
	}
}

func newQueryResults(s Session, b backing, q db.Query) *resultsBase {
	return &resultsBase{
		session: s,
		backing: b,
		mode:    ModeQuery,
		table:   q.Table(),
		query:   q,
		variant: resultsVariants.Add(1),
	}
}

// derive copies the settings into a new instance of the given mode
func (r *resultsBase) derive(m Mode) *resultsBase {
	if r.mode == ModeEmpty {
		return newEmptyResults()
	}
	return &resultsBase{
		session:     r.session,
		backing:     r.backing,
		mode:        m,
		table:       r.table,
		query:       r.query,
		sort:        slices.Clone(r.sort),
		distinct:    r.distinct,
		distinctCol: r.distinctCol,
		variant:     resultsVariants.Add(1),
	}
}

// materialize evaluates a query with sort and distinct settings
func materialize(q db.Query, sort []db.SortClause, distinct bool, distinctCol int) db.View {
	v := q.FindAll()
	if len(sort) > 0 {
		v = v.Sort(sort...)
	}
	if distinct {
		v = v.Distinct(distinctCol)
	}
	return v
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

func (r *resultsBase) verify() error {
	if r.mode == ModeEmpty {
		return nil
	}
	if err := r.session.VerifyThread(); err != nil {
		return err
	}
	if !r.backing.IsAttached() {
		return ErrInvalidated
	}
	if r.mode != ModeTable {
		return r.query.Err()
	}
	return nil
}

func (r *resultsBase) isValid() bool {
	return r.verify() == nil
}

func (r *resultsBase) columnKind(col int) (db.Kind, error) {
	columns := r.table.Columns()
	if col < 0 || col >= len(columns) {
		return 0, db.ErrColumnOutOfRange
	}
	return columns[col].Kind, nil
}

// currentView returns the view of the Query and View modes.
// The Query mode rebuilds its view when it was never built or the data changed since.
func (r *resultsBase) currentView() db.View {
	if r.mode == ModeQuery && (r.view == nil || r.view.Version() != r.session.Version()) {
		r.view = materialize(r.query, r.sort, r.distinct, r.distinctCol)
		viewRebuilds.Inc()
		Logger.Debugf("rebuilt view of %s at version %d (%d rows)", r.table.Identity(), r.view.Version(), r.view.Size())
	}
	return r.view
}

// --------------------------------------------------------------------------
// Access
// --------------------------------------------------------------------------

func (r *resultsBase) size() (int, error) {
	if err := r.verify(); err != nil {
		return 0, err
	}
	switch r.mode {
	case ModeEmpty:
		return 0, nil
	case ModeTable:
		return r.table.Size(), nil
	default:
		return r.currentView().Size(), nil
	}
}

// rowAt translates a results index into a table row index.
// ok is false for a row that was deleted after the view was materialized.
func (r *resultsBase) rowAt(i int) (row int, ok bool, err error) {
	if err := r.verify(); err != nil {
		return db.NotFound, false, err
	}
	switch r.mode {
	case ModeEmpty:
		return db.NotFound, false, &OutOfBoundsIndexError{Requested: i, ValidCount: 0}
	case ModeTable:
		if err := verifyValidRow(i, r.table.Size(), false); err != nil {
			return db.NotFound, false, err
		}
		return i, true, nil
	default:
		v := r.currentView()
		if err := verifyValidRow(i, v.Size(), false); err != nil {
			return db.NotFound, false, err
		}
		row = v.Get(i)
		return row, row != db.NotFound, nil
	}
}

// get reads a cell of the i-th row
func (r *resultsBase) get(col, i int) (value any, ok bool, err error) {
	row, ok, err := r.rowAt(i)
	if err != nil || !ok {
		return nil, false, err
	}
	value, err = r.table.Get(col, row)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *resultsBase) first(col int) (any, bool, error) {
	size, err := r.size()
	if err != nil || size == 0 {
		return nil, false, err
	}
	return r.get(col, 0)
}

func (r *resultsBase) last(col int) (any, bool, error) {
	size, err := r.size()
	if err != nil || size == 0 {
		return nil, false, err
	}
	return r.get(col, size-1)
}

// indexOf returns the index of the first row holding the value, nil searches for null
func (r *resultsBase) indexOf(col int, value any) (int, error) {
	if err := r.verify(); err != nil {
		return db.NotFound, err
	}
	if r.mode == ModeEmpty {
		return db.NotFound, nil
	}
	kind, err := r.columnKind(col)
	if err != nil {
		return db.NotFound, err
	}

	value = searchValue(kind, value)
	switch {
	case r.mode == ModeTable && value == nil:
		return r.table.FindFirstNull(col), nil
	case r.mode == ModeTable:
		return r.table.FindFirst(col, value), nil
	case value == nil:
		return r.currentView().FindFirstNull(col), nil
	default:
		return r.currentView().FindFirst(col, value), nil
	}
}

// indexOfRow returns the index of the row with the given key
func (r *resultsBase) indexOfRow(key db.RowKey) (int, error) {
	if err := r.verify(); err != nil {
		return db.NotFound, err
	}
	switch r.mode {
	case ModeEmpty:
		return db.NotFound, nil
	case ModeTable:
		return r.table.Position(key), nil
	default:
		v := r.currentView()
		for i := 0; i < v.Size(); i++ {
			if v.Key(i) == key && v.IsRowAttached(i) {
				return i, nil
			}
		}
		return db.NotFound, nil
	}
}

// --------------------------------------------------------------------------
// Aggregates
// --------------------------------------------------------------------------

// aggregate runs an aggregate over a column.
// ok is false when the result is undefined: no rows for min and max, no non-null
// values for average, and always for the Empty mode.
func (r *resultsBase) aggregate(op db.AggregateOp, col int) (value any, ok bool, err error) {
	if err := r.verify(); err != nil {
		return nil, false, err
	}
	if r.mode == ModeEmpty {
		return nil, false, nil
	}
	kind, err := r.columnKind(col)
	if err != nil {
		return nil, false, err
	}
	if !supportsAggregate(kind, op) {
		return nil, false, &UnsupportedAggregateError{Op: op, Kind: kind}
	}

	var res db.AggregateResult
	if r.mode == ModeTable {
		res, err = r.table.Aggregate(op, col)
	} else {
		res, err = r.currentView().Aggregate(op, col)
	}
	if err != nil {
		return nil, false, err
	}

	switch op {
	case db.AggMin, db.AggMax:
		if res.Row == db.NotFound {
			return nil, false, nil
		}
		return aggregateValue(kind, res.Value), true, nil
	case db.AggAverage:
		if res.Count == 0 {
			return nil, false, nil
		}
		return res.Value, true, nil
	default:
		return aggregateValue(kind, res.Value), true, nil
	}
}

// --------------------------------------------------------------------------
// Derivation
// --------------------------------------------------------------------------

func (r *resultsBase) sorted(clauses []db.SortClause) (*resultsBase, error) {
	if err := r.verify(); err != nil {
		return nil, err
	}
	d := r.derive(ModeQuery)
	d.sort = slices.Clone(clauses)
	return d, nil
}

func (r *resultsBase) filtered(q db.Query) (*resultsBase, error) {
	if err := r.verify(); err != nil {
		return nil, err
	}
	d := r.derive(ModeQuery)
	if d.mode != ModeEmpty {
		d.query = r.query.And(q)
	}
	return d, nil
}

// materialized returns the rows of the results as a view
func (r *resultsBase) materialized() db.View {
	if r.mode == ModeTable {
		return r.table.View()
	}
	return r.currentView()
}

func (r *resultsBase) snapshot() (*resultsBase, error) {
	if err := r.verify(); err != nil {
		return nil, err
	}
	d := r.derive(ModeView)
	if d.mode != ModeEmpty {
		d.view = r.materialized()
		snapshotsTaken.Inc()
	}
	return d, nil
}

func (r *resultsBase) distinctOn(col int) (*resultsBase, error) {
	if err := r.verify(); err != nil {
		return nil, err
	}
	d := r.derive(ModeView)
	if d.mode == ModeEmpty {
		return d, nil
	}
	if _, err := r.columnKind(col); err != nil {
		return nil, err
	}
	d.distinct = true
	d.distinctCol = col
	d.view = r.materialized().Distinct(col)
	return d, nil
}

// --------------------------------------------------------------------------
// Notifications
// --------------------------------------------------------------------------

// source returns the function the notifier uses to capture the rows
func (r *resultsBase) source() notify.SourceFunc {
	b := r.backing
	switch r.mode {
	case ModeTable:
		t := r.table
		return func() ([]db.RowState, bool) {
			return t.RowStates(), b.IsAttached()
		}
	case ModeQuery:
		q, sort, distinct, col := r.query, slices.Clone(r.sort), r.distinct, r.distinctCol
		return func() ([]db.RowState, bool) {
			if !b.IsAttached() {
				return nil, false
			}
			return materialize(q, sort, distinct, col).RowStates(), true
		}
	default:
		v := r.view
		return func() ([]db.RowState, bool) {
			return v.RowStates(), b.IsAttached()
		}
	}
}

func (r *resultsBase) addCallback(fn notify.Callback) (*notify.Token, error) {
	if err := r.verify(); err != nil {
		return nil, err
	}
	if r.mode == ModeEmpty {
		return nil, ErrLogic
	}
	n := r.session.Coordinator().NotifierFor(r.backing.Identity(), r.variant, r.session.ID(), r.source())
	return n.AddCallback(fn), nil
}
