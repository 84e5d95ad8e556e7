package maple

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("maple")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for the file format
const (
	magicNum     = "MAPLEOBJ" // File format identifier
	mapleVersion = 1          // Format version
)

// --------------------------------------------------------------------------
// Core Maple group structure
// --------------------------------------------------------------------------

// mapleGroup implements db.Group with all tables held in memory.
//
// One RWMutex guards every table, link list and view of the group.
// Exported methods acquire it, unexported helpers expect the caller to hold it.
type mapleGroup struct {
	mu           sync.RWMutex
	key          uint64
	version      atomic.Uint64 // Current data version, bumped on every mutation
	nextTableKey atomic.Uint64
	tables       []*table                      // Top level tables in creation order
	byName       *xsync.MapOf[string, *table] // Lookup of top level tables
	rowCapacity  int
	closed       bool
}

// Options configures the mapleGroup behavior during initialization
type Options struct {
	RowCapacity int // Initial row capacity of new tables (0 = grow on demand)
}

// DefaultOptions returns the default mapleGroup options
func DefaultOptions() *Options {
	return &Options{
		RowCapacity: 16,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleGroup creates a new empty group with the specified options (optional)
func NewMapleGroup(opts *Options) db.Group {
	if opts == nil {
		opts = DefaultOptions()
	}

	g := &mapleGroup{
		key:         util.GenerateSeed(),
		byName:      xsync.NewMapOf[string, *table](),
		rowCapacity: opts.RowCapacity,
	}
	g.nextTableKey.Store(1)
	return g
}

// bump advances the data version and returns the new version.
// The caller must hold the write lock.
func (g *mapleGroup) bump() uint64 {
	return g.version.Add(1)
}

func (g *mapleGroup) allocTableKey() uint64 {
	return g.nextTableKey.Add(1) - 1
}

// --------------------------------------------------------------------------
// db.Group Interface
// --------------------------------------------------------------------------

func (g *mapleGroup) Key() uint64 {
	return g.key
}

// Version returns the current data version.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (g *mapleGroup) Version() uint64 {
	return g.version.Load()
}

// AddTable creates a new top level table.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (g *mapleGroup) AddTable(name string, columns ...db.ColumnSpec) (db.Table, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, db.ErrClosed
	}
	if _, ok := g.byName.Load(name); ok {
		return nil, db.ErrTableExists
	}

	t := newTable(g, name, columns)
	if err := g.resolveTargets(t); err != nil {
		return nil, err
	}

	g.tables = append(g.tables, t)
	g.byName.Store(name, t)
	g.bump()

	Logger.Debugf("added table %s with %d columns", name, len(columns))
	return t, nil
}

// resolveTargets looks up the target tables of all link columns of t
func (g *mapleGroup) resolveTargets(t *table) error {
	for i, c := range t.columns {
		switch c.Kind {
		case db.KindLink, db.KindLinkList:
			if c.Target == t.name {
				t.targets[i] = t
				continue
			}
			target, ok := g.byName.Load(c.Target)
			if !ok {
				return db.ErrNoSuchTable
			}
			t.targets[i] = target
		case db.KindList:
			if !c.Element.IsPrimitive() {
				return db.ErrUnsupported
			}
		}
	}
	return nil
}

// Table returns the top level table with the given name.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (g *mapleGroup) Table(name string) (db.Table, bool) {
	t, ok := g.byName.Load(name)
	if !ok {
		return nil, false
	}
	return t, true
}

// TableNames returns the names of all top level tables in creation order
func (g *mapleGroup) TableNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, len(g.tables))
	for i, t := range g.tables {
		names[i] = t.name
	}
	return names
}

// SupportsFeature checks if this implementation supports a specific feature
func (g *mapleGroup) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureQuery |
		db.FeatureSort |
		db.FeatureDistinct |
		db.FeatureLinkLists |
		db.FeaturePrimitiveLists |
		db.FeatureAggregate |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// groupInfo is the metadata of DatabaseInfo
type groupInfo struct {
	DataVersion uint64           `json:"data_version"`
	TableCount  int              `json:"table_count"`
	RowSizes    util.SizeSummary `json:"row_sizes"`
	TableRows   util.SizeSummary `json:"table_rows"`
	Info        string           `json:"info"`
}

// GetInfo returns statistics about the group
func (g *mapleGroup) GetInfo() db.DatabaseInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tableSizes := make([]int, len(g.tables))
	rowSizes := make([]int, 0)
	for i, t := range g.tables {
		tableSizes[i] = len(t.rows)
		for _, r := range t.rows {
			rowSizes = append(rowSizes, t.rowSize(r))
		}
	}
	rows := util.Summarize(rowSizes)

	// row overhead: key and version
	rowOverhead := 16
	sizeBytes := rows.Total + rows.Count*rowOverhead

	meta := &groupInfo{
		DataVersion: g.version.Load(),
		TableCount:  len(g.tables),
		RowSizes:    rows,
		TableRows:   util.Summarize(tableSizes),
		Info:        "Row sizes are the encoded sizes of the rows of top level tables.",
	}

	supportedFeatures := []db.Feature{
		db.FeatureQuery, db.FeatureSort, db.FeatureDistinct,
		db.FeatureLinkLists, db.FeaturePrimitiveLists,
		db.FeatureAggregate,
		db.FeatureSave, db.FeatureLoad,
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// Close detaches all tables
func (g *mapleGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	for _, t := range g.tables {
		t.detach()
	}
	g.tables = nil
	g.byName.Clear()
	g.closed = true
	g.bump()
	return nil
}
