package maple

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple/internal"
)

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists all tables to the writer.
//
// File layout (little endian):
//
//	magic | format version (u8) | data version (u64) | table count (u32) | tables...
//	table: name | column count (u32) | columns... | next key (u64) | row count (u64) | rows...
//	row:   key (u64) | version (u64) | cells...
//
// Link list cells are stored as a count followed by the target keys,
// primitive list cells as a nested table without name and columns.
//
// Thread-safety: Save holds the read lock, writes wait until it is done.
func (g *mapleGroup) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return db.ErrClosed
	}

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer
	enc := internal.NewEncoder(bw)

	enc.Raw(magicNum)
	enc.Uint8(mapleVersion)
	enc.Uint64(g.version.Load())
	enc.Uint32(uint32(len(g.tables)))

	for _, t := range g.tables {
		enc.String(t.name)
		enc.Uint32(uint32(len(t.columns)))
		for _, c := range t.columns {
			enc.String(c.Name)
			enc.Uint8(uint8(c.Kind))
			enc.Bool(c.Nullable)
			enc.String(c.Target)
			enc.Uint8(uint8(c.Element))
			enc.Bool(c.ElementNullable)
		}
		saveRows(enc, t)
	}

	if err := enc.Err(); err != nil {
		return err
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

func saveRows(enc *internal.Encoder, t *table) {
	enc.Uint64(uint64(t.nextKey))
	enc.Uint64(uint64(len(t.rows)))

	for _, r := range t.rows {
		enc.Uint64(uint64(r.Key))
		enc.Uint64(r.Version)

		for i, c := range t.columns {
			switch c.Kind {
			case db.KindLinkList:
				ll := r.Cells[i].(*linkList)
				enc.Uint32(uint32(len(ll.targets)))
				for _, k := range ll.targets {
					enc.Uint64(uint64(k))
				}
			case db.KindList:
				saveRows(enc, r.Cells[i].(*table))
			default:
				enc.Cell(c.Kind, r.Cells[i])
			}
		}
	}
}

// Load replaces all tables with the content of the reader.
// Everything handed out before (tables, link lists, subtables) is detached.
//
// Thread-safety: Load holds the write lock.
func (g *mapleGroup) Load(r io.Reader) error {
	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer
	dec := internal.NewDecoder(br)

	// Read and verify magic number
	if magic := dec.Raw(len(magicNum)); dec.Err() != nil {
		return dec.Err()
	} else if magic != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	if version := dec.Uint8(); dec.Err() != nil {
		return dec.Err()
	} else if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return db.ErrClosed
	}

	savedVersion := dec.Uint64()
	tableCount := dec.Uint32()

	tables := make([]*table, 0, tableCount)
	byName := make(map[string]*table, tableCount)
	for i := uint32(0); i < tableCount && dec.Err() == nil; i++ {
		name := dec.String()
		columnCount := dec.Uint32()
		columns := make([]db.ColumnSpec, 0, columnCount)
		for j := uint32(0); j < columnCount && dec.Err() == nil; j++ {
			columns = append(columns, db.ColumnSpec{
				Name:            dec.String(),
				Kind:            db.Kind(dec.Uint8()),
				Nullable:        dec.Bool(),
				Target:          dec.String(),
				Element:         db.Kind(dec.Uint8()),
				ElementNullable: dec.Bool(),
			})
		}

		t := newTable(g, name, columns)
		loadRows(dec, t)
		tables = append(tables, t)
		byName[name] = t
	}

	if err := dec.Err(); err != nil {
		return fmt.Errorf("failed to load group: %w", err)
	}

	// resolve link targets once all tables exist
	for _, t := range tables {
		for i, c := range t.columns {
			if c.Kind != db.KindLink && c.Kind != db.KindLinkList {
				continue
			}
			target, ok := byName[c.Target]
			if !ok {
				return fmt.Errorf("failed to load group: table %s: %w", c.Target, db.ErrNoSuchTable)
			}
			t.targets[i] = target
		}
	}

	// swap in the new tables
	for _, t := range g.tables {
		t.detach()
	}
	g.byName.Clear()
	for _, t := range tables {
		g.byName.Store(t.name, t)
	}
	g.tables = tables

	// keep versions monotonic so views built before the load notice the change
	if savedVersion > g.version.Load() {
		g.version.Store(savedVersion)
	}
	g.bump()

	Logger.Infof("loaded %d tables", len(tables))
	return nil
}

func loadRows(dec *internal.Decoder, t *table) {
	t.nextKey = db.RowKey(dec.Uint64())
	rowCount := dec.Uint64()

	for i := uint64(0); i < rowCount && dec.Err() == nil; i++ {
		r := &internal.Row{
			Key:     db.RowKey(dec.Uint64()),
			Version: dec.Uint64(),
			Cells:   make([]any, len(t.columns)),
		}

		for j, c := range t.columns {
			switch c.Kind {
			case db.KindLinkList:
				ll := &linkList{origin: t, col: j, originKey: r.Key, attached: true}
				n := dec.Uint32()
				for k := uint32(0); k < n && dec.Err() == nil; k++ {
					ll.targets = append(ll.targets, db.RowKey(dec.Uint64()))
				}
				r.Cells[j] = ll
			case db.KindList:
				sub := newSubtable(t, j, r.Key)
				loadRows(dec, sub)
				r.Cells[j] = sub
			default:
				r.Cells[j] = dec.Cell(c.Kind)
			}
		}

		t.rows = append(t.rows, r)
		t.index[r.Key] = len(t.rows) - 1
	}
}
