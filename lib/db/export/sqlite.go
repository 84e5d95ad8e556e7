package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var Logger = logger.GetLogger("export")

// ErrFileExists is returned when the target of an export already exists
var ErrFileExists = errors.New("export target already exists")

// RowColumn is the name of the column holding the row index in every exported table
const RowColumn = "_row"

// Stats summarizes an export
type Stats struct {
	Tables int // exported SQL tables, including the ones for list columns
	Rows   int // inserted SQL rows
}

// --------------------------------------------------------------------------
// Export
// --------------------------------------------------------------------------

// ExportSQLite writes every top level table of the group to a new SQLite database at path.
//
// Each table becomes a SQL table with a RowColumn primary key and one column per
// primitive or link column (links hold the target row index). List and link list
// columns become separate tables named "<table>_<column>" with the columns
// owner_row, position and value (or target_row for link lists).
//
// The whole export runs in one SQL transaction, a failed export leaves no file behind.
func ExportSQLite(ctx context.Context, group db.Group, path string) (Stats, error) {
	var stats Stats
	if _, err := os.Stat(path); err == nil {
		return stats, fmt.Errorf("%s: %w", path, ErrFileExists)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return stats, fmt.Errorf("open sqlite database: %w", err)
	}

	err = exportTables(ctx, sqlDB, group, &stats)
	if closeErr := sqlDB.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close sqlite database: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return Stats{}, err
	}

	Logger.Infof("exported %d tables (%d rows) to %q", stats.Tables, stats.Rows, path)
	return stats, nil
}

func exportTables(ctx context.Context, sqlDB *sql.DB, group db.Group, stats *Stats) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range group.TableNames() {
		t, ok := group.Table(name)
		if !ok {
			continue
		}
		if err := exportTable(ctx, tx, t, stats); err != nil {
			return fmt.Errorf("export table %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func exportTable(ctx context.Context, tx *sql.Tx, t db.Table, stats *Stats) error {
	columns := t.Columns()

	// split inline columns from the ones stored in their own table
	var inline, nested []int
	for col, c := range columns {
		if c.Kind.IsPrimitive() || c.Kind == db.KindLink {
			inline = append(inline, col)
		} else {
			nested = append(nested, col)
		}
	}

	defs := []string{quote(RowColumn) + " INTEGER PRIMARY KEY"}
	names := []string{quote(RowColumn)}
	for _, col := range inline {
		c := columns[col]
		def := quote(c.Name) + " " + sqlType(c.Kind)
		if !c.Nullable && c.Kind != db.KindLink {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		names = append(names, quote(c.Name))
	}
	if err := createTable(ctx, tx, t.Name(), defs, stats); err != nil {
		return err
	}
	insert, err := tx.PrepareContext(ctx, insertStatement(t.Name(), names))
	if err != nil {
		return err
	}
	defer insert.Close()

	nestedInserts := make(map[int]*sql.Stmt, len(nested))
	for _, col := range nested {
		stmt, err := prepareNested(ctx, tx, t.Name(), columns[col], stats)
		if err != nil {
			return err
		}
		defer stmt.Close()
		nestedInserts[col] = stmt
	}

	args := make([]any, len(names))
	for row := 0; row < t.Size(); row++ {
		args[0] = row
		for i, col := range inline {
			v, err := t.Get(col, row)
			if err != nil {
				return err
			}
			args[i+1] = sqlValue(v)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return err
		}
		stats.Rows++

		for _, col := range nested {
			n, err := exportNested(ctx, nestedInserts[col], t, columns[col], col, row)
			if err != nil {
				return err
			}
			stats.Rows += n
		}
	}
	return nil
}

// prepareNested creates the table of a list or link list column and returns its insert statement
func prepareNested(ctx context.Context, tx *sql.Tx, table string, c db.ColumnSpec, stats *Stats) (*sql.Stmt, error) {
	name := table + "_" + c.Name
	defs := []string{
		quote("owner_row") + " INTEGER NOT NULL",
		quote("position") + " INTEGER NOT NULL",
	}
	names := []string{quote("owner_row"), quote("position")}
	if c.Kind == db.KindLinkList {
		defs = append(defs, quote("target_row")+" INTEGER NOT NULL")
		names = append(names, quote("target_row"))
	} else {
		def := quote("value") + " " + sqlType(c.Element)
		if !c.ElementNullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		names = append(names, quote("value"))
	}
	if err := createTable(ctx, tx, name, defs, stats); err != nil {
		return nil, err
	}
	return tx.PrepareContext(ctx, insertStatement(name, names))
}

// exportNested inserts the elements of one list cell and returns their count
func exportNested(ctx context.Context, stmt *sql.Stmt, t db.Table, c db.ColumnSpec, col, row int) (int, error) {
	if c.Kind == db.KindLinkList {
		links, err := t.LinkList(col, row)
		if err != nil {
			return 0, err
		}
		size := links.Size()
		for i := 0; i < size; i++ {
			if _, err := stmt.ExecContext(ctx, row, i, links.Get(i)); err != nil {
				return 0, err
			}
		}
		return size, nil
	}

	sub, err := t.Subtable(col, row)
	if err != nil {
		return 0, err
	}
	size := sub.Size()
	for i := 0; i < size; i++ {
		v, err := sub.Get(0, i)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, row, i, sqlValue(v)); err != nil {
			return 0, err
		}
	}
	return size, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func createTable(ctx context.Context, tx *sql.Tx, name string, defs []string, stats *Stats) error {
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	stats.Tables++
	return nil
}

func insertStatement(table string, names []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(names, ", "), placeholders)
}

// quote quotes an SQL identifier
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(kind db.Kind) string {
	switch kind {
	case db.KindInt, db.KindBool, db.KindLink:
		return "INTEGER"
	case db.KindFloat, db.KindDouble:
		return "REAL"
	case db.KindBinary:
		return "BLOB"
	default:
		// strings and timestamps (RFC 3339)
		return "TEXT"
	}
}

// sqlValue converts a cell value into the value stored in SQLite
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
