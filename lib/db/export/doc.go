// Package export writes the content of a group to other formats.
//
// ExportSQLite creates a SQLite database (through the pure Go modernc.org/sqlite driver)
// with one SQL table per top level table and one per list or link list column.
package export
