package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T) db.Group {
	t.Helper()
	g := maple.NewMapleGroup(nil)
	t.Cleanup(func() { _ = g.Close() })

	items, err := g.AddTable("items",
		db.ColumnSpec{Name: "value", Kind: db.KindInt},
		db.ColumnSpec{Name: "name", Kind: db.KindString},
		db.ColumnSpec{Name: "score", Kind: db.KindDouble, Nullable: true},
		db.ColumnSpec{Name: "flag", Kind: db.KindBool},
		db.ColumnSpec{Name: "at", Kind: db.KindTimestamp},
	)
	require.NoError(t, err)
	owners, err := g.AddTable("owners",
		db.ColumnSpec{Name: "favorite", Kind: db.KindLink, Target: "items"},
		db.ColumnSpec{Name: "links", Kind: db.KindLinkList, Target: "items"},
		db.ColumnSpec{Name: "tags", Kind: db.KindList, Element: db.KindString},
	)
	require.NoError(t, err)

	for i, name := range []string{"a", "b", "c"} {
		row, err := items.AddEmptyRow()
		require.NoError(t, err)
		require.NoError(t, items.Set(0, row, int64(i*10)))
		require.NoError(t, items.Set(1, row, name))
	}
	require.NoError(t, items.Set(2, 1, 2.5))
	require.NoError(t, items.Set(3, 2, true))
	require.NoError(t, items.Set(4, 0, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	row, err := owners.AddEmptyRow()
	require.NoError(t, err)
	require.NoError(t, owners.Set(0, row, 2))
	links, err := owners.LinkList(1, row)
	require.NoError(t, err)
	require.NoError(t, links.Add(2))
	require.NoError(t, links.Add(0))
	tags, err := owners.Subtable(2, row)
	require.NoError(t, err)
	for i, tag := range []string{"x", "y"} {
		require.NoError(t, tags.InsertEmptyRow(i))
		require.NoError(t, tags.Set(0, i, tag))
	}

	// a second owner without favorite, links and tags
	_, err = owners.AddEmptyRow()
	require.NoError(t, err)
	return g
}

func TestExportSQLite(t *testing.T) {
	g := newGroup(t)
	path := filepath.Join(t.TempDir(), "out.db")

	stats, err := ExportSQLite(context.Background(), g, path)
	require.NoError(t, err)
	// items, owners, owners_links, owners_tags
	assert.Equal(t, 4, stats.Tables)
	assert.Equal(t, 3+2+2+2, stats.Rows)

	sqlDB, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer sqlDB.Close()

	var count int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM "items"`).Scan(&count))
	assert.Equal(t, 3, count)

	var (
		value int64
		name  string
		score sql.NullFloat64
		flag  int64
		at    string
	)
	require.NoError(t, sqlDB.QueryRow(`SELECT "value", "name", "score", "flag", "at" FROM "items" WHERE "_row" = 1`).
		Scan(&value, &name, &score, &flag, &at))
	assert.Equal(t, int64(10), value)
	assert.Equal(t, "b", name)
	assert.Equal(t, sql.NullFloat64{Float64: 2.5, Valid: true}, score)
	assert.Equal(t, int64(0), flag)
	assert.Equal(t, time.Unix(0, 0).UTC().Format(time.RFC3339Nano), at)

	require.NoError(t, sqlDB.QueryRow(`SELECT "at" FROM "items" WHERE "_row" = 0`).Scan(&at))
	assert.Equal(t, "2024-01-02T03:04:05Z", at)

	var favorite sql.NullInt64
	require.NoError(t, sqlDB.QueryRow(`SELECT "favorite" FROM "owners" WHERE "_row" = 0`).Scan(&favorite))
	assert.Equal(t, sql.NullInt64{Int64: 2, Valid: true}, favorite)
	require.NoError(t, sqlDB.QueryRow(`SELECT "favorite" FROM "owners" WHERE "_row" = 1`).Scan(&favorite))
	assert.False(t, favorite.Valid)

	rows, err := sqlDB.Query(`SELECT "target_row" FROM "owners_links" WHERE "owner_row" = 0 ORDER BY "position"`)
	require.NoError(t, err)
	var targets []int
	for rows.Next() {
		var target int
		require.NoError(t, rows.Scan(&target))
		targets = append(targets, target)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int{2, 0}, targets)

	var tag string
	require.NoError(t, sqlDB.QueryRow(`SELECT "value" FROM "owners_tags" WHERE "position" = 1`).Scan(&tag))
	assert.Equal(t, "y", tag)
}

func TestExportSQLiteExistingFile(t *testing.T) {
	g := newGroup(t)
	path := filepath.Join(t.TempDir(), "out.db")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	_, err := ExportSQLite(context.Background(), g, path)
	assert.ErrorIs(t, err, ErrFileExists)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))
}

func TestExportSQLiteCanceled(t *testing.T) {
	g := newGroup(t)
	path := filepath.Join(t.TempDir(), "out.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExportSQLite(ctx, g, path)
	assert.Error(t, err)

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, quote("plain"))
	assert.Equal(t, `"say ""hi"""`, quote(`say "hi"`))
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES (?, ?)`, insertStatement("t", []string{`"a"`, `"b"`}))
}
