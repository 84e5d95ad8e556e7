package collection

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/ValentinKolb/dObj/lib/session"
	"github.com/stretchr/testify/require"
)

// columns of the items table
const (
	itemValue = iota
	itemName
	itemScore
	itemFlag
	itemAt
)

// columns of the owners table
const (
	ownerBools = iota
	ownerInts
	ownerDoubles
	ownerStrings
	ownerTimes
	ownerLinks
	ownerEmbedded
	ownerFloats
	ownerBlobs
	ownerNullBools
	ownerNullDoubles
	ownerPlainFloats
)

type fixture struct {
	session *session.Session
	group   db.Group
	items   db.Table
	owners  db.Table
	row     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	group := maple.NewMapleGroup(nil)
	coord := notify.For(group)
	s, err := session.Open(group, coord, common.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		coord.Close()
		_ = group.Close()
	})

	items, err := group.AddTable("items",
		db.ColumnSpec{Name: "value", Kind: db.KindInt},
		db.ColumnSpec{Name: "name", Kind: db.KindString},
		db.ColumnSpec{Name: "score", Kind: db.KindDouble, Nullable: true},
		db.ColumnSpec{Name: "flag", Kind: db.KindBool},
		db.ColumnSpec{Name: "at", Kind: db.KindTimestamp},
	)
	require.NoError(t, err)

	owners, err := group.AddTable("owners",
		db.ColumnSpec{Name: "bools", Kind: db.KindList, Element: db.KindBool},
		db.ColumnSpec{Name: "ints", Kind: db.KindList, Element: db.KindInt, ElementNullable: true},
		db.ColumnSpec{Name: "doubles", Kind: db.KindList, Element: db.KindDouble},
		db.ColumnSpec{Name: "strings", Kind: db.KindList, Element: db.KindString},
		db.ColumnSpec{Name: "times", Kind: db.KindList, Element: db.KindTimestamp},
		db.ColumnSpec{Name: "links", Kind: db.KindLinkList, Target: "items"},
		db.ColumnSpec{Name: "embedded", Kind: db.KindList, Element: db.KindInt},
		db.ColumnSpec{Name: "floats", Kind: db.KindList, Element: db.KindFloat, ElementNullable: true},
		db.ColumnSpec{Name: "blobs", Kind: db.KindList, Element: db.KindBinary},
		db.ColumnSpec{Name: "null_bools", Kind: db.KindList, Element: db.KindBool, ElementNullable: true},
		db.ColumnSpec{Name: "null_doubles", Kind: db.KindList, Element: db.KindDouble, ElementNullable: true},
		db.ColumnSpec{Name: "plain_floats", Kind: db.KindList, Element: db.KindFloat},
	)
	require.NoError(t, err)

	f := &fixture{session: s, group: group, items: items, owners: owners}
	f.write(t, func() error {
		f.row, err = owners.AddEmptyRow()
		return err
	})
	return f
}

// write runs fn in a write transaction and fails the test on error
func (f *fixture) write(t *testing.T, fn func() error) {
	t.Helper()
	require.NoError(t, f.session.Write(fn))
}

// refresh delivers pending notifications
func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Refresh(context.Background()))
}

// addItems adds one item per value, named itema, itemb, ...
func (f *fixture) addItems(t *testing.T, values ...int64) []int {
	t.Helper()
	rows := make([]int, len(values))
	f.write(t, func() error {
		for i, v := range values {
			row, err := f.items.AddEmptyRow()
			if err != nil {
				return err
			}
			if err := f.items.Set(itemValue, row, v); err != nil {
				return err
			}
			if err := f.items.Set(itemName, row, "item"+string(rune('a'+i))); err != nil {
				return err
			}
			rows[i] = row
		}
		return nil
	})
	return rows
}

func primitiveList[T Element](t *testing.T, f *fixture, col int) PrimitiveList[T] {
	t.Helper()
	l, err := PrimitiveListOf[T](f.session, f.owners, col, f.row)
	require.NoError(t, err)
	return l
}

func linkList(t *testing.T, f *fixture) List {
	t.Helper()
	l, err := ListOf(f.session, f.owners, ownerLinks, f.row)
	require.NoError(t, err)
	return l
}

// fill adds the values to the list in one write transaction
func fill[T Element](t *testing.T, f *fixture, l PrimitiveList[T], values ...T) {
	t.Helper()
	f.write(t, func() error {
		for _, v := range values {
			if err := l.Add(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func values[T Element](t *testing.T, l PrimitiveList[T]) []T {
	t.Helper()
	v, err := l.Values()
	require.NoError(t, err)
	return v
}
