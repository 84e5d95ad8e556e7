package collection

import (
	"testing"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedValues reads the value column of every linked item
func linkedValues(t *testing.T, l List) []int64 {
	t.Helper()
	size, err := l.Size()
	require.NoError(t, err)
	out := make([]int64, size)
	for i := range out {
		out[i], err = GetValue[int64](l, i)
		require.NoError(t, err)
	}
	return out
}

func link(t *testing.T, f *fixture, l List, rows ...int) {
	t.Helper()
	f.write(t, func() error {
		for _, row := range rows {
			if err := l.Add(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func embeddedList(t *testing.T, f *fixture) List {
	t.Helper()
	l, err := ListOf(f.session, f.owners, ownerEmbedded, f.row)
	require.NoError(t, err)
	return l
}

func TestListLinks(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 10, 20, 30)
	l := linkList(t, f)
	assert.True(t, l.IsLinkBacked())
	assert.Equal(t, f.items.Identity(), l.TargetTable().Identity())

	link(t, f, l, rows[2], rows[0], rows[2])
	assert.Equal(t, []int64{30, 10, 30}, linkedValues(t, l))
	assert.Equal(t, rows[0], l.ToStorageIndex(1))

	row, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, rows[2], row.Index())

	idx, err := l.Find(f.items.Row(rows[2]))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	// unlinked, foreign and detached rows are never found
	idx, err = l.Find(f.items.Row(rows[1]))
	require.NoError(t, err)
	assert.Equal(t, db.NotFound, idx)

	idx, err = l.Find(f.owners.Row(f.row))
	require.NoError(t, err)
	assert.Equal(t, db.NotFound, idx)

	idx, err = l.Find(db.Row{})
	require.NoError(t, err)
	assert.Equal(t, db.NotFound, idx)

	_, err = l.Get(3)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestListLinkWrites(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 1, 2, 3, 4)
	l := linkList(t, f)
	link(t, f, l, rows[0], rows[1], rows[2])

	f.write(t, func() error { return l.Insert(0, rows[3]) })
	assert.Equal(t, []int64{4, 1, 2, 3}, linkedValues(t, l))

	f.write(t, func() error { return l.Set(1, rows[1]) })
	assert.Equal(t, []int64{4, 2, 2, 3}, linkedValues(t, l))

	f.write(t, func() error { return l.Move(0, 3) })
	assert.Equal(t, []int64{2, 2, 3, 4}, linkedValues(t, l))

	f.write(t, func() error { return l.Swap(0, 3) })
	assert.Equal(t, []int64{4, 2, 3, 2}, linkedValues(t, l))

	f.write(t, func() error {
		assert.ErrorIs(t, l.Insert(5, rows[0]), ErrOutOfBounds)
		assert.ErrorIs(t, l.Set(4, rows[0]), ErrOutOfBounds)
		assert.ErrorIs(t, l.Move(0, 4), ErrOutOfBounds)
		return nil
	})

	assert.ErrorIs(t, l.Add(rows[0]), ErrInvalidTransaction)
	assert.ErrorIs(t, l.Move(0, 1), ErrInvalidTransaction)
}

func TestListRemoveKeepsTargets(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 1, 2, 3)
	l := linkList(t, f)
	link(t, f, l, rows...)

	f.write(t, func() error { return l.Remove(1) })
	assert.Equal(t, []int64{1, 3}, linkedValues(t, l))
	assert.Equal(t, 3, f.items.Size())

	f.write(t, l.RemoveAll)
	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	assert.Equal(t, 3, f.items.Size())
}

func TestListDeleteAll(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 1, 2, 3)
	l := linkList(t, f)
	link(t, f, l, rows[0], rows[2], rows[0])

	f.write(t, l.DeleteAll)

	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	require.Equal(t, 1, f.items.Size())
	v, err := f.items.Get(itemValue, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestListTargetRowRemoved(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 1, 2)
	l := linkList(t, f)
	link(t, f, l, rows[1], rows[0], rows[1])

	f.write(t, func() error { return f.items.RemoveRow(rows[1]) })
	assert.Equal(t, []int64{1}, linkedValues(t, l))
}

func TestListTableBacked(t *testing.T) {
	f := newFixture(t)
	l := embeddedList(t, f)
	assert.False(t, l.IsLinkBacked())

	f.write(t, func() error {
		if err := AddValue[int64](l, 3); err != nil {
			return err
		}
		if err := AddValue[int64](l, 1); err != nil {
			return err
		}
		if err := InsertValue[int64](l, 0, 7); err != nil {
			return err
		}
		return SetValue[int64](l, 2, 2)
	})
	assert.Equal(t, []int64{7, 3, 2}, linkedValues(t, l))

	idx, err := FindValue[int64](l, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = GetValue[string](l, 0)
	assert.ErrorIs(t, err, db.ErrTypeMismatch)

	f.write(t, func() error {
		// link operations need a link list
		assert.ErrorIs(t, l.Add(0), ErrLogic)
		assert.ErrorIs(t, l.Insert(0, 0), ErrLogic)
		assert.ErrorIs(t, l.Set(0, 0), ErrLogic)
		assert.ErrorIs(t, l.Move(0, 1), ErrLogic)
		assert.ErrorIs(t, InsertValue[int64](l, 4, 1), ErrOutOfBounds)
		return l.Swap(0, 2)
	})
	assert.Equal(t, []int64{2, 3, 7}, linkedValues(t, l))

	f.write(t, func() error { return l.Remove(0) })
	assert.Equal(t, []int64{3, 7}, linkedValues(t, l))

	origin, err := l.OriginRowIndex()
	require.NoError(t, err)
	assert.Equal(t, f.row, origin)

	f.write(t, l.DeleteAll)
	assert.Empty(t, linkedValues(t, l))
}

func TestListValuesOfLinks(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 5, 6, 7)
	l := linkList(t, f)
	link(t, f, l, rows[2], rows[1])

	// the index is the position in the list, not in the table
	idx, err := FindValue[int64](l, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = FindValue[int64](l, 5)
	require.NoError(t, err)
	assert.Equal(t, db.NotFound, idx)

	f.write(t, func() error {
		assert.ErrorIs(t, AddValue[int64](l, 1), ErrLogic)
		assert.ErrorIs(t, SetValue[int64](l, 0, 1), ErrLogic)
		return nil
	})
}

func TestListAggregates(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 2, 4, 9)
	l := linkList(t, f)

	sum, err := l.Sum(itemValue)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
	_, ok, err := l.Max(itemValue)
	require.NoError(t, err)
	assert.False(t, ok)

	link(t, f, l, rows[0], rows[1], rows[1])

	sum, err = l.Sum(itemValue)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum)

	maximum, ok, err := l.Max(itemValue)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), maximum)

	minimum, ok, err := l.Min(itemValue)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), minimum)

	_, err = l.Sum(itemName)
	assert.ErrorIs(t, err, ErrUnsupportedAggregate)

	_, ok, err = l.Average(itemScore)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListResults(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 3, 1, 2)
	l := linkList(t, f)
	link(t, f, l, rows[2], rows[0])

	r, err := l.Results()
	require.NoError(t, err)
	assert.Equal(t, ModeQuery, r.Mode())
	assert.Equal(t, []int64{2, 3}, rowValues(t, r))

	sorted, err := l.Sort(db.SortClause{Column: itemValue, Ascending: true})
	require.NoError(t, err)
	link(t, f, l, rows[1])
	assert.Equal(t, []int64{1, 2, 3}, rowValues(t, sorted))

	q, err := l.Query()
	require.NoError(t, err)
	filtered, err := l.Filter(q.Greater(itemValue, int64(1)))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, rowValues(t, filtered))

	snapshot, err := l.Snapshot()
	require.NoError(t, err)
	f.write(t, l.RemoveAll)
	assert.Equal(t, []int64{2, 3, 1}, rowValues(t, snapshot))

	// results of a removed owner are invalidated
	f.write(t, func() error { return f.owners.RemoveRow(f.row) })
	assert.False(t, r.IsValid())
	_, err = r.Size()
	assert.ErrorIs(t, err, ErrInvalidated)
}

func TestListIdentity(t *testing.T) {
	f := newFixture(t)
	a := linkList(t, f)
	b := linkList(t, f)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	embedded := embeddedList(t, f)
	assert.False(t, a.Equal(embedded))

	origin, err := a.OriginRowIndex()
	require.NoError(t, err)
	assert.Equal(t, f.row, origin)

	_, err = ListOf(f.session, f.owners, ownerStrings+100, f.row)
	assert.ErrorIs(t, err, db.ErrColumnOutOfRange)
	_, err = ListOf(f.session, f.items, itemValue, 0)
	assert.ErrorIs(t, err, db.ErrTypeMismatch)
}

func TestListInvalidated(t *testing.T) {
	f := newFixture(t)
	l := linkList(t, f)
	f.write(t, func() error { return f.owners.RemoveRow(f.row) })

	assert.False(t, l.IsValid())
	_, err := l.Size()
	assert.ErrorIs(t, err, ErrInvalidated)
	_, err = l.Find(db.Row{})
	assert.ErrorIs(t, err, ErrInvalidated)
	_, err = l.Results()
	assert.ErrorIs(t, err, ErrInvalidated)
	_, err = l.AddNotificationCallback(func(notify.ChangeSet) {})
	assert.ErrorIs(t, err, ErrInvalidated)
}

func TestListNotifications(t *testing.T) {
	f := newFixture(t)
	rows := f.addItems(t, 1, 2)
	l := linkList(t, f)

	var changes []notify.ChangeSet
	token, err := l.AddNotificationCallback(func(cs notify.ChangeSet) {
		changes = append(changes, cs)
	})
	require.NoError(t, err)
	defer token.Unregister()
	f.refresh(t)
	require.Len(t, changes, 1)

	link(t, f, l, rows[0], rows[1])
	f.refresh(t)
	require.Len(t, changes, 2)
	assert.Equal(t, []int{0, 1}, changes[1].Insertions)

	// a change of a linked row is a modification of the list
	f.write(t, func() error { return f.items.Set(itemValue, rows[1], int64(5)) })
	f.refresh(t)
	require.Len(t, changes, 3)
	assert.Equal(t, []int{1}, changes[2].Modifications)

	// removing the owner deletes every element once
	f.write(t, func() error { return f.owners.RemoveRow(f.row) })
	f.refresh(t)
	require.Len(t, changes, 4)
	assert.Equal(t, []int{0, 1}, changes[3].Deletions)

	f.refresh(t)
	assert.Len(t, changes, 4)
}
