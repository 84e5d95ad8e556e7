package notify

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, db.Table) {
	t.Helper()
	group := maple.NewMapleGroup(nil)
	tbl, err := group.AddTable("items", db.ColumnSpec{Name: "value", Kind: db.KindInt})
	require.NoError(t, err)

	c := For(group)
	t.Cleanup(func() {
		c.Close()
		_ = group.Close()
	})
	return c, tbl
}

func tableSource(tbl db.Table) SourceFunc {
	return func() ([]db.RowState, bool) {
		return tbl.RowStates(), tbl.IsAttached()
	}
}

// refresh waits for the worker and delivers on the test goroutine
func refresh(t *testing.T, c *Coordinator, session string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
	return c.Deliver(session)
}

func TestForReturnsSameCoordinator(t *testing.T) {
	c, _ := newTestCoordinator(t)
	assert.Same(t, c, For(c.Group()))
}

func TestHoldsWrite(t *testing.T) {
	c, _ := newTestCoordinator(t)
	assert.False(t, c.HoldsWrite())

	c.LockWrite()
	assert.True(t, c.HoldsWrite())
	other := make(chan bool)
	go func() { other <- c.HoldsWrite() }()
	assert.False(t, <-other)
	c.UnlockWrite()

	assert.False(t, c.HoldsWrite())
}

func TestNotifierIsShared(t *testing.T) {
	c, tbl := newTestCoordinator(t)

	n1 := c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl))
	n2 := c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl))
	assert.Same(t, n1, n2)

	// other variant and other session get their own notifier
	assert.NotSame(t, n1, c.NotifierFor(tbl.Identity(), 1, "s1", tableSource(tbl)))
	assert.NotSame(t, n1, c.NotifierFor(tbl.Identity(), 0, "s2", tableSource(tbl)))
}

func TestCallbackDelivery(t *testing.T) {
	c, tbl := newTestCoordinator(t)

	var got []ChangeSet
	token := c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)).AddCallback(func(cs ChangeSet) {
		got = append(got, cs)
	})
	defer token.Unregister()

	// initial delivery is empty
	assert.Equal(t, 1, refresh(t, c, "s1"))
	require.Len(t, got, 1)
	assert.True(t, got[0].Empty())

	// nothing changed, nothing delivered
	assert.Equal(t, 0, refresh(t, c, "s1"))

	_, err := tbl.AddEmptyRow()
	require.NoError(t, err)
	_, err = tbl.AddEmptyRow()
	require.NoError(t, err)
	require.NoError(t, c.Commit(c.Group().Version()))

	assert.Equal(t, 1, refresh(t, c, "s1"))
	require.Len(t, got, 2)
	assert.Equal(t, []int{0, 1}, got[1].Insertions)

	require.NoError(t, tbl.Set(0, 1, int64(7)))
	require.NoError(t, tbl.RemoveRow(0))
	require.NoError(t, c.Commit(c.Group().Version()))

	assert.Equal(t, 1, refresh(t, c, "s1"))
	require.Len(t, got, 3)
	assert.Equal(t, []int{0}, got[2].Deletions)
	assert.Equal(t, []int{0}, got[2].Modifications)

	// other sessions do not receive anything
	assert.Equal(t, 0, refresh(t, c, "s2"))
}

func TestUnregister(t *testing.T) {
	c, tbl := newTestCoordinator(t)

	n := c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl))
	calls := 0
	t1 := n.AddCallback(func(ChangeSet) { calls++ })
	t2 := n.AddCallback(func(ChangeSet) { calls++ })
	assert.Equal(t, 2, n.Callbacks())

	t1.Unregister()
	t1.Unregister()
	assert.Equal(t, 1, n.Callbacks())
	assert.Same(t, n, c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)))

	refresh(t, c, "s1")
	assert.Equal(t, 1, calls)

	// the notifier is dropped with its last callback
	t2.Unregister()
	assert.Equal(t, 0, c.Stats().Notifiers)
	assert.NotSame(t, n, c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)))

	var zero Token
	zero.Unregister()
}

func TestDetachedCollection(t *testing.T) {
	c, tbl := newTestCoordinator(t)
	_, err := tbl.AddEmptyRow()
	require.NoError(t, err)

	var got []ChangeSet
	token := c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)).AddCallback(func(cs ChangeSet) {
		got = append(got, cs)
	})
	defer token.Unregister()
	refresh(t, c, "s1")

	require.NoError(t, c.Group().Close())
	require.NoError(t, c.Commit(0))
	refresh(t, c, "s1")

	require.Len(t, got, 2)
	assert.Equal(t, []int{0}, got[1].Deletions)

	// detached collections report once
	require.NoError(t, c.Commit(0))
	assert.Equal(t, 0, refresh(t, c, "s1"))
	assert.Len(t, got, 2)
}

func TestDropSession(t *testing.T) {
	c, tbl := newTestCoordinator(t)
	c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)).AddCallback(func(ChangeSet) {})
	c.NotifierFor(tbl.Identity(), 0, "s2", tableSource(tbl)).AddCallback(func(ChangeSet) {})

	c.DropSession("s1")
	assert.Equal(t, 1, c.Stats().Notifiers)
}

func TestClose(t *testing.T) {
	group := maple.NewMapleGroup(nil)
	defer group.Close()

	c := For(group)
	require.NoError(t, c.Commit(1))
	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Commit(2), ErrClosed)
	assert.ErrorIs(t, c.Sync(context.Background()), ErrClosed)
	assert.NotSame(t, c, For(group))
	For(group).Close()
}

func TestStats(t *testing.T) {
	c, tbl := newTestCoordinator(t)
	c.NotifierFor(tbl.Identity(), 0, "s1", tableSource(tbl)).AddCallback(func(ChangeSet) {})
	refresh(t, c, "s1")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Notifiers)
	assert.GreaterOrEqual(t, stats.Runs, int64(1))
}
