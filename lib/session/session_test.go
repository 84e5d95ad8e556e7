package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(t *testing.T) (*Session, db.Group) {
	t.Helper()
	group := maple.NewMapleGroup(nil)
	coord := notify.For(group)
	s, err := Open(group, coord, common.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		coord.Close()
		_ = group.Close()
	})
	return s, group
}

func TestOpen(t *testing.T) {
	s, group := openTestSession(t)
	assert.NotEmpty(t, s.ID())
	assert.Same(t, notify.For(group), s.Coordinator())
	assert.NoError(t, s.VerifyThread())
	assert.False(t, s.IsInTransaction())

	_, err := Open(nil, nil, common.DefaultConfig())
	assert.Error(t, err)
}

func TestWriteTransaction(t *testing.T) {
	s, _ := openTestSession(t)

	assert.ErrorIs(t, s.CommitWrite(), ErrNotInWrite)
	require.NoError(t, s.BeginWrite())
	assert.True(t, s.IsInTransaction())
	assert.ErrorIs(t, s.BeginWrite(), ErrAlreadyInWrite)
	require.NoError(t, s.CommitWrite())
	assert.False(t, s.IsInTransaction())
}

func TestWriteHelper(t *testing.T) {
	s, group := openTestSession(t)

	err := s.Write(func() error {
		assert.True(t, s.IsInTransaction())
		_, err := group.AddTable("items", db.ColumnSpec{Name: "value", Kind: db.KindInt})
		return err
	})
	require.NoError(t, err)
	assert.False(t, s.IsInTransaction())

	failure := errors.New("failure")
	assert.ErrorIs(t, s.Write(func() error { return failure }), failure)
	assert.False(t, s.IsInTransaction())
}

func TestWrongGoroutine(t *testing.T) {
	s, _ := openTestSession(t)

	errs := make(chan error, 3)
	go func() {
		errs <- s.VerifyThread()
		errs <- s.BeginWrite()
		errs <- s.Close()
	}()
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, <-errs, ErrWrongGoroutine)
	}
	assert.False(t, s.IsClosed())
}

func TestWrongGoroutineDisabled(t *testing.T) {
	group := maple.NewMapleGroup(nil)
	defer group.Close()
	coord := notify.For(group)
	defer coord.Close()

	config := common.DefaultConfig()
	config.VerifyGoroutine = false
	s, err := Open(group, coord, config)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- s.VerifyThread() }()
	assert.NoError(t, <-errs)
}

func TestClose(t *testing.T) {
	s, _ := openTestSession(t)

	require.NoError(t, s.BeginWrite())
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.False(t, s.IsInTransaction())
	assert.ErrorIs(t, s.VerifyThread(), ErrClosed)
	assert.ErrorIs(t, s.BeginWrite(), ErrClosed)
	assert.NoError(t, s.Close())

	// the write lock was released
	other, err := Open(s.Group(), s.Coordinator(), common.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, other.BeginWrite())
	require.NoError(t, other.CommitWrite())
	require.NoError(t, other.Close())
}

func TestRefreshDeliversNotifications(t *testing.T) {
	s, group := openTestSession(t)

	var tbl db.Table
	require.NoError(t, s.Write(func() error {
		var err error
		tbl, err = group.AddTable("items", db.ColumnSpec{Name: "value", Kind: db.KindInt})
		return err
	}))

	var changes []notify.ChangeSet
	token := s.Coordinator().NotifierFor(tbl.Identity(), 0, s.ID(), func() ([]db.RowState, bool) {
		return tbl.RowStates(), tbl.IsAttached()
	}).AddCallback(func(cs notify.ChangeSet) {
		changes = append(changes, cs)
	})
	defer token.Unregister()

	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, changes, 1)

	require.NoError(t, s.Write(func() error {
		_, err := tbl.AddEmptyRow()
		return err
	}))
	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, changes, 2)
	assert.Equal(t, []int{0}, changes[1].Insertions)
}
