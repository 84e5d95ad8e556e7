package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dObj/lib/collection"
	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/engines/maple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapleFactory() db.Group {
	return maple.NewMapleGroup(nil)
}

func configWithFile(t *testing.T) common.Config {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.DataFile = filepath.Join(t.TempDir(), "data.dobj")
	return cfg
}

func TestOpenWithoutDataFile(t *testing.T) {
	st, err := Open(mapleFactory, common.DefaultConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID())
	assert.Empty(t, st.Group().TableNames())

	s, err := st.NewSession()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// nothing to save to
	assert.ErrorIs(t, st.Save(), ErrInvalidOperation)

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, err = st.NewSession()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.ErrorIs(t, st.Save(), ErrInvalidOperation)
}

func TestOpenInvalidConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.LogLevel = "loud"
	_, err := Open(mapleFactory, cfg)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestOpenMissingDataFile(t *testing.T) {
	cfg := configWithFile(t)
	st, err := Open(mapleFactory, cfg)
	require.NoError(t, err)
	assert.Empty(t, st.Group().TableNames())

	_, err = os.Stat(cfg.DataFile)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// closing an unchanged store still writes the file
	require.NoError(t, st.Close())
	_, err = os.Stat(cfg.DataFile)
	assert.NoError(t, err)
}

func TestOpenCorruptDataFile(t *testing.T) {
	cfg := configWithFile(t)
	require.NoError(t, os.WriteFile(cfg.DataFile, []byte("not a data file"), 0o600))

	_, err := Open(mapleFactory, cfg)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestSaveAndReopen(t *testing.T) {
	cfg := configWithFile(t)

	st, err := Open(mapleFactory, cfg)
	require.NoError(t, err)
	s, err := st.NewSession()
	require.NoError(t, err)

	var owners db.Table
	require.NoError(t, s.Write(func() error {
		owners, err = st.Group().AddTable("owners",
			db.ColumnSpec{Name: "tags", Kind: db.KindList, Element: db.KindString},
		)
		if err != nil {
			return err
		}
		row, err := owners.AddEmptyRow()
		if err != nil {
			return err
		}
		tags, err := collection.PrimitiveListOf[string](s, owners, 0, row)
		if err != nil {
			return err
		}
		for _, tag := range []string{"red", "green"} {
			if err := tags.Add(tag); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.Close())
	require.NoError(t, st.Close())

	// the old accessors are detached with the group
	assert.False(t, owners.IsAttached())

	reopened, err := Open(mapleFactory, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	assert.NotEqual(t, st.ID(), reopened.ID())

	s, err = reopened.NewSession()
	require.NoError(t, err)
	defer s.Close()

	owners, ok := reopened.Group().Table("owners")
	require.True(t, ok)
	require.Equal(t, 1, owners.Size())

	tags, err := collection.PrimitiveListOf[string](s, owners, 0, 0)
	require.NoError(t, err)
	values, err := tags.Values()
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green"}, values)
}

func TestCloseWithoutSave(t *testing.T) {
	cfg := configWithFile(t)
	cfg.SaveOnClose = false

	st, err := Open(mapleFactory, cfg)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = os.Stat(cfg.DataFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveInsideWrite(t *testing.T) {
	st, err := Open(mapleFactory, configWithFile(t))
	require.NoError(t, err)
	defer st.Close()
	s, err := st.NewSession()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.BeginWrite())
	assert.ErrorIs(t, st.Save(), ErrInvalidOperation)
	require.NoError(t, s.CommitWrite())

	assert.NoError(t, st.Save())
}

func TestErrorCodes(t *testing.T) {
	err := wrapError(RetCInternalError, "load", os.ErrNotExist)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInvalidOperation)
	assert.Contains(t, err.Error(), "InternalError")
	assert.Equal(t, "Unknown", RetCode(42).String())
}
