package maple

import (
	"testing"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfoRowSizes(t *testing.T) {
	g := NewMapleGroup(nil)
	defer g.Close()

	names, err := g.AddTable("names", db.ColumnSpec{Name: "name", Kind: db.KindString})
	require.NoError(t, err)
	_, err = g.AddTable("empty", db.ColumnSpec{Name: "value", Kind: db.KindInt})
	require.NoError(t, err)

	for _, name := range []string{"abcd", ""} {
		row, err := names.AddEmptyRow()
		require.NoError(t, err)
		require.NoError(t, names.Set(0, row, name))
	}

	info := g.GetInfo()
	assert.Equal(t, db.ImplMaple, info.DbType)
	// encoded rows plus 16 bytes of key and version each
	assert.Equal(t, 12+2*16, info.SizeBytes)

	meta := info.Metadata.(*groupInfo)
	assert.Equal(t, 2, meta.TableCount)
	assert.Equal(t, 2, meta.RowSizes.Count)
	assert.Equal(t, 4, meta.RowSizes.Min)
	assert.Equal(t, 8, meta.RowSizes.Max)
	assert.Equal(t, []int{0, 2}, []int{meta.TableRows.Min, meta.TableRows.Max})
}
