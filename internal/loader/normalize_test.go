package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeResults_BothUUPHeaders(t *testing.T) {
	tbl := NewTable([]string{"ONS ID", "UUP", "UUP (as UCUNF)"}, [][]string{
		{"N06000001", "", "4321"},
		{"N06000002", "100", "0"},
	})

	require.NoError(t, NormalizeResults(tbl))

	assert.False(t, tbl.Has("UUP (as UCUNF)"))
	assert.True(t, tbl.Has("UUP"))
	assert.Equal(t, "4321", tbl.Get(0, "UUP"))
	assert.Equal(t, "100", tbl.Get(1, "UUP"))
	for _, row := range tbl.Rows {
		assert.Len(t, row, len(tbl.Columns))
	}
}

func TestNormalizeResults_RenamesAlternateUUP(t *testing.T) {
	tbl := NewTable([]string{"ONS ID", "UUP (as UCUNF)"}, [][]string{{"N06000001", "7"}})

	require.NoError(t, NormalizeResults(tbl))

	assert.False(t, tbl.Has("UUP (as UCUNF)"))
	assert.Equal(t, "7", tbl.Get(0, "UUP"))
}

func TestTable_DropColumn(t *testing.T) {
	tbl := NewTable([]string{"a", "b", "c"}, [][]string{{"1", "2", "3"}})

	tbl.dropColumn("b")
	tbl.dropColumn("missing")

	assert.Equal(t, []string{"a", "c"}, tbl.Columns)
	assert.Equal(t, []string{"1", "3"}, tbl.Rows[0])
	assert.Equal(t, "3", tbl.Get(0, "c"))
}
