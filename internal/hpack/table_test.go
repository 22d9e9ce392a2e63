package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTable(t *testing.T) {
	table := NewTable(4096)

	e, err := table.Lookup(2)
	require.NoError(t, err)
	assert.Equal(t, ":method", e.Name)
	assert.Equal(t, "GET", e.Value)

	e, err = table.Lookup(61)
	require.NoError(t, err)
	assert.Equal(t, "www-authenticate", e.Name)
	assert.Equal(t, "", e.Value)

	e, err = StaticEntry(1)
	require.NoError(t, err)
	assert.Equal(t, TableEntry{Name: ":authority", NameSize: 10, TotalSize: 42}, e)
}

func TestLookupErrors(t *testing.T) {
	table := NewTable(4096)

	_, err := table.Lookup(0)
	assert.ErrorIs(t, err, ErrZeroIndex)

	_, err = table.Lookup(62)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)

	_, err = StaticEntry(62)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestAddShiftsDynamicIndices(t *testing.T) {
	table := NewTable(4096)
	require.NoError(t, table.Add("first", "1"))
	require.NoError(t, table.Add("second", "2"))

	e, err := table.Lookup(62)
	require.NoError(t, err)
	assert.Equal(t, "second", e.Name)

	e, err = table.Lookup(63)
	require.NoError(t, err)
	assert.Equal(t, "first", e.Name)

	assert.Equal(t, 63, table.Len())
	assert.Equal(t, uint32(38+39), table.Size())
	assert.Equal(t, []string{"second", "first"}, names(table.Entries()))
}

func TestEvictionConverges(t *testing.T) {
	table := NewTable(1024)
	for i := 0; i < 1000; i++ {
		require.NoError(t, table.Add("host", "localhost"))
	}

	// 45 octets per entry, 22 of them fit in 1024
	assert.Equal(t, 22, table.DynamicLen())
	assert.Equal(t, uint32(22*45), table.Size())
	assert.Less(t, table.Size(), table.MaxSize())
}

func TestEvictsOldestFirst(t *testing.T) {
	// room for exactly two 38-octet entries
	table := NewTable(80)
	require.NoError(t, table.Add("a", "12345"))
	require.NoError(t, table.Add("b", "12345"))
	require.NoError(t, table.Add("c", "12345"))

	assert.Equal(t, []string{"c", "b"}, names(table.Entries()))
	assert.Equal(t, uint32(76), table.Size())
}

func TestAddOversizedEntryEmptiesTable(t *testing.T) {
	table := NewTable(64)
	require.NoError(t, table.Add("a", "b"))
	require.NoError(t, table.Add("name", string(make([]byte, 64))))

	assert.Equal(t, 0, table.DynamicLen())
	assert.Equal(t, uint32(0), table.Size())
}

func TestUpdateMaxSize(t *testing.T) {
	table := NewTable(1024)
	require.NoError(t, table.Add("host", "localhost"))
	require.NoError(t, table.Add("host", "example"))

	require.NoError(t, table.UpdateMaxSize(50))
	assert.Equal(t, []string{"host"}, names(table.Entries()))
	assert.Equal(t, "example", table.Entries()[0].Value)

	require.NoError(t, table.UpdateMaxSize(0))
	assert.Equal(t, 0, table.DynamicLen())
	assert.Equal(t, uint32(0), table.Size())

	err := table.UpdateMaxSize(1025)
	assert.ErrorIs(t, err, ErrTableSizeTooLarge)
	assert.Equal(t, uint32(0), table.MaxSize())
}

func TestSetProtocolMaxSize(t *testing.T) {
	table := NewTable(4096)
	require.NoError(t, table.Add("host", "localhost"))

	require.NoError(t, table.SetProtocolMaxSize(8192))
	assert.Equal(t, uint32(4096), table.MaxSize())

	require.NoError(t, table.SetProtocolMaxSize(16))
	assert.Equal(t, uint32(16), table.MaxSize())
	assert.Equal(t, 0, table.DynamicLen())
}

func TestCorruptionIsDetected(t *testing.T) {
	table := NewTable(100)
	table.size = 500

	err := table.UpdateMaxSize(10)
	assert.ErrorIs(t, err, ErrTableCorruption)
}

func TestReverseLookup(t *testing.T) {
	table := NewTable(4096)

	index, full := table.ReverseLookup(":method", "GET")
	assert.Equal(t, 2, index)
	assert.True(t, full)

	index, full = table.ReverseLookup("host", "localhost")
	assert.Equal(t, -38, index)
	assert.False(t, full)

	index, full = table.ReverseLookup("x-unknown", "1")
	assert.Equal(t, 0, index)
	assert.False(t, full)

	require.NoError(t, table.Add("host", "a"))
	require.NoError(t, table.Add("host", "b"))

	index, full = table.ReverseLookup("host", "a")
	assert.Equal(t, 63, index)
	assert.True(t, full)

	// the newest dynamic entry wins over the static name
	index, full = table.ReverseLookup("host", "c")
	assert.Equal(t, -62, index)
	assert.False(t, full)

	// static exact matches win over everything
	require.NoError(t, table.Add(":method", "GET"))
	index, full = table.ReverseLookup(":method", "GET")
	assert.Equal(t, 2, index)
	assert.True(t, full)
}

func names(entries []TableEntry) []string {
	var n []string
	for _, e := range entries {
		n = append(n, e.Name)
	}
	return n
}
