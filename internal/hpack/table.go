package hpack

import "fmt"

// Table is the static table followed by one dynamic table. Logical indices
// 1..61 address the static table and 62.. the dynamic table, newest first.
//
// The dynamic entries are kept oldest first so that an insertion is an
// append; the logical index is derived from the distance to the end.
type Table struct {
	dynamic         []TableEntry
	size            uint32
	maxSize         uint32
	protocolMaxSize uint32
}

func NewTable(protocolMaxSize uint32) *Table {
	return &Table{
		maxSize:         protocolMaxSize,
		protocolMaxSize: protocolMaxSize,
	}
}

// Len is the number of addressable entries, static ones included.
func (t *Table) Len() int {
	return StaticTableLen + len(t.dynamic)
}

func (t *Table) DynamicLen() int {
	return len(t.dynamic)
}

func (t *Table) Size() uint32 {
	return t.size
}

func (t *Table) MaxSize() uint32 {
	return t.maxSize
}

func (t *Table) ProtocolMaxSize() uint32 {
	return t.protocolMaxSize
}

// Entries returns a copy of the dynamic table, newest entry first.
func (t *Table) Entries() []TableEntry {
	entries := make([]TableEntry, len(t.dynamic))
	for i, e := range t.dynamic {
		entries[len(t.dynamic)-1-i] = e
	}
	return entries
}

func (t *Table) Lookup(index int) (TableEntry, error) {
	if index == 0 {
		return TableEntry{}, ErrZeroIndex
	}
	if index < 0 || index > t.Len() {
		return TableEntry{}, fmt.Errorf("%w: %d (table has %d entries)", ErrIndexOutOfBounds, index, t.Len())
	}
	if index <= StaticTableLen {
		return staticTable[index-1], nil
	}
	return t.dynamic[t.Len()-index], nil
}

// Add inserts a new newest entry and evicts the oldest ones until the table
// fits again. An entry bigger than the table empties it.
func (t *Table) Add(name string, value string) error {
	e := newTableEntry(name, value)
	t.dynamic = append(t.dynamic, e)
	t.size += e.TotalSize
	return t.evict()
}

func (t *Table) UpdateMaxSize(size uint32) error {
	if size > t.protocolMaxSize {
		return fmt.Errorf("%w: %d > %d", ErrTableSizeTooLarge, size, t.protocolMaxSize)
	}
	t.maxSize = size
	return t.evict()
}

// SetProtocolMaxSize changes the negotiated ceiling. A current maximum above
// the new ceiling is lowered to it.
func (t *Table) SetProtocolMaxSize(size uint32) error {
	t.protocolMaxSize = size
	if t.maxSize <= size {
		return nil
	}
	t.maxSize = size
	return t.evict()
}

func (t *Table) evict() error {
	drop := 0
	for t.size > t.maxSize {
		if drop == len(t.dynamic) || t.dynamic[drop].TotalSize > t.size {
			return fmt.Errorf("%w: size %d with %d entries", ErrTableCorruption, t.size, len(t.dynamic)-drop)
		}
		t.size -= t.dynamic[drop].TotalSize
		drop++
	}
	if drop == 0 {
		return nil
	}

	n := copy(t.dynamic, t.dynamic[drop:])
	for i := n; i < len(t.dynamic); i++ {
		t.dynamic[i] = TableEntry{}
	}
	t.dynamic = t.dynamic[:n]
	return nil
}

// ReverseLookup finds the best entry for encoding (name, value). A positive
// index with full set is an exact match, a negative index is a match on the
// name only, and 0 means nothing matched. Exact static matches win since
// they never get evicted; among name-only matches the newest dynamic entry
// wins over the static table.
func (t *Table) ReverseLookup(name string, value string) (int, bool) {
	static := staticLookup(name, value)
	if static > 0 {
		return static, true
	}

	nameIndex := 0
	for i := len(t.dynamic) - 1; i >= 0; i-- {
		e := &t.dynamic[i]
		if e.Name != name {
			continue
		}
		index := StaticTableLen + len(t.dynamic) - i
		if e.Value == value {
			return index, true
		}
		if nameIndex == 0 {
			nameIndex = index
		}
	}
	if nameIndex != 0 {
		return -nameIndex, false
	}
	return static, false
}
