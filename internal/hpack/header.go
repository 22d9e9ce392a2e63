package hpack

import "fmt"

// entryOverhead is added to every table entry's size (RFC 7541 section 4.1).
const entryOverhead = 32

const StaticTableLen = 61

type HeaderField struct {
	Name       string
	Value      string
	NeverIndex bool
}

func NewHeaderField(name string, value string, neverIndex bool) HeaderField {
	return HeaderField{
		Name:       name,
		Value:      value,
		NeverIndex: neverIndex,
	}
}

// Size is the number of octets the field occupies in a dynamic table.
func (hf HeaderField) Size() uint32 {
	return uint32(len(hf.Name) + len(hf.Value) + entryOverhead)
}

func (hf HeaderField) String() string {
	if hf.NeverIndex {
		return fmt.Sprintf("%s: %s (never indexed)", hf.Name, hf.Value)
	}
	return hf.Name + ": " + hf.Value
}

type TableEntry struct {
	Name      string
	Value     string
	NameSize  uint32
	TotalSize uint32
}

func newTableEntry(name string, value string) TableEntry {
	return TableEntry{
		Name:      name,
		Value:     value,
		NameSize:  uint32(len(name)),
		TotalSize: uint32(len(name)+len(value)) + entryOverhead,
	}
}

type staticName struct {
	index  int
	values map[string]int
}

var (
	staticTable   [StaticTableLen]TableEntry
	staticByName  map[string]*staticName
	staticHeaders = [StaticTableLen][2]string{
		{":authority", ""},
		{":method", "GET"},
		{":method", "POST"},
		{":path", "/"},
		{":path", "/index.html"},
		{":scheme", "http"},
		{":scheme", "https"},
		{":status", "200"},
		{":status", "204"},
		{":status", "206"},
		{":status", "304"},
		{":status", "400"},
		{":status", "404"},
		{":status", "500"},
		{"accept-charset", ""},
		{"accept-encoding", "gzip, deflate"},
		{"accept-language", ""},
		{"accept-ranges", ""},
		{"accept", ""},
		{"access-control-allow-origin", ""},
		{"age", ""},
		{"allow", ""},
		{"authorization", ""},
		{"cache-control", ""},
		{"content-disposition", ""},
		{"content-encoding", ""},
		{"content-language", ""},
		{"content-length", ""},
		{"content-location", ""},
		{"content-range", ""},
		{"content-type", ""},
		{"cookie", ""},
		{"date", ""},
		{"etag", ""},
		{"expect", ""},
		{"expires", ""},
		{"from", ""},
		{"host", ""},
		{"if-match", ""},
		{"if-modified-since", ""},
		{"if-none-match", ""},
		{"if-range", ""},
		{"if-unmodified-since", ""},
		{"last-modified", ""},
		{"link", ""},
		{"location", ""},
		{"max-forwards", ""},
		{"proxy-authenticate", ""},
		{"proxy-authorization", ""},
		{"range", ""},
		{"referer", ""},
		{"refresh", ""},
		{"retry-after", ""},
		{"server", ""},
		{"set-cookie", ""},
		{"strict-transport-security", ""},
		{"transfer-encoding", ""},
		{"user-agent", ""},
		{"vary", ""},
		{"via", ""},
		{"www-authenticate", ""},
	}
)

// The static table and its reverse index are built once and never mutated.
func init() {
	staticByName = make(map[string]*staticName, StaticTableLen)
	for i, h := range staticHeaders {
		staticTable[i] = newTableEntry(h[0], h[1])

		index := i + 1
		sn, ok := staticByName[h[0]]
		if !ok {
			sn = &staticName{index: index, values: map[string]int{}}
			staticByName[h[0]] = sn
		}
		if _, dup := sn.values[h[1]]; !dup {
			sn.values[h[1]] = index
		}
	}
}

// StaticEntry returns the static table entry at the 1-based index.
func StaticEntry(index int) (TableEntry, error) {
	if index == 0 {
		return TableEntry{}, ErrZeroIndex
	}
	if index < 0 || index > StaticTableLen {
		return TableEntry{}, fmt.Errorf("%w: static index %d", ErrIndexOutOfBounds, index)
	}
	return staticTable[index-1], nil
}

// staticLookup returns the static index of an exact match, or the negated
// index of the first entry with the same name, or 0.
func staticLookup(name string, value string) int {
	sn, ok := staticByName[name]
	if !ok {
		return 0
	}
	if index, ok := sn.values[value]; ok {
		return index
	}
	return -sn.index
}
