package hpack

import (
	"errors"
	"fmt"
)

// Decoder turns pushed octets back into header fields. It is resumable: a
// field that is only partly buffered is left in the buffer and parsed again
// once more octets are pushed. Any other error is fatal and sticks.
type Decoder struct {
	table *Table

	buf    []byte
	start  int
	offset int64 // stream offset of buf[start]
	err    error
	// inBlock is set once the current block produced a field.
	inBlock bool

	maxStringLength int
}

func NewDecoder(protocolMaxSize uint32) *Decoder {
	return &Decoder{
		table: NewTable(protocolMaxSize),
	}
}

// SetMaxStringLength limits the declared length of any literal name or
// value. A longer string fails with ErrStringLength as soon as its length
// is read, before its octets are buffered. 0 means no limit.
func (dec *Decoder) SetMaxStringLength(n int) {
	dec.maxStringLength = n
}

func (dec *Decoder) Table() *Table {
	return dec.table
}

// Buffered is the number of pushed octets not yet turned into fields.
func (dec *Decoder) Buffered() int {
	return len(dec.buf) - dec.start
}

func (dec *Decoder) Push(chunk []byte) {
	if dec.start > 0 {
		n := copy(dec.buf, dec.buf[dec.start:])
		dec.buf = dec.buf[:n]
		dec.start = 0
	}
	dec.buf = append(dec.buf, chunk...)
}

// Next returns the next complete header field, or ErrNeedMoreData once the
// buffer holds no complete field. Size updates are applied silently; they
// are only allowed before the first field of a block, so Finish has to be
// called at the end of every block.
func (dec *Decoder) Next() (HeaderField, error) {
	if dec.err != nil {
		return HeaderField{}, dec.err
	}

	for dec.Buffered() > 0 {
		c := newBitCursor(dec.buf[dec.start:])
		hf, emit, err := dec.decodeField(c)
		if errors.Is(err, ErrInsufficientData) {
			return HeaderField{}, ErrNeedMoreData
		}
		if err != nil {
			dec.err = &DecodingError{Offset: dec.offset, Err: err}
			return HeaderField{}, dec.err
		}

		dec.start += c.pos
		dec.offset += int64(c.pos)
		if emit {
			dec.inBlock = true
			return hf, nil
		}
	}
	return HeaderField{}, ErrNeedMoreData
}

// Finish marks the end of a header block. Octets left over at that point
// belong to a truncated field.
func (dec *Decoder) Finish() error {
	if dec.err != nil {
		return dec.err
	}
	if n := dec.Buffered(); n > 0 {
		dec.err = &DecodingError{
			Offset: dec.offset,
			Err:    fmt.Errorf("%w: %d octets left at end of header block", ErrInsufficientData, n),
		}
		return dec.err
	}
	dec.inBlock = false
	return nil
}

// Decode decodes one complete header block.
func (dec *Decoder) Decode(block []byte) ([]HeaderField, error) {
	dec.Push(block)

	var fields []HeaderField
	for {
		hf, err := dec.Next()
		if errors.Is(err, ErrNeedMoreData) {
			break
		}
		if err != nil {
			return fields, err
		}
		fields = append(fields, hf)
	}
	return fields, dec.Finish()
}

func (dec *Decoder) decodeField(c *bitCursor) (HeaderField, bool, error) {
	b, err := c.readBit()
	if err != nil {
		return HeaderField{}, false, err
	}
	if b == 1 {
		hf, err := dec.readIndexed(c)
		return hf, err == nil, err
	}

	b, err = c.readBit()
	if err != nil {
		return HeaderField{}, false, err
	}
	if b == 1 {
		hf, err := dec.readLiteral(c, 6, true, false)
		return hf, err == nil, err
	}

	b, err = c.readBit()
	if err != nil {
		return HeaderField{}, false, err
	}
	if b == 1 {
		if dec.inBlock {
			return HeaderField{}, false, ErrLateSizeUpdate
		}
		return HeaderField{}, false, dec.readSizeUpdate(c)
	}

	never, err := c.readBit()
	if err != nil {
		return HeaderField{}, false, err
	}
	hf, err := dec.readLiteral(c, 4, false, never == 1)
	return hf, err == nil, err
}

func (dec *Decoder) readIndexed(c *bitCursor) (HeaderField, error) {
	index, err := c.readInt(7)
	if err != nil {
		return HeaderField{}, err
	}
	e, err := dec.table.Lookup(int(index))
	if err != nil {
		return HeaderField{}, err
	}
	return HeaderField{Name: e.Name, Value: e.Value}, nil
}

func (dec *Decoder) readLiteral(c *bitCursor, prefix uint8, incremental bool, never bool) (HeaderField, error) {
	index, err := c.readInt(prefix)
	if err != nil {
		return HeaderField{}, err
	}

	var name string
	if index == 0 {
		name, err = readString(c, dec.maxStringLength)
		if err != nil {
			return HeaderField{}, err
		}
	} else {
		e, err := dec.table.Lookup(int(index))
		if err != nil {
			return HeaderField{}, err
		}
		name = e.Name
	}

	value, err := readString(c, dec.maxStringLength)
	if err != nil {
		return HeaderField{}, err
	}

	if incremental {
		if err := dec.table.Add(name, value); err != nil {
			return HeaderField{}, err
		}
	}
	return HeaderField{Name: name, Value: value, NeverIndex: never}, nil
}

func (dec *Decoder) readSizeUpdate(c *bitCursor) error {
	size, err := c.readInt(5)
	if err != nil {
		return err
	}
	return dec.table.UpdateMaxSize(size)
}

func readString(c *bitCursor, maxLength int) (string, error) {
	huffman, err := c.readBit()
	if err != nil {
		return "", err
	}
	n, err := c.readInt(7)
	if err != nil {
		return "", err
	}
	if maxLength > 0 && int(n) > maxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrStringLength, n, maxLength)
	}
	raw, err := c.readOctets(int(n))
	if err != nil {
		return "", err
	}
	if huffman == 1 {
		return HuffmanDecode(raw)
	}
	return string(raw), nil
}
