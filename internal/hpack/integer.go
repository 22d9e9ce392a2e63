package hpack

import (
	"errors"
	"fmt"
)

// maxContinuation caps prefixed integers at 4 continuation octets, which
// keeps every decoded value inside 32 bits.
const maxContinuation = 4

var errMisalignedPrefix = errors.New("hpack: integer prefix does not end on an octet boundary")

// bitCursor is the read position inside the buffered input. Reads never
// move it backwards; a failed field is retried from a fresh cursor.
type bitCursor struct {
	buf []byte
	pos int
	bit uint8
}

func newBitCursor(buf []byte) *bitCursor {
	return &bitCursor{buf: buf}
}

func (c *bitCursor) empty() bool {
	return c.pos >= len(c.buf)
}

func (c *bitCursor) readBit() (byte, error) {
	if c.empty() {
		return 0, ErrInsufficientData
	}
	b := (c.buf[c.pos] >> (7 - c.bit)) & 1
	c.bit++
	if c.bit == 8 {
		c.bit = 0
		c.pos++
	}
	return b, nil
}

// readBits reads up to 32 bits, most significant first.
func (c *bitCursor) readBits(count uint8) (uint32, error) {
	var v uint32
	for i := uint8(0); i < count; i++ {
		b, err := c.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint32(b)
	}
	return v, nil
}

func (c *bitCursor) skipBits(count uint8) error {
	_, err := c.readBits(count)
	return err
}

// readOctets returns the next n octets. The cursor has to be aligned.
func (c *bitCursor) readOctets(n int) ([]byte, error) {
	if c.bit != 0 {
		return nil, errMisalignedPrefix
	}
	if len(c.buf)-c.pos < n {
		return nil, ErrInsufficientData
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// readInt decodes a prefixed integer whose prefix fills the rest of the
// current octet.
func (c *bitCursor) readInt(prefix uint8) (uint32, error) {
	if prefix == 0 || prefix > 8 || c.bit+prefix != 8 {
		return 0, errMisalignedPrefix
	}
	max := uint32(1)<<prefix - 1
	v, err := c.readBits(prefix)
	if err != nil {
		return 0, err
	}
	if v < max {
		return v, nil
	}

	var rest uint32
	for i := 0; ; i++ {
		if i == maxContinuation {
			return 0, ErrIntegerOverflow
		}
		if c.empty() {
			return 0, ErrInsufficientData
		}
		b := c.buf[c.pos]
		c.pos++
		rest |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return rest + max, nil
		}
	}
}

// bitWriter accumulates the output of one Encode call.
type bitWriter struct {
	buf   []byte
	saved uint64
	nbits uint8
}

// writeBits appends the low count bits of v, count <= 32.
func (w *bitWriter) writeBits(v uint64, count uint8) {
	w.saved = w.saved<<count | v&(uint64(1)<<count-1)
	w.nbits += count
	for w.nbits >= 8 {
		w.nbits -= 8
		w.buf = append(w.buf, byte(w.saved>>w.nbits))
	}
}

func (w *bitWriter) writeBit(b byte) {
	w.writeBits(uint64(b), 1)
}

func (w *bitWriter) writeOctets(p []byte) {
	if w.nbits == 0 {
		w.buf = append(w.buf, p...)
		return
	}
	for _, b := range p {
		w.writeBits(uint64(b), 8)
	}
}

// writeInt encodes v with the given prefix. The prefix has to finish the
// current octet, and v must stay within what readInt accepts.
func (w *bitWriter) writeInt(v uint64, prefix uint8) error {
	if prefix == 0 || prefix > 8 || w.nbits+prefix != 8 {
		return errMisalignedPrefix
	}
	max := uint64(1)<<prefix - 1
	if v < max {
		w.writeBits(v, prefix)
		return nil
	}
	v -= max
	if v >= 1<<(7*maxContinuation) {
		return fmt.Errorf("%w: %d does not fit in %d continuation octets", ErrIntegerOverflow, v+max, maxContinuation)
	}
	w.writeBits(max, prefix)
	for v >= 0x80 {
		w.writeBits(v&0x7f|0x80, 8)
		v >>= 7
	}
	w.writeBits(v, 8)
	return nil
}

// pad fills a partial octet with the high bits of the EOS code (all ones).
func (w *bitWriter) pad() {
	if w.nbits > 0 {
		w.writeBits(0xff, 8-w.nbits)
	}
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}
