package hpack

import (
	"fmt"
	"strings"
)

// maxStringLen is the longest string length a peer decoder accepts: a full
// 7-bit prefix plus four continuation octets.
const maxStringLen = 1<<7 - 1 + 1<<(7*maxContinuation) - 1

type HuffmanChoice byte

const (
	// HuffmanAlways codes every string.
	HuffmanAlways HuffmanChoice = iota
	// HuffmanAuto codes a string only when that makes it shorter.
	HuffmanAuto
	// HuffmanNever sends raw octets.
	HuffmanNever
)

func (c HuffmanChoice) String() string {
	switch c {
	case HuffmanAlways:
		return "always"
	case HuffmanAuto:
		return "auto"
	case HuffmanNever:
		return "never"
	}
	return fmt.Sprintf("HuffmanChoice(%d)", byte(c))
}

func ParseHuffmanChoice(s string) (HuffmanChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always":
		return HuffmanAlways, nil
	case "auto":
		return HuffmanAuto, nil
	case "never":
		return HuffmanNever, nil
	}
	return 0, fmt.Errorf("unknown huffman choice %q", s)
}

type Encoder struct {
	table   *Table
	huffman HuffmanChoice

	// Pending dynamic table size updates, emitted at the start of the next
	// header block.
	sizeChanged bool
	minSize     uint32
	nextSize    uint32
}

type EncoderOption func(*Encoder)

func WithHuffman(choice HuffmanChoice) EncoderOption {
	return func(e *Encoder) {
		e.huffman = choice
	}
}

func NewEncoder(protocolMaxSize uint32, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		table:   NewTable(protocolMaxSize),
		huffman: HuffmanAlways,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Encoder) Table() *Table {
	return e.table
}

// SetMaxTableSize queues a dynamic table size update. It is written, and
// applied to the encoder's own table, at the start of the next Encode.
func (e *Encoder) SetMaxTableSize(size uint32) error {
	if size > e.table.ProtocolMaxSize() {
		return fmt.Errorf("%w: %d > %d", ErrTableSizeTooLarge, size, e.table.ProtocolMaxSize())
	}
	if !e.sizeChanged || size < e.minSize {
		e.minSize = size
	}
	e.nextSize = size
	e.sizeChanged = true
	return nil
}

// SetProtocolMaxSize takes a new ceiling from the peer's settings. When the
// ceiling drops below the current maximum the table shrinks and the peer is
// told at the start of the next block.
func (e *Encoder) SetProtocolMaxSize(size uint32) error {
	lowered := e.table.MaxSize() > size
	if err := e.table.SetProtocolMaxSize(size); err != nil {
		return err
	}
	if e.sizeChanged {
		e.minSize = min(e.minSize, size)
		e.nextSize = min(e.nextSize, size)
	}
	if lowered {
		return e.SetMaxTableSize(size)
	}
	return nil
}

// Encode compresses one header block. The dynamic table is only touched
// once every field is known to be encodable.
func (e *Encoder) Encode(fields []HeaderField) ([]byte, error) {
	for _, hf := range fields {
		if err := e.checkLength(hf.Name); err != nil {
			return nil, err
		}
		if err := e.checkLength(hf.Value); err != nil {
			return nil, err
		}
	}

	w := &bitWriter{}
	if err := e.writeSizeUpdates(w); err != nil {
		return nil, err
	}
	for _, hf := range fields {
		if err := e.encodeField(w, hf); err != nil {
			return nil, fmt.Errorf("cannot encode %q: %w", hf.Name, err)
		}
	}
	return w.bytes(), nil
}

func (e *Encoder) writeSizeUpdates(w *bitWriter) error {
	if !e.sizeChanged {
		return nil
	}
	e.sizeChanged = false

	if e.minSize < e.nextSize {
		if err := e.writeSizeUpdate(w, e.minSize); err != nil {
			return err
		}
	}
	return e.writeSizeUpdate(w, e.nextSize)
}

func (e *Encoder) writeSizeUpdate(w *bitWriter, size uint32) error {
	w.writeBits(0x1, 3)
	if err := w.writeInt(uint64(size), 5); err != nil {
		return err
	}
	return e.table.UpdateMaxSize(size)
}

func (e *Encoder) encodeField(w *bitWriter, hf HeaderField) error {
	if hf.NeverIndex {
		w.writeBits(0x1, 4)
		if err := w.writeInt(0, 4); err != nil {
			return err
		}
		if err := e.writeString(w, hf.Name); err != nil {
			return err
		}
		return e.writeString(w, hf.Value)
	}

	index, full := e.table.ReverseLookup(hf.Name, hf.Value)
	if full {
		w.writeBit(1)
		return w.writeInt(uint64(index), 7)
	}

	// index is negative for a name-only match
	w.writeBits(0x1, 2)
	if err := w.writeInt(uint64(-index), 6); err != nil {
		return err
	}
	if index == 0 {
		if err := e.writeString(w, hf.Name); err != nil {
			return err
		}
	}
	if err := e.writeString(w, hf.Value); err != nil {
		return err
	}
	return e.table.Add(hf.Name, hf.Value)
}

func (e *Encoder) useHuffman(s string) (bool, int) {
	switch e.huffman {
	case HuffmanAlways:
		return true, HuffmanEncodedLen(s)
	case HuffmanAuto:
		if n := HuffmanEncodedLen(s); n < len(s) {
			return true, n
		}
	}
	return false, len(s)
}

func (e *Encoder) checkLength(s string) error {
	if _, n := e.useHuffman(s); n > maxStringLen {
		return fmt.Errorf("%w: string of %d octets", ErrIntegerOverflow, n)
	}
	return nil
}

func (e *Encoder) writeString(w *bitWriter, s string) error {
	huffman, n := e.useHuffman(s)
	if huffman {
		w.writeBit(1)
	} else {
		w.writeBit(0)
	}
	if err := w.writeInt(uint64(n), 7); err != nil {
		return err
	}
	if huffman {
		w.writeHuffman(s)
	} else {
		w.writeOctets([]byte(s))
	}
	return nil
}
