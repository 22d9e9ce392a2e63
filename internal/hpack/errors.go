package hpack

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the buffered octets end in the middle of an
	// integer or string.
	ErrInsufficientData  = errors.New("hpack: insufficient data")
	ErrZeroIndex         = errors.New("hpack: zero index")
	ErrIndexOutOfBounds  = errors.New("hpack: index out of bounds")
	ErrTableSizeTooLarge = errors.New("hpack: table size bigger than maximum")
	ErrIntegerOverflow   = errors.New("hpack: integer overflow")
	ErrMalformedHuffman  = errors.New("hpack: malformed huffman data")
	ErrStringLength      = errors.New("hpack: string exceeds maximum length")
	// ErrLateSizeUpdate is a dynamic table size update after the first
	// header field of a block.
	ErrLateSizeUpdate = errors.New("hpack: table size update after header field")
	// ErrTableCorruption signals a broken size invariant. It is never caused
	// by peer input.
	ErrTableCorruption = errors.New("hpack: table size sanity check failed")

	// ErrNeedMoreData is returned by Decoder.Next when no complete field is
	// buffered. It is not fatal.
	ErrNeedMoreData = errors.New("hpack: need more data")
)

// DecodingError is a fatal decoder error together with the stream offset of
// the first octet of the field that failed.
type DecodingError struct {
	Offset int64
	Err    error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}
