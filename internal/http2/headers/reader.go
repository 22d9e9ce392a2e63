package headers

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/structs"
	"hpackcodec/internal/logging"
)

type Block struct {
	StreamID  uint32
	EndStream bool
	Fields    []hpack.HeaderField
}

// FrameHandler sees every frame that does not belong to a header block.
type FrameHandler func(f *structs.Frame) error

// Reader assembles header blocks from HEADERS and CONTINUATION frames and
// feeds each fragment to the decoder as it arrives.
type Reader struct {
	r            *bufio.Reader
	dec          *hpack.Decoder
	maxFrameSize uint32
	logger       logging.Logger

	OnFrame FrameHandler
}

func NewReader(r *bufio.Reader, dec *hpack.Decoder, maxFrameSize uint32, logger logging.Logger) *Reader {
	return &Reader{
		r:            r,
		dec:          dec,
		maxFrameSize: maxFrameSize,
		logger:       logger,
	}
}

// ReadBlock returns the next complete header block. Frames in between
// blocks go to OnFrame; inside a block only CONTINUATION frames of the same
// stream are allowed.
func (hr *Reader) ReadBlock() (*Block, error) {
	var block *Block

	for {
		f, err := frame.ParseFrameMax(hr.r, hr.maxFrameSize)
		if err != nil {
			if errors.Is(err, frame.ErrFrameTooLarge) {
				return nil, &ConnectionError{Code: structs.FRAME_SIZE_ERROR, Err: err}
			}
			if block != nil && errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("header block on stream %d: %w", block.StreamID, io.ErrUnexpectedEOF)
			}
			return nil, err
		}

		if block == nil {
			switch f.Type {
			case structs.HEADER_FRAME_TYPE:
				if f.StreamID == 0 {
					return nil, protocolError("HEADERS frame on stream 0")
				}
				block = &Block{StreamID: f.StreamID, EndStream: f.Has(structs.END_STREAM)}
			case structs.CONTINUATION_FRAME_TYPE:
				return nil, protocolError("CONTINUATION on stream %d without HEADERS", f.StreamID)
			default:
				if err := hr.handle(f); err != nil {
					return nil, err
				}
				continue
			}
		} else if f.Type != structs.CONTINUATION_FRAME_TYPE || f.StreamID != block.StreamID {
			return nil, protocolError("expected CONTINUATION on stream %d, got type %d on stream %d",
				block.StreamID, f.Type, f.StreamID)
		}

		fragment, err := Fragment(f)
		if err != nil {
			return nil, err
		}

		hr.dec.Push(fragment)
		if err := hr.drain(block); err != nil {
			return nil, err
		}

		if f.Has(structs.END_HEADERS) {
			if err := hr.dec.Finish(); err != nil {
				return nil, compressionError(err)
			}
			hr.logger.Log(logging.LogLevelDebug, "stream %d: %d header fields, table size %d",
				block.StreamID, len(block.Fields), hr.dec.Table().Size())
			return block, nil
		}
	}
}

func (hr *Reader) drain(block *Block) error {
	for {
		hf, err := hr.dec.Next()
		if errors.Is(err, hpack.ErrNeedMoreData) {
			return nil
		}
		if err != nil {
			return compressionError(err)
		}
		block.Fields = append(block.Fields, hf)
	}
}

func (hr *Reader) handle(f *structs.Frame) error {
	if hr.OnFrame == nil {
		hr.logger.Log(logging.LogLevelDebug, "skipping frame type %d on stream %d", f.Type, f.StreamID)
		return nil
	}
	return hr.OnFrame(f)
}

// Fragment returns the header block fragment of a HEADERS or CONTINUATION
// frame, without padding and priority fields.
func Fragment(f *structs.Frame) ([]byte, error) {
	payload := f.Payload
	if f.Type != structs.HEADER_FRAME_TYPE {
		return payload, nil
	}

	var paddingLength int
	// Padding flag set
	if f.Has(structs.PADDED) {
		if len(payload) < 1 {
			return nil, protocolError("cannot read header padding length")
		}
		paddingLength = int(payload[0])
		payload = payload[1:]
	}

	// Priority flag set
	if f.Has(structs.HEADERS_PRIORITY) {
		if len(payload) < 5 {
			return nil, protocolError("cannot read header priority")
		}
		payload = payload[5:]
	}

	if paddingLength > len(payload) {
		return nil, protocolError("invalid header padding length: %v", paddingLength)
	}

	return payload[:len(payload)-paddingLength], nil
}
