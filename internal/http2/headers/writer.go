package headers

import (
	"io"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/structs"
	"hpackcodec/internal/logging"
)

// Writer encodes header lists and sends each block as one HEADERS frame
// followed by as many CONTINUATION frames as the peer's frame size needs.
type Writer struct {
	w            io.Writer
	enc          *hpack.Encoder
	maxFrameSize uint32
	logger       logging.Logger
}

func NewWriter(w io.Writer, enc *hpack.Encoder, maxFrameSize uint32, logger logging.Logger) *Writer {
	return &Writer{
		w:            w,
		enc:          enc,
		maxFrameSize: maxFrameSize,
		logger:       logger,
	}
}

func (hw *Writer) SetMaxFrameSize(size uint32) {
	hw.maxFrameSize = size
}

func (hw *Writer) WriteBlock(streamID uint32, fields []hpack.HeaderField, endStream bool) error {
	block, err := hw.enc.Encode(fields)
	if err != nil {
		return err
	}

	n, err := hw.writeFragments(streamID, block, endStream)
	if err != nil {
		return err
	}
	hw.logger.Log(logging.LogLevelDebug, "stream %d: %d header fields in %d octets, %d frames",
		streamID, len(fields), len(block), n)
	return nil
}

func (hw *Writer) writeFragments(streamID uint32, block []byte, endStream bool) (int, error) {
	var frameType uint8 = structs.HEADER_FRAME_TYPE
	var flags uint8
	if endStream {
		flags |= structs.END_STREAM
	}

	frames := 0
	for frames == 0 || len(block) > 0 {
		n := min(len(block), int(hw.maxFrameSize))
		chunk := block[:n]
		block = block[n:]
		if len(block) == 0 {
			flags |= structs.END_HEADERS
		}

		err := frame.WriteFrame(hw.w, frame.NewFrame(frameType, flags, streamID, chunk))
		if err != nil {
			return frames, err
		}
		frames++

		frameType = structs.CONTINUATION_FRAME_TYPE
		flags = 0
	}
	return frames, nil
}
