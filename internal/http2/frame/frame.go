package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"hpackcodec/internal/http2/structs"
)

const maxPayloadLen = 1<<24 - 1

var ErrFrameTooLarge = errors.New("frame payload exceeds the maximum frame size")

func ParseFrame(reader *bufio.Reader) (*structs.Frame, error) {
	return ParseFrameMax(reader, maxPayloadLen)
}

// ParseFrameMax is ParseFrame with a limit on the payload length. A longer
// frame is rejected before its payload is read.
func ParseFrameMax(reader *bufio.Reader, maxFrameSize uint32) (*structs.Frame, error) {
	newFrame := new(structs.Frame)

	var buffer bytes.Buffer
	_, err := io.CopyN(&buffer, reader, structs.FrameHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame header: %w", err)
	}

	var length []byte
	length = append(length, 0)
	length = append(length, buffer.Next(3)...)

	newFrame.Length = binary.BigEndian.Uint32(length)
	newFrame.Type = buffer.Next(1)[0]
	newFrame.Flags = buffer.Next(1)[0]
	newFrame.StreamID = binary.BigEndian.Uint32(buffer.Next(4))

	// Clears the first bit (Reserved)
	newFrame.StreamID &^= 1 << 31

	if newFrame.Length > maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, newFrame.Length, maxFrameSize)
	}

	buffer.Reset()
	_, err = io.CopyN(&buffer, reader, int64(newFrame.Length))
	if err != nil {
		return nil, fmt.Errorf("cannot read frame data: %w", err)
	}
	newFrame.Payload = buffer.Bytes()

	return newFrame, nil
}

func NewFrame(iType uint8, flags uint8, streamID uint32, data []byte) *structs.Frame {
	return &structs.Frame{
		Length:   uint32(len(data)),
		Type:     iType,
		Flags:    flags,
		StreamID: streamID &^ (1 << 31),
		Payload:  data,
	}
}

func WriteFrame(w io.Writer, f *structs.Frame) error {
	if len(f.Payload) > maxPayloadLen {
		return fmt.Errorf("%w: %d", ErrFrameTooLarge, len(f.Payload))
	}

	var message bytes.Buffer
	message.Grow(structs.FrameHeaderLen + len(f.Payload))

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(f.Payload)))
	message.Write(lengthBytes[1:])

	message.WriteByte(f.Type)
	message.WriteByte(f.Flags)

	// Sets the reserved bit to 0
	streamIDBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(streamIDBytes, f.StreamID&^(1<<31))
	message.Write(streamIDBytes)

	message.Write(f.Payload)

	_, err := w.Write(message.Bytes())
	if err != nil {
		return fmt.Errorf("send frame failed: %w", err)
	}

	return nil
}
