package settings

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/structs"
)

//goland:noinspection ALL
const (
	SETTINGS_HEADER_TABLE_SIZE = iota + 1
	SETTINGS_ENABLE_PUSH
	SETTINGS_MAX_CONCURRENT_STREAMS
	SETTINGS_INITIAL_WINDOW_SIZE
	SETTINGS_MAX_FRAME_SIZE
	SETTINGS_MAX_HEADER_LIST_SIZE
)

const settingLen = 6

var ConnectionPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

var ErrNotSettings = errors.New("not a settings frame")

type Setting struct {
	ID    uint16
	Value uint32
}

func NewSettingsFrame(settings ...Setting) *structs.Frame {
	data := make([]byte, 0, len(settings)*settingLen)
	for _, s := range settings {
		data = binary.BigEndian.AppendUint16(data, s.ID)
		data = binary.BigEndian.AppendUint32(data, s.Value)
	}
	return frame.NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, data)
}

func NewAckFrame() *structs.Frame {
	return frame.NewFrame(structs.SETTINGS_FRAME_TYPE, structs.ACK, 0, nil)
}

func Validate(f *structs.Frame) error {
	if f.Type != structs.SETTINGS_FRAME_TYPE {
		return fmt.Errorf("%w: type %v", ErrNotSettings, f.Type)
	}

	if f.StreamID != 0x0 {
		return fmt.Errorf("invalid frame stream id: %v", f.StreamID)
	}

	if len(f.Payload)%settingLen != 0 {
		return fmt.Errorf("invalid frame payload length: %v", len(f.Payload))
	}

	if f.Has(structs.ACK) && len(f.Payload) != 0 {
		return fmt.Errorf("settings ack with payload length %v", len(f.Payload))
	}

	return nil
}

// Parse returns the settings carried by a SETTINGS frame in wire order. An
// ACK carries none.
func Parse(f *structs.Frame) ([]Setting, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	var settings []Setting
	for p := f.Payload; len(p) >= settingLen; p = p[settingLen:] {
		settings = append(settings, Setting{
			ID:    binary.BigEndian.Uint16(p[:2]),
			Value: binary.BigEndian.Uint32(p[2:settingLen]),
		})
	}
	return settings, nil
}

// HeaderTableSize returns the last SETTINGS_HEADER_TABLE_SIZE in the list.
func HeaderTableSize(settings []Setting) (uint32, bool) {
	return lookup(settings, SETTINGS_HEADER_TABLE_SIZE)
}

func MaxFrameSize(settings []Setting) (uint32, bool) {
	return lookup(settings, SETTINGS_MAX_FRAME_SIZE)
}

func lookup(settings []Setting, id uint16) (uint32, bool) {
	var value uint32
	found := false
	for _, s := range settings {
		if s.ID == id {
			value = s.Value
			found = true
		}
	}
	return value, found
}

func SendSettingsFrame(w io.Writer, settings ...Setting) error {
	err := frame.WriteFrame(w, NewSettingsFrame(settings...))
	if err != nil {
		return fmt.Errorf("error writing settings frame: %w", err)
	}
	return nil
}

// VerifyConnectionPreface reads the client preface and the SETTINGS frame
// that has to follow it.
func VerifyConnectionPreface(reader *bufio.Reader) ([]Setting, error) {
	var preface bytes.Buffer
	_, err := io.CopyN(&preface, reader, int64(len(ConnectionPreface)))
	if err != nil {
		return nil, err
	}
	if preface.String() != ConnectionPreface {
		return nil, fmt.Errorf("invalid connection preface: %q", preface.String())
	}

	f, err := frame.ParseFrame(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot parse frames: %w", err)
	}

	settings, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cannot validate settings frame: %w", err)
	}

	return settings, nil
}
