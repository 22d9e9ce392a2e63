package headers

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/settings"
	"hpackcodec/internal/http2/structs"
	"hpackcodec/internal/logging"
)

type pipe struct {
	io.Reader
	io.Writer
}

var requestFields = []hpack.HeaderField{
	{Name: ":method", Value: "GET"},
	{Name: ":scheme", Value: "https"},
	{Name: ":path", Value: "/index.html"},
	{Name: ":authority", Value: "www.example.com"},
	{Name: "custom-key", Value: "custom-value"},
	{Name: "authorization", Value: "Bearer abc", NeverIndex: true},
}

func readFrames(t *testing.T, buf *bytes.Buffer) []*structs.Frame {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	var frames []*structs.Frame
	for {
		f, err := frame.ParseFrame(r)
		if err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestFragmentStripsPaddingAndPriority(t *testing.T) {
	payload := []byte{2}                      // pad length
	payload = append(payload, 0, 0, 0, 1, 16) // priority
	payload = append(payload, 0x82, 0x86)     // fragment
	payload = append(payload, 0, 0)           // padding
	f := frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.PADDED|structs.HEADERS_PRIORITY, 1, payload)

	fragment, err := Fragment(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x86}, fragment)
}

func TestFragmentInvalidPadding(t *testing.T) {
	f := frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.PADDED, 1, []byte{5, 0x82})

	_, err := Fragment(f)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, uint32(structs.PROTOCOL_ERROR), connErr.Code)
}

func TestFragmentContinuationUntouched(t *testing.T) {
	f := frame.NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.PADDED, 1, []byte{5, 0x82})

	fragment, err := Fragment(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0x82}, fragment)
}

func TestWriterSplitsIntoContinuation(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, hpack.NewEncoder(4096), 8, logging.Discard{})
	require.NoError(t, w.WriteBlock(1, requestFields, true))

	frames := readFrames(t, &buf)
	require.Greater(t, len(frames), 2)

	assert.Equal(t, uint8(structs.HEADER_FRAME_TYPE), frames[0].Type)
	assert.True(t, frames[0].Has(structs.END_STREAM))
	assert.False(t, frames[0].Has(structs.END_HEADERS))
	for _, f := range frames[1:] {
		assert.Equal(t, uint8(structs.CONTINUATION_FRAME_TYPE), f.Type)
		assert.LessOrEqual(t, f.Length, uint32(8))
		assert.Equal(t, uint32(1), f.StreamID)
	}
	assert.True(t, frames[len(frames)-1].Has(structs.END_HEADERS))
}

func TestWriterEmptyBlock(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, hpack.NewEncoder(4096), 16384, logging.Discard{})
	require.NoError(t, w.WriteBlock(3, nil, false))

	frames := readFrames(t, &buf)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(structs.END_HEADERS), frames[0].Flags)
	assert.Empty(t, frames[0].Payload)
}

func TestReaderResumesAcrossFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, hpack.NewEncoder(4096), 3, logging.Discard{})
	require.NoError(t, w.WriteBlock(1, requestFields, false))
	require.NoError(t, w.WriteBlock(3, requestFields, true))

	dec := hpack.NewDecoder(4096)
	r := NewReader(bufio.NewReader(&buf), dec, 16384, logging.Discard{})

	block, err := r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), block.StreamID)
	assert.False(t, block.EndStream)
	assert.Equal(t, requestFields, block.Fields)

	block, err = r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), block.StreamID)
	assert.True(t, block.EndStream)
	assert.Equal(t, requestFields, block.Fields)

	// the second block was all indexed
	assert.Equal(t, 2, dec.Table().DynamicLen())
}

func TestReaderPassesOtherFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.PING_FRAME_TYPE, 0, 0, make([]byte, 8))))
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x82})))

	r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 16384, logging.Discard{})
	var seen []uint8
	r.OnFrame = func(f *structs.Frame) error {
		seen = append(seen, f.Type)
		return nil
	}

	block, err := r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []uint8{structs.PING_FRAME_TYPE}, seen)
	assert.Equal(t, []hpack.HeaderField{{Name: ":method", Value: "GET"}}, block.Fields)
}

func TestReaderProtocolErrors(t *testing.T) {
	cases := map[string][]*structs.Frame{
		"continuation first": {
			frame.NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x82}),
		},
		"interleaved frame": {
			frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82}),
			frame.NewFrame(structs.DATA_FRAME_TYPE, 0, 1, []byte("x")),
		},
		"other stream": {
			frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82}),
			frame.NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.END_HEADERS, 3, []byte{0x82}),
		},
		"stream zero": {
			frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 0, []byte{0x82}),
		},
	}

	for name, frames := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			for _, f := range frames {
				require.NoError(t, frame.WriteFrame(&buf, f))
			}

			r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 16384, logging.Discard{})
			_, err := r.ReadBlock()
			assert.Equal(t, uint32(structs.PROTOCOL_ERROR), ErrorCode(err))
		})
	}
}

func TestReaderCompressionError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x82, 0x80})))

	r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 16384, logging.Discard{})
	_, err := r.ReadBlock()

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, uint32(structs.COMPRESSION_ERROR), connErr.Code)
	assert.ErrorIs(t, err, hpack.ErrZeroIndex)
	assert.Contains(t, err.Error(), "COMPRESSION_ERROR")
}

func TestReaderTruncatedBlock(t *testing.T) {
	var buf bytes.Buffer
	// a literal whose value is cut off by END_HEADERS
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x41, 0x0f, 'w'})))

	r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 16384, logging.Discard{})
	_, err := r.ReadBlock()
	assert.Equal(t, uint32(structs.COMPRESSION_ERROR), ErrorCode(err))
	assert.ErrorIs(t, err, hpack.ErrInsufficientData)
}

func TestReaderFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1, make([]byte, 100))))

	r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 64, logging.Discard{})
	_, err := r.ReadBlock()
	assert.Equal(t, uint32(structs.FRAME_SIZE_ERROR), ErrorCode(err))
}

func TestErrorCodeDefault(t *testing.T) {
	assert.Equal(t, uint32(structs.INTERNAL_ERROR), ErrorCode(errors.New("boom")))
}

func TestConnHandshakeAndBlocks(t *testing.T) {
	var toServer, toClient bytes.Buffer

	client := NewConn(pipe{Reader: &toClient, Writer: &toServer}, Options{MaxTableSize: 4096})
	server := NewConn(pipe{Reader: &toServer, Writer: &toClient}, Options{MaxTableSize: 256})

	require.NoError(t, client.ClientPreface())
	require.NoError(t, server.ServerHandshake())

	// the client only learns about the 256 octet table from the server's SETTINGS
	require.NoError(t, server.WriteBlock(1, []hpack.HeaderField{{Name: ":status", Value: "200"}}, false))
	block, err := client.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []hpack.HeaderField{{Name: ":status", Value: "200"}}, block.Fields)
	assert.Equal(t, uint32(256), client.Encoder().Table().MaxSize())

	// client's SETTINGS ACK and its first block, which starts with a size update
	require.NoError(t, client.WriteBlock(1, requestFields, true))
	block, err = server.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, requestFields, block.Fields)
	assert.Equal(t, uint32(256), server.Decoder().Table().MaxSize())
	assert.LessOrEqual(t, server.Decoder().Table().Size(), uint32(256))
}

func TestConnApplySettings(t *testing.T) {
	var out bytes.Buffer
	c := NewConn(pipe{Reader: &bytes.Buffer{}, Writer: &out}, Options{})

	require.NoError(t, c.ApplySettings([]settings.Setting{
		{ID: settings.SETTINGS_HEADER_TABLE_SIZE, Value: 0},
		{ID: settings.SETTINGS_MAX_FRAME_SIZE, Value: 32768},
	}))
	require.NoError(t, c.WriteBlock(1, []hpack.HeaderField{{Name: "x-a", Value: "1"}}, true))

	frames := readFrames(t, &out)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x20), frames[0].Payload[0])
	assert.Equal(t, 0, c.Encoder().Table().DynamicLen())

	err := c.ApplySettings([]settings.Setting{{ID: settings.SETTINGS_MAX_FRAME_SIZE, Value: 100}})
	assert.Equal(t, uint32(structs.PROTOCOL_ERROR), ErrorCode(err))
}

func TestConnGoAway(t *testing.T) {
	var out bytes.Buffer
	c := NewConn(pipe{Reader: &bytes.Buffer{}, Writer: &out}, Options{})

	require.NoError(t, c.GoAway(7, compressionError(hpack.ErrZeroIndex)))

	frames := readFrames(t, &out)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(structs.GOAWAY_FRAME_TYPE), frames[0].Type)
	assert.Equal(t, []byte{0, 0, 0, 7, 0, 0, 0, structs.COMPRESSION_ERROR}, frames[0].Payload)
}

func TestReaderEOFInsideBlock(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82})))

	r := NewReader(bufio.NewReader(&buf), hpack.NewDecoder(4096), 16384, logging.Discard{})
	_, err := r.ReadBlock()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = r.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnMaxStringLength(t *testing.T) {
	// first fragment declares a 16510 octet name
	fragment := []byte{0x40, 0x7f, 0xff, 0x7f}

	var buf bytes.Buffer
	require.NoError(t, frame.WriteFrame(&buf, frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, fragment)))
	unlimited := NewConn(pipe{bytes.NewReader(buf.Bytes()), io.Discard}, Options{})
	_, err := unlimited.ReadBlock()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	limited := NewConn(pipe{bytes.NewReader(buf.Bytes()), io.Discard}, Options{MaxStringLength: 1024})
	_, err = limited.ReadBlock()
	assert.Equal(t, uint32(structs.COMPRESSION_ERROR), ErrorCode(err))
	assert.ErrorIs(t, err, hpack.ErrStringLength)
}
