package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/settings"
	"hpackcodec/internal/http2/structs"
)

func run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(input))
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.Execute()
	return out.String(), err
}

func TestEncode(t *testing.T) {
	out, err := run(t, ":method: GET\n:path: /\n\n:method: GET\n:path: /\n", "encode", "--huffman", "never")
	require.NoError(t, err)
	assert.Equal(t, "8284\n8284\n", out)
}

func TestEncodeConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec:\n  huffman: never\n"), 0o644))

	out, err := run(t, "custom-key: custom-value\n", "encode", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "400a637573746f6d2d6b65790c637573746f6d2d76616c7565\n", out)
}

func TestEncodeInvalidHuffman(t *testing.T) {
	_, err := run(t, ":method: GET\n", "encode", "--huffman", "sometimes")
	assert.Error(t, err)
}

func TestDecodeWithTable(t *testing.T) {
	out, err := run(t, "8286 8441 8cf1 e3c2 e5f2 3a6b a0ab 90f4 ff\n", "decode", "--table")
	require.NoError(t, err)

	expected := `:method: GET
:scheme: http
:path: /
:authority: www.example.com
# dynamic table: 1 entries, size 57/4096
# [ 62] (s =  57) :authority: www.example.com
`
	assert.Equal(t, expected, out)
}

func TestDecodeError(t *testing.T) {
	_, err := run(t, "80\n", "decode")
	require.Error(t, err)
	assert.ErrorIs(t, err, hpack.ErrZeroIndex)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	input := `:method: POST
:path: /upload
!authorization: Bearer secret

:method: POST
:path: /upload
x-trace: 42
`
	encoded, err := run(t, input, "encode", "--huffman", "auto")
	require.NoError(t, err)

	decoded, err := run(t, encoded, "decode")
	require.NoError(t, err)
	assert.Equal(t, input, decoded)
}

func TestStats(t *testing.T) {
	input := strings.Repeat(":method: GET\n:path: /\nuser-agent: hpackcodec test\n\n", 3)

	out, err := run(t, input, "stats", "--blocks")
	require.NoError(t, err)
	assert.Contains(t, out, "blocks:  3\n")
	assert.Contains(t, out, "huffman always")
	for _, name := range []string{"deflate:", "gzip:", "zstd:"} {
		assert.Contains(t, out, name)
	}
}

func TestFrames(t *testing.T) {
	enc := hpack.NewEncoder(4096, hpack.WithHuffman(hpack.HuffmanNever))
	first, err := enc.Encode([]hpack.HeaderField{{Name: ":method", Value: "GET"}, {Name: ":path", Value: "/"}})
	require.NoError(t, err)
	second, err := enc.Encode([]hpack.HeaderField{{Name: "x-id", Value: "7"}})
	require.NoError(t, err)

	var capture bytes.Buffer
	capture.WriteString(settings.ConnectionPreface)
	require.NoError(t, frame.WriteFrame(&capture, settings.NewSettingsFrame(settings.Setting{ID: settings.SETTINGS_HEADER_TABLE_SIZE, Value: 0})))
	require.NoError(t, frame.WriteFrame(&capture, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS|structs.END_STREAM, 1, first)))
	require.NoError(t, frame.WriteFrame(&capture, frame.NewFrame(structs.DATA_FRAME_TYPE, 0, 1, []byte("ignored"))))
	require.NoError(t, frame.WriteFrame(&capture, frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 3, second[:2])))
	require.NoError(t, frame.WriteFrame(&capture, frame.NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.END_HEADERS, 3, second[2:])))

	out, err := run(t, capture.String(), "frames")
	require.NoError(t, err)
	assert.Equal(t, "# stream 1 (end stream)\n:method: GET\n:path: /\n\n# stream 3\nx-id: 7\n", out)
}

func TestFramesTruncated(t *testing.T) {
	var capture bytes.Buffer
	require.NoError(t, frame.WriteFrame(&capture, frame.NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82})))

	_, err := run(t, capture.String(), "frames")
	assert.Error(t, err)
}

func TestServeRejectsBadPort(t *testing.T) {
	_, err := run(t, "", "serve", "--port", "0")
	assert.Error(t, err)
}

func TestDecodeMaxStringLengthFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec:\n  max_string_length: 4\n"), 0o644))

	_, err := run(t, "400a637573746f6d2d6b65790c637573746f6d2d76616c7565\n", "decode", "--config", path)
	assert.ErrorIs(t, err, hpack.ErrStringLength)
}
