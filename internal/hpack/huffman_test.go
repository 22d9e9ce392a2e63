package hpack

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var huffmanVectors = []struct {
	plain   string
	encoded string
}{
	{"www.example.com", "f1e3c2e5f23a6ba0ab90f4ff"},
	{"no-cache", "a8eb10649cbf"},
	{"custom-key", "25a849e95ba97d7f"},
	{"custom-value", "25a849e95bb8e8b4bf"},
	{"302", "6402"},
	{"private", "aec3771a4b"},
	{"Mon, 21 Oct 2013 20:13:21 GMT", "d07abe941054d444a8200595040b8166e082a62d1bff"},
	{"https://www.example.com", "9d29ad171863c78f0b97c8e9ae82ae43d3"},
}

func TestHuffmanTreeShape(t *testing.T) {
	// 257 leaves need 256 internal nodes in a complete prefix code
	assert.Len(t, huffmanTree, 513)
}

func TestHuffmanEncode(t *testing.T) {
	for _, v := range huffmanVectors {
		encoded := AppendHuffman(nil, v.plain)
		assert.Equal(t, v.encoded, hex.EncodeToString(encoded), v.plain)
		assert.Equal(t, len(encoded), HuffmanEncodedLen(v.plain), v.plain)
	}
}

func TestHuffmanDecode(t *testing.T) {
	for _, v := range huffmanVectors {
		encoded, err := hex.DecodeString(v.encoded)
		require.NoError(t, err)

		decoded, err := HuffmanDecode(encoded)
		assert.NoError(t, err, v.plain)
		assert.Equal(t, v.plain, decoded)
	}
}

func TestHuffmanAllOctets(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	decoded, err := HuffmanDecode(AppendHuffman(nil, string(all)))
	require.NoError(t, err)
	assert.Equal(t, string(all), decoded)
}

func TestHuffmanEmpty(t *testing.T) {
	assert.Empty(t, AppendHuffman(nil, ""))

	decoded, err := HuffmanDecode(nil)
	assert.NoError(t, err)
	assert.Equal(t, "", decoded)
}

func TestHuffmanPadding(t *testing.T) {
	// 'a' is 00011, padded with three ones
	decoded, err := HuffmanDecode([]byte{0b00011111})
	assert.NoError(t, err)
	assert.Equal(t, "a", decoded)

	_, err = HuffmanDecode([]byte{0b00011000})
	assert.ErrorIs(t, err, ErrMalformedHuffman, "padding with zero bits")

	_, err = HuffmanDecode([]byte{0b00011111, 0xff})
	assert.ErrorIs(t, err, ErrMalformedHuffman, "padding longer than 7 bits")
}

func TestHuffmanEOS(t *testing.T) {
	_, err := HuffmanDecode([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformedHuffman)
}

func TestReadStringRaw(t *testing.T) {
	c := newBitCursor(append([]byte{0x0a}, "custom-key"...))

	s, err := readString(c, 0)
	assert.NoError(t, err)
	assert.Equal(t, "custom-key", s)
	assert.True(t, c.empty())
}

func TestReadStringHuffman(t *testing.T) {
	c := newBitCursor([]byte{0x8c, 0xf1, 0xe3, 0xc2, 0xe5, 0xf2, 0x3a, 0x6b, 0xa0, 0xab, 0x90, 0xf4, 0xff})

	s, err := readString(c, 0)
	assert.NoError(t, err)
	assert.Equal(t, "www.example.com", s)
}

func TestReadStringTruncated(t *testing.T) {
	c := newBitCursor(append([]byte{0x0a}, "custom"...))

	_, err := readString(c, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
