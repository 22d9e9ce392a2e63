package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIntPrefix5(t *testing.T) {
	c := newBitCursor([]byte{0b11101010})
	require.NoError(t, c.skipBits(3))

	v, err := c.readInt(5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(10), v)
	assert.True(t, c.empty())
}

func TestDecodeIntContinuation(t *testing.T) {
	c := newBitCursor([]byte{0b11111111, 0b10011010, 0b00001010})
	require.NoError(t, c.skipBits(3))

	v, err := c.readInt(5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1337), v)
	assert.True(t, c.empty())
}

func TestDecodeIntOctetBoundary(t *testing.T) {
	c := newBitCursor([]byte{0b00101010})

	v, err := c.readInt(8)
	assert.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestDecodeIntEmpty(t *testing.T) {
	c := newBitCursor(nil)

	_, err := c.readInt(8)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestDecodeIntTruncated(t *testing.T) {
	c := newBitCursor([]byte{0b11111111, 0b10011010})
	require.NoError(t, c.skipBits(3))

	_, err := c.readInt(5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestDecodeIntOverflow(t *testing.T) {
	c := newBitCursor([]byte{
		0b11111111,
		0b10011010,
		0b10011010,
		0b10011010,
		0b10011010,
		0b10011010,
	})
	require.NoError(t, c.skipBits(3))

	_, err := c.readInt(5)
	assert.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestDecodeIntLargestValue(t *testing.T) {
	c := newBitCursor([]byte{0xff, 0xff, 0xff, 0xff, 0x7f})

	v, err := c.readInt(8)
	assert.NoError(t, err)
	assert.Equal(t, uint32(255+1<<28-1), v)
}

func TestDecodeIntMisaligned(t *testing.T) {
	c := newBitCursor([]byte{0x00})
	require.NoError(t, c.skipBits(1))

	_, err := c.readInt(5)
	assert.ErrorIs(t, err, errMisalignedPrefix)
}

func TestEncodeInt(t *testing.T) {
	cases := []struct {
		name     string
		skip     uint8
		prefix   uint8
		value    uint64
		expected []byte
	}{
		{"prefix fits", 3, 5, 10, []byte{0x0a}},
		{"continuation", 3, 5, 1337, []byte{0x1f, 0x9a, 0x0a}},
		{"octet boundary", 0, 8, 42, []byte{0x2a}},
		{"exactly the prefix", 1, 7, 127, []byte{0x7f, 0x00}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &bitWriter{}
			w.writeBits(0, tc.skip)
			require.NoError(t, w.writeInt(tc.value, tc.prefix))
			assert.Equal(t, tc.expected, w.bytes())

			c := newBitCursor(w.bytes())
			require.NoError(t, c.skipBits(tc.skip))
			v, err := c.readInt(tc.prefix)
			require.NoError(t, err)
			assert.Equal(t, uint32(tc.value), v)
		})
	}
}

func TestEncodeIntRejectsFifthContinuation(t *testing.T) {
	w := &bitWriter{}
	assert.NoError(t, w.writeInt(255+1<<28-1, 8))

	w = &bitWriter{}
	assert.ErrorIs(t, w.writeInt(255+1<<28, 8), ErrIntegerOverflow)
}

func TestBitWriterPad(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0b010, 3)
	w.pad()
	assert.Equal(t, []byte{0b01011111}, w.bytes())

	// an aligned writer is left alone
	w.pad()
	assert.Equal(t, []byte{0b01011111}, w.bytes())
}
