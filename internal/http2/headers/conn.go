package headers

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/frame"
	"hpackcodec/internal/http2/settings"
	"hpackcodec/internal/http2/structs"
	"hpackcodec/internal/logging"
)

// Initial values both peers assume before any SETTINGS arrive.
const (
	DefaultHeaderTableSize = 4096
	DefaultMaxFrameSize    = 16384
)

type Options struct {
	// MaxTableSize is what we advertise as SETTINGS_HEADER_TABLE_SIZE and the
	// ceiling our decoder enforces.
	MaxTableSize uint32
	// MaxFrameSize is the largest frame we accept.
	MaxFrameSize uint32
	// MaxStringLength caps every literal the peer sends; 0 means no limit.
	MaxStringLength int
	Huffman         hpack.HuffmanChoice
	Logger          logging.Logger
}

// Conn owns the two compression contexts of one connection: the encoder for
// blocks we send and the decoder for blocks the peer sends.
type Conn struct {
	readMu  sync.Mutex
	writeMu sync.Mutex

	w      io.Writer
	enc    *hpack.Encoder
	dec    *hpack.Decoder
	reader *Reader
	writer *Writer
	opts   Options
	logger logging.Logger
}

func NewConn(rw io.ReadWriter, opts Options) *Conn {
	if opts.MaxTableSize == 0 {
		opts.MaxTableSize = DefaultHeaderTableSize
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard{}
	}

	enc := hpack.NewEncoder(DefaultHeaderTableSize, hpack.WithHuffman(opts.Huffman))
	dec := hpack.NewDecoder(opts.MaxTableSize)
	dec.SetMaxStringLength(opts.MaxStringLength)

	c := &Conn{
		w:      rw,
		enc:    enc,
		dec:    dec,
		reader: NewReader(bufio.NewReader(rw), dec, opts.MaxFrameSize, opts.Logger),
		writer: NewWriter(rw, enc, DefaultMaxFrameSize, opts.Logger),
		opts:   opts,
		logger: opts.Logger,
	}
	c.reader.OnFrame = c.handleFrame
	return c
}

func (c *Conn) Encoder() *hpack.Encoder {
	return c.enc
}

func (c *Conn) Decoder() *hpack.Decoder {
	return c.dec
}

// LocalSettings are the values this side advertises.
func (c *Conn) LocalSettings() []settings.Setting {
	return []settings.Setting{
		{ID: settings.SETTINGS_HEADER_TABLE_SIZE, Value: c.opts.MaxTableSize},
		{ID: settings.SETTINGS_MAX_FRAME_SIZE, Value: c.opts.MaxFrameSize},
	}
}

// ClientPreface writes the connection preface and our SETTINGS.
func (c *Conn) ClientPreface() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := io.WriteString(c.w, settings.ConnectionPreface); err != nil {
		return err
	}
	return settings.SendSettingsFrame(c.w, c.LocalSettings()...)
}

// ServerHandshake reads the client preface, applies the client's SETTINGS
// and answers with our own SETTINGS and an ACK.
func (c *Conn) ServerHandshake() error {
	c.readMu.Lock()
	list, err := settings.VerifyConnectionPreface(c.reader.r)
	c.readMu.Unlock()
	if err != nil {
		return &ConnectionError{Code: structs.PROTOCOL_ERROR, Err: err}
	}

	if err := c.ApplySettings(list); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := settings.SendSettingsFrame(c.w, c.LocalSettings()...); err != nil {
		return err
	}
	return frame.WriteFrame(c.w, settings.NewAckFrame())
}

// ApplySettings forwards the peer's SETTINGS to the sending side. A smaller
// header table size makes the encoder shrink its table and announce that at
// the start of the next block.
func (c *Conn) ApplySettings(list []settings.Setting) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if size, ok := settings.HeaderTableSize(list); ok {
		if err := c.enc.SetProtocolMaxSize(size); err != nil {
			return compressionError(err)
		}
		c.logger.Log(logging.LogLevelDebug, "peer header table size %d", size)
	}
	if size, ok := settings.MaxFrameSize(list); ok {
		if size < DefaultMaxFrameSize || size > 1<<24-1 {
			return protocolError("invalid SETTINGS_MAX_FRAME_SIZE %d", size)
		}
		c.writer.SetMaxFrameSize(size)
	}
	return nil
}

func (c *Conn) ReadBlock() (*Block, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.reader.ReadBlock()
}

func (c *Conn) WriteBlock(streamID uint32, fields []hpack.HeaderField, endStream bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteBlock(streamID, fields, endStream)
}

// GoAway tells the peer the connection is over because of err.
func (c *Conn) GoAway(lastStreamID uint32, err error) error {
	code := uint32(structs.NO_ERROR)
	if err != nil {
		code = ErrorCode(err)
	}
	c.logger.Log(logging.LogLevelWarn, "sending GOAWAY %s: %v", structs.ErrorCodeName(code), err)

	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[:4], lastStreamID&^(1<<31))
	binary.BigEndian.PutUint32(payload[4:], code)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return frame.WriteFrame(c.w, frame.NewFrame(structs.GOAWAY_FRAME_TYPE, 0, 0, payload))
}

func (c *Conn) handleFrame(f *structs.Frame) error {
	switch f.Type {
	case structs.SETTINGS_FRAME_TYPE:
		list, err := settings.Parse(f)
		if err != nil {
			return &ConnectionError{Code: structs.PROTOCOL_ERROR, Err: err}
		}
		if f.Has(structs.ACK) {
			return nil
		}
		if err := c.ApplySettings(list); err != nil {
			return err
		}
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return frame.WriteFrame(c.w, settings.NewAckFrame())
	default:
		c.logger.Log(logging.LogLevelDebug, "skipping frame type %d on stream %d", f.Type, f.StreamID)
		return nil
	}
}
