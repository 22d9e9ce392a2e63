package stats

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"hpackcodec/internal/hpack"
)

// Baselines are the general purpose compressors HPACK is compared against.
var Baselines = []string{"deflate", "gzip", "zstd"}

type BlockStats struct {
	Fields  int
	Raw     int
	Encoded int
}

type Baseline struct {
	Name string
	Size int
}

type Report struct {
	Blocks    []BlockStats
	Raw       int
	Encoded   int
	Baselines []Baseline
}

// Ratio is encoded size over raw size.
func (r *Report) Ratio() float64 {
	if r.Raw == 0 {
		return 0
	}
	return float64(r.Encoded) / float64(r.Raw)
}

// RawSize is the size of the header list written out HTTP/1.1 style,
// "name: value\r\n" per field.
func RawSize(fields []hpack.HeaderField) int {
	n := 0
	for _, hf := range fields {
		n += len(hf.Name) + len(hf.Value) + 4
	}
	return n
}

func writeRaw(w *bytes.Buffer, fields []hpack.HeaderField) {
	for _, hf := range fields {
		w.WriteString(hf.Name)
		w.WriteString(": ")
		w.WriteString(hf.Value)
		w.WriteString("\r\n")
	}
}

// Measure encodes every block with enc and compresses the raw text of all
// blocks as one stream with each baseline.
func Measure(enc *hpack.Encoder, blocks [][]hpack.HeaderField) (*Report, error) {
	report := &Report{}
	var raw bytes.Buffer

	for i, fields := range blocks {
		block, err := enc.Encode(fields)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i+1, err)
		}

		bs := BlockStats{Fields: len(fields), Raw: RawSize(fields), Encoded: len(block)}
		report.Blocks = append(report.Blocks, bs)
		report.Raw += bs.Raw
		report.Encoded += bs.Encoded
		writeRaw(&raw, fields)
	}

	for _, lib := range Baselines {
		n, err := CompressedSize(lib, raw.Bytes())
		if err != nil {
			return nil, err
		}
		report.Baselines = append(report.Baselines, Baseline{Name: lib, Size: n})
	}
	return report, nil
}

func CompressedSize(lib string, data []byte) (int, error) {
	compressed, err := Compress(lib, data)
	if err != nil {
		return 0, err
	}
	return len(compressed), nil
}

func Compress(lib string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var writer io.WriteCloser

	switch lib {
	case "deflate":
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		writer = w
	case "gzip":
		writer = gzip.NewWriter(&buf)
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		writer = w
	default:
		return nil, fmt.Errorf("unsupported compression: %s", lib)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(lib string, data []byte) ([]byte, error) {
	var out bytes.Buffer
	switch lib {
	case "deflate":
		reader := flate.NewReader(bytes.NewReader(data))
		defer reader.Close()
		if _, err := io.Copy(&out, reader); err != nil {
			return nil, err
		}
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()
		if _, err := io.Copy(&out, reader); err != nil {
			return nil, fmt.Errorf("gzip decompression failed: %w", err)
		}
	case "zstd":
		reader, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		if _, err := io.Copy(&out, reader); err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported compression: %s", lib)
	}
	return out.Bytes(), nil
}
