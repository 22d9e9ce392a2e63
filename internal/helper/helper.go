package helper

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"hpackcodec/internal/hpack"
)

const maxLineLen = 1 << 20

// NeverIndexMarker in front of a header line marks the field as never indexed.
const NeverIndexMarker = '!'

func ReadUntil(r *bytes.Reader, c byte) ([]byte, error) {
	var rBytes []byte
	rByte, err := r.ReadByte()

	for err != io.EOF && rByte != c {
		if err != nil {
			return rBytes, err
		}

		rBytes = append(rBytes, rByte)
		rByte, err = r.ReadByte()
	}

	return rBytes, nil
}

// ParseHeaderLine reads "name: value". The name of a pseudo-header keeps its
// leading colon.
func ParseHeaderLine(line string) (hpack.HeaderField, error) {
	var hf hpack.HeaderField
	if line != "" && line[0] == NeverIndexMarker {
		hf.NeverIndex = true
		line = line[1:]
	}

	r := bytes.NewReader([]byte(line))
	var name []byte
	if strings.HasPrefix(line, ":") {
		_, _ = r.ReadByte()
		name = []byte{':'}
	}
	rest, err := ReadUntil(r, ':')
	if err != nil {
		return hf, err
	}
	name = append(name, rest...)
	if r.Len() == 0 && len(name) == len(line) {
		return hf, fmt.Errorf("header line %q: missing ':'", line)
	}
	if len(bytes.TrimSpace(name)) == 0 {
		return hf, fmt.Errorf("header line %q: empty name", line)
	}

	value := line[len(line)-r.Len():]
	hf.Name = string(bytes.TrimSpace(name))
	hf.Value = strings.TrimPrefix(value, " ")
	return hf, nil
}

// isComment reports whether line is "#" or starts with "# ". A header name
// may itself start with '#'.
func isComment(line string) bool {
	return line == "#" || strings.HasPrefix(line, "# ")
}

// ParseHeaderBlocks reads header lines; a blank line ends a block. Lines
// that are "#" or start with "# " are comments.
func ParseHeaderBlocks(r io.Reader) ([][]hpack.HeaderField, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)

	var blocks [][]hpack.HeaderField
	var current []hpack.HeaderField
	inBlock := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if isComment(line) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if inBlock {
				blocks = append(blocks, current)
				current = nil
				inBlock = false
			}
			continue
		}

		hf, err := ParseHeaderLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		current = append(current, hf)
		inBlock = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inBlock {
		blocks = append(blocks, current)
	}
	return blocks, nil
}

func FormatHeaderBlock(w io.Writer, fields []hpack.HeaderField) error {
	for _, hf := range fields {
		prefix := ""
		if hf.NeverIndex {
			prefix = string(NeverIndexMarker)
		}
		if _, err := fmt.Fprintf(w, "%s%s: %s\n", prefix, hf.Name, hf.Value); err != nil {
			return err
		}
	}
	return nil
}

// ParseHexBlocks reads one hex encoded header block per line. Spaces inside
// a line are ignored, so RFC style "8286 8441" dumps can be pasted as is.
func ParseHexBlocks(r io.Reader) ([][]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)

	var blocks [][]byte
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.Join(strings.Fields(scanner.Text()), "")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		block, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		blocks = append(blocks, block)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}
