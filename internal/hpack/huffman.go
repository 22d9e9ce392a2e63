package hpack

import "fmt"

const eosSymbol = 256

// huffmanNode is one node of the decoding tree. Nodes live in a single
// arena and refer to their children by index; index 0 is the root, so a
// zero child means "no child".
type huffmanNode struct {
	children [2]uint16
	sym      uint16
	leaf     bool
}

var huffmanTree []huffmanNode

func init() {
	huffmanTree = buildHuffmanTree()
}

func buildHuffmanTree() []huffmanNode {
	nodes := make([]huffmanNode, 1, 2*(eosSymbol+1)-1)
	insert := func(sym uint16, code uint32, length uint8) {
		cur := uint16(0)
		for i := int(length) - 1; i >= 0; i-- {
			bit := (code >> uint(i)) & 1
			next := nodes[cur].children[bit]
			if next == 0 {
				nodes = append(nodes, huffmanNode{})
				next = uint16(len(nodes) - 1)
				nodes[cur].children[bit] = next
			}
			cur = next
		}
		nodes[cur].leaf = true
		nodes[cur].sym = sym
	}

	for sym := range huffmanCodes {
		insert(uint16(sym), huffmanCodes[sym], huffmanCodeLen[sym])
	}
	insert(eosSymbol, huffmanEOS, huffmanEOSLen)
	return nodes
}

// HuffmanEncodedLen is the number of octets s occupies once Huffman coded
// and padded.
func HuffmanEncodedLen(s string) int {
	bits := 0
	for i := 0; i < len(s); i++ {
		bits += int(huffmanCodeLen[s[i]])
	}
	return (bits + 7) / 8
}

// AppendHuffman appends the padded Huffman coding of s to dst.
func AppendHuffman(dst []byte, s string) []byte {
	w := bitWriter{buf: dst}
	w.writeHuffman(s)
	return w.bytes()
}

func (w *bitWriter) writeHuffman(s string) {
	for i := 0; i < len(s); i++ {
		w.writeBits(uint64(huffmanCodes[s[i]]), huffmanCodeLen[s[i]])
	}
	w.pad()
}

// HuffmanDecode decodes exactly the octets in src. Trailing bits are only
// accepted as padding when there are at most 7 of them and all are ones.
func HuffmanDecode(src []byte) (string, error) {
	dst, err := appendHuffmanDecode(make([]byte, 0, len(src)*8/5+1), src)
	if err != nil {
		return "", err
	}
	return string(dst), nil
}

func appendHuffmanDecode(dst []byte, src []byte) ([]byte, error) {
	cur := uint16(0)
	depth := 0
	ones := true
	for _, b := range src {
		for i := 7; i >= 0; i-- {
			bit := (b >> uint(i)) & 1
			cur = huffmanTree[cur].children[bit]
			if cur == 0 {
				return nil, fmt.Errorf("%w: invalid code", ErrMalformedHuffman)
			}
			depth++
			if bit == 0 {
				ones = false
			}

			n := &huffmanTree[cur]
			if !n.leaf {
				continue
			}
			if n.sym == eosSymbol {
				return nil, fmt.Errorf("%w: EOS inside string", ErrMalformedHuffman)
			}
			dst = append(dst, byte(n.sym))
			cur, depth, ones = 0, 0, true
		}
	}

	if depth > 7 {
		return nil, fmt.Errorf("%w: %d bits of padding", ErrMalformedHuffman, depth)
	}
	if !ones {
		return nil, fmt.Errorf("%w: padding is not an EOS prefix", ErrMalformedHuffman)
	}
	return dst, nil
}
