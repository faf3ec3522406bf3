package ast

import (
	"bytes"
	"fmt"
)

// Signature is the on-disk AST stream's magic prefix (spec §6.3).
const Signature = "V\x07ASTV10"

// largeAST marks the byte following Signature. Spec §6.3 narrows skips to
// 16 bits unless the "large AST" build flag is set, widening them to 32
// bits past that threshold. Builder (see its skipWidth doc comment) always
// reserves 4-byte skip slots in memory regardless of tree size, the same
// simplification internal/bcode's on-disk writer documents for its literal
// section — so this format always writes the large-AST flag rather than
// repacking a variable-width buffer after the fact.
const largeAST = 1

// Write serializes t per spec §6.3: signature, a one-byte large-AST flag,
// then the packed node bytes produced by Builder verbatim.
func Write(t *Tree) []byte {
	buf := make([]byte, 0, len(Signature)+1+len(t.buf))
	buf = append(buf, Signature...)
	buf = append(buf, largeAST)
	buf = append(buf, t.buf...)
	return buf
}

// Read parses a stream produced by Write. The large-AST flag is checked
// for well-formedness but otherwise ignored: every skip Builder ever wrote
// is 4 bytes wide (see largeAST's doc comment), so there is no narrow
// encoding to re-widen.
func Read(data []byte) (*Tree, error) {
	if !bytes.HasPrefix(data, []byte(Signature)) {
		return nil, fmt.Errorf("ast: bad signature")
	}
	data = data[len(Signature):]
	if len(data) < 1 {
		return nil, fmt.Errorf("ast: truncated large-AST flag")
	}
	if data[0] != largeAST {
		return nil, fmt.Errorf("ast: unsupported AST build flag %d", data[0])
	}
	data = data[1:]
	return &Tree{buf: append([]byte(nil), data...)}, nil
}
