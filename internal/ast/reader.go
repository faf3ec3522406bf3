package ast

import (
	"encoding/binary"

	"github.com/informatter/v7go/internal/varint"
)

// Tree is a finished, read-only packed AST buffer. Every traversal method
// is position-based (a byte offset into Bytes()) rather than object-based,
// mirroring the original's fetch_tag/move_to_children/get_skip/skip_tree
// primitives (spec §4.3) — internal/compiler walks a Tree exactly the way
// the original's bcode compiler walks ast_off_t offsets.
type Tree struct {
	buf []byte
}

// Root returns the position of the tree's single root node (always a
// Script node for a parsed program).
func (t *Tree) Root() int { return 0 }

func (t *Tree) Bytes() []byte { return t.buf }
func (t *Tree) Len() int      { return len(t.buf) }

func (t *Tree) tagAt(pos int) Tag { return Tag(t.buf[pos] &^ 0x80) }

// Tag returns the node tag at pos (fetch_tag).
func (t *Tree) Tag(pos int) Tag { return t.tagAt(pos) }

func (t *Tree) linenoLen(pos int) int {
	if t.buf[pos]&0x80 == 0 {
		return 0
	}
	_, n := varint.Get(t.buf[pos+1:])
	return n
}

// Line returns the line number recorded at pos, or 0 if the node carries
// none (the parser only stamps a node when its line differs from the
// previous one emitted).
func (t *Tree) Line(pos int) int {
	if t.buf[pos]&0x80 == 0 {
		return 0
	}
	v, _ := varint.Get(t.buf[pos+1:])
	return int(v)
}

func (t *Tree) headerLen(pos int) int {
	return 1 + t.linenoLen(pos) + Describe(t.tagAt(pos)).NumSkips*skipWidth
}

func (t *Tree) inlineAt(pos int) (data []byte, after int) {
	desc := Describe(t.tagAt(pos))
	start := pos + t.headerLen(pos)
	if !desc.HasInline {
		return nil, start
	}
	l, n := varint.Get(t.buf[start:])
	data = t.buf[start+n : start+n+int(l)]
	after = start + n + int(l)
	return data, after
}

// Inline returns the node's inline byte blob (its identifier text, string
// literal contents, numeric literal text, operator code bytes, etc.), or
// nil if the tag carries none.
func (t *Tree) Inline(pos int) []byte {
	data, _ := t.inlineAt(pos)
	return data
}

// FirstChild returns the position immediately past pos's header and
// inline blob — move_to_children — where its first subtree (fixed or
// open-ended) begins.
func (t *Tree) FirstChild(pos int) int {
	_, after := t.inlineAt(pos)
	return after
}

// GetSkip resolves skip slot `which` of the node at pos to an absolute
// position (get_skip).
func (t *Tree) GetSkip(pos, which int) int {
	off := pos + 1 + t.linenoLen(pos) + which*skipWidth
	rel := binary.BigEndian.Uint32(t.buf[off : off+4])
	return pos + int(rel)
}

// End returns the position immediately past pos's entire subtree
// (skip_tree, using the universally-reserved End skip at slot 0).
func (t *Tree) End(pos int) int { return t.GetSkip(pos, SkipEnd) }

// Subtree returns the position of pos's i-th fixed subtree (0-based),
// walking sibling Ends rather than assuming fixed node sizes.
func (t *Tree) Subtree(pos, i int) int {
	cur := t.FirstChild(pos)
	for n := 0; n < i; n++ {
		cur = t.End(cur)
	}
	return cur
}

// Children returns the positions of every node in pos's open-ended child
// sequence (the statements of a Block/Script, the elements of an
// ArrayLit, the arguments of a Call, ...), which always follows any fixed
// subtrees the tag's descriptor declares.
func (t *Tree) Children(pos int) []int {
	desc := Describe(t.tagAt(pos))
	if !desc.OpenEnded {
		return nil
	}
	cur := t.FirstChild(pos)
	for i := 0; i < desc.NumSubtrees; i++ {
		cur = t.End(cur)
	}
	end := t.End(pos)
	var out []int
	for cur < end {
		out = append(out, cur)
		cur = t.End(cur)
	}
	return out
}
