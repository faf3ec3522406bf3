package ast

import (
	"encoding/binary"

	"github.com/informatter/v7go/internal/varint"
)

// skipWidth is the byte width of every reserved skip slot. The builder
// always reserves 4-byte slots while constructing a tree in memory — unlike
// the original's small/large AST split (spec §6.3's ASTV10 header flag),
// which narrows skips to 2 bytes when the whole tree fits, Go's builder
// does not know the final tree size until every node has been appended, and
// repacking a variable-width buffer after the fact means re-deriving every
// already-patched skip. No layer narrows them afterwards: internal/ast's
// own Write (format.go) keeps the 4-byte width and always sets the
// large-AST flag.
const skipWidth = 4

// maxTreeSize bounds what a 4-byte skip can address. Exceeding it is the
// "script too large" condition of spec §4.3's skip-overflow flag.
const maxTreeSize = 1<<32 - 1

// Builder builds a packed AST buffer. StartNode appends a node's header at
// the current end of the buffer, while InsertBefore and WriteInline splice
// bytes in ahead of already-emitted ones (see their doc comments); skip
// slots are zero until patched by SetSkip/End, which is always
// legal once the target position exists, since skip targets are always
// at-or-after the node that reserves them.
type Builder struct {
	buf      []byte
	overflow bool
}

func NewBuilder() *Builder { return &Builder{} }

// Pos reports the offset the next StartNode call will use.
func (b *Builder) Pos() int { return len(b.buf) }

// StartNode appends tag's one-byte header (plus an optional varint line
// number when line > 0) and reserves its skip slots, per spec §3.5's node
// layout: [tag][lineno?][skips...]. It returns the node's start position,
// to be passed to WriteInline, SetSkip, End, and as a child's parent
// reference.
func (b *Builder) StartNode(tag Tag, line int) int {
	return b.insertNode(len(b.buf), tag, line)
}

// InsertBefore splices a new tag's header in front of the subtree that
// starts at childPos, turning that already-emitted subtree into the new
// node's first child. This is how operator-precedence climbing builds a
// Binary/Logical/Assign/Conditional/Member/Index/Call/New/Update/Sequence
// node: the parser only discovers it needs a wrapping node once the left
// operand has already been fully parsed and appended, which an
// append-only buffer cannot express directly.
//
// childPos must be the position of the most recently closed subtree, with
// nothing appended since. Every skip recorded anywhere in the buffer
// before this call has a target at-or-before childPos (earlier nodes can
// only ever point at positions that existed when they were closed, and
// construction is strictly left-to-right apart from these tail wraps), so
// splicing bytes in at childPos never invalidates an already-patched skip
// belonging to a node outside the subtree being wrapped. Skips belonging
// to nodes inside the wrapped subtree stay correct too, since both the
// skip's owning node and its target shift by the same amount.
func (b *Builder) InsertBefore(childPos int, tag Tag) int {
	return b.insertNode(childPos, tag, 0)
}

func (b *Builder) insertNode(at int, tag Tag, line int) int {
	var head []byte
	h := byte(tag)
	if line > 0 {
		h |= 0x80
	}
	head = append(head, h)
	if line > 0 {
		head = varint.Put(head, uint64(line))
	}
	n := Describe(tag).NumSkips
	for i := 0; i < n; i++ {
		head = append(head, 0, 0, 0, 0)
	}
	b.splice(at, head)
	return at
}

// splice inserts data into the buffer at position at, shifting everything
// from at onward to the right. At == len(buf) degenerates to a plain
// append.
func (b *Builder) splice(at int, data []byte) {
	b.buf = append(b.buf, data...)
	copy(b.buf[at+len(data):], b.buf[at:len(b.buf)-len(data)])
	copy(b.buf[at:], data)
	if len(b.buf) > maxTreeSize {
		b.overflow = true
	}
}

// WriteInline splices the varint-length-prefixed inline byte blob for the
// node at nodePos, whose descriptor has HasInline set. It may be called
// right after StartNode/InsertBefore (before any children exist, so the
// splice point coincides with the buffer's current end and this degrades
// to an append) or, for Update/Binary/Logical/Assign nodes synthesized
// around an already-parsed operand via InsertBefore, after that operand's
// bytes already occupy the position the inline blob belongs at — in which
// case the blob is spliced in ahead of them instead.
func (b *Builder) WriteInline(nodePos int, data []byte) {
	var blob []byte
	blob = varint.Put(blob, uint64(len(data)))
	blob = append(blob, data...)
	b.splice(b.headerEnd(nodePos), blob)
}

// headerEnd returns the position just past nodePos's fixed header (tag +
// optional lineno + reserved skip slots), i.e. where its inline blob (if
// any) or first child begins.
func (b *Builder) headerEnd(nodePos int) int {
	return b.skipOffset(nodePos, Describe(b.TagAt(nodePos)).NumSkips)
}

// TagAt reads back the tag of the node at pos, stripping the line-number
// flag bit. Callers use this to tell, after the fact, which kind of node
// an operand turned out to be — e.g. whether a left-hand side is itself
// already an Assign node when climbing right-associative assignment.
func (b *Builder) TagAt(pos int) Tag { return Tag(b.buf[pos] &^ 0x80) }

// linenoLen returns the number of bytes occupied by nodePos's optional
// line-number varint (0 if it has none).
func (b *Builder) linenoLen(nodePos int) int {
	if b.buf[nodePos]&0x80 == 0 {
		return 0
	}
	_, n := varint.Get(b.buf[nodePos+1:])
	return n
}

func (b *Builder) skipOffset(nodePos, which int) int {
	return nodePos + 1 + b.linenoLen(nodePos) + which*skipWidth
}

// SetSkip patches skip slot `which` of the node at nodePos with a relative
// offset to target (spec §3.1 GLOSSARY: "Skip: a relative byte offset").
func (b *Builder) SetSkip(nodePos, which, target int) {
	rel := target - nodePos
	if rel < 0 {
		b.overflow = true
		rel = 0
	}
	off := b.skipOffset(nodePos, which)
	binary.BigEndian.PutUint32(b.buf[off:off+4], uint32(rel))
}

// End patches the node's End skip (slot 0) to the current write cursor,
// i.e. just past everything emitted for this node's subtree so far.
func (b *Builder) End(nodePos int) {
	b.SetSkip(nodePos, SkipEnd, len(b.buf))
}

// ModifyTag rewrites the tag byte of the node at nodePos to newTag,
// preserving its line-number flag bit. This is the mechanism spec §4.4
// describes for promoting a parsed `for` header to `for-in` once the
// parser discovers the `in` keyword after the initializer: the node's
// header layout must be identical between the two tags (For and ForIn
// share the same NumSkips and neither carries an inline blob). Their
// subtree counts differ (4 for For, 3 for ForIn), so the parser promotes
// the node before writing any subtree, and the compiler dispatches on the
// rewritten tag.
func (b *Builder) ModifyTag(nodePos int, newTag Tag) {
	b.buf[nodePos] = b.buf[nodePos]&0x80 | byte(newTag)
}

// Overflowed reports whether the tree exceeded the largest offset a skip
// slot can represent — spec §4.3's "script too large" SYNTAX_ERROR.
func (b *Builder) Overflowed() bool { return b.overflow }

// Finish freezes the builder into a read-only Tree.
func (b *Builder) Finish() (*Tree, error) {
	if b.overflow {
		return nil, ErrTooLarge
	}
	return &Tree{buf: b.buf}, nil
}
