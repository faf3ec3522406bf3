package bcode

import (
	"encoding/binary"
	"fmt"

	"github.com/informatter/v7go/internal/value"
	"github.com/informatter/v7go/internal/varint"
)

// Bcode is one compiled function body (or the top-level script), shared by
// every call to it — spec §3.4: "Shared between all instances of the same
// function; freed when refcount reaches zero." Go's garbage collector
// reclaims a Bcode once nothing references it, so Refcount here is kept
// only as an observability counter (surfaced for debugging/tests), not as
// the actual memory-management mechanism the original engine needs it for.
type Bcode struct {
	Ops  []byte
	Lits []value.Val

	// Functions holds every nested function body declared within this one,
	// in declaration order; FUNC_LIT's operand indexes into this slice
	// rather than Lits, since a function body is a *Bcode, not a value.Val
	// (the val a FUNC_LIT instruction ultimately pushes is only minted at
	// runtime, once internal/vm has an object arena to allocate a function
	// object's Handle from).
	Functions []*Bcode

	// Names holds, in order, the function name (if HasFuncName), then
	// parameter names, then local variable names — spec §3.4's names
	// section, which precedes Ops on the wire (internal/bcode/format.go)
	// but is kept as a separate slice in memory for O(1) indexed lookup
	// by GET_VAR/SET_VAR's varint operand.
	Names   []string
	NumArgs int

	Strict       bool
	Frozen       bool
	OpsInROM     bool
	Deserialized bool
	HasFuncName  bool
	Filename     string

	Refcount int
}

func (b *Bcode) AddRef()  { b.Refcount++ }
func (b *Bcode) Release() { b.Refcount-- }

// NameIndex returns the index of name within Names, or -1. GET_VAR/SET_VAR
// operands are resolved through this at compile time; the VM itself only
// ever sees the already-resolved varint index.
func (b *Bcode) NameIndex(name string) int {
	for i, n := range b.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Builder incrementally emits a Bcode's instruction stream, generalizing
// the teacher's compiler.MakeInstruction (single OP_CONSTANT, fixed
// 2-byte operand) to the full opcode set of spec §4.6: fixed-width
// operands for jump targets (uint32) and call arity (uint8), and varint
// operands for literal/name table indices, matching the AST builder's own
// varint-prefixed inline blobs for a consistent on-disk story.
type Builder struct {
	bc *Bcode
}

func NewBuilder() *Builder {
	return &Builder{bc: &Bcode{}}
}

// Emit appends one instruction and returns the offset of its opcode byte
// (for later back-patching, e.g. of a forward jump).
func (b *Builder) Emit(op Opcode, operands ...int) int {
	def, err := Get(op)
	if err != nil {
		panic(err) // compiler bug: only internal/compiler calls this, with a fixed opcode set
	}
	pos := len(b.bc.Ops)
	b.bc.Ops = append(b.bc.Ops, byte(op))
	for i, width := range def.OperandWidths {
		operand := operands[i]
		switch width {
		case 0: // varint
			b.bc.Ops = varint.Put(b.bc.Ops, uint64(operand))
		case 1:
			b.bc.Ops = append(b.bc.Ops, byte(operand))
		case 4:
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], uint32(operand))
			b.bc.Ops = append(b.bc.Ops, buf[:]...)
		default:
			panic(fmt.Sprintf("bcode: unsupported operand width %d", width))
		}
	}
	return pos
}

// EmitLine prefixes the next instruction with a line-number record: a
// byte with the high bit set followed by a varint encoding
// (line<<1)|1 — spec §4.6's exact scheme, letting the VM distinguish a
// line record from an opcode by that single reserved bit.
func (b *Builder) EmitLine(line int) {
	b.bc.Ops = append(b.bc.Ops, lineNoFlag)
	b.bc.Ops = varint.Put(b.bc.Ops, uint64(line)<<1|1)
}

// PatchJump overwrites the 4-byte absolute jump target operand of the
// instruction at pos (which must be one of the JMP* family) with target.
// The operand begins immediately after the one-byte opcode.
func (b *Builder) PatchJump(pos, target int) {
	binary.BigEndian.PutUint32(b.bc.Ops[pos+1:pos+5], uint32(target))
}

// PatchOperand overwrites the operandIndex-th 4-byte operand of the
// instruction at pos with value — used for TRY_PUSH_LOOP's break/continue
// pair, where PatchJump's "first and only operand" assumption doesn't hold.
func (b *Builder) PatchOperand(pos, operandIndex int, value int) {
	def, err := Get(Opcode(b.bc.Ops[pos]))
	if err != nil {
		panic(err)
	}
	off := pos + 1
	for i := 0; i < operandIndex; i++ {
		off += operandWidth(def.OperandWidths[i], b.bc.Ops[off:])
	}
	binary.BigEndian.PutUint32(b.bc.Ops[off:off+4], uint32(value))
}

func operandWidth(width int, rest []byte) int {
	if width != 0 {
		return width
	}
	_, n := varint.Get(rest)
	return n
}

// Pos reports the offset the next Emit call will write to — used by the
// compiler to compute backward jump targets (loop heads) before the
// corresponding forward jump exists to patch.
func (b *Builder) Pos() int { return len(b.bc.Ops) }

// AddLit appends v to the literal table and returns its index, for a
// subsequent PUSH_LIT operand — spec §4.6's bcode_add_lit (FUNC_LIT
// indexes AddFunction's table instead).
// Non-inlineable values (strings and most numbers once the literal
// table approach is chosen over the inline-tag fast path) go here;
// internal/compiler decides which, per spec's "inlineable vs. table"
// split.
func (b *Builder) AddLit(v value.Val) int {
	b.bc.Lits = append(b.bc.Lits, v)
	return len(b.bc.Lits) - 1
}

// AddName appends name to the names section and returns its index,
// tracking function/parameter/local name order per spec §3.4.
func (b *Builder) AddName(name string) int {
	b.bc.Names = append(b.bc.Names, name)
	return len(b.bc.Names) - 1
}

// AddFunction registers a compiled nested function body and returns the
// index a FUNC_LIT instruction should reference.
func (b *Builder) AddFunction(child *Bcode) int {
	b.bc.Functions = append(b.bc.Functions, child)
	return len(b.bc.Functions) - 1
}

func (b *Builder) SetNumArgs(n int)      { b.bc.NumArgs = n }
func (b *Builder) SetStrict(v bool)      { b.bc.Strict = v }
func (b *Builder) SetHasFuncName(v bool) { b.bc.HasFuncName = v }
func (b *Builder) SetFilename(f string)  { b.bc.Filename = f }

// Finish freezes the builder into its Bcode, matching the "frozen flag"
// spec §3.4 names: once finished, internal/compiler must not mutate Ops
// or Lits further (a fresh Builder is used for a nested function).
func (b *Builder) Finish() *Bcode {
	b.bc.Frozen = true
	return b.bc
}
