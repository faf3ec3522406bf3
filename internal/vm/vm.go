// Package vm executes internal/bcode bytecode against internal/gcarena's
// object heap, generalizing the teacher's vm/vm.go (a two-opcode stack
// machine with no call frames, scope chain, or try-stack of its own) into
// the full stack-based ES5 VM spec §3.4/§4.6-§4.8 describe.
package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/strheap"
	"github.com/informatter/v7go/internal/value"
)

// CFunc is a host function exposed to scripts as a callable value, the Go
// side of spec §6.1's embedding surface (pkg/v7 registers these; internal/vm
// only needs to invoke them by handle).
type CFunc func(this value.Val, args []value.Val) (value.Val, error)

// VM ties one gcarena.Heap to the CFunc registry and GC bookkeeping needed
// to run compiled programs. A single VM can run any number of Bcode
// programs/calls in sequence, sharing one heap across them (spec §4.1's
// "string heap and object arenas are program-wide resources").
type VM struct {
	Heap   *gcarena.Heap
	Global value.Val // the root scope object, Proto == Null()

	cfuncs []CFunc

	// active holds every execState currently on the Go call stack (CALL/NEW
	// recurse into a nested runFrame), so a GC pass triggered mid-execution
	// can enumerate every live data-stack slot as a root (spec §4.2 R1).
	active []*execState

	// callNames mirrors active, one display name per frame, for Error.stack
	// construction (spec §7's per-exception stack string).
	callNames []string

	// enumCursors tracks each in-progress for-in's enumeration position by
	// object handle, consumed/advanced by NEXT_PROP (compileForIn's DUP +
	// NEXT_PROP contract in internal/compiler/stmt.go).
	enumCursors map[value.Handle]*enumCursor

	instrSinceGC int

	// interrupted is set by Interrupt (spec §6.1's interrupt(engine)) and
	// polled once per instruction in execState.run, the same cadence
	// shouldGC is checked at. A host calls Interrupt from a signal handler
	// or a separate goroutine to abort a runaway script.
	interrupted int32

	gcEnabled bool
}

// enumCursor is one for-in loop's remaining key list and read position.
type enumCursor struct {
	keys []string
	idx  int
}

// New returns a VM with a fresh heap and a global scope object at the root
// of the scope-chain prototype walk GET_VAR/SET_VAR perform.
func New(sizes gcarena.Sizes) *VM {
	return NewWithStrings(sizes, strheap.New())
}

// NewWithStrings builds a VM against strings, the same strheap.Heap a
// Bcode's literal table was interned into at compile time
// (internal/compiler.New takes its own strheap.Heap) — without sharing it,
// an owned-string or foreign-string literal's offset would resolve against
// the wrong buffer.
func NewWithStrings(sizes gcarena.Sizes, strings *strheap.Heap) *VM {
	h := gcarena.NewWithStrings(sizes, strings)
	globalRef := h.Objects.Alloc(gcarena.ObjectCell{Proto: value.Null()})
	return &VM{Heap: h, Global: value.Object(value.Handle(globalRef)), gcEnabled: true}
}

// RegisterCFunc installs fn in the host-function registry and binds the
// callable value scripts invoke it through (spec §6.1's native binding
// surface) as a global property under name.
func (vm *VM) RegisterCFunc(name string, fn CFunc) {
	idx := len(vm.cfuncs)
	vm.cfuncs = append(vm.cfuncs, fn)
	v := value.CFunction(value.Handle(idx))
	_ = vm.setOwnProperty(vm.Global, name, v, gcarena.AttrWritable|gcarena.AttrConfigurable)
}

// StackStat reports the current Go-recursion call depth and the
// innermost frame's data-stack depth (spec §6.1's stack_stat), the
// closest analogue this architecture has to the teacher's own explicit
// value stack, since CALL/NEW recurse directly into Go's call stack
// instead of pushing frames onto a VM-owned array.
type StackStat struct {
	CallDepth     int
	TopFrameDepth int
}

func (vm *VM) StackStat() StackStat {
	stat := StackStat{CallDepth: len(vm.active)}
	if n := len(vm.active); n > 0 {
		stat.TopFrameDepth = len(vm.active[n-1].stack)
	}
	return stat
}

// HeapStat reports arena occupancy (spec §6.1's heap_stat).
func (vm *VM) HeapStat() gcarena.HeapStats { return vm.Heap.Stat() }

// Run executes a top-level Bcode (internal/compiler.CompileProgram's
// output) against the global scope and returns its completion value.
func (vm *VM) Run(bc *bcode.Bcode) (value.Val, error) {
	return vm.RunWithThis(bc, value.Undefined())
}

// RunWithThis is Run with an explicit top-level `this` binding (spec
// §6.1's exec_opt's this_obj option), for a host embedding a script that
// expects some object in place of ES5 sloppy-mode global code's default
// undefined.
func (vm *VM) RunWithThis(bc *bcode.Bcode, this value.Val) (value.Val, error) {
	vm.clearInterrupt()
	return vm.callBcode(bc, vm.Global, this, nil, "<script>")
}

// callBcode creates a fresh scope object for bc (child of scope, or Global
// directly for top-level script execution), pre-declares every name in
// bc.Names as an own property, binds params/func-name/arguments, and runs
// the body — the shared machinery behind both Run and CALL/NEW.
func (vm *VM) callBcode(bc *bcode.Bcode, closureScope value.Val, this value.Val, args []value.Val, displayName string) (value.Val, error) {
	frameScopeRef := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: closureScope})
	frameScope := value.Object(value.Handle(frameScopeRef))

	for _, name := range bc.Names {
		if err := vm.setOwnProperty(frameScope, name, value.Undefined(), gcarena.AttrWritable); err != nil {
			return value.Undefined(), err
		}
	}
	offset := 0
	if bc.HasFuncName {
		offset = 1
	}
	paramNames := bc.Names[offset:min(offset+bc.NumArgs, len(bc.Names))]
	for i, name := range paramNames {
		if i < len(args) {
			if err := vm.setOwnProperty(frameScope, name, args[i], gcarena.AttrWritable); err != nil {
				return value.Undefined(), err
			}
		}
	}

	argsArrRef := vm.Heap.Objects.Alloc(gcarena.ObjectCell{
		Proto:      value.Null(),
		Flags:      gcarena.FlagDenseArray,
		DenseElems: append([]value.Val(nil), args...),
	})
	if err := vm.setOwnProperty(frameScope, "arguments", value.Object(value.Handle(argsArrRef)), gcarena.AttrWritable); err != nil {
		return value.Undefined(), err
	}

	s := &execState{vm: vm, bc: bc, scope: frameScope, this: this}
	vm.active = append(vm.active, s)
	vm.callNames = append(vm.callNames, displayName)
	defer func() {
		vm.active = vm.active[:len(vm.active)-1]
		vm.callNames = vm.callNames[:len(vm.callNames)-1]
	}()
	return s.run()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// pendingKind tags what a try/finally unwind is in the middle of carrying
// past an intervening finally frame (spec §3.7's structured-jump contract).
type pendingKind int

const (
	pendNone pendingKind = iota
	pendThrow
	pendReturn
	pendBreak
	pendContinue
)

type pending struct {
	kind pendingKind
	val  value.Val
}

// tryTag identifies which TRY_PUSH_* instruction produced a tryEntry.
type tryTag int

const (
	tryCatch tryTag = iota
	tryFinally
	tryLoop
	trySwitch
	tryWith
)

// tryEntry reifies one active TRY_PUSH_*/ENTER_WITH frame. Loop frames are
// the only ones that need a second target (continue re-enters the condition
// check, not the loop's break target); savedScope is only ever set on a
// tryWith frame, so a break/continue/return/throw unwinding through an
// active with-body restores the enclosing scope on its way past.
type tryEntry struct {
	stackSize int
	tag       tryTag
	offset    int // break/catch/finally/switch-end target
	altOffset int // loop continue target only
	savedScope value.Val
}

// jsThrow wraps a thrown script value as a Go error so it can propagate
// through runFrame's return path and across CALL's recursive Go call stack
// until some enclosing try/catch claims it (or it reaches the host as an
// uncaught exception).
type jsThrow struct{ val value.Val }

func (e *jsThrow) Error() string { return "uncaught script exception" }

// execState is one function activation's data stack, try-stack, and
// instruction pointer — the direct analogue of spec §3.6's call frame,
// reified as Go-call-stack-nested state instead of an explicit frame array,
// since Go's own recursion already gives CALL/RET a free return address.
type execState struct {
	vm       *VM
	bc       *bcode.Bcode
	scope    value.Val
	this     value.Val
	stack    []value.Val
	tryStack []tryEntry
	pend     pending
	pc       int

	// stashed holds STASH's scratch register. UNSTASH pushes a copy without
	// clearing it (compileSwitch relies on reading it more than once per
	// STASH — see internal/compiler/stmt.go).
	stashed value.Val
}

func (s *execState) push(v value.Val) { s.stack = append(s.stack, v) }

func (s *execState) pop() value.Val {
	n := len(s.stack) - 1
	v := s.stack[n]
	s.stack = s.stack[:n]
	return v
}

func (s *execState) peek() value.Val { return s.stack[len(s.stack)-1] }

func (s *execState) truncate(size int) { s.stack = s.stack[:size] }

// raise attempts to unwind a thrown value to an enclosing catch/finally
// within this same execState; returns true if the loop should continue
// (control was redirected), false if the caller must return the exception
// up the Go call stack to whichever frame called into this one.
func (s *execState) raise(val value.Val) bool {
	return s.unwind(pendThrow, val)
}

// unwind walks the try-stack looking for a frame that intercepts action.
// Finally frames always intercept (latching action to resume once the
// finally body completes via AFTER_FINALLY); catch frames intercept only
// pendThrow; loop frames intercept pendBreak/pendContinue; switch frames
// intercept only pendBreak. An intercepting loop or switch frame stays on
// the try-stack: break lands on the TRY_POP that closes the construct, and
// continue re-enters the still-active loop. Everything else is popped and
// skipped, since a
// break/continue/return/throw passing over an unrelated frame still needs
// to unwind through it.
func (s *execState) unwind(action pendingKind, val value.Val) bool {
	for len(s.tryStack) > 0 {
		top := s.tryStack[len(s.tryStack)-1]
		s.tryStack = s.tryStack[:len(s.tryStack)-1]
		switch top.tag {
		case tryFinally:
			s.pend = pending{kind: action, val: val}
			s.truncate(top.stackSize)
			s.pc = top.offset
			return true
		case tryCatch:
			if action == pendThrow {
				s.truncate(top.stackSize)
				s.push(val)
				s.pc = top.offset
				return true
			}
		case tryLoop:
			switch action {
			case pendBreak:
				s.truncate(top.stackSize)
				s.pc = top.offset
				s.tryStack = append(s.tryStack, top) // popped by the TRY_POP at offset
				return true
			case pendContinue:
				s.truncate(top.stackSize)
				s.pc = top.altOffset
				s.tryStack = append(s.tryStack, top) // the loop is still active
				return true
			}
		case trySwitch:
			if action == pendBreak {
				s.truncate(top.stackSize)
				s.pc = top.offset
				s.tryStack = append(s.tryStack, top) // popped by the TRY_POP at offset
				return true
			}
		case tryWith:
			// never intercepts; just restores the enclosing scope on the way
			// past, then falls through to keep unwinding toward the frame that
			// actually claims action.
			s.scope = top.savedScope
		}
	}
	return false
}

// run is the instruction dispatch loop: decode one opcode at s.pc, execute
// it, advance, repeat until RET (or an uncaught throw) returns a value.
func (s *execState) run() (value.Val, error) {
	ops := s.bc.Ops
	for {
		if atomic.LoadInt32(&s.vm.interrupted) != 0 {
			return value.Undefined(), fmt.Errorf("vm: interrupted")
		}
		if s.vm.shouldGC() {
			s.vm.collect()
		}
		for s.pc < len(ops) && ops[s.pc]&lineNoFlag != 0 {
			s.pc++
			_, n := readVarint(ops[s.pc:])
			s.pc += n
		}
		if s.pc >= len(ops) {
			return value.Undefined(), fmt.Errorf("vm: fell off the end of bytecode without a RET")
		}
		op := bcode.Opcode(ops[s.pc])
		def, err := bcode.Get(op)
		if err != nil {
			return value.Undefined(), err
		}
		operandPos := s.pc + 1
		operands := make([]int, len(def.OperandWidths))
		for i, width := range def.OperandWidths {
			switch width {
			case 0:
				v, n := readVarint(ops[operandPos:])
				operands[i] = int(v)
				operandPos += n
			case 1:
				operands[i] = int(ops[operandPos])
				operandPos++
			case 4:
				operands[i] = int(be32(ops[operandPos:]))
				operandPos += 4
			}
		}
		s.pc = operandPos

		done, result, err := s.exec(op, operands)
		if err != nil {
			return value.Undefined(), err
		}
		if done {
			return result, nil
		}
	}
}

const lineNoFlag = 0x80

func readVarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (vm *VM) shouldGC() bool {
	return vm.gcEnabled && vm.Heap.Strings.FillRatio() > strheap.CompactThreshold
}

// SetGCEnabled toggles automatic collection (spec §6.1's set_gc_enabled),
// e.g. around a region a host wants to guarantee won't compact strings out
// from under a raw pointer it's holding.
func (vm *VM) SetGCEnabled(enabled bool) { vm.gcEnabled = enabled }

// Interrupt requests that the running script abort at its next
// instruction boundary (spec §6.1's interrupt(engine)). Safe to call from
// another goroutine.
func (vm *VM) Interrupt() { atomic.StoreInt32(&vm.interrupted, 1) }

func (vm *VM) clearInterrupt() { atomic.StoreInt32(&vm.interrupted, 0) }

func (vm *VM) collect() {
	var roots []value.Root
	for _, s := range vm.active {
		st := s
		for i := range st.stack {
			idx := i
			roots = append(roots, slotRoot{
				get: func() value.Val { return st.stack[idx] },
				set: func(v value.Val) { st.stack[idx] = v },
			})
		}
		scope := st
		roots = append(roots, slotRoot{
			get: func() value.Val { return scope.scope },
			set: func(v value.Val) { scope.scope = v },
		})
		roots = append(roots, slotRoot{
			get: func() value.Val { return scope.this },
			set: func(v value.Val) { scope.this = v },
		})
		for i := range st.bc.Lits {
			idx := i
			lits := st.bc
			roots = append(roots, slotRoot{
				get: func() value.Val { return lits.Lits[idx] },
				set: func(v value.Val) { lits.Lits[idx] = v },
			})
		}
	}
	roots = append(roots, slotRoot{
		get: func() value.Val { return vm.Global },
		set: func(v value.Val) { vm.Global = v },
	})
	vm.Heap.Collect(roots)
}

type slotRoot struct {
	get func() value.Val
	set func(value.Val)
}

func (r slotRoot) Get() value.Val  { return r.get() }
func (r slotRoot) Set(v value.Val) { r.set(v) }
