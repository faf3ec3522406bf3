package vm

import (
	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// NewObject allocates a plain object whose prototype is proto (pass
// value.Null() for a bare object with no inherited properties) — the
// host-facing counterpart to CREATE_OBJ, for pkg/v7's mk_object.
func (vm *VM) NewObject(proto value.Val) value.Val {
	ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: proto})
	return value.Object(value.Handle(ref))
}

// NewArray allocates a dense array seeded with elems — the host-facing
// counterpart to CREATE_ARR, for pkg/v7's mk_array.
func (vm *VM) NewArray(elems []value.Val) value.Val {
	ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{
		Proto:      value.Null(),
		Flags:      gcarena.FlagDenseArray,
		DenseElems: append([]value.Val(nil), elems...),
	})
	return value.Object(value.Handle(ref))
}

// MkString interns s into the VM's string heap, owned (spec §4.1's
// owned-vs-foreign split) since a host-supplied Go string has no stable
// backing buffer the string heap could alias instead.
func (vm *VM) MkString(s string) value.Val {
	return vm.Heap.Strings.MkString([]byte(s), true)
}

// GetProperty, SetProperty, DeleteProperty, and HasProperty expose the
// GET/SET/DELETE/IN opcodes' implementations directly to a host embedder
// (spec §6.1's get_*/mk_* property surface), without going through
// compiled bytecode.
func (vm *VM) GetProperty(obj, key value.Val) (value.Val, error) { return vm.getProperty(obj, key) }
func (vm *VM) SetProperty(obj, key, val value.Val) error         { return vm.setProperty(obj, key, val) }
func (vm *VM) DeleteProperty(obj, key value.Val) (value.Val, error) {
	return vm.deleteProperty(obj, key, false)
}
func (vm *VM) HasProperty(obj, key value.Val) bool { return vm.hasProperty(obj, key) }

// ToDisplayString, ToNumber, Truthy, TypeOf, and StrictEquals expose the
// coercion helpers coerce.go builds for the VM's own opcodes (ADD,
// TYPEOF, EQ_EQ, ...) so a host can format/coerce a value the same way a
// running script would.
func (vm *VM) ToDisplayString(v value.Val) string   { return vm.toDisplayString(v) }

// ErrorMessage exposes errorMessage to a host reporting an uncaught
// exception (spec §7's EXEC_EXCEPTION), e.g. cmd/v7's non-REPL run path.
func (vm *VM) ErrorMessage(v value.Val) string { return vm.errorMessage(v) }
func (vm *VM) ToNumber(v value.Val) float64         { return vm.toNumber(v) }
func (vm *VM) Truthy(v value.Val) bool              { return vm.truthy(v) }
func (vm *VM) TypeOf(v value.Val) string            { return vm.typeOf(v) }
func (vm *VM) StrictEquals(a, b value.Val) bool     { return vm.strictEquals(a, b) }

// Apply invokes fn as a script would via CALL (spec §6.1's apply(engine,
// func, this, args)), reusing the same dispatch CALL/NEW build on —
// callValue only ever reads its execState receiver's vm field, so a
// bare, stack-less execState is a faithful stand-in for a host-initiated
// call that isn't nested inside a running script.
func (vm *VM) Apply(fn, this value.Val, args []value.Val) (value.Val, error) {
	s := &execState{vm: vm}
	return s.callValue(fn, this, args)
}
