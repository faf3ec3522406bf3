package vm

import (
	"fmt"
	"strings"

	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// newError allocates a plain object with `name`, `message`, and `stack`
// own properties, the shape every thrown runtime error takes (spec §7).
// `stack` is built from vm.callNames, the display-name trail CALL/NEW/Run
// maintain across nested activations — the closest Go-native analogue of
// the teacher's panic/recover message propagation (interpreter.go's
// `Interpret`), reified as a real script-visible value instead of a
// stdout-printed string.
func (vm *VM) newError(kind, message string) value.Val {
	ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: value.Null()})
	obj := value.Object(value.Handle(ref))
	_ = vm.setOwnProperty(obj, "name", vm.Heap.Strings.MkString([]byte(kind), true), gcarena.AttrWritable|gcarena.AttrEnumerable)
	_ = vm.setOwnProperty(obj, "message", vm.Heap.Strings.MkString([]byte(message), true), gcarena.AttrWritable|gcarena.AttrEnumerable)
	stack := kind + ": " + message
	for i := len(vm.callNames) - 1; i >= 0; i-- {
		stack += "\n    at " + vm.callNames[i]
	}
	_ = vm.setOwnProperty(obj, "stack", vm.Heap.Strings.MkString([]byte(stack), true), gcarena.AttrWritable|gcarena.AttrEnumerable)
	return obj
}

func (vm *VM) typeError(format string, args ...any) value.Val {
	return vm.newError("TypeError", fmt.Sprintf(format, args...))
}

func (vm *VM) referenceError(format string, args ...any) value.Val {
	return vm.newError("ReferenceError", fmt.Sprintf(format, args...))
}

func (vm *VM) rangeError(format string, args ...any) value.Val {
	return vm.newError("RangeError", fmt.Sprintf(format, args...))
}

func (vm *VM) syntaxError(format string, args ...any) value.Val {
	return vm.newError("SyntaxError", fmt.Sprintf(format, args...))
}

func (vm *VM) evalError(format string, args ...any) value.Val {
	return vm.newError("EvalError", fmt.Sprintf(format, args...))
}

// internalErrorf reports an engine-side fault (corrupt bytecode, arena
// misuse) that no script-level try/catch should be able to intercept —
// unlike the error-kind constructors above, this is a plain Go error, not a
// thrown script value.
func (vm *VM) internalErrorf(format string, args ...any) error {
	return fmt.Errorf("vm: internal error: %s", fmt.Sprintf(format, args...))
}

// errorMessage extracts a thrown value's displayable message, for a host
// boundary that needs to report an uncaught exception (spec §7's
// EXEC_EXCEPTION path) without re-entering the VM.
func (vm *VM) errorMessage(v value.Val) string {
	if v.Tag() == value.TagObject {
		if msg, err := vm.getProperty(v, vm.Heap.Strings.MkString([]byte("message"), true)); err == nil && !msg.IsUndefined() {
			return vm.toDisplayString(msg)
		}
	}
	return vm.toDisplayString(v)
}

// UncaughtError reports whether err carries a thrown script value that
// escaped every try/catch and returns that value if so, e.g. for pkg/v7's
// Exec/Apply, which keep it for ThrownValue.
func (vm *VM) UncaughtError(err error) (value.Val, bool) {
	if th, ok := err.(*jsThrow); ok {
		return th.val, true
	}
	return value.Undefined(), false
}

func (vm *VM) isInternal(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "vm: internal error:")
}

// NewError, TypeError, ReferenceError, RangeError, SyntaxError, and
// EvalError expose the error-kind constructors above for a host package
// (pkg/v7) assembling a value.Val to hand back through Throw, without
// reaching into this package's unexported helpers.
func (vm *VM) NewError(kind, message string) value.Val      { return vm.newError(kind, message) }
func (vm *VM) TypeError(format string, a ...any) value.Val   { return vm.typeError(format, a...) }
func (vm *VM) ReferenceError(format string, a ...any) value.Val {
	return vm.referenceError(format, a...)
}
func (vm *VM) RangeError(format string, a ...any) value.Val  { return vm.rangeError(format, a...) }
func (vm *VM) SyntaxError(format string, a ...any) value.Val { return vm.syntaxError(format, a...) }
func (vm *VM) EvalError(format string, a ...any) value.Val   { return vm.evalError(format, a...) }

// Throw wraps val as the error a CFunc returns to signal a script-visible
// exception (spec §6.1's throw(engine, val)) — the host-facing counterpart
// to the jsThrow internal/vm's own opcodes build for THROW.
func Throw(val value.Val) error { return &jsThrow{val} }

// Throwf is the formatted-message convenience spec §6.1 names throwf,
// built on NewError/Throw.
func (vm *VM) Throwf(kind, format string, a ...any) error {
	return Throw(vm.newError(kind, fmt.Sprintf(format, a...)))
}

// Rethrow re-signals an error a CFunc received from a nested call or
// Engine.Apply, unchanged. It exists only for symmetry with spec §6.1's
// rethrow(engine) — in this Go-native design errors already propagate
// through ordinary return values, so there is nothing to re-derive.
func Rethrow(err error) error { return err }
