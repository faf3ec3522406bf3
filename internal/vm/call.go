package vm

import (
	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// ctorPropertyName hides the constructing function on a `new`-built
// instance (AttrHidden — invisible to `for...in`/`in`), the simplification
// INSTANCEOF is built on since function/regexp values carry no `.prototype`
// property list of their own (see DESIGN.md).
const ctorPropertyName = "@@ctor"

// withTargetPropertyName hides a with-statement's target object on the
// wrapper scope ENTER_WITH inserts at the front of the scope chain
// (AttrHidden, same trick as ctorPropertyName) — lookupVar/assignVar/
// deleteVar check it before treating the wrapper like an ordinary scope
// link, so a name resolves against the with-object's own full prototype
// chain (spec §4.4/§4.7) rather than just its own properties.
const withTargetPropertyName = "@@with"

// withTarget reports whether cell is an ENTER_WITH wrapper scope, returning
// its target object if so.
func (vm *VM) withTarget(cell *gcarena.ObjectCell) (value.Val, bool) {
	_, prop := vm.findOwnProperty(cell, []byte(withTargetPropertyName))
	if prop == nil {
		return value.Undefined(), false
	}
	return prop.Value, true
}

// callValue dispatches fn(this, args) to either a compiled function body or
// a registered host CFunc, returning RET's value or a propagating error
// (*jsThrow for a script-level exception, a plain error for an engine
// fault). It does not touch s's data stack or try-stack; doCall/doNew own
// that.
func (s *execState) callValue(fn, this value.Val, args []value.Val) (value.Val, error) {
	vm := s.vm
	switch fn.Tag() {
	case value.TagFunction:
		cell, err := vm.Heap.Functions.Get(gcarena.Ref(fn.AsHandle()))
		if err != nil {
			return value.Undefined(), vm.internalErrorf("corrupt function handle: %v", err)
		}
		bc, ok := cell.Bcode.(*bcode.Bcode)
		if !ok {
			return value.Undefined(), vm.internalErrorf("function cell missing bytecode")
		}
		name := cell.Name
		if name == "" {
			name = "<anonymous>"
		}
		return vm.callBcode(bc, cell.Scope, this, args, name)
	case value.TagCFunction:
		idx := int(fn.AsHandle())
		if idx < 0 || idx >= len(vm.cfuncs) {
			return value.Undefined(), vm.internalErrorf("invalid native function handle %d", idx)
		}
		return vm.cfuncs[idx](this, args)
	default:
		return value.Undefined(), &jsThrow{vm.typeError("value is not a function")}
	}
}

// finishCall folds a callValue result back into this frame: a script
// exception tries this frame's try-stack first (a throw from inside a
// callee is otherwise indistinguishable from one raised directly here);
// anything else propagates up the Go call stack unchanged.
func (s *execState) finishCall(result value.Val, err error) (bool, value.Val, error) {
	if err != nil {
		if th, ok := err.(*jsThrow); ok {
			if s.raise(th.val) {
				return false, value.Undefined(), nil
			}
			return true, value.Undefined(), err
		}
		return true, value.Undefined(), err
	}
	s.push(result)
	return false, value.Undefined(), nil
}

// doCall implements CALL argc: stack holds [thisVal, fnVal, arg1..argN].
func (s *execState) doCall(argc int) (bool, value.Val, error) {
	args := make([]value.Val, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = s.pop()
	}
	fn := s.pop()
	this := s.pop()
	result, err := s.callValue(fn, this, args)
	return s.finishCall(result, err)
}

// doNew implements NEW argc: stack holds [fnVal, arg1..argN]. A fresh
// instance (Proto: Null(), no custom .prototype support) is constructed
// with fn tagged as its hidden constructor, then used as `this`; per
// ordinary JS fallback, an object-like return value from fn replaces the
// instance, otherwise the instance itself is the result.
func (s *execState) doNew(argc int) (bool, value.Val, error) {
	args := make([]value.Val, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = s.pop()
	}
	fn := s.pop()
	vm := s.vm
	if !fn.IsCallable() {
		errVal := vm.typeError("value is not a constructor")
		if s.raise(errVal) {
			return false, value.Undefined(), nil
		}
		return true, value.Undefined(), &jsThrow{errVal}
	}
	ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: value.Null()})
	instance := value.Object(value.Handle(ref))
	if err := vm.setOwnProperty(instance, ctorPropertyName, fn, gcarena.AttrHidden); err != nil {
		return false, value.Undefined(), err
	}
	result, err := s.callValue(fn, instance, args)
	if err != nil {
		if th, ok := err.(*jsThrow); ok {
			if s.raise(th.val) {
				return false, value.Undefined(), nil
			}
			return true, value.Undefined(), err
		}
		return true, value.Undefined(), err
	}
	if result.IsObjectLike() {
		s.push(result)
	} else {
		s.push(instance)
	}
	return false, value.Undefined(), nil
}

// instanceOf implements INSTANCEOF via the hidden-constructor-tag
// simplification: obj instanceof ctor holds when obj was built by `new
// ctor(...)`, i.e. carries ctorPropertyName pointing at the identical
// function handle.
func (vm *VM) instanceOf(obj, ctor value.Val) bool {
	if !obj.IsObjectLike() || !ctor.IsCallable() {
		return false
	}
	cell, ok := vm.objectCell(obj)
	if !ok {
		return false
	}
	_, prop := vm.findOwnProperty(cell, []byte(ctorPropertyName))
	if prop == nil {
		return false
	}
	return prop.Value.Tag() == ctor.Tag() && prop.Value.AsHandle() == ctor.AsHandle()
}

// lookupVar walks the scope-chain prototype link (GET_VAR's contract:
// every frame is a plain object whose Proto is its closure's captured
// scope, root scope's Proto is Null()) looking for name as an own property.
func (vm *VM) lookupVar(scope value.Val, name string) (value.Val, bool) {
	key := vm.Heap.Strings.MkString([]byte(name), true)
	cur := scope
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			return value.Undefined(), false
		}
		if target, isWith := vm.withTarget(cell); isWith && vm.hasProperty(target, key) {
			v, _ := vm.getProperty(target, key)
			return v, true
		}
		if _, prop := vm.findOwnProperty(cell, []byte(name)); prop != nil {
			return prop.Value, true
		}
		if cell.Proto.IsNull() {
			return value.Undefined(), false
		}
		cur = cell.Proto
	}
	return value.Undefined(), false
}

// assignVar implements SET_VAR's scope-chain write: the first scope object
// already owning name is updated in place; an undeclared name is created
// on the outermost scope (Proto == Null()), matching sloppy-mode implicit
// globals — every declared local/param/hoisted name was already
// pre-declared at callBcode time, so this path is only ever taken for a
// name no declaration ever introduced.
func (vm *VM) assignVar(scope value.Val, name string, val value.Val) {
	key := vm.Heap.Strings.MkString([]byte(name), true)
	cur := scope
	var outer value.Val
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			return
		}
		if target, isWith := vm.withTarget(cell); isWith && vm.hasProperty(target, key) {
			_ = vm.setProperty(target, key, val)
			return
		}
		if _, prop := vm.findOwnProperty(cell, []byte(name)); prop != nil {
			prop.Value = val
			return
		}
		outer = cur
		if cell.Proto.IsNull() {
			break
		}
		cur = cell.Proto
	}
	_ = vm.setOwnProperty(outer, name, val, gcarena.AttrWritable|gcarena.AttrEnumerable)
}

// deleteVar implements DELETE_VAR, only ever reached from non-strict code
// (the strict-mode restriction is a compile-time rejection — see
// internal/compiler/expr.go's compileDelete). Deleting an undeclared name,
// or a with-bound name the target object itself refuses to give up, is a
// silent no-op reporting success; deleting a pre-declared local/param is
// always reported as succeeding too, even though deleteProperty's own
// non-configurable check (the binding carries no AttrConfigurable) leaves
// it in place — matching ES5's sloppy-mode `delete` returning true for an
// unqualified identifier regardless of whether the binding survives. A
// with-bound name is the one case this function reports deleteProperty's
// real result for, since `delete name` used inside a `with` body resolves
// through the with object's own (possibly configurable) property.
func (vm *VM) deleteVar(scope value.Val, name string) bool {
	key := vm.Heap.Strings.MkString([]byte(name), true)
	cur := scope
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			return true
		}
		if target, isWith := vm.withTarget(cell); isWith && vm.hasProperty(target, key) {
			result, _ := vm.deleteProperty(target, key, false)
			return result.AsBool()
		}
		if _, prop := vm.findOwnProperty(cell, []byte(name)); prop != nil {
			_, _ = vm.deleteProperty(cur, key, false)
			return true
		}
		if cell.Proto.IsNull() {
			return true
		}
		cur = cell.Proto
	}
	return true
}
