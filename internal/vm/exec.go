package vm

import (
	"math"

	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// exec executes one decoded instruction. It returns (true, result, nil)
// when RET completes the frame; (false, _, nil) to keep looping; a
// *jsThrow error when a throw unwinds past every try frame of this one;
// and any other non-nil error for an engine-internal fault that no
// try/catch can intercept.
func (s *execState) exec(op bcode.Opcode, operands []int) (bool, value.Val, error) {
	vm := s.vm
	switch op {
	case bcode.DROP:
		s.pop()
	case bcode.DUP:
		s.push(s.peek())
	case bcode.TWO_DUP:
		n := len(s.stack)
		a, b := s.stack[n-2], s.stack[n-1]
		s.push(a)
		s.push(b)
	case bcode.SWAP:
		n := len(s.stack)
		s.stack[n-1], s.stack[n-2] = s.stack[n-2], s.stack[n-1]
	case bcode.STASH:
		s.stashed = s.pop()
	case bcode.UNSTASH:
		s.push(s.stashed)
	case bcode.SWAP_DROP:
		n := len(s.stack)
		top := s.stack[n-1]
		s.stack = s.stack[:n-2]
		s.push(top)

	case bcode.PUSH_UNDEFINED:
		s.push(value.Undefined())
	case bcode.PUSH_NULL:
		s.push(value.Null())
	case bcode.PUSH_THIS:
		s.push(s.this)
	case bcode.PUSH_TRUE:
		s.push(value.Bool(true))
	case bcode.PUSH_FALSE:
		s.push(value.Bool(false))
	case bcode.PUSH_ZERO:
		s.push(value.Number(0))
	case bcode.PUSH_ONE:
		s.push(value.Number(1))
	case bcode.PUSH_LIT:
		s.push(s.bc.Lits[operands[0]])

	case bcode.ADD:
		b, a := s.pop(), s.pop()
		if a.Tag() == value.TagString || b.Tag() == value.TagString {
			av := vm.toStringVal(a)
			bv := vm.toStringVal(b)
			res, err := vm.Heap.Strings.Concat(av, bv)
			if err != nil {
				return false, value.Undefined(), vm.internalErrorf("%v", err)
			}
			s.push(res)
		} else {
			s.push(value.Number(vm.toNumber(a) + vm.toNumber(b)))
		}
	case bcode.SUB:
		b, a := s.pop(), s.pop()
		s.push(value.Number(vm.toNumber(a) - vm.toNumber(b)))
	case bcode.MUL:
		b, a := s.pop(), s.pop()
		s.push(value.Number(vm.toNumber(a) * vm.toNumber(b)))
	case bcode.DIV:
		b, a := s.pop(), s.pop()
		s.push(value.Number(vm.toNumber(a) / vm.toNumber(b)))
	case bcode.MOD:
		b, a := s.pop(), s.pop()
		s.push(value.Number(math.Mod(vm.toNumber(a), vm.toNumber(b))))
	case bcode.NEG:
		s.push(value.Number(-vm.toNumber(s.pop())))
	case bcode.POS:
		s.push(value.Number(vm.toNumber(s.pop())))

	case bcode.BAND:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toInt32(vm.toNumber(a)) & toInt32(vm.toNumber(b)))))
	case bcode.BOR:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toInt32(vm.toNumber(a)) | toInt32(vm.toNumber(b)))))
	case bcode.BXOR:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toInt32(vm.toNumber(a)) ^ toInt32(vm.toNumber(b)))))
	case bcode.BNOT:
		s.push(value.Number(float64(^toInt32(vm.toNumber(s.pop())))))
	case bcode.SHL:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toInt32(vm.toNumber(a)) << (toUint32(vm.toNumber(b)) & 31))))
	case bcode.SHR:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toInt32(vm.toNumber(a)) >> (toUint32(vm.toNumber(b)) & 31))))
	case bcode.USHR:
		b, a := s.pop(), s.pop()
		s.push(value.Number(float64(toUint32(vm.toNumber(a)) >> (toUint32(vm.toNumber(b)) & 31))))

	case bcode.NOT:
		s.push(value.Bool(!vm.truthy(s.pop())))
	case bcode.LT:
		b, a := s.pop(), s.pop()
		r, ok := vm.compare(a, b)
		s.push(value.Bool(ok && r < 0))
	case bcode.LE:
		b, a := s.pop(), s.pop()
		r, ok := vm.compare(a, b)
		s.push(value.Bool(ok && r <= 0))
	case bcode.GT:
		b, a := s.pop(), s.pop()
		r, ok := vm.compare(a, b)
		s.push(value.Bool(ok && r > 0))
	case bcode.GE:
		b, a := s.pop(), s.pop()
		r, ok := vm.compare(a, b)
		s.push(value.Bool(ok && r >= 0))
	case bcode.EQ_EQ:
		b, a := s.pop(), s.pop()
		s.push(value.Bool(vm.strictEquals(a, b)))
	case bcode.NE_NE:
		b, a := s.pop(), s.pop()
		s.push(value.Bool(!vm.strictEquals(a, b)))
	case bcode.EQ:
		b, a := s.pop(), s.pop()
		s.push(value.Bool(vm.abstractEquals(a, b)))
	case bcode.NE:
		b, a := s.pop(), s.pop()
		s.push(value.Bool(!vm.abstractEquals(a, b)))
	case bcode.INSTANCEOF:
		ctor, obj := s.pop(), s.pop()
		s.push(value.Bool(vm.instanceOf(obj, ctor)))
	case bcode.IN:
		obj, key := s.pop(), s.pop()
		s.push(value.Bool(vm.hasProperty(obj, key)))

	case bcode.GET:
		key, obj := s.pop(), s.pop()
		v, err := vm.getProperty(obj, key)
		if err != nil {
			return false, value.Undefined(), err
		}
		s.push(v)
	case bcode.SET:
		val, key, obj := s.pop(), s.pop(), s.pop()
		if err := vm.setProperty(obj, key, val); err != nil {
			return false, value.Undefined(), err
		}
	case bcode.GET_VAR:
		name := s.bc.Names[operands[0]]
		v, ok := vm.lookupVar(s.scope, name)
		if !ok {
			errVal := vm.referenceError("%s is not defined", name)
			if s.raise(errVal) {
				return false, value.Undefined(), nil
			}
			return true, value.Undefined(), &jsThrow{errVal}
		}
		s.push(v)
	case bcode.SET_VAR:
		name := s.bc.Names[operands[0]]
		vm.assignVar(s.scope, name, s.peek())
	case bcode.SAFE_GET_VAR:
		name := s.bc.Names[operands[0]]
		v, ok := vm.lookupVar(s.scope, name)
		if !ok {
			v = value.Undefined()
		}
		s.push(v)
	case bcode.DELETE:
		key, obj := s.pop(), s.pop()
		v, err := vm.deleteProperty(obj, key, s.bc.Strict)
		if err != nil {
			if th, ok := err.(*jsThrow); ok {
				if s.raise(th.val) {
					return false, value.Undefined(), nil
				}
				return true, value.Undefined(), err
			}
			return true, value.Undefined(), err
		}
		s.push(v)
	case bcode.DELETE_VAR:
		name := s.bc.Names[operands[0]]
		s.push(value.Bool(vm.deleteVar(s.scope, name)))

	case bcode.JMP:
		s.pc = operands[0]
	case bcode.JMP_TRUE:
		if vm.truthy(s.peek()) {
			s.pc = operands[0]
		}
	case bcode.JMP_FALSE:
		if !vm.truthy(s.peek()) {
			s.pc = operands[0]
		}
	case bcode.JMP_TRUE_DROP:
		if vm.truthy(s.pop()) {
			s.pc = operands[0]
		}
	case bcode.JMP_IF_CONTINUE:
		// unused by internal/compiler: no statement form
		// currently needs a conditional continue distinct from CONTINUE's
		// unconditional unwind. Implemented for format completeness only.
		if vm.truthy(s.pop()) {
			s.unwind(pendContinue, value.Undefined())
		}

	case bcode.CREATE_OBJ:
		ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: value.Null()})
		s.push(value.Object(value.Handle(ref)))
	case bcode.CREATE_ARR:
		ref := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: value.Null(), Flags: gcarena.FlagDenseArray})
		s.push(value.Object(value.Handle(ref)))
	case bcode.NEXT_PROP:
		obj := s.pop()
		s.push(vm.nextProp(obj))
	case bcode.FUNC_LIT:
		child := s.bc.Functions[operands[0]]
		ref := vm.Heap.Functions.Alloc(gcarena.FunctionCell{Scope: s.scope, Bcode: child, Name: funcDisplayName(child)})
		s.push(value.Function(value.Handle(ref)))

	case bcode.TYPEOF:
		s.push(vm.Heap.Strings.MkString([]byte(vm.typeOf(s.pop())), true))
	case bcode.VOID:
		s.pop()
		s.push(value.Undefined())

	case bcode.CHECK_CALL:
		// dead code from internal/compiler's perspective (it inlines
		// callability checks directly into CALL/NEW); kept for format
		// completeness. Peeks, rather than pops, since it's documented as a
		// check, not a consuming operation.
		if !s.peek().IsCallable() {
			errVal := vm.typeError("value is not a function")
			if s.raise(errVal) {
				return false, value.Undefined(), nil
			}
			return true, value.Undefined(), &jsThrow{errVal}
		}
	case bcode.CALL:
		return s.doCall(operands[0])
	case bcode.NEW:
		return s.doNew(operands[0])
	case bcode.RET:
		v := s.pop()
		if s.unwind(pendReturn, v) {
			return false, value.Undefined(), nil
		}
		return true, v, nil

	case bcode.TRY_PUSH_CATCH:
		s.tryStack = append(s.tryStack, tryEntry{stackSize: len(s.stack), tag: tryCatch, offset: operands[0]})
	case bcode.TRY_PUSH_FINALLY:
		s.tryStack = append(s.tryStack, tryEntry{stackSize: len(s.stack), tag: tryFinally, offset: operands[0]})
	case bcode.TRY_PUSH_LOOP:
		s.tryStack = append(s.tryStack, tryEntry{stackSize: len(s.stack), tag: tryLoop, offset: operands[0], altOffset: operands[1]})
	case bcode.TRY_PUSH_SWITCH:
		s.tryStack = append(s.tryStack, tryEntry{stackSize: len(s.stack), tag: trySwitch, offset: operands[0]})
	case bcode.TRY_POP:
		s.tryStack = s.tryStack[:len(s.tryStack)-1]
	case bcode.AFTER_FINALLY:
		if s.pend.kind != pendNone {
			p := s.pend
			s.pend = pending{}
			switch p.kind {
			case pendThrow:
				if s.raise(p.val) {
					return false, value.Undefined(), nil
				}
				return true, value.Undefined(), &jsThrow{p.val}
			case pendReturn:
				return true, p.val, nil
			case pendBreak, pendContinue:
				if !s.unwind(p.kind, value.Undefined()) {
					return false, value.Undefined(), vm.internalErrorf("break/continue escaped every enclosing frame")
				}
				return false, value.Undefined(), nil
			}
		}
	case bcode.THROW:
		v := s.pop()
		if s.raise(v) {
			return false, value.Undefined(), nil
		}
		return true, value.Undefined(), &jsThrow{v}
	case bcode.BREAK:
		if !s.unwind(pendBreak, value.Undefined()) {
			return false, value.Undefined(), vm.internalErrorf("'break' escaped every enclosing loop/switch frame")
		}
	case bcode.CONTINUE:
		if !s.unwind(pendContinue, value.Undefined()) {
			return false, value.Undefined(), vm.internalErrorf("'continue' escaped every enclosing loop frame")
		}
	case bcode.ENTER_CATCH:
		// a no-op marker: the thrown value was already pushed by the unwind
		// that jumped here (see execState.unwind's tryCatch case).
	case bcode.EXIT_CATCH:
		// a no-op marker: only reached via the unwind jump into a catch
		// clause; the normal-completion path jumps around both of these
		// via compileTry's afterCatchJump.

	case bcode.ENTER_WITH:
		target := s.pop()
		wrapperRef := vm.Heap.Objects.Alloc(gcarena.ObjectCell{Proto: s.scope})
		wrapper := value.Object(value.Handle(wrapperRef))
		if err := vm.setOwnProperty(wrapper, withTargetPropertyName, target, gcarena.AttrHidden); err != nil {
			return false, value.Undefined(), err
		}
		s.tryStack = append(s.tryStack, tryEntry{stackSize: len(s.stack), tag: tryWith, savedScope: s.scope})
		s.scope = wrapper
	case bcode.EXIT_WITH:
		top := s.tryStack[len(s.tryStack)-1]
		s.tryStack = s.tryStack[:len(s.tryStack)-1]
		s.scope = top.savedScope

	default:
		return false, value.Undefined(), vm.internalErrorf("unimplemented opcode %v", op)
	}
	return false, value.Undefined(), nil
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(f))
}

// toStringVal wraps toDisplayString back into a value.Val for Concat.
func (vm *VM) toStringVal(v value.Val) value.Val {
	if v.Tag() == value.TagString {
		return v
	}
	return vm.Heap.Strings.MkString([]byte(vm.toDisplayString(v)), true)
}

// compare implements the relational operators' ordering: a lexicographic
// byte compare when both operands are strings, a numeric compare
// otherwise, reporting ok=false when a NaN makes every relational operator
// false (spec's ordinary ES5 rule, grounded on the teacher's
// isOperandsNumeric returning an error that every relational-operator case
// propagates as a panic — generalized here to "comparison is false" instead
// of a thrown error, matching real JS rather than the teacher's stricter
// numeric-only comparison).
func (vm *VM) compare(a, b value.Val) (int, bool) {
	if a.Tag() == value.TagString && b.Tag() == value.TagString {
		r, err := vm.Heap.Strings.Cmp(a, b)
		if err != nil {
			return 0, false
		}
		return r, true
	}
	af, bf := vm.toNumber(a), vm.toNumber(b)
	if math.IsNaN(af) || math.IsNaN(bf) {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func funcDisplayName(bc *bcode.Bcode) string {
	if bc.HasFuncName && len(bc.Names) > 0 {
		return bc.Names[0]
	}
	return "<anonymous>"
}
