package vm

import (
	"math"
	"strconv"

	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// truthy implements the teacher's isTrue rule (interpreter/interpreter.go):
// nil/undefined/null is false, a boolean is itself, everything else is
// true — generalized here to numbers (0 and NaN are false, per ordinary
// ES5 ToBoolean) and empty strings (false), since the teacher's dynamically
// typed `any` didn't need to distinguish those from "everything else".
func (vm *VM) truthy(v value.Val) bool {
	switch v.Tag() {
	case value.TagPrimitive:
		if v.IsUndefined() || v.IsNull() {
			return false
		}
		return v.AsBool()
	case value.TagNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case value.TagNaN:
		return false
	case value.TagString:
		b, err := vm.stringBytes(v)
		return err == nil && len(b) > 0
	default:
		return true
	}
}

// toNumber implements ToNumber: numbers pass through, booleans become 0/1,
// null becomes 0, undefined becomes NaN, strings are parsed (empty string
// is 0, an unparsable string is NaN), objects are not supported (NaN) since
// this object model has no ToPrimitive hook.
func (vm *VM) toNumber(v value.Val) float64 {
	switch v.Tag() {
	case value.TagNumber:
		return v.AsNumber()
	case value.TagNaN:
		return math.NaN()
	case value.TagPrimitive:
		if v.IsNull() {
			return 0
		}
		if v.IsUndefined() {
			return math.NaN()
		}
		if v.AsBool() {
			return 1
		}
		return 0
	case value.TagString:
		b, err := vm.stringBytes(v)
		if err != nil {
			return math.NaN()
		}
		if len(b) == 0 {
			return 0
		}
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toDisplayString implements ToString well enough for string concatenation
// (ADD) and property-key coercion, grounded on the teacher's own handful of
// literal-to-string cases (isOperandsNumeric/literalToFloat64's String()
// counterpart) generalized across every value.Tag.
func (vm *VM) toDisplayString(v value.Val) string {
	switch v.Tag() {
	case value.TagString:
		b, err := vm.stringBytes(v)
		if err != nil {
			return ""
		}
		return string(b)
	case value.TagNumber:
		return formatNumber(v.AsNumber())
	case value.TagNaN:
		return "NaN"
	case value.TagPrimitive:
		if v.IsUndefined() {
			return "undefined"
		}
		if v.IsNull() {
			return "null"
		}
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.TagObject:
		if cell, ok := vm.objectCell(v); ok && cell.Flags&gcarena.FlagDenseArray != 0 {
			return vm.arrayToDisplayString(cell)
		}
		return "[object Object]"
	case value.TagFunction:
		return "function () { [bytecode] }"
	case value.TagRegexp:
		return "[object RegExp]"
	case value.TagCFunction:
		return "function () { [native code] }"
	default:
		return ""
	}
}

func (vm *VM) arrayToDisplayString(cell *gcarena.ObjectCell) string {
	out := ""
	for i, el := range cell.DenseElems {
		if i > 0 {
			out += ","
		}
		if !el.IsUndefined() && !el.IsNull() {
			out += vm.toDisplayString(el)
		}
	}
	return out
}

// typeOf implements the `typeof` operator.
func (vm *VM) typeOf(v value.Val) string {
	switch v.Tag() {
	case value.TagNumber, value.TagNaN:
		return "number"
	case value.TagString:
		return "string"
	case value.TagPrimitive:
		if v.IsUndefined() {
			return "undefined"
		}
		if v.IsNull() {
			return "object" // the historical "typeof null === 'object'" quirk
		}
		return "boolean"
	case value.TagObject, value.TagRegexp:
		return "object"
	case value.TagFunction, value.TagCFunction:
		return "function"
	default:
		return "object"
	}
}

// strictEquals implements ===.
func (vm *VM) strictEquals(a, b value.Val) bool {
	if a.Tag() != b.Tag() {
		if (a.Tag() == value.TagNumber || a.Tag() == value.TagNaN) &&
			(b.Tag() == value.TagNumber || b.Tag() == value.TagNaN) {
			// fall through to numeric compare below
		} else {
			return false
		}
	}
	switch a.Tag() {
	case value.TagNumber, value.TagNaN:
		af, bf := vm.toNumber(a), vm.toNumber(b)
		return !math.IsNaN(af) && !math.IsNaN(bf) && af == bf
	case value.TagString:
		ab, aerr := vm.stringBytes(a)
		bb, berr := vm.stringBytes(b)
		return aerr == nil && berr == nil && string(ab) == string(bb)
	case value.TagPrimitive:
		return a == b
	default:
		return a.AsHandle() == b.AsHandle()
	}
}

// abstractEquals implements == with ES5's coercion table, simplified to the
// conversions this object model can express (no ToPrimitive on objects).
func (vm *VM) abstractEquals(a, b value.Val) bool {
	aNullish := a.IsNull() || a.IsUndefined()
	bNullish := b.IsNull() || b.IsUndefined()
	if aNullish || bNullish {
		return aNullish && bNullish
	}
	if a.Tag() == b.Tag() {
		return vm.strictEquals(a, b)
	}
	isNum := func(t value.Tag) bool { return t == value.TagNumber || t == value.TagNaN }
	if isNum(a.Tag()) || isNum(b.Tag()) || a.Tag() == value.TagString || b.Tag() == value.TagString {
		if a.Tag() == value.TagPrimitive && a.IsBoolean() || b.Tag() == value.TagPrimitive && b.IsBoolean() {
			return vm.toNumber(a) == vm.toNumber(b)
		}
		if isNum(a.Tag()) || isNum(b.Tag()) {
			return vm.toNumber(a) == vm.toNumber(b)
		}
	}
	return false
}
