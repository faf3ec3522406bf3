package vm

import (
	"bytes"
	"strconv"

	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/value"
)

// objectCell resolves v (which must be TagObject/TagFunction/TagRegexp for
// the generic-object cases this file handles) to its gcarena.ObjectCell.
// Function and regexp values are not generic objects in this object model
// (gcarena.FunctionCell/RegexpCell carry no property list of their own —
// see DESIGN.md's "function/regexp values carry no own properties" entry),
// so GET/SET/DELETE/enumerate only ever operate on TagObject handles here.
func (vm *VM) objectCell(v value.Val) (*gcarena.ObjectCell, bool) {
	if v.Tag() != value.TagObject {
		return nil, false
	}
	cell, err := vm.Heap.Objects.Get(gcarena.Ref(v.AsHandle()))
	if err != nil {
		return nil, false
	}
	return cell, true
}

// stringBytes returns the raw bytes behind a TagString val.
func (vm *VM) stringBytes(v value.Val) ([]byte, error) {
	return vm.Heap.Strings.GetString(v)
}

// keyToIndex reports whether key names an array index ("0", "1", ... with
// no leading zero other than "0" itself, no sign), per spec's array
// fast-path (component design: dense elements addressed directly, anything
// else falls through to the generic property list).
func keyToIndex(key []byte) (int, bool) {
	if len(key) == 0 {
		return 0, false
	}
	if key[0] == '0' && len(key) > 1 {
		return 0, false
	}
	for _, c := range key {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(string(key))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// findOwnProperty walks cell's own property list (never the prototype
// chain) looking for name, returning the owning ref/cell or (0, nil) if
// absent.
func (vm *VM) findOwnProperty(cell *gcarena.ObjectCell, name []byte) (gcarena.Ref, *gcarena.PropertyCell) {
	for ref := cell.PropsHead; ref != gcarena.NoRef; {
		prop, err := vm.Heap.Properties.Get(ref)
		if err != nil {
			return gcarena.NoRef, nil
		}
		if prop.Name.Tag() == value.TagString {
			b, err := vm.stringBytes(prop.Name)
			if err == nil && bytes.Equal(b, name) {
				return ref, prop
			}
		}
		ref = prop.Next
	}
	return gcarena.NoRef, nil
}

// setOwnProperty creates or overwrites name as an own property of obj
// (obj must carry TagObject). New properties are prepended to the property
// list (O(1) insert, matching the teacher's general preference for simple,
// unordered bookkeeping over a sorted/indexed structure).
func (vm *VM) setOwnProperty(obj value.Val, name string, val value.Val, attrs gcarena.PropAttrs) error {
	cell, ok := vm.objectCell(obj)
	if !ok {
		return vm.internalErrorf("vm: setOwnProperty on a non-object value")
	}
	nameVal := vm.Heap.Strings.MkString([]byte(name), true)
	if _, prop := vm.findOwnProperty(cell, []byte(name)); prop != nil {
		prop.Value = val
		return nil
	}
	ref := vm.Heap.Properties.Alloc(gcarena.PropertyCell{Name: nameVal, Value: val, Attrs: attrs, Next: cell.PropsHead})
	cell.PropsHead = ref
	return nil
}

// getProperty implements GET: obj[key], walking the prototype chain for
// generic objects and short-circuiting to the dense backing array for
// array-shaped cells.
func (vm *VM) getProperty(obj, key value.Val) (value.Val, error) {
	if !obj.IsObjectLike() {
		return value.Undefined(), nil
	}
	keyBytes, err := vm.propertyKeyBytes(key)
	if err != nil {
		return value.Undefined(), err
	}
	cur := obj
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			return value.Undefined(), nil
		}
		if cell.Flags&gcarena.FlagDenseArray != 0 {
			if string(keyBytes) == "length" {
				return value.Number(float64(len(cell.DenseElems))), nil
			}
			if idx, ok := keyToIndex(keyBytes); ok {
				if idx >= 0 && idx < len(cell.DenseElems) {
					return cell.DenseElems[idx], nil
				}
				return value.Undefined(), nil
			}
		}
		if _, prop := vm.findOwnProperty(cell, keyBytes); prop != nil {
			return prop.Value, nil
		}
		if !cell.Proto.IsObjectLike() {
			return value.Undefined(), nil
		}
		cur = cell.Proto
	}
	return value.Undefined(), nil
}

// setProperty implements SET: obj[key] = val, always as an own property
// (no prototype write-through — matching ordinary, non-accessor JS
// assignment semantics, the only kind this object model supports per
// DESIGN.md's accessor-property simplification).
func (vm *VM) setProperty(obj, key, val value.Val) error {
	if !obj.IsObjectLike() {
		return nil // assigning through a primitive is a silent no-op, non-strict mode
	}
	cell, ok := vm.objectCell(obj)
	if !ok {
		return nil
	}
	keyBytes, err := vm.propertyKeyBytes(key)
	if err != nil {
		return err
	}
	if cell.Flags&gcarena.FlagDenseArray != 0 {
		if idx, ok := keyToIndex(keyBytes); ok {
			for len(cell.DenseElems) <= idx {
				cell.DenseElems = append(cell.DenseElems, value.Undefined())
			}
			cell.DenseElems[idx] = val
			return nil
		}
	}
	if _, prop := vm.findOwnProperty(cell, keyBytes); prop != nil {
		prop.Value = val
		return nil
	}
	nameVal := vm.Heap.Strings.MkString(keyBytes, true)
	ref := vm.Heap.Properties.Alloc(gcarena.PropertyCell{
		Name:  nameVal,
		Value: val,
		Attrs: gcarena.AttrWritable | gcarena.AttrEnumerable | gcarena.AttrConfigurable,
		Next:  cell.PropsHead,
	})
	cell.PropsHead = ref
	return nil
}

// deleteProperty implements DELETE: obj[key]/delete obj.m. A key that isn't
// present, or isn't own, is a silent success, matching JS's own `delete`
// semantics. A key that is present but non-configurable (spec §4.9: e.g. the
// hidden ctorPropertyName/withTargetPropertyName bindings) reports failure
// (false) in non-strict (sloppy) code, the same as real ES5's non-throwing
// delete; strict carries the TypeError ES5 §11.4.1 specifies instead, as a
// thrown script value rather than a plain Go error.
func (vm *VM) deleteProperty(obj, key value.Val, strict bool) (value.Val, error) {
	cell, ok := vm.objectCell(obj)
	if !ok {
		return value.Bool(true), nil
	}
	keyBytes, err := vm.propertyKeyBytes(key)
	if err != nil {
		return value.Undefined(), err
	}
	if cell.Flags&gcarena.FlagDenseArray != 0 {
		if idx, ok := keyToIndex(keyBytes); ok && idx < len(cell.DenseElems) {
			cell.DenseElems[idx] = value.Undefined()
			return value.Bool(true), nil
		}
	}
	var prev gcarena.Ref = gcarena.NoRef
	for ref := cell.PropsHead; ref != gcarena.NoRef; {
		prop, err := vm.Heap.Properties.Get(ref)
		if err != nil {
			break
		}
		b, _ := vm.stringBytes(prop.Name)
		if bytes.Equal(b, keyBytes) {
			if prop.Attrs&gcarena.AttrConfigurable == 0 {
				if strict {
					return value.Undefined(), &jsThrow{vm.typeError("cannot delete non-configurable property %q", string(keyBytes))}
				}
				return value.Bool(false), nil
			}
			if prev == gcarena.NoRef {
				cell.PropsHead = prop.Next
			} else {
				prevCell, _ := vm.Heap.Properties.Get(prev)
				prevCell.Next = prop.Next
			}
			return value.Bool(true), nil
		}
		prev = ref
		ref = prop.Next
	}
	return value.Bool(true), nil
}

// hasProperty implements the `in` operator: an own-or-inherited, non-hidden
// property (or a valid dense-array index/length) counts as present.
func (vm *VM) hasProperty(obj, key value.Val) bool {
	if !obj.IsObjectLike() {
		return false
	}
	keyBytes, err := vm.propertyKeyBytes(key)
	if err != nil {
		return false
	}
	cur := obj
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			return false
		}
		if cell.Flags&gcarena.FlagDenseArray != 0 {
			if string(keyBytes) == "length" {
				return true
			}
			if idx, ok := keyToIndex(keyBytes); ok {
				return idx < len(cell.DenseElems)
			}
		}
		if _, prop := vm.findOwnProperty(cell, keyBytes); prop != nil {
			return prop.Attrs&gcarena.AttrHidden == 0
		}
		if !cell.Proto.IsObjectLike() {
			return false
		}
		cur = cell.Proto
	}
	return false
}

// propertyKeyBytes coerces a key value to its property-name bytes: strings
// are used directly, numbers are formatted the way an array index or a
// numeric object key would be written.
func (vm *VM) propertyKeyBytes(key value.Val) ([]byte, error) {
	switch key.Tag() {
	case value.TagString:
		return vm.stringBytes(key)
	case value.TagNumber:
		return []byte(formatNumber(key.AsNumber())), nil
	default:
		return []byte(vm.toDisplayString(key)), nil
	}
}

// enumerableKeys returns the non-hidden property names of obj and of each
// object on its prototype chain, plus (for a dense array) its numeric
// indices, skipping names already seen — the list NEXT_PROP's cursor walks.
// Each object contributes its indices first, then its property list, which
// is newest-first since new properties are prepended.
func (vm *VM) enumerableKeys(obj value.Val) []string {
	var keys []string
	seen := map[string]bool{}
	cur := obj
	for depth := 0; depth < 1000; depth++ {
		cell, ok := vm.objectCell(cur)
		if !ok {
			break
		}
		if cell.Flags&gcarena.FlagDenseArray != 0 {
			for i := range cell.DenseElems {
				k := strconv.Itoa(i)
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		for ref := cell.PropsHead; ref != gcarena.NoRef; {
			prop, err := vm.Heap.Properties.Get(ref)
			if err != nil {
				break
			}
			if prop.Attrs&gcarena.AttrHidden == 0 && prop.Name.Tag() == value.TagString {
				b, err := vm.stringBytes(prop.Name)
				if err == nil && !seen[string(b)] {
					seen[string(b)] = true
					keys = append(keys, string(b))
				}
			}
			ref = prop.Next
		}
		if !cell.Proto.IsObjectLike() {
			break
		}
		cur = cell.Proto
	}
	return keys
}

// nextProp implements NEXT_PROP: returns obj's next not-yet-visited
// enumerable key, building the key list on first visit and discarding the
// cursor once exhausted. compileForIn (internal/compiler/stmt.go) DUPs the
// object before every call so the reference stays live across the loop.
func (vm *VM) nextProp(obj value.Val) value.Val {
	if !obj.IsObjectLike() {
		return value.Undefined()
	}
	h := obj.AsHandle()
	if vm.enumCursors == nil {
		vm.enumCursors = map[value.Handle]*enumCursor{}
	}
	cur, ok := vm.enumCursors[h]
	if !ok {
		cur = &enumCursor{keys: vm.enumerableKeys(obj)}
		vm.enumCursors[h] = cur
	}
	if cur.idx >= len(cur.keys) {
		delete(vm.enumCursors, h)
		return value.Undefined()
	}
	key := cur.keys[cur.idx]
	cur.idx++
	return vm.Heap.Strings.MkString([]byte(key), true)
}
