package gcarena

import "github.com/informatter/v7go/internal/value"

// ObjFlags are the per-object bits of spec §3.2.
type ObjFlags uint8

const (
	FlagNotExtensible ObjFlags = 1 << iota
	FlagDenseArray
	FlagOffHeap
	FlagHasDestructor
	FlagIsFunction
)

// PropAttrs are the per-property bits of spec §3.2.
type PropAttrs uint8

const (
	AttrWritable PropAttrs = 1 << iota
	AttrEnumerable
	AttrConfigurable
	AttrNonConfigurable
	AttrHidden
	AttrGetter
	AttrSetter
	AttrReadOnlyMem
)

// PropertyCell is one cell of the property arena: a name/value pair plus
// attribute flags and a forward link continuing the object's property
// list (spec §3.2). The hidden foreign-pointer-named destructor entry is an
// ordinary cell whose Name carries value.Foreign (see ObjectCell).
type PropertyCell struct {
	Name  value.Val
	Value value.Val
	Attrs PropAttrs
	Next  Ref // property arena ref, NoRef terminates the list
}

// ObjectCell is a generic object (spec §3.2): a property-list head plus a
// prototype back-reference. Ownership of the referenced prototype is the
// arena's, not this cell's, so prototype cycles are legal and expected.
//
// A user destructor (spec §3.2, §9 "hidden properties carrying native
// destructors") is reified by a property whose Name carries TagForeign
// instead of a second side-table: Sweep recognizes that sentinel and
// resolves its Value (also a TagForeign handle) through the heap's
// destructor registry. DenseElems is a plain Go slice, so unlike the
// original there is no separate free step for the dense-array backing
// buffer — Go's allocator already reclaims it once the cell is zeroed.
type ObjectCell struct {
	Proto     value.Val // TagObject/TagFunction/TagRegexp or Null()
	PropsHead Ref
	Flags     ObjFlags
	DenseElems []value.Val
}

// FunctionCell is a JS function object (spec §3.2): a captured outer-scope
// object and a shared bcode. It carries no prototype pointer of its own —
// the scope pointer aliases it, per spec §3.2.
type FunctionCell struct {
	Scope value.Val // generic object, the outer environment
	Bcode any       // *bcode.Bcode; typed any here to avoid an import cycle
	Name  string
}

// RegexpCell holds compiled regexp state. The core treats regex execution
// itself as an external collaborator (spec §1); this cell only carries
// enough to round-trip a regexp value and release its compiled state on
// collection.
type RegexpCell struct {
	Source   string
	Flags    string
	Compiled any              // opaque state owned by the external regex engine
	Destroy  func(compiled any) // invoked from Sweep if Compiled != nil
}
