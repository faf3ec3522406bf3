package gcarena

import (
	"github.com/informatter/v7go/internal/strheap"
	"github.com/informatter/v7go/internal/value"
)

// Heap bundles the four typed arenas, the string heap, and the owned-value
// root list into the single memory core described by spec §3, §4.2, §4.4.
type Heap struct {
	Objects    *Arena[ObjectCell]
	Functions  *Arena[FunctionCell]
	Properties *Arena[PropertyCell]
	Regexps    *Arena[RegexpCell]
	Strings    *strheap.Heap
	Owned      *OwnedRoots

	destructors []func() // registry resolved by a TagForeign handle (spec §9)
}

// Sizes configures the initial block size of each arena, mirroring the
// `object_arena_size`/`function_arena_size`/`property_arena_size` host
// options of spec §6.1.
type Sizes struct {
	Objects, Functions, Properties, Regexps int
}

func New(sz Sizes) *Heap {
	return NewWithStrings(sz, strheap.New())
}

// NewWithStrings builds a Heap against an already-populated string heap —
// the path internal/vm.New takes so a program's literal table (interned by
// internal/compiler against its own strheap.Heap at compile time) and the
// running VM agree on every owned/foreign string offset.
func NewWithStrings(sz Sizes, strings *strheap.Heap) *Heap {
	def := func(n int) int {
		if n <= 0 {
			return 64
		}
		return n
	}
	return &Heap{
		Objects:    NewArena[ObjectCell](def(sz.Objects)),
		Functions:  NewArena[FunctionCell](def(sz.Functions)),
		Properties: NewArena[PropertyCell](def(sz.Properties)),
		Regexps:    NewArena[RegexpCell](def(sz.Regexps)),
		Strings:    strings,
		Owned:      &OwnedRoots{},
	}
}

// RegisterDestructor installs fn in the destructor registry and returns a
// TagForeign handle referencing it, suitable as a property's Value paired
// with a TagForeign Name sentinel (spec §9).
func (h *Heap) RegisterDestructor(fn func()) value.Val {
	idx := len(h.destructors)
	h.destructors = append(h.destructors, fn)
	return value.Foreign(value.Handle(idx))
}

// HeapStats mirrors the original's struct v7_heap_stat (spec SPEC_FULL §7).
type HeapStats struct {
	Objects, Functions, Properties, Regexps Stats
	OwnedBytes, ForeignStrings               int
}

func (h *Heap) Stat() HeapStats {
	return HeapStats{
		Objects:    h.Objects.Stats(),
		Functions:  h.Functions.Stats(),
		Properties: h.Properties.Stats(),
		Regexps:    h.Regexps.Stats(),
	}
}

// fieldRoot adapts a pair of closures to value.Root, used to let the mark
// pass treat a struct field exactly like any other root slot.
type fieldRoot struct {
	get func() value.Val
	set func(value.Val)
}

func (f fieldRoot) Get() value.Val  { return f.get() }
func (f fieldRoot) Set(v value.Val) { f.set(v) }

// Collect runs one full mark-sweep-compact cycle (spec §4.2, §4.1):
// externalRoots supplies everything the GC cannot discover on its own —
// the VM data stack, call-frame chain, and bcode literal tables (spec
// roots R1-R6, owned by internal/vm). Collect marks the object graph
// reachable from those roots plus the Owned list, sweeps all four arenas
// (running destructors on unreachable cells), then compacts the string
// heap using every owned-string val that survived.
func (h *Heap) Collect(externalRoots []value.Root) {
	var stringRoots []value.Root

	visit := func(r value.Root) { h.markRoot(r, &stringRoots) }
	for _, r := range externalRoots {
		visit(r)
	}
	for _, r := range h.Owned.Roots() {
		visit(r)
	}

	// Objects first: runObjectDestructor reads the dead object's property
	// cells, which the Properties sweep frees.
	h.Objects.Sweep(func(ref Ref, cell *ObjectCell) {
		h.runObjectDestructor(cell)
	})
	h.Properties.Sweep(func(ref Ref, cell *PropertyCell) {})
	h.Regexps.Sweep(func(ref Ref, cell *RegexpCell) {
		if cell.Compiled != nil && cell.Destroy != nil {
			cell.Destroy(cell.Compiled)
		}
	})
	h.Functions.Sweep(func(ref Ref, cell *FunctionCell) {})

	// Re-collect string roots from everything that survived sweep: the
	// mark pass above already visited every reachable property cell and
	// recorded string roots for its Name/Value fields, so stringRoots is
	// already complete and valid post-sweep (sweep only removes cells the
	// mark pass proved unreachable, which never contributed roots).
	_ = h.Strings.Compact(stringRoots)
}

func (h *Heap) runObjectDestructor(cell *ObjectCell) {
	if cell.Flags&FlagHasDestructor == 0 {
		return
	}
	for ref := cell.PropsHead; ref != NoRef; {
		prop, err := h.Properties.Get(ref)
		if err != nil {
			return
		}
		if prop.Name.Tag() == value.TagForeign {
			idx := int(prop.Value.AsHandle())
			if idx >= 0 && idx < len(h.destructors) && h.destructors[idx] != nil {
				h.destructors[idx]()
			}
			return
		}
		ref = prop.Next
	}
}

// markRoot is the GC's single traversal primitive: it marks whatever
// object-graph cell root currently points to (if any), recursing into
// prototypes, property lists, dense-array elements, and function scopes,
// and records every owned-string root it passes through along the way.
func (h *Heap) markRoot(root value.Root, stringRoots *[]value.Root) {
	v := root.Get()
	switch v.Tag() {
	case value.TagString:
		if v.StringKind() == value.StrOwned {
			*stringRoots = append(*stringRoots, root)
		}
	case value.TagObject:
		h.markObject(v.AsHandle(), stringRoots)
	case value.TagFunction:
		h.markFunction(v.AsHandle(), stringRoots)
	case value.TagRegexp:
		h.markRegexp(v.AsHandle())
	}
}

func (h *Heap) markObject(handle value.Handle, stringRoots *[]value.Root) {
	ref := Ref(handle)
	if !h.Objects.Mark(ref) {
		return
	}
	cell, err := h.Objects.Get(ref)
	if err != nil {
		return
	}
	h.markRoot(fieldRoot{
		get: func() value.Val { return cell.Proto },
		set: func(v value.Val) { cell.Proto = v },
	}, stringRoots)

	for pref := cell.PropsHead; pref != NoRef; {
		prop, err := h.Properties.Get(pref)
		if err != nil {
			break
		}
		h.Properties.Mark(pref)
		p := prop
		h.markRoot(fieldRoot{
			get: func() value.Val { return p.Name },
			set: func(v value.Val) { p.Name = v },
		}, stringRoots)
		h.markRoot(fieldRoot{
			get: func() value.Val { return p.Value },
			set: func(v value.Val) { p.Value = v },
		}, stringRoots)
		pref = prop.Next
	}

	for i := range cell.DenseElems {
		idx := i
		h.markRoot(fieldRoot{
			get: func() value.Val { return cell.DenseElems[idx] },
			set: func(v value.Val) { cell.DenseElems[idx] = v },
		}, stringRoots)
	}
}

func (h *Heap) markFunction(handle value.Handle, stringRoots *[]value.Root) {
	ref := Ref(handle)
	if !h.Functions.Mark(ref) {
		return
	}
	cell, err := h.Functions.Get(ref)
	if err != nil {
		return
	}
	c := cell
	h.markRoot(fieldRoot{
		get: func() value.Val { return c.Scope },
		set: func(v value.Val) { c.Scope = v },
	}, stringRoots)
}

func (h *Heap) markRegexp(handle value.Handle) {
	h.Regexps.Mark(Ref(handle))
}
