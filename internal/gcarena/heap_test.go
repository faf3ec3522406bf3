package gcarena

import (
	"testing"

	"github.com/informatter/v7go/internal/value"
)

func mkObject(h *Heap, proto value.Val) value.Val {
	ref := h.Objects.Alloc(ObjectCell{Proto: proto, PropsHead: NoRef})
	return value.Object(value.Handle(ref))
}

func addProp(h *Heap, obj value.Val, name, val value.Val) {
	cell, _ := h.Objects.Get(Ref(obj.AsHandle()))
	pref := h.Properties.Alloc(PropertyCell{Name: name, Value: val, Attrs: AttrWritable | AttrEnumerable, Next: cell.PropsHead})
	cell.PropsHead = pref
}

type slotRoot struct{ v value.Val }

func (s *slotRoot) Get() value.Val  { return s.v }
func (s *slotRoot) Set(v value.Val) { s.v = v }

func TestCollectReclaimsUnreachableObjects(t *testing.T) {
	h := New(Sizes{})
	kept := mkObject(h, value.Null())
	_ = mkObject(h, value.Null()) // unreachable garbage

	root := &slotRoot{v: kept}
	h.Collect([]value.Root{root})

	if s := h.Objects.Stats(); s.LiveCells != 1 {
		t.Fatalf("expected 1 live object after collect, got %d", s.LiveCells)
	}
}

func TestCollectPreservesCyclicPrototypeChain(t *testing.T) {
	h := New(Sizes{})
	a := mkObject(h, value.Null())
	b := mkObject(h, a)
	// Make the cycle: a's prototype is b.
	cellA, _ := h.Objects.Get(Ref(a.AsHandle()))
	cellA.Proto = b

	root := &slotRoot{v: a}
	h.Collect([]value.Root{root})

	if s := h.Objects.Stats(); s.LiveCells != 2 {
		t.Fatalf("expected both cyclic objects to survive, got %d live", s.LiveCells)
	}
}

func TestCollectRunsObjectDestructor(t *testing.T) {
	h := New(Sizes{})
	ran := false
	destructorVal := h.RegisterDestructor(func() { ran = true })

	obj := mkObject(h, value.Null())
	addProp(h, obj, destructorVal, destructorVal)
	cell, _ := h.Objects.Get(Ref(obj.AsHandle()))
	cell.Flags |= FlagHasDestructor

	h.Collect(nil) // nothing roots obj; it should be swept and destructed

	if !ran {
		t.Fatalf("expected destructor to run when object is collected")
	}
}

func TestCollectCompactsReachableStrings(t *testing.T) {
	h := New(Sizes{})
	s := h.Strings.MkString([]byte("a long owned string that must survive"), true)
	root := &slotRoot{v: s}

	h.Collect([]value.Root{root})

	got, err := h.Strings.GetString(root.Get())
	if err != nil || string(got) != "a long owned string that must survive" {
		t.Fatalf("string root did not survive collect: %q %v", got, err)
	}
}

func TestOwnedRootsLIFO(t *testing.T) {
	var o OwnedRoots
	a := value.Number(1)
	b := value.Number(2)
	o.Own(&a)
	o.Own(&b)
	if o.Disown(&a) {
		t.Fatalf("disowning non-top slot must fail (LIFO discipline)")
	}
	if !o.Disown(&b) || !o.Disown(&a) {
		t.Fatalf("expected LIFO disown of both slots to succeed")
	}
	if o.Len() != 0 {
		t.Fatalf("expected empty owned list, got %d", o.Len())
	}
}

func TestOwnedRootsSurviveCollect(t *testing.T) {
	h := New(Sizes{})
	obj := mkObject(h, value.Null())
	h.Owned.Own(&obj)

	h.Collect(nil)

	if s := h.Objects.Stats(); s.LiveCells != 1 {
		t.Fatalf("expected owned object to survive collect, got %d live", s.LiveCells)
	}
}
