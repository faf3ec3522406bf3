package gcarena

import "testing"

func TestAllocAndGet(t *testing.T) {
	a := NewArena[int](4)
	r := a.Alloc(42)
	v, err := a.Get(r)
	if err != nil || *v != 42 {
		t.Fatalf("Get after Alloc: v=%v err=%v", v, err)
	}
}

func TestSweepReclaimsUnmarked(t *testing.T) {
	a := NewArena[int](4)
	keep := a.Alloc(1)
	drop := a.Alloc(2)
	a.Mark(keep)

	var destroyed []Ref
	freed := a.Sweep(func(ref Ref, cell *int) { destroyed = append(destroyed, ref) })

	if freed != 1 || len(destroyed) != 1 || destroyed[0] != drop {
		t.Fatalf("expected exactly 1 freed (ref %d), got freed=%d destroyed=%v", drop, freed, destroyed)
	}
	if _, err := a.Get(drop); err == nil {
		t.Fatalf("expected dropped ref to be invalid after sweep")
	}
	if _, err := a.Get(keep); err != nil {
		t.Fatalf("expected kept ref to survive sweep: %v", err)
	}
}

func TestSweepUnmarksSurvivorsForNextCycle(t *testing.T) {
	a := NewArena[int](4)
	r := a.Alloc(1)
	a.Mark(r)
	a.Sweep(nil)
	// second cycle: r was not re-marked, so it must be reclaimed now.
	freed := a.Sweep(nil)
	if freed != 1 {
		t.Fatalf("expected unmarked survivor to be freed on next cycle, freed=%d", freed)
	}
}

func TestFreelistReusesSlots(t *testing.T) {
	a := NewArena[int](2)
	r1 := a.Alloc(1)
	a.Sweep(nil) // nothing marked; r1 is reclaimed
	r2 := a.Alloc(2)
	if r2 != r1 {
		t.Fatalf("expected freelist to reuse slot %d, got %d", r1, r2)
	}
}

func TestGrowsInBlocks(t *testing.T) {
	a := NewArena[int](2)
	refs := make([]Ref, 5)
	for i := range refs {
		refs[i] = a.Alloc(i)
	}
	stats := a.Stats()
	if stats.LiveCells != 5 {
		t.Fatalf("expected 5 live cells, got %d", stats.LiveCells)
	}
	if stats.Blocks < 3 {
		t.Fatalf("expected at least 3 blocks of size 2 for 5 cells, got %d", stats.Blocks)
	}
}
