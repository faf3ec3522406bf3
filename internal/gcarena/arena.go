// Package gcarena implements the engine's typed mark-sweep memory core
// (spec §3.2, §4.2): fixed-cell-size pools for generic objects, JS function
// objects, regexps, and properties, plus the owned-value root list used by
// host (C-like) call sites that must keep a val alive across an allocating
// call.
package gcarena

import "fmt"

// Ref is an index into one of the typed arenas below. The zero Ref is never
// valid; arenas reserve slot 0 as a permanent sentinel so a zeroed struct
// field reads as "no reference" rather than colliding with a live cell.
type Ref uint32

const NoRef Ref = 0

// cellHeader tracks reachability (bit 0) and free-list membership (bit 1)
// for one arena cell, mirroring the original's union of "link" and "mark
// word" (spec §4.2): a cell is either on the free list (free=true, next
// points at the following free cell) or live (free=false, reachable set by
// the current mark phase).
type cellHeader struct {
	reachable bool
	free      bool
	next      Ref // free-list link, meaningful only when free
}

// Arena is a typed, growable-by-blocks pool of fixed-size cells with
// freelist allocation, generic over the cell payload type.
type Arena[T any] struct {
	headers []cellHeader
	cells   []T
	blocks  []int // cumulative cell counts at each block boundary
	freeHd  Ref
	blockSz int
}

// NewArena returns an arena that grows in blocks of blockSize cells.
// Slot 0 is reserved as NoRef and pre-marked used-never-swept.
func NewArena[T any](blockSize int) *Arena[T] {
	if blockSize < 1 {
		blockSize = 64
	}
	a := &Arena[T]{blockSz: blockSize}
	var zero T
	a.headers = append(a.headers, cellHeader{reachable: true})
	a.cells = append(a.cells, zero)
	return a
}

func (a *Arena[T]) growBlock() {
	start := Ref(len(a.headers))
	for i := 0; i < a.blockSz; i++ {
		ref := start + Ref(i)
		var nextFree Ref
		if i == a.blockSz-1 {
			nextFree = a.freeHd
		} else {
			nextFree = ref + 1
		}
		a.headers = append(a.headers, cellHeader{free: true, next: nextFree})
		var zero T
		a.cells = append(a.cells, zero)
	}
	a.freeHd = start
	a.blocks = append(a.blocks, len(a.headers))
}

// Alloc pops a cell off the free list, growing the arena by one block if
// it is empty, and returns a handle to it pre-populated with init.
func (a *Arena[T]) Alloc(init T) Ref {
	if a.freeHd == NoRef {
		a.growBlock()
	}
	ref := a.freeHd
	a.freeHd = a.headers[ref].next
	a.headers[ref] = cellHeader{}
	a.cells[ref] = init
	return ref
}

// Get returns a pointer to the cell payload. The pointer is invalidated by
// any subsequent Alloc that grows the arena; callers that must survive an
// allocation should re-fetch via Get afterward (same discipline as owned
// strings, spec §5 "before any arena allocation ... push locals into the
// temporary-roots stack").
func (a *Arena[T]) Get(ref Ref) (*T, error) {
	if ref == NoRef || int(ref) >= len(a.cells) || a.headers[ref].free {
		return nil, fmt.Errorf("gcarena: invalid or freed reference %d", ref)
	}
	return &a.cells[ref], nil
}

// Mark sets the reachable bit for ref. Returns false if ref was already
// marked this cycle (so callers can avoid re-walking already-visited
// subgraphs — important for cyclic prototype chains, spec §9).
func (a *Arena[T]) Mark(ref Ref) bool {
	if ref == NoRef || int(ref) >= len(a.headers) || a.headers[ref].free {
		return false
	}
	if a.headers[ref].reachable {
		return false
	}
	a.headers[ref].reachable = true
	return true
}

// Sweep reclaims every cell that was not marked this cycle, invoking
// destroy on each before zeroing it, then clears the reachable bit on
// survivors for the next cycle. Empty blocks (every cell in the block
// freed this cycle) are not physically released in this arena — Go's own
// allocator already owns that memory and releasing a partial slice back to
// the runtime needs no bookkeeping here, unlike the original's manual
// block free; the first block's cells simply participate in the same
// freelist as every other cell.
func (a *Arena[T]) Sweep(destroy func(ref Ref, cell *T)) (freed int) {
	for ref := Ref(1); int(ref) < len(a.headers); ref++ {
		h := &a.headers[ref]
		if h.free {
			continue
		}
		if !h.reachable {
			if destroy != nil {
				destroy(ref, &a.cells[ref])
			}
			var zero T
			a.cells[ref] = zero
			h.free = true
			h.next = a.freeHd
			a.freeHd = ref
			freed++
			continue
		}
		h.reachable = false
	}
	return freed
}

// Stats reports per-arena allocation accounting, grounded on the original's
// heapusage.c (spec §7 of SPEC_FULL).
type Stats struct {
	TotalCells int
	LiveCells  int
	FreeCells  int
	Blocks     int
}

func (a *Arena[T]) Stats() Stats {
	s := Stats{TotalCells: len(a.headers) - 1, Blocks: len(a.blocks)}
	for ref := Ref(1); int(ref) < len(a.headers); ref++ {
		if a.headers[ref].free {
			s.FreeCells++
		} else {
			s.LiveCells++
		}
	}
	return s
}
