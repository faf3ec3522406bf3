package gcarena

import "github.com/informatter/v7go/internal/value"

// OwnedRoots is the engine-wide `own`/`disown` list (spec §4.2 root R5,
// §6.1): a LIFO stack of host-held val slots that must survive GC even
// though they are not reachable from the VM's own data stack or call
// frames — e.g. a val a C-like embedder stashed in a local variable across
// a call that can trigger allocation.
type OwnedRoots struct {
	slots []*value.Val
}

// Own pushes p onto the root list; GC will visit *p until Disown(p).
func (o *OwnedRoots) Own(p *value.Val) {
	o.slots = append(o.slots, p)
}

// Disown pops the most recently owned slot. Per spec §6.1 this is strictly
// LIFO: p must be the top of the stack.
func (o *OwnedRoots) Disown(p *value.Val) bool {
	if len(o.slots) == 0 || o.slots[len(o.slots)-1] != p {
		return false
	}
	o.slots = o.slots[:len(o.slots)-1]
	return true
}

// Roots returns a value.Root view over every currently owned slot.
func (o *OwnedRoots) Roots() []value.Root {
	out := make([]value.Root, len(o.slots))
	for i, p := range o.slots {
		out[i] = ptrRoot{p}
	}
	return out
}

func (o *OwnedRoots) Len() int { return len(o.slots) }

type ptrRoot struct{ p *value.Val }

func (r ptrRoot) Get() value.Val  { return *r.p }
func (r ptrRoot) Set(v value.Val) { *r.p = v }
