// Package strheap implements the engine's string storage (spec §3.3, §4.1):
// a compacting owned-string mbuf, a foreign-string index table, and
// dictionary interning, all addressed through value.Val's five string
// sub-tags.
package strheap

import (
	"bytes"
	"fmt"

	"github.com/informatter/v7go/internal/value"
	"github.com/informatter/v7go/internal/varint"
)

// CompactThreshold is the owned-mbuf fill ratio (relative to its last
// compaction size) past which the VM should request a GC pass (spec §4.8
// step 4: "GC was requested ... when the owned mbuf fill ratio exceeds
// 90%"). Exposed so internal/vm can poll it without reaching into fields.
const CompactThreshold = 0.90

// Heap owns the compacting byte arena for "owned" strings and the index
// table for "foreign" (host-supplied, uncopied) strings.
type Heap struct {
	owned []byte // varint-len-prefixed, NUL-terminated records

	asn       uint16 // next allocation sequence number to stamp
	minLiveASN uint16 // oldest ASN guaranteed still resident (wraps)

	foreign []string // foreign-string table; never compacted, entries are
	// plain Go strings the host handed us a reference to — Go's own GC
	// keeps their backing array alive, so there is nothing to relocate.

	highWater int // owned length at last compaction, for CompactThreshold
}

// New returns an empty string heap.
func New() *Heap {
	return &Heap{}
}

// FillRatio reports how full the owned mbuf is relative to its size as of
// the last compaction. A host polls this each VM instruction (spec §4.8).
func (h *Heap) FillRatio() float64 {
	if h.highWater == 0 {
		return 0
	}
	return float64(len(h.owned)) / float64(h.highWater)
}

// MkString implements the mk_string selection policy of spec §4.1: small
// strings are packed directly into the val, known strings are interned via
// the dictionary, and everything else goes to the owned or foreign heap
// depending on whether the caller wants the bytes copied.
func (h *Heap) MkString(b []byte, copyBytes bool) value.Val {
	switch len(b) {
	case 0, 1, 2, 3, 4:
		return value.StringInline4(b)
	case 5:
		var arr [5]byte
		copy(arr[:], b)
		return value.StringInline5(arr)
	}
	if idx, ok := lookupDict(string(b)); ok {
		return value.StringDict(uint16(idx))
	}
	if !copyBytes {
		h.foreign = append(h.foreign, string(b))
		return value.StringForeign(uint64(len(h.foreign) - 1))
	}
	return h.appendOwned(b)
}

func (h *Heap) appendOwned(b []byte) value.Val {
	offset := uint32(len(h.owned))
	h.owned = varint.Put(h.owned, uint64(len(b)))
	h.owned = append(h.owned, b...)
	h.owned = append(h.owned, 0) // NUL terminator, for C-interop accessors
	asn := h.asn
	h.asn++
	return value.StringOwned(offset, asn)
}

// GetString returns the raw bytes referenced by v. v must carry TagString.
func (h *Heap) GetString(v value.Val) ([]byte, error) {
	switch v.StringKind() {
	case value.StrInline4:
		return v.Inline4Bytes(), nil
	case value.StrInline5:
		arr := v.Inline5Bytes()
		return arr[:], nil
	case value.StrDict:
		idx := v.DictIndex()
		if int(idx) >= len(dictionary) {
			return nil, fmt.Errorf("strheap: dictionary index %d out of range", idx)
		}
		return []byte(dictionary[idx]), nil
	case value.StrOwned:
		return h.ownedBytes(v)
	case value.StrForeign:
		idx := v.ForeignIndex()
		if idx >= uint64(len(h.foreign)) {
			return nil, fmt.Errorf("strheap: foreign index %d out of range", idx)
		}
		return []byte(h.foreign[idx]), nil
	}
	return nil, fmt.Errorf("strheap: value does not carry a string tag")
}

func (h *Heap) ownedBytes(v value.Val) ([]byte, error) {
	if err := h.checkASN(v.OwnedASN()); err != nil {
		return nil, err
	}
	off := int(v.OwnedOffset())
	if off < 0 || off >= len(h.owned) {
		return nil, fmt.Errorf("strheap: owned offset %d out of range", off)
	}
	n, consumed := varint.Get(h.owned[off:])
	if consumed == 0 {
		return nil, fmt.Errorf("strheap: corrupt owned-string length at offset %d", off)
	}
	start := off + consumed
	end := start + int(n)
	if end > len(h.owned) {
		return nil, fmt.Errorf("strheap: owned string at offset %d overruns heap", off)
	}
	return h.owned[start:end], nil
}

// checkASN enforces the invariant that every owned-string val's stamp falls
// within [minLiveASN, asn) (with 16-bit wraparound), spec §4.1 "ASN
// discipline" and the quantified invariant of spec §8.
func (h *Heap) checkASN(stamp uint16) error {
	if h.asn >= h.minLiveASN {
		if stamp < h.minLiveASN || stamp >= h.asn {
			return fmt.Errorf("strheap: stale owned-string reference (asn=%d not in [%d,%d))", stamp, h.minLiveASN, h.asn)
		}
		return nil
	}
	// asn has wrapped past 65535 since minLiveASN was recorded.
	if stamp < h.minLiveASN && stamp >= h.asn {
		return fmt.Errorf("strheap: stale owned-string reference (asn=%d not in wrapped range)", stamp)
	}
	return nil
}

// Concat allocates a single new owned string holding a's bytes followed by
// b's bytes. Both sources are re-read after the allocation site that could
// grow the mbuf, since append may relocate the backing array (spec §4.1:
// "re-reading their pointers after the allocation, because the mbuf may
// relocate").
func (h *Heap) Concat(a, b value.Val) (value.Val, error) {
	ab, err := h.GetString(a)
	if err != nil {
		return 0, err
	}
	abCopy := append([]byte(nil), ab...)
	bb, err := h.GetString(b)
	if err != nil {
		return 0, err
	}
	out := make([]byte, 0, len(abCopy)+len(bb))
	out = append(out, abCopy...)
	out = append(out, bb...)
	return h.MkString(out, true), nil
}

// Cmp performs a byte-lexicographic comparison, returning <0, 0, or >0.
func (h *Heap) Cmp(a, b value.Val) (int, error) {
	ab, err := h.GetString(a)
	if err != nil {
		return 0, err
	}
	bb, err := h.GetString(b)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(ab, bb), nil
}

// Root is a single owned-string val slot a caller wants kept valid across a
// Compact pass — typically a slot on the VM data stack, inside a literal
// table, or inside an object property (spec §4.2 roots R1-R6 restricted to
// the ones that can hold owned strings). It is value.Root under another
// name so call sites that already have a value.Root do not need to wrap it.
type Root = value.Root

// Compact performs the owned-mbuf compaction pass (spec §4.1): only the
// strings reachable from roots survive; survivors are repacked to the front
// of a fresh buffer in root-visitation order, and every root is rewritten
// in place to the string's new offset, preserving its ASN. Go's value
// semantics mean there is no "back-pointer chain" to walk physically — the
// caller (internal/gcarena, which already owns the authoritative root list
// per spec §4.2) supplies the roots directly instead.
func (h *Heap) Compact(roots []Root) error {
	newBuf := make([]byte, 0, len(h.owned))
	seen := make(map[uint32]uint32) // old offset -> new offset
	minASN := h.asn
	anyLive := false

	for _, r := range roots {
		v := r.Get()
		if v.Tag() != value.TagString || v.StringKind() != value.StrOwned {
			continue
		}
		oldOff := v.OwnedOffset()
		newOff, ok := seen[oldOff]
		if !ok {
			b, err := h.ownedBytes(v)
			if err != nil {
				return err
			}
			newOff = uint32(len(newBuf))
			newBuf = varint.Put(newBuf, uint64(len(b)))
			newBuf = append(newBuf, b...)
			newBuf = append(newBuf, 0)
			seen[oldOff] = newOff
		}
		r.Set(value.StringOwned(newOff, v.OwnedASN()))
		if !anyLive || v.OwnedASN() < minASN {
			minASN = v.OwnedASN()
			anyLive = true
		}
	}

	h.owned = newBuf
	h.highWater = len(h.owned)
	if anyLive {
		h.minLiveASN = minASN
	} else {
		h.minLiveASN = h.asn
	}
	return nil
}
