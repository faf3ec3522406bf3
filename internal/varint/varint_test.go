package varint

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		enc := Put(nil, v)
		if len(enc) != Len(v) {
			t.Fatalf("Len(%d)=%d, Put produced %d bytes", v, Len(v), len(enc))
		}
		got, n := Get(enc)
		if n != len(enc) || got != v {
			t.Fatalf("round trip of %d failed: got=%d n=%d", v, got, n)
		}
	}
}

func TestGetIncomplete(t *testing.T) {
	if v, n := Get([]byte{0x80, 0x80}); n != 0 || v != 0 {
		t.Fatalf("expected incomplete varint to report n=0, got v=%d n=%d", v, n)
	}
}

func TestSwap(t *testing.T) {
	if SwapUint16(0x1234) != 0x3412 {
		t.Fatalf("SwapUint16 mismatch")
	}
	if SwapUint32(0x11223344) != 0x44332211 {
		t.Fatalf("SwapUint32 mismatch")
	}
}
