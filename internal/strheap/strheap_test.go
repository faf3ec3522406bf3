package strheap

import (
	"testing"

	"github.com/informatter/v7go/internal/value"
)

func TestMkStringSelectionPolicy(t *testing.T) {
	h := New()
	cases := []struct {
		s    string
		kind value.StringKind
	}{
		{"", value.StrInline4},
		{"abcd", value.StrInline4},
		{"abcde", value.StrInline5},
		{"Object", value.StrDict},
		{"a brand new unique owned string literal", 0},
	}
	for _, c := range cases {
		v := h.MkString([]byte(c.s), true)
		if v.Tag() != value.TagString {
			t.Fatalf("MkString(%q) did not produce a string tag", c.s)
		}
		got, err := h.GetString(v)
		if err != nil {
			t.Fatalf("GetString(%q): %v", c.s, err)
		}
		if string(got) != c.s {
			t.Fatalf("round trip: got %q want %q", got, c.s)
		}
	}
}

func TestMkStringForeign(t *testing.T) {
	h := New()
	s := "a foreign-owned unique byte slice"
	v := h.MkString([]byte(s), false)
	if v.StringKind() != value.StrForeign {
		t.Fatalf("expected foreign kind, got %v", v.StringKind())
	}
	got, err := h.GetString(v)
	if err != nil || string(got) != s {
		t.Fatalf("foreign round trip failed: %q %v", got, err)
	}
}

func TestConcat(t *testing.T) {
	h := New()
	a := h.MkString([]byte("a unique owned prefix string"), true)
	b := h.MkString([]byte("a unique owned suffix string"), true)
	c, err := h.Concat(a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	got, _ := h.GetString(c)
	want := "a unique owned prefix stringa unique owned suffix string"
	if string(got) != want {
		t.Fatalf("concat mismatch: got %q want %q", got, want)
	}
}

func TestCmp(t *testing.T) {
	h := New()
	a := h.MkString([]byte("a first unique owned string"), true)
	b := h.MkString([]byte("z second unique owned string"), true)
	if cmp, _ := h.Cmp(a, b); cmp >= 0 {
		t.Fatalf("expected a < b, got cmp=%d", cmp)
	}
}

type testRoot struct{ v value.Val }

func (r *testRoot) Get() value.Val  { return r.v }
func (r *testRoot) Set(v value.Val) { r.v = v }

func TestCompactSurvivesAndRelocates(t *testing.T) {
	h := New()
	r1 := &testRoot{v: h.MkString([]byte("a long lived owned string number one"), true)}
	_ = h.MkString([]byte("a garbage owned string that nothing roots"), true)
	r2 := &testRoot{v: h.MkString([]byte("a long lived owned string number two"), true)}

	if err := h.Compact([]Root{r1, r2}); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	got1, err := h.GetString(r1.v)
	if err != nil || string(got1) != "a long lived owned string number one" {
		t.Fatalf("root1 did not survive compaction intact: %q %v", got1, err)
	}
	got2, err := h.GetString(r2.v)
	if err != nil || string(got2) != "a long lived owned string number two" {
		t.Fatalf("root2 did not survive compaction intact: %q %v", got2, err)
	}
	if len(h.owned) >= 200 {
		t.Fatalf("garbage string was not reclaimed by compaction: heap size %d", len(h.owned))
	}
}

func TestStaleASNDetected(t *testing.T) {
	h := New()
	r := &testRoot{v: h.MkString([]byte("a string that will become stale"), true)}
	_ = r
	stale := value.StringOwned(0, 9999)
	if _, err := h.GetString(stale); err == nil {
		t.Fatalf("expected stale ASN to be rejected")
	}
}
