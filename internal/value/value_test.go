package value

import (
	"math"
	"testing"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	cases := []Val{Undefined(), Null(), Bool(true), Bool(false), NaN(), Number(42), Number(-0.5)}
	for _, v := range cases {
		got := Val(uint64(v))
		if got != v {
			t.Fatalf("round trip mismatch for %v", v)
		}
	}
}

func TestNumberTagging(t *testing.T) {
	if Number(3.5).Tag() != TagNumber {
		t.Fatalf("expected TagNumber")
	}
	if Number(math.NaN()).Tag() != TagNaN {
		t.Fatalf("NaN literal must coerce to TagNaN")
	}
	if Number(math.Inf(1)).Tag() != TagNumber {
		t.Fatalf("+Inf must remain TagNumber")
	}
}

func TestBooleans(t *testing.T) {
	if !Bool(true).AsBool() || Bool(false).AsBool() {
		t.Fatalf("boolean round trip broken")
	}
	if !Undefined().IsUndefined() || !Null().IsNull() {
		t.Fatalf("singleton predicates broken")
	}
}

func TestHandles(t *testing.T) {
	h := Handle(0xdeadbeefcafe & handleMask)
	if Object(h).AsHandle() != h {
		t.Fatalf("object handle round trip broken")
	}
	if Function(h).Tag() != TagFunction || Regexp(h).Tag() != TagRegexp {
		t.Fatalf("wrong tag for function/regexp handles")
	}
	if !Function(h).IsCallable() || !CFunction(h).IsCallable() {
		t.Fatalf("callables must report IsCallable")
	}
	if !Object(h).IsObjectLike() || !Function(h).IsObjectLike() || !Regexp(h).IsObjectLike() {
		t.Fatalf("object/function/regexp must report IsObjectLike")
	}
}

func TestStringInline4(t *testing.T) {
	for _, s := range [][]byte{{}, {'a'}, {'a', 'b'}, []byte("abcd")} {
		v := StringInline4(s)
		if v.Tag() != TagString || v.StringKind() != StrInline4 {
			t.Fatalf("bad tag/kind for inline4 %q", s)
		}
		got := v.Inline4Bytes()
		if string(got) != string(s) {
			t.Fatalf("inline4 round trip: got %q want %q", got, s)
		}
	}
}

func TestStringInline5(t *testing.T) {
	var b [5]byte
	copy(b[:], "hello")
	v := StringInline5(b)
	if v.StringKind() != StrInline5 || v.Inline5Bytes() != b {
		t.Fatalf("inline5 round trip broken")
	}
}

func TestStringOwned(t *testing.T) {
	v := StringOwned(123456, 777)
	if v.StringKind() != StrOwned || v.OwnedOffset() != 123456 || v.OwnedASN() != 777 {
		t.Fatalf("owned string round trip broken: off=%d asn=%d", v.OwnedOffset(), v.OwnedASN())
	}
}

func TestStringDictAndForeign(t *testing.T) {
	if StringDict(42).DictIndex() != 42 {
		t.Fatalf("dict round trip broken")
	}
	if StringForeign(99).ForeignIndex() != 99 {
		t.Fatalf("foreign round trip broken")
	}
}
