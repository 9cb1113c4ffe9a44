package value

import "testing"

func TestSetGetRoundTrip(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Str("k"), Number(42))
	if got := tbl.Get(Str("k")); got.AsNumber() != 42 {
		t.Fatalf("Get after Set = %v, want 42", got)
	}
}

func TestArrayAbsorptionContiguous(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Number(1), Str("a"))
	tbl.Set(Number(2), Str("b"))
	tbl.Set(Number(3), Str("c"))
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
}

func TestArrayAbsorptionOutOfOrder(t *testing.T) {
	tbl := NewTable()
	// 2 assigned before 1: goes to hash first, then gets absorbed once 1
	// is set and the array part becomes contiguous.
	tbl.Set(Number(2), Str("b"))
	tbl.Set(Number(1), Str("a"))
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after absorption", tbl.Len())
	}
	if tbl.Get(Number(2)).AsString() != "b" {
		t.Fatalf("absorbed value lost")
	}
}

func TestNilErasesKey(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Str("k"), Number(1))
	tbl.Set(Str("k"), Nil)
	if !tbl.Get(Str("k")).IsNil() {
		t.Fatalf("key should be erased after nil assignment")
	}
}

func TestLenOnlyCountsArrayPart(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Number(1), Str("a"))
	tbl.Set(Str("x"), Str("hash entry"))
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (hash entries don't count)", tbl.Len())
	}
}

func TestNextVisitsEveryKeyOnce(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Number(1), Str("a"))
	tbl.Set(Number(2), Str("b"))
	tbl.Set(Str("x"), Str("hx"))
	tbl.Set(Str("y"), Str("hy"))

	seen := map[string]bool{}
	k, v, ok := tbl.Next(Nil)
	for ok && !k.IsNil() {
		seen[ToString(k)] = true
		_ = v
		k, v, ok = tbl.Next(k)
	}
	if !ok {
		t.Fatalf("Next reported an invalid key mid-traversal")
	}
	for _, want := range []string{"1", "2", "x", "y"} {
		if !seen[want] {
			t.Errorf("Next traversal missed key %q", want)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("Next traversal visited %d keys, want 4", len(seen))
	}
}

func TestGetFallsThroughToHashForSparseIntegerKey(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Number(5), Str("x"))
	if got := tbl.Get(Number(5)); got.AsString() != "x" {
		t.Fatalf("Get(5) = %v, want %q", got, "x")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (key 5 isn't part of a contiguous array)", tbl.Len())
	}
}

func TestSetNilMidArrayDemotesTailAndLeavesNoHole(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Number(1), Str("a"))
	tbl.Set(Number(2), Str("b"))
	tbl.Set(Number(3), Str("c"))

	tbl.Set(Number(2), Nil)

	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after demoting the tail out of the array", tbl.Len())
	}
	if !tbl.Get(Number(2)).IsNil() {
		t.Fatalf("key 2 should read nil after assignment")
	}
	if tbl.Get(Number(3)).AsString() != "c" {
		t.Fatalf("key 3 should survive demotion into the hash part, got %v", tbl.Get(Number(3)))
	}

	seen := map[string]bool{}
	k, _, ok := tbl.Next(Nil)
	for ok && !k.IsNil() {
		seen[ToString(k)] = true
		k, _, ok = tbl.Next(k)
	}
	if len(seen) != 2 || !seen["1"] || !seen["3"] {
		t.Fatalf("Next traversal after hole demotion = %v, want exactly {1, 3}", seen)
	}
}

func TestNextArrayBeforeHash(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Str("x"), Str("hx"))
	tbl.Set(Number(1), Str("a"))

	k, _, ok := tbl.Next(Nil)
	if !ok || k.AsNumber() != 1 {
		t.Fatalf("first Next() key = %v, want array key 1", k)
	}
}
