package skiplist

import (
	"math/rand"
	"testing"
)

func TestSeqInsertContainsRemove(t *testing.T) {
	l := NewOrderedSeq[int, string](nil)

	if _, ok := l.Contains(1); ok {
		t.Fatalf("empty list should not contain 1")
	}

	l.Insert(5, "five")
	l.Insert(3, "three")
	l.Insert(7, "seven")

	if v, ok := l.Contains(5); !ok || v != "five" {
		t.Fatalf("Contains(5) = %v, %v; want five, true", v, ok)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", l.Len())
	}

	l.Insert(5, "FIVE")
	if v, _ := l.Contains(5); v != "FIVE" {
		t.Fatalf("overwrite failed, got %v", v)
	}
	if l.Len() != 3 {
		t.Fatalf("overwrite should not change Len(), got %d", l.Len())
	}

	if !l.Remove(3) {
		t.Fatalf("Remove(3) should report true")
	}
	if l.Remove(3) {
		t.Fatalf("second Remove(3) should report false")
	}
	if _, ok := l.Contains(3); ok {
		t.Fatalf("3 should be gone")
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", l.Len())
	}
	if !l.IsConsistent() {
		t.Fatalf("list not consistent")
	}
}

func TestSeqSequentialPermutation(t *testing.T) {
	const n = 100
	perm := rand.New(rand.NewSource(1)).Perm(n)

	l := NewOrderedSeq[int, int](nil)
	for _, k := range perm {
		l.Insert(k, k*k)
	}
	if l.Len() != n {
		t.Fatalf("Len() = %d; want %d", l.Len(), n)
	}
	if !l.IsConsistent() {
		t.Fatalf("list not consistent after permutation insert")
	}

	keys := l.Keys()
	if len(keys) != n {
		t.Fatalf("Keys() returned %d keys; want %d", len(keys), n)
	}
	for i, k := range keys {
		if k != i {
			t.Fatalf("Keys()[%d] = %d; want %d", i, k, i)
		}
		if v, ok := l.Contains(k); !ok || v != k*k {
			t.Fatalf("Contains(%d) = %v, %v; want %d, true", k, v, ok, k*k)
		}
	}

	for _, k := range perm {
		if !l.Remove(k) {
			t.Fatalf("Remove(%d) should report true", k)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("Len() = %d; want 0 after removing everything", l.Len())
	}
}

func TestSeqDuplicateChurn(t *testing.T) {
	l := NewOrderedSeq[int, int](nil)
	for i := 0; i < 5; i++ {
		l.Insert(42, i)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d; want 1 after repeated insert of same key", l.Len())
	}
	if v, _ := l.Contains(42); v != 4 {
		t.Fatalf("Contains(42) = %d; want 4 (last write wins)", v)
	}

	if !l.Remove(42) {
		t.Fatalf("Remove(42) should succeed")
	}
	for i := 0; i < 5; i++ {
		if l.Remove(42) {
			t.Fatalf("Remove(42) should fail once key is gone")
		}
	}
}

func TestSeqString(t *testing.T) {
	l := NewOrderedSeq[int, int](nil)
	l.Insert(1, 1)
	l.Insert(2, 2)
	s := l.String()
	if s == "" {
		t.Fatalf("String() returned empty output")
	}
}
