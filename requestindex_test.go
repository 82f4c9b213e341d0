package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIndexAddFindRemove(t *testing.T) {
	idx := NewRequestIndex(NewNoOpLogger())

	if !idx.Add(1, "conn-1") {
		t.Fatal("Add(1, ...) on a fresh index should succeed")
	}
	if idx.Add(1, "conn-1-dup") {
		t.Fatal("Add(1, ...) a second time should fail (duplicate)")
	}

	v, ok := idx.Find(1)
	if !ok || v != "conn-1" {
		t.Fatalf("Find(1) = (%v, %v), want (conn-1, true)", v, ok)
	}

	if _, ok := idx.Find(2); ok {
		t.Fatal("Find(2) on an absent key should report ok=false")
	}

	if !idx.Remove(1) {
		t.Fatal("Remove(1) should succeed while present")
	}
	if idx.Remove(1) {
		t.Fatal("Remove(1) a second time should fail (already removed)")
	}
}

func TestRequestIndexFindRemove(t *testing.T) {
	idx := NewRequestIndex(NewNoOpLogger())
	idx.Add(42, "data")

	v, ok := idx.FindRemove(42)
	if !ok || v != "data" {
		t.Fatalf("FindRemove(42) = (%v, %v), want (data, true)", v, ok)
	}
	if _, ok := idx.Find(42); ok {
		t.Fatal("42 should no longer be present after FindRemove")
	}
	if _, ok := idx.FindRemove(42); ok {
		t.Fatal("FindRemove(42) on an absent key should report ok=false")
	}
}

// TestRequestIndexConcurrency exercises the sharded map with 10,000
// distinct request IDs added and found concurrently, roughly the in-flight
// request count of a busy worker.
func TestRequestIndexConcurrency(t *testing.T) {
	idx := NewRequestIndex(NewNoOpLogger())
	const n = 10000

	ids := make([]uint32, 0, n)
	seen := make(map[uint32]struct{}, n)
	for len(ids) < n {
		u := uuid.New()
		// Fold the UUID down into the 32-bit req_id space, rejecting the
		// rare fold collision so every ID is distinct.
		var v uint32
		for _, b := range u {
			v = v*31 + uint32(b)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		id := ids[i]
		go func() {
			defer wg.Done()
			idx.Add(id, id)
		}()
	}
	wg.Wait()

	if got := idx.Len(); got != n {
		t.Fatalf("Len() = %d, want %d (duplicate IDs collided or an add was lost)", got, n)
	}

	// Interleave destructive reads of every other ID with plain lookups of
	// the rest: each FindRemove target must come back exactly once, while
	// the others stay findable throughout.
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		id := ids[i]
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				v, ok := idx.FindRemove(id)
				if !ok || v.(uint32) != id {
					t.Errorf("FindRemove(%d) = (%v, %v), want (%d, true)", id, v, ok, id)
				}
				return
			}
			v, ok := idx.Find(id)
			if !ok || v.(uint32) != id {
				t.Errorf("Find(%d) = (%v, %v), want (%d, true)", id, v, ok, id)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		_, ok := idx.Find(ids[i])
		if i%2 == 0 && ok {
			t.Fatalf("id %d should be gone after FindRemove", ids[i])
		}
		if i%2 == 1 && !ok {
			t.Fatalf("id %d should still be present", ids[i])
		}
	}
}

func TestRequestIndexLen(t *testing.T) {
	idx := NewRequestIndex(NewNoOpLogger())
	for i := uint32(0); i < 50; i++ {
		idx.Add(i, nil)
	}
	if got := idx.Len(); got != 50 {
		t.Errorf("Len() = %d, want 50", got)
	}
}
