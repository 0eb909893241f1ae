package wfc

import "testing"

func TestIndexSetEmptyAndFull(t *testing.T) {
	empty := NewIndexSet(5)
	if empty.Count() != 0 {
		t.Errorf("Count() = %d, want 0", empty.Count())
	}
	if empty.Contains(3) {
		t.Error("empty set should not contain 3")
	}

	full := NewFullIndexSet(5)
	if full.Count() != 5 {
		t.Errorf("Count() = %d, want 5", full.Count())
	}
	for i := 0; i < 5; i++ {
		if !full.Contains(i) {
			t.Errorf("full set should contain %d", i)
		}
		if full.At(i) != i {
			t.Errorf("At(%d) = %d, want %d", i, full.At(i), i)
		}
	}
}

func TestIndexSetAddRemove(t *testing.T) {
	s := NewIndexSet(10)
	if !s.Add(4) {
		t.Error("Add(4) on empty set should report change")
	}
	if s.Add(4) {
		t.Error("second Add(4) should not report change")
	}
	if !s.Contains(4) {
		t.Error("set should contain 4 after Add")
	}

	// add then remove restores the original membership
	s.Add(7)
	if !s.Remove(7) {
		t.Error("Remove(7) should report presence")
	}
	if s.Contains(7) {
		t.Error("set should not contain 7 after Remove")
	}
	if s.Remove(7) {
		t.Error("second Remove(7) should report absence")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestIndexSetRemoveAtSwapsLast(t *testing.T) {
	s := NewIndexSet(10)
	for _, v := range []int{2, 5, 8} {
		s.Add(v)
	}
	removed := s.RemoveAt(0)
	if removed != 2 {
		t.Errorf("RemoveAt(0) = %d, want 2", removed)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
	// the last member took the vacated slot
	if s.At(0) != 8 {
		t.Errorf("At(0) = %d, want 8", s.At(0))
	}
	if !s.Contains(5) || !s.Contains(8) || s.Contains(2) {
		t.Error("membership wrong after RemoveAt")
	}
}

func TestIndexSetIterationYieldsEachMemberOnce(t *testing.T) {
	s := NewIndexSet(20)
	members := []int{3, 17, 0, 9, 12}
	for _, v := range members {
		s.Add(v)
	}
	seen := make(map[int]int)
	for i := 0; i < s.Count(); i++ {
		seen[s.At(i)]++
	}
	if len(seen) != len(members) {
		t.Fatalf("iteration yielded %d distinct members, want %d", len(seen), len(members))
	}
	for _, v := range members {
		if seen[v] != 1 {
			t.Errorf("member %d yielded %d times, want 1", v, seen[v])
		}
	}
}

func TestIndexSetIntersect(t *testing.T) {
	a := NewIndexSet(10)
	for _, v := range []int{1, 2, 3, 4} {
		a.Add(v)
	}
	b := NewIndexSet(10)
	for _, v := range []int{3, 4, 5} {
		b.Add(v)
	}
	a.Intersect(b)
	if a.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", a.Count())
	}
	if !a.Contains(3) || !a.Contains(4) {
		t.Error("intersection should contain 3 and 4")
	}
}

func TestIndexSetCloneIsIndependent(t *testing.T) {
	s := NewIndexSet(10)
	s.Add(1)
	s.Add(2)
	c := s.Clone()
	c.Remove(1)
	if !s.Contains(1) {
		t.Error("removing from the clone mutated the original")
	}
	if c.Contains(1) {
		t.Error("clone should not contain 1 after Remove")
	}
	s.Add(3)
	if c.Contains(3) {
		t.Error("adding to the original mutated the clone")
	}
}
