package lfq_test

import (
	"testing"

	"github.com/shmbus/shmbus/lfq"
)

func TestSPSCRoundTrip(t *testing.T) {
	q := lfq.NewSPSC(4)
	if q.Cap() != 4 {
		t.Fatalf("expected capacity rounded to 4, got %d", q.Cap())
	}
	for i := uint64(0); i < 4; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d should succeed", i)
		}
	}
	if q.Push(99) {
		t.Fatal("push into full ring should fail")
	}
	for i := uint64(0); i < 4; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop from empty ring should fail")
	}
}

func TestSPSCWraparound(t *testing.T) {
	q := lfq.NewSPSC(2)
	for round := 0; round < 100; round++ {
		q.Push(uint64(round))
		v, ok := q.Pop()
		if !ok || v != uint64(round) {
			t.Fatalf("round %d: got %d ok=%v", round, v, ok)
		}
	}
}

func TestBitsetSetClearEach(t *testing.T) {
	b := lfq.NewBitset(130)
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(129)

	var got []int
	b.Each(func(i int) { got = append(got, i) })
	want := []int{0, 63, 64, 129}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if !b.TestAndClear(63) {
		t.Fatal("expected bit 63 to have been set")
	}
	if b.Test(63) {
		t.Fatal("bit 63 should be cleared")
	}
	if b.TestAndClear(63) {
		t.Fatal("second TestAndClear should report false")
	}
}

func TestRegSetCapacityAndDedup(t *testing.T) {
	s := lfq.NewRegSet(2)
	if !s.Register("b-one", 1) {
		t.Fatal("first register should succeed")
	}
	if !s.Register("a-two", 2) {
		t.Fatal("second register should succeed")
	}
	if s.Register("c-three", 3) {
		t.Fatal("register beyond capacity should fail")
	}
	if s.Register("b-one", 99) {
		t.Fatal("duplicate id should be rejected")
	}
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0] != "a-two" || snap[1] != "b-one" {
		t.Fatalf("expected sorted [a-two b-one], got %v", snap)
	}
	s.Unregister("a-two")
	if s.Len() != 1 {
		t.Fatalf("expected 1 after unregister, got %d", s.Len())
	}
}
