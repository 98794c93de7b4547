package cacheengine

import "testing"

func TestStripedLocksSizedToNextPrimeAboveDouble(t *testing.T) {
	sl := newStripedLocks(5) // next prime above 10 is 11
	if len(sl.slots) != 11 {
		t.Fatalf("len(slots) = %d, want 11", len(sl.slots))
	}
}

func TestSlotForIsStable(t *testing.T) {
	sl := newStripedLocks(10)
	a := sl.slotFor("example.com/x")
	b := sl.slotFor("example.com/x")
	if a != b {
		t.Fatalf("slotFor is not stable for the same key")
	}
}
