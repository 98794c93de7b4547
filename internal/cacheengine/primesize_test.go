package cacheengine

import "testing"

func TestNextPrimeAbove(t *testing.T) {
	cases := map[int]int{
		0:  2,
		1:  2,
		2:  3,
		3:  5,
		8:  11,
		10: 11,
		14: 17,
	}
	for n, want := range cases {
		if got := nextPrimeAbove(n); got != want {
			t.Errorf("nextPrimeAbove(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestIsPrime(t *testing.T) {
	primes := []int{2, 3, 5, 7, 11, 13}
	for _, p := range primes {
		if !isPrime(p) {
			t.Errorf("isPrime(%d) = false, want true", p)
		}
	}
	composites := []int{0, 1, 4, 6, 8, 9, 10}
	for _, c := range composites {
		if isPrime(c) {
			t.Errorf("isPrime(%d) = true, want false", c)
		}
	}
}
