// Package assertx holds the small generic assertions shared by tests.
package assertx

import (
	"slices"
	"testing"
)

// Equal fails if want != got.
func Equal[T comparable](t testing.TB, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// EqualSlices fails unless want and got hold the same elements in order.
func EqualSlices[T comparable](t testing.TB, want, got []T) {
	t.Helper()
	if !slices.Equal(want, got) {
		t.Fatalf("want %v, got %v", want, got)
	}
}
