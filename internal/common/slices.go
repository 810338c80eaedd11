package common

import (
	"cmp"
	"slices"

	"github.com/hbollon/go-edlib"
)

// SortBy returns a copy of items stably sorted by the given comparison.
// The input slice is left untouched.
func SortBy[T any](items []T, compare func(a, b T) int) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, compare)
	return out
}

// DedupeBy returns items with later duplicates (by key) removed, preserving order.
func DedupeBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Filter returns the items for which keep returns true.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Ascending compares two ordered values for use with SortBy.
func Ascending[T cmp.Ordered](a, b T) int {
	return cmp.Compare(a, b)
}

// Descending is the reverse of Ascending.
func Descending[T cmp.Ordered](a, b T) int {
	return cmp.Compare(b, a)
}

// EditDistance is the Levenshtein distance between a and b, counted in runes.
func EditDistance(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}
