// Package collection has generic slice helpers used by the report code.
package collection

import (
	"cmp"
	"slices"
)

// Map applies fn to every element.
func Map[T, R any](s []T, fn func(T) R) []R {
	out := make([]R, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Filter keeps the elements for which fn is true.
func Filter[T any](s []T, fn func(T) bool) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// CountBy counts elements per key.
func CountBy[T any, K comparable](s []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, v := range s {
		out[key(v)]++
	}
	return out
}

// SumBy adds val(v) per key(v).
func SumBy[T any, K comparable](s []T, key func(T) K, val func(T) int) map[K]int {
	out := make(map[K]int)
	for _, v := range s {
		out[key(v)] += val(v)
	}
	return out
}

// KeyBy indexes s by key; later elements win.
func KeyBy[T any, K comparable](s []T, key func(T) K) map[K]T {
	out := make(map[K]T, len(s))
	for _, v := range s {
		out[key(v)] = v
	}
	return out
}

// Unique returns s without duplicates, keeping first occurrences.
func Unique[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	out := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Ranked is a key with a total.
type Ranked[K cmp.Ordered] struct {
	Key   K
	Total int
}

// TopN ranks totals descending with ties broken by ascending key, and
// keeps the first n (all when n <= 0).
func TopN[K cmp.Ordered](totals map[K]int, n int) []Ranked[K] {
	out := make([]Ranked[K], 0, len(totals))
	for k, v := range totals {
		out = append(out, Ranked[K]{Key: k, Total: v})
	}
	slices.SortFunc(out, func(a, b Ranked[K]) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Take returns the first n elements.
func Take[T any](s []T, n int) []T {
	if n >= len(s) {
		return s
	}
	return s[:max(n, 0)]
}
