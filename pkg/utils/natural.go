package utils

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

// trailingNumber returns the last run of digits in the base name of key
// (extension ignored) and whether one was found.
func trailingNumber(key string) (uint64, string, bool) {
	base := path.Base(key)
	stem := strings.TrimSuffix(base, path.Ext(base))

	end := len(stem)
	for end > 0 && (stem[end-1] < '0' || stem[end-1] > '9') {
		end--
	}
	start := end
	for start > 0 && stem[start-1] >= '0' && stem[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, stem, false
	}
	n, err := strconv.ParseUint(stem[start:end], 10, 64)
	if err != nil {
		return 0, stem, false
	}
	return n, stem[:start], true
}

// NaturalLess orders keys so that "design3/2.jpg" sorts before "design3/10.jpg".
// Keys are compared by directory, then by the text before the trailing digit
// run, then numerically by that run. Keys without digits sort after numbered
// siblings, lexically among themselves.
func NaturalLess(a, b string) bool {
	if da, db := path.Dir(a), path.Dir(b); da != db {
		return da < db
	}
	na, pa, oka := trailingNumber(a)
	nb, pb, okb := trailingNumber(b)
	switch {
	case oka && okb:
		if pa != pb {
			return pa < pb
		}
		if na != nb {
			return na < nb
		}
		return a < b
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}

// SortNatural sorts keys in place using NaturalLess.
func SortNatural(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool { return NaturalLess(keys[i], keys[j]) })
}
