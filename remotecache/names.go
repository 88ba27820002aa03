package remotecache

import (
	"sort"
	"strings"
)

// AccessorKind identifies what a generated accessor does.
type AccessorKind string

const (
	KindFind         AccessorKind = "find"
	KindFindStrict   AccessorKind = "find!"
	KindSearch       AccessorKind = "search"
	KindSearchStrict AccessorKind = "search!"
	KindExistFind    AccessorKind = "exist_find"
	KindExistSearch  AccessorKind = "exist_search"
	KindDelete       AccessorKind = "delete"
)

// attributeSeparator joins attribute names inside an accessor name.
const attributeSeparator = "_and_"

const (
	operationFind   = "#find"
	operationSearch = "#search"
)

// accessorName returns the canonical name of kind for attrs, in the given order.
//
//	accessorName(KindSearchStrict, []string{"user_guid", "client_guid"})
//	// cached_search_by_user_guid_and_client_guid!
func accessorName(kind AccessorKind, attrs []string) string {
	joined := strings.Join(attrs, attributeSeparator)
	switch kind {
	case KindFind:
		return "cached_find_by_" + joined
	case KindFindStrict:
		return "cached_find_by_" + joined + "!"
	case KindSearch:
		return "cached_search_by_" + joined
	case KindSearchStrict:
		return "cached_search_by_" + joined + "!"
	case KindExistFind:
		return "cached_exist_find_by_" + joined
	case KindExistSearch:
		return "cached_exist_search_by_" + joined
	case KindDelete:
		return "cached_delete_by_" + joined
	default:
		return ""
	}
}

type accessorSlot struct {
	name string
	kind AccessorKind
}

var slotKinds = []AccessorKind{KindDelete, KindExistFind, KindExistSearch, KindFind, KindFindStrict, KindSearch, KindSearchStrict}

// accessorSlots lists every name installed for one permutation.
// Exist accessors get an extra "?" alias.
func accessorSlots(attrs []string) []accessorSlot {
	out := make([]accessorSlot, 0, len(slotKinds)+2)
	for _, kind := range slotKinds {
		name := accessorName(kind, attrs)
		out = append(out, accessorSlot{name: name, kind: kind})
		if kind == KindExistFind || kind == KindExistSearch {
			out = append(out, accessorSlot{name: name + "?", kind: kind})
		}
	}
	return out
}

// normalizeAttributes returns a sorted copy of attrs with blanks and duplicates removed.
func normalizeAttributes(attrs []string) []string {
	seen := make(map[string]struct{}, len(attrs))
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// permutations returns every ordering of attrs, starting with attrs itself.
func permutations(attrs []string) [][]string {
	if len(attrs) <= 1 {
		return [][]string{append([]string(nil), attrs...)}
	}

	var out [][]string
	for i, head := range attrs {
		rest := make([]string, 0, len(attrs)-1)
		rest = append(rest, attrs[:i]...)
		rest = append(rest, attrs[i+1:]...)

		for _, tail := range permutations(rest) {
			perm := make([]string, 0, len(attrs))
			perm = append(perm, head)
			perm = append(perm, tail...)
			out = append(out, perm)
		}
	}
	return out
}
