// Package liked holds the set of dogs a user marked as favorites.
package liked

import "sort"

// Set maps a dog id to true. Presence means liked; absent ids are not liked.
type Set map[string]bool

// Has reports whether id is liked.
func (s Set) Has(id string) bool { return s[id] }

// Len returns the number of liked dogs.
func (s Set) Len() int { return len(s) }

// Toggle returns a copy of s with the membership of id flipped.
// The receiver is left untouched.
func (s Set) Toggle(id string) Set {
	next := s.Clone()
	if next[id] {
		delete(next, id)
	} else {
		next[id] = true
	}
	return next
}

// Clone returns an independent copy. A nil set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id, v := range s {
		if v {
			out[id] = true
		}
	}
	return out
}

// IDs returns the liked ids in lexical order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id, v := range s {
		if v {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
