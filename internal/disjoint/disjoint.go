// Package disjoint implements a union-find structure over small ordered
// values, used by the blob labeler to merge provisional labels.
//
// Elements live in a flat arena. Each entry stores the arena index of its
// parent, so a representative is simply an entry whose parent is itself.
// Joins are weighted by member count and Find compresses the paths it
// walks, which keeps trees shallow without back-pointers.
//
// One value is reserved as the "not found" sentinel. It can never be added,
// and Find returns it for any element that is not present.
package disjoint

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrElementIsDefault is returned when adding the sentinel value.
var ErrElementIsDefault = errors.New("disjoint: element is the sentinel value")

type node[T cmp.Ordered] struct {
	value  T
	parent int
	// size is the member count of the group; kept on roots only, zero elsewhere
	size int
}

// Set is a disjoint-set forest. The zero value is not usable; call New.
type Set[T cmp.Ordered] struct {
	sentinel T
	index    map[T]int
	nodes    []node[T]
	groups   int
}

// New creates an empty set whose "not found" value is sentinel.
func New[T cmp.Ordered](sentinel T) *Set[T] {
	return &Set[T]{
		sentinel: sentinel,
		index:    make(map[T]int),
	}
}

// Sentinel returns the value reported by Find for absent elements.
func (s *Set[T]) Sentinel() T {
	return s.sentinel
}

// Add inserts e as a singleton group. Adding an element that is already
// present does nothing.
func (s *Set[T]) Add(e T) error {
	if e == s.sentinel {
		return ErrElementIsDefault
	}
	if _, ok := s.index[e]; ok {
		return nil
	}
	i := len(s.nodes)
	s.nodes = append(s.nodes, node[T]{value: e, parent: i, size: 1})
	s.index[e] = i
	s.groups++
	return nil
}

// Contains reports whether e has been added.
func (s *Set[T]) Contains(e T) bool {
	_, ok := s.index[e]
	return ok
}

// Len returns the number of elements.
func (s *Set[T]) Len() int {
	return len(s.nodes)
}

// Groups returns the number of distinct groups.
func (s *Set[T]) Groups() int {
	return s.groups
}

// Find returns the representative of e's group, or the sentinel if e is
// not present.
func (s *Set[T]) Find(e T) T {
	i, ok := s.index[e]
	if !ok {
		return s.sentinel
	}
	return s.nodes[s.root(i)].value
}

// Size returns the number of members in e's group, or 0 if e is absent.
func (s *Set[T]) Size(e T) int {
	i, ok := s.index[e]
	if !ok {
		return 0
	}
	return s.nodes[s.root(i)].size
}

// Join merges the groups of a and b. The smaller group is relinked under
// the larger group's root. Nothing happens if either element is absent or
// both are already in the same group.
func (s *Set[T]) Join(a, b T) {
	ia, ok := s.index[a]
	if !ok {
		return
	}
	ib, ok := s.index[b]
	if !ok {
		return
	}

	ra, rb := s.root(ia), s.root(ib)
	if ra == rb {
		return
	}
	if s.nodes[ra].size < s.nodes[rb].size {
		ra, rb = rb, ra
	}

	s.nodes[rb].parent = ra
	s.nodes[ra].size += s.nodes[rb].size
	s.nodes[rb].size = 0
	s.groups--
}

// root walks to the representative of i and points every entry on the
// way directly at it.
func (s *Set[T]) root(i int) int {
	r := i
	for s.nodes[r].parent != r {
		r = s.nodes[r].parent
	}
	for s.nodes[i].parent != r {
		next := s.nodes[i].parent
		s.nodes[i].parent = r
		i = next
	}
	return r
}

// Verify checks the internal consistency of the forest. It is a debugging
// aid and does not modify the set.
func (s *Set[T]) Verify() error {
	n := len(s.nodes)
	members := make(map[int]int)
	roots := 0

	for i, nd := range s.nodes {
		if nd.parent < 0 || nd.parent >= n {
			return fmt.Errorf("disjoint: element %v has parent index %d out of range", nd.value, nd.parent)
		}
		if s.index[nd.value] != i {
			return fmt.Errorf("disjoint: element %v is indexed at %d, stored at %d", nd.value, s.index[nd.value], i)
		}

		// Walk without compressing so Verify stays read-only.
		r, steps := i, 0
		for s.nodes[r].parent != r {
			r = s.nodes[r].parent
			steps++
			if steps > n {
				return fmt.Errorf("disjoint: cycle reached from element %v", nd.value)
			}
		}
		members[r]++

		if nd.parent == i {
			roots++
		} else if nd.size != 0 {
			return fmt.Errorf("disjoint: non-representative %v carries %d members", nd.value, nd.size)
		}
	}

	for r, count := range members {
		if s.nodes[r].size != count {
			return fmt.Errorf("disjoint: representative %v records %d members, found %d",
				s.nodes[r].value, s.nodes[r].size, count)
		}
	}
	if roots != s.groups {
		return fmt.Errorf("disjoint: %d representatives, expected %d groups", roots, s.groups)
	}
	return nil
}
