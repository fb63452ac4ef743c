package resmgr

import (
	"cmp"
	"slices"
)

// ResourceOffset is a (resource ordinal, periodic slot offset) pair. The
// ordinal counts resources of one kind only (n-th SR or n-th CSI resource).
type ResourceOffset struct {
	Ordinal int
	Offset  int
}

func compareResourceOffset(a, b ResourceOffset) int {
	if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
		return c
	}
	return cmp.Compare(a.Offset, b.Offset)
}

// freeList holds unallocated pairs sorted by (ordinal, offset). Removal keeps
// the order and insertion goes back to the sorted position, so releasing a
// pair restores the list exactly.
type freeList []ResourceOffset

func (l *freeList) removeAt(i int) ResourceOffset {
	v := (*l)[i]
	*l = slices.Delete(*l, i, i+1)
	return v
}

// insert returns false if v is already free.
func (l *freeList) insert(v ResourceOffset) bool {
	i, found := slices.BinarySearchFunc(*l, v, compareResourceOffset)
	if found {
		return false
	}
	*l = slices.Insert(*l, i, v)
	return true
}
