package encoder

import "sort"

// FailureMask is the set of sensor indices excluded from a reconstruction.
// The zero value is an empty mask. Reconstruct never modifies a mask.
type FailureMask struct {
	failed map[int]struct{}
}

// NewFailureMask returns a mask with the given indices marked failed.
func NewFailureMask(indices ...int) FailureMask {
	m := FailureMask{}
	for _, i := range indices {
		m.Add(i)
	}
	return m
}

// Add marks sensor i as failed.
func (m *FailureMask) Add(i int) {
	if m.failed == nil {
		m.failed = make(map[int]struct{})
	}
	m.failed[i] = struct{}{}
}

// Contains reports whether sensor i is excluded.
func (m FailureMask) Contains(i int) bool {
	_, ok := m.failed[i]
	return ok
}

// Len returns the number of excluded sensors.
func (m FailureMask) Len() int { return len(m.failed) }

// Indices returns the excluded sensor indices in ascending order.
func (m FailureMask) Indices() []int {
	out := make([]int, 0, len(m.failed))
	for i := range m.failed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
