package feed

// Change describes how a live result set moved from one snapshot to the next.
// Deletions index the previous snapshot; Insertions and Modifications index
// Results. The first Change of a subscription has Initial set and carries the
// full snapshot with no index lists.
type Change[T any] struct {
	Initial       bool
	Results       []T
	Deletions     []int
	Insertions    []int
	Modifications []int
	// Err is set when the snapshot could not be read; Results then repeats
	// the last good snapshot.
	Err error
}

// Empty reports whether nothing changed.
func (c Change[T]) Empty() bool {
	return !c.Initial && c.Err == nil &&
		len(c.Deletions) == 0 && len(c.Insertions) == 0 && len(c.Modifications) == 0
}

// Touched returns Results rows that were inserted or modified, in index order.
func (c Change[T]) Touched() []T {
	out := make([]T, 0, len(c.Insertions)+len(c.Modifications))
	idx := mergeSorted(c.Insertions, c.Modifications)
	for _, i := range idx {
		if i >= 0 && i < len(c.Results) {
			out = append(out, c.Results[i])
		}
	}
	return out
}

// Diff computes the change from prev to next, matching rows by key and
// reporting a modification when equal says the row differs.
func Diff[T any, K comparable](prev, next []T, key func(T) K, equal func(a, b T) bool) Change[T] {
	ch := Change[T]{Results: next}

	prevIdx := make(map[K]int, len(prev))
	for i, v := range prev {
		prevIdx[key(v)] = i
	}
	nextKeys := make(map[K]struct{}, len(next))

	for i, v := range next {
		k := key(v)
		nextKeys[k] = struct{}{}
		j, ok := prevIdx[k]
		switch {
		case !ok:
			ch.Insertions = append(ch.Insertions, i)
		case !equal(prev[j], v):
			ch.Modifications = append(ch.Modifications, i)
		}
	}
	for i, v := range prev {
		if _, ok := nextKeys[key(v)]; !ok {
			ch.Deletions = append(ch.Deletions, i)
		}
	}
	return ch
}

func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
