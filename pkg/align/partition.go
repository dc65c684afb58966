package align

import "image"

// Partition is a disjoint-set forest over layer indices 0..n-1 in which every
// index carries an accumulated translation into its set's reference frame.
//
// Roots keep an explicit member list so a whole set can be translated eagerly.
// Union is by size; Find uses path halving.
type Partition struct {
	parent  []int
	size    []int
	members [][]int // valid for roots only
	shift   []image.Point
	sets    int
}

// NewPartition creates n singleton sets, each with a zero translation.
func NewPartition(n int) *Partition {
	p := &Partition{
		parent:  make([]int, n),
		size:    make([]int, n),
		members: make([][]int, n),
		shift:   make([]image.Point, n),
		sets:    n,
	}
	for i := range n {
		p.parent[i] = i
		p.size[i] = 1
		p.members[i] = []int{i}
	}
	return p
}

// Len returns the number of indices.
func (p *Partition) Len() int { return len(p.parent) }

// Sets returns the current number of disjoint sets.
func (p *Partition) Sets() int { return p.sets }

// Find returns the root of i's set.
func (p *Partition) Find(i int) int {
	for p.parent[i] != i {
		p.parent[i] = p.parent[p.parent[i]]
		i = p.parent[i]
	}
	return i
}

// Same reports whether i and j are in the same set.
func (p *Partition) Same(i, j int) bool {
	return p.Find(i) == p.Find(j)
}

// Members returns the indices in i's set in insertion order.
// The slice is owned by the partition.
func (p *Partition) Members(i int) []int {
	return p.members[p.Find(i)]
}

// Translation returns the accumulated translation of index i.
func (p *Partition) Translation(i int) image.Point {
	return p.shift[i]
}

// Translate adds d to the translation of every member of i's set.
func (p *Partition) Translate(i int, d image.Point) {
	for _, m := range p.Members(i) {
		p.shift[m] = p.shift[m].Add(d)
	}
}

// Union merges the sets of i and j and returns the new root. Translations are
// left untouched. Merging a set with itself is a no-op.
func (p *Partition) Union(i, j int) int {
	ri, rj := p.Find(i), p.Find(j)
	if ri == rj {
		return ri
	}
	if p.size[ri] < p.size[rj] {
		ri, rj = rj, ri
	}
	p.parent[rj] = ri
	p.size[ri] += p.size[rj]
	p.members[ri] = append(p.members[ri], p.members[rj]...)
	p.members[rj] = nil
	p.sets--
	return ri
}
