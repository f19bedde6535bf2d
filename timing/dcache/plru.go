package dcache

// plruTree is the pseudo-LRU state for one set: a binary decision tree of
// numWays-1 bits packed into a uint32. Node 0 is the root and the children of
// node i are nodes 2i+1 and 2i+2. During victim selection a 0 bit steers the
// walk into the left subtree and a 1 bit into the right subtree; updating the
// tree for an accessed way flips the bits on the way's path so they point
// away from it.
//
// The tree is a pure function of the access history: it always identifies a
// victim, whether or not the selected way holds a valid line.
type plruTree uint32

// victim walks the tree from the root and returns the way it selects.
// Direct-mapped sets (numWays == 1) always return way 0.
func (t plruTree) victim(numWays int) int {
	way := 0
	node := 0
	for n := numWays; n > 1; n /= 2 {
		branch := int(t>>node) & 1
		way = way*2 + branch
		node = 2*node + 1 + branch
	}
	return way
}

// touch returns the tree updated for an access to the given way: every bit on
// the way's path is set to point at the opposite subtree.
func (t plruTree) touch(numWays, way int) plruTree {
	node := 0
	for n := numWays; n > 1; n /= 2 {
		branch := (way / (n / 2)) % 2
		if branch == 0 {
			t |= 1 << node
		} else {
			t &^= 1 << node
		}
		node = 2*node + 1 + branch
	}
	return t
}
