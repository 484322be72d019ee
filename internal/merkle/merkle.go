// Package merkle implements the per-block transaction commitment: an
// incremental, size-balanced binary hash tree with domain-separated
// leaf/interior labels so an attacker cannot replay an interior node's
// children as a forged two-leaf tree (second-preimage resistance).
package merkle

import "github.com/Roasted12/toycoin-go/internal/hashing"

const (
	leafTag     = 0x00
	interiorTag = 0x01
)

// Tree is a node in the Merkle hash tree. Each parent exclusively owns
// its children; there are no back-pointers, so validation is purely
// bottom-up.
type Tree struct {
	Label []byte
	Left  *Tree
	Right *Tree
	Size  int
}

// FromSingleton builds a one-leaf tree: a spine root whose only child is
// the leaf node, with the root's label recomputed as 0x01‖SHA-512(leaf label).
func FromSingleton(leaf hashing.Digest) *Tree {
	leafNode := &Tree{Label: leafLabel(leaf), Size: 1}
	root := &Tree{Left: leafNode}
	root.update()
	return root
}

// FromList builds a tree from one or more leaves, inserting them in
// order. An empty input returns nil (the empty-tree sentinel).
func FromList(leaves []hashing.Digest) *Tree {
	if len(leaves) == 0 {
		return nil
	}
	t := FromSingleton(leaves[0])
	for _, leaf := range leaves[1:] {
		t.Insert(leaf)
	}
	return t
}

// Insert descends the right spine of the tree, attaching leaf according
// to the tree's size-balancing rules:
//  1. no left child — install leaf as left.
//  2. no right child — install leaf as right.
//  3. left and right sizes are equal — rotate: push the current
//     children down into a fresh interior left child, and attach a new
//     singleton as the right child.
//  4. otherwise — recurse into the right child.
//
// Every recursive step re-labels and re-sizes the node it returns through.
func (t *Tree) Insert(leaf hashing.Digest) {
	switch {
	case t.Left == nil:
		t.Left = &Tree{Label: leafLabel(leaf), Size: 1}
	case t.Right == nil:
		t.Right = &Tree{Label: leafLabel(leaf), Size: 1}
	case t.Left.Size == t.Right.Size:
		oldLeft, oldRight := t.Left, t.Right
		t.Left = &Tree{Label: t.Label, Left: oldLeft, Right: oldRight, Size: oldLeft.Size + oldRight.Size + 1}
		t.Right = FromSingleton(leaf)
	default:
		t.Right.Insert(leaf)
	}
	t.update()
}

// update recomputes this node's label and size from its children.
func (t *Tree) update() {
	if t.Right == nil {
		t.Label = interiorLabel(t.Left.Label)
		t.Size = 1 + t.Left.Size
		return
	}
	t.Label = interiorLabel(t.Left.Label, t.Right.Label)
	t.Size = 1 + t.Left.Size + t.Right.Size
}

func leafLabel(leaf hashing.Digest) []byte {
	label := make([]byte, 0, 1+hashing.Size)
	label = append(label, leafTag)
	label = append(label, leaf.Bytes()...)
	return label
}

func interiorLabel(childLabels ...[]byte) []byte {
	var concat []byte
	for _, l := range childLabels {
		concat = append(concat, l...)
	}
	h := hashing.Sum(concat)
	label := make([]byte, 0, 1+hashing.Size)
	label = append(label, interiorTag)
	label = append(label, h.Bytes()...)
	return label
}

// IsLeaf reports whether t has no children.
func (t *Tree) IsLeaf() bool {
	return t.Left == nil && t.Right == nil
}

// Valid checks, bottom-up, that every leaf label begins with the leaf
// tag and is longer than one byte, and every interior label equals
// 0x01‖SHA-512(children's labels concatenated).
func Valid(t *Tree) bool {
	if t == nil {
		return false
	}
	if t.IsLeaf() {
		return len(t.Label) > 1 && t.Label[0] == leafTag
	}
	if t.Left == nil {
		return false
	}
	var want []byte
	if t.Right == nil {
		want = interiorLabel(t.Left.Label)
		if string(t.Label) != string(want) {
			return false
		}
		return Valid(t.Left)
	}
	want = interiorLabel(t.Left.Label, t.Right.Label)
	if string(t.Label) != string(want) {
		return false
	}
	return Valid(t.Left) && Valid(t.Right)
}

// HashTriple is one step of a path from the tree root to a leaf: the
// node's own label, and its left/right children's labels (nil if absent).
type HashTriple struct {
	Label      []byte
	LeftLabel  []byte
	RightLabel []byte
}

// Contains performs a depth-first search for a leaf whose label equals
// 0x00‖leaf, returning the path of triples from root to that leaf, or
// an empty path if the leaf is absent.
func Contains(t *Tree, leaf hashing.Digest) []HashTriple {
	if t == nil {
		return nil
	}
	target := leafLabel(leaf)
	var path []HashTriple
	if search(t, target, &path) {
		return path
	}
	return nil
}

func search(t *Tree, target []byte, path *[]HashTriple) bool {
	*path = append(*path, hashTriple(t))
	if string(t.Label) == string(target) {
		return true
	}
	if t.IsLeaf() {
		*path = (*path)[:len(*path)-1]
		return false
	}
	for _, child := range []*Tree{t.Left, t.Right} {
		if child == nil {
			continue
		}
		if search(child, target, path) {
			return true
		}
	}
	*path = (*path)[:len(*path)-1]
	return false
}

func hashTriple(t *Tree) HashTriple {
	ht := HashTriple{Label: t.Label}
	if t.Left != nil {
		ht.LeftLabel = t.Left.Label
	}
	if t.Right != nil {
		ht.RightLabel = t.Right.Label
	}
	return ht
}
