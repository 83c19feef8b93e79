// Copyright © 2023-2024 The NSGTree Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package phylo reads phylogenetic trees and finds nearest reference
// neighbors and maximal query-only clades of query taxa.
package phylo

import (
	"errors"
	"fmt"

	"github.com/NeLLi-team/nsgtree/nsgtree/errs"
)

// ErrTaxonNotFound means a leaf label is not in the tree.
var ErrTaxonNotFound = errors.New("taxon not found")

// Node is a node of a rooted tree.
type Node struct {
	Label    string  // taxon name of leaves, optional label of internal nodes
	Length   float64 // length of the branch to the parent
	Parent   *Node
	Children []*Node

	id int // pre-order index
}

// IsLeaf tells whether the node is a leaf.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is a rooted tree with uniquely labeled leaves.
type Tree struct {
	Root *Node

	nodes  []*Node // pre-order
	leaves []*Node // left to right
	index  map[string]int
}

func newTree(root *Node) (*Tree, error) {
	t := &Tree{Root: root, index: make(map[string]int, 128)}

	stack := []*Node{root}
	var n *Node
	for len(stack) > 0 {
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n.id = len(t.nodes)
		t.nodes = append(t.nodes, n)

		if n.IsLeaf() {
			if n.Label == "" {
				return nil, errs.Format("newick: unlabeled leaf")
			}
			if _, ok := t.index[n.Label]; ok {
				return nil, errs.Format("newick: duplicated leaf label: %s", n.Label)
			}
			t.index[n.Label] = len(t.leaves)
			t.leaves = append(t.leaves, n)
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return t, nil
}

// Leaves returns leaves from left to right.
// The returned slice must not be modified.
func (t *Tree) Leaves() []*Node { return t.leaves }

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int { return len(t.leaves) }

// Labels returns leaf labels from left to right.
func (t *Tree) Labels() []string {
	labels := make([]string, len(t.leaves))
	for i, n := range t.leaves {
		labels[i] = n.Label
	}
	return labels
}

// Leaf returns the leaf of a label.
func (t *Tree) Leaf(label string) (*Node, bool) {
	i, ok := t.index[label]
	if !ok {
		return nil, false
	}
	return t.leaves[i], true
}

// LeafIndex returns the position of a leaf in leaf order, or -1.
func (t *Tree) LeafIndex(label string) int {
	i, ok := t.index[label]
	if !ok {
		return -1
	}
	return i
}

// distancesFrom returns the path lengths and the numbers of edges from
// a node to all nodes, indexed by pre-order index.
func (t *Tree) distancesFrom(src *Node) ([]float64, []int) {
	dist := make([]float64, len(t.nodes))
	hops := make([]int, len(t.nodes))
	visited := make([]bool, len(t.nodes))
	visited[src.id] = true

	queue := []*Node{src}
	var n *Node
	for len(queue) > 0 {
		n = queue[0]
		queue = queue[1:]

		if p := n.Parent; p != nil && !visited[p.id] {
			visited[p.id] = true
			dist[p.id] = dist[n.id] + n.Length
			hops[p.id] = hops[n.id] + 1
			queue = append(queue, p)
		}
		for _, c := range n.Children {
			if !visited[c.id] {
				visited[c.id] = true
				dist[c.id] = dist[n.id] + c.Length
				hops[c.id] = hops[n.id] + 1
				queue = append(queue, c)
			}
		}
	}
	return dist, hops
}

// Distance returns the patristic distance between two leaves.
func (t *Tree) Distance(a, b string) (float64, error) {
	na, ok := t.Leaf(a)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTaxonNotFound, a)
	}
	nb, ok := t.Leaf(b)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTaxonNotFound, b)
	}
	dist, _ := t.distancesFrom(na)
	return dist[nb.id], nil
}
