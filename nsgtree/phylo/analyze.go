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

package phylo

// Neighbor is the closest reference taxon of a query taxon.
type Neighbor struct {
	Query     string
	Reference string
	Distance  float64
}

// Neighbors is the result of the nearest neighbor search.
type Neighbors struct {
	Pairs []Neighbor // in leaf order

	Unpaired []string // queries in the tree without any reference leaf
	Missing  []string // queries absent from the tree, in partition order
}

// NearestNeighbors finds the reference leaf of the minimum patristic
// distance to every query leaf. Ties are broken by the number of edges
// on the path, then by leaf order.
func NearestNeighbors(t *Tree, p *Partition) *Neighbors {
	res := &Neighbors{}
	for _, l := range p.labels {
		if _, ok := t.index[l]; !ok {
			res.Missing = append(res.Missing, l)
		}
	}

	refs := make([]*Node, 0, len(t.leaves))
	for _, n := range t.leaves {
		if !p.IsQuery(n.Label) {
			refs = append(refs, n)
		}
	}

	var dist []float64
	var hops []int
	for _, q := range t.leaves {
		if !p.IsQuery(q.Label) {
			continue
		}
		if len(refs) == 0 {
			res.Unpaired = append(res.Unpaired, q.Label)
			continue
		}

		dist, hops = t.distancesFrom(q)
		best := refs[0]
		for _, r := range refs[1:] {
			if dist[r.id] < dist[best.id] || (dist[r.id] == dist[best.id] && hops[r.id] < hops[best.id]) {
				best = r
			}
		}
		res.Pairs = append(res.Pairs, Neighbor{Query: q.Label, Reference: best.Label, Distance: dist[best.id]})
	}
	return res
}

// Clade is a maximal subtree whose leaves are all queries.
type Clade struct {
	ID     int
	Node   *Node
	Leaves []string // in leaf order
}

// Clades is the result of the clade search.
type Clades struct {
	// clades of at least two leaves, in leaf order
	Clades []*Clade
	// queries not in any clade of at least two leaves, in leaf order
	Singletons []string
}

// MaximalClades finds maximal query-only clades. A node is query-only if
// all its leaves are queries, and a query-only node is maximal if it is
// the root or its parent is not query-only. Clades are disjoint.
func MaximalClades(t *Tree, p *Partition) *Clades {
	n := len(t.nodes)
	queryOnly := make([]bool, n)
	leaves := make([][]string, n)

	// post-order: reversed pre-order visits children before parents
	var node *Node
	for i := n - 1; i >= 0; i-- {
		node = t.nodes[i]
		if node.IsLeaf() {
			queryOnly[i] = p.IsQuery(node.Label)
			if queryOnly[i] {
				leaves[i] = []string{node.Label}
			}
			continue
		}

		all := true
		for _, c := range node.Children {
			if !queryOnly[c.id] {
				all = false
				break
			}
		}
		queryOnly[i] = all
		if all {
			size := 0
			for _, c := range node.Children {
				size += len(leaves[c.id])
			}
			list := make([]string, 0, size)
			for _, c := range node.Children {
				list = append(list, leaves[c.id]...)
				leaves[c.id] = nil
			}
			leaves[i] = list
		}
	}

	// pre-order of disjoint subtrees is their leaf order
	res := &Clades{}
	for _, node = range t.nodes {
		if !queryOnly[node.id] || (node.Parent != nil && queryOnly[node.Parent.id]) {
			continue
		}
		list := leaves[node.id]
		if len(list) == 1 {
			res.Singletons = append(res.Singletons, list[0])
			continue
		}
		res.Clades = append(res.Clades, &Clade{ID: len(res.Clades) + 1, Node: node, Leaves: list})
	}
	return res
}
