/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package topology models a device coupling map as an undirected graph on
// physical qubit indices, with BFS shortest paths and a cached all-pairs
// distance matrix.
package topology

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// Unreachable is the distance reported for disconnected qubit pairs.
const Unreachable = 1 << 30

type Graph struct {
	qubits int
	edges  [][2]int
	adj    map[int][]int

	distOnce sync.Once
	dist     [][]int
}

// New builds a graph over n qubits from an undirected edge list. Edges
// referencing qubits outside [0,n) are rejected.
func New(n int, edges [][2]int) (*Graph, error) {
	if n <= 0 {
		return nil, fmt.Errorf("topology qubit count must be positive, got %d", n)
	}
	g := &Graph{qubits: n, adj: map[int][]int{}}
	for _, e := range edges {
		if e[0] < 0 || e[0] >= n || e[1] < 0 || e[1] >= n || e[0] == e[1] {
			return nil, fmt.Errorf("invalid coupling edge %v for %d qubits", e, n)
		}
		if lo.Contains(g.adj[e[0]], e[1]) {
			continue
		}
		g.edges = append(g.edges, e)
		g.adj[e[0]] = append(g.adj[e[0]], e[1])
		g.adj[e[1]] = append(g.adj[e[1]], e[0])
	}
	return g, nil
}

// Linear returns the path topology 0-1-2-...-(n-1).
func Linear(n int) *Graph {
	edges := make([][2]int, 0, n-1)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	g, _ := New(n, edges)
	return g
}

// Grid returns a rows x cols lattice topology.
func Grid(rows, cols int) *Graph {
	var edges [][2]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			q := r*cols + c
			if c+1 < cols {
				edges = append(edges, [2]int{q, q + 1})
			}
			if r+1 < rows {
				edges = append(edges, [2]int{q, q + cols})
			}
		}
	}
	g, _ := New(rows*cols, edges)
	return g
}

// FullyConnected returns the complete graph, used for simulators.
func FullyConnected(n int) *Graph {
	var edges [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, [2]int{i, j})
		}
	}
	g, _ := New(n, edges)
	return g
}

func (g *Graph) Qubits() int     { return g.qubits }
func (g *Graph) Edges() [][2]int { return append([][2]int(nil), g.edges...) }

// Neighbors returns the qubits directly coupled to q.
func (g *Graph) Neighbors(q int) []int {
	return append([]int(nil), g.adj[q]...)
}

// IsConnected reports whether a and b share a coupling edge.
func (g *Graph) IsConnected(a, b int) bool {
	return lo.Contains(g.adj[a], b)
}

// ShortestPath returns a minimal-hop path from a to b via BFS, inclusive of
// both endpoints, or nil when unreachable.
func (g *Graph) ShortestPath(a, b int) []int {
	if a == b {
		return []int{a}
	}
	prev := map[int]int{a: a}
	queue := []int{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.adj[cur] {
			if _, seen := prev[nb]; seen {
				continue
			}
			prev[nb] = cur
			if nb == b {
				path := []int{b}
				for at := b; at != a; {
					at = prev[at]
					path = append([]int{at}, path...)
				}
				return path
			}
			queue = append(queue, nb)
		}
	}
	return nil
}

// Distance returns the coupling distance between a and b using the cached
// all-pairs matrix, or Unreachable for disconnected pairs.
func (g *Graph) Distance(a, b int) int {
	g.distOnce.Do(g.computeDistances)
	return g.dist[a][b]
}

// computeDistances runs Floyd-Warshall once over the edge list.
func (g *Graph) computeDistances() {
	n := g.qubits
	d := make([][]int, n)
	for i := range d {
		d[i] = make([]int, n)
		for j := range d[i] {
			if i != j {
				d[i][j] = Unreachable
			}
		}
	}
	for _, e := range g.edges {
		d[e[0]][e[1]] = 1
		d[e[1]][e[0]] = 1
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if d[i][k] == Unreachable {
				continue
			}
			for j := 0; j < n; j++ {
				if d[k][j] == Unreachable {
					continue
				}
				if via := d[i][k] + d[k][j]; via < d[i][j] {
					d[i][j] = via
				}
			}
		}
	}
	g.dist = d
}
