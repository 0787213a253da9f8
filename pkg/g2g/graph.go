package g2g

import (
	"fmt"
)

// Graph represents an unweighted undirected graph using simple adjacency arrays
type Graph struct {
	NumNodes  int     `json:"num_nodes"`
	Adjacency [][]int `json:"-"` // adjacency[i] = list of neighbors of node i
	NumEdges  int     `json:"num_edges"`
}

// NewGraph creates a new graph with n nodes and no edges
func NewGraph(numNodes int) *Graph {
	return &Graph{
		NumNodes:  numNodes,
		Adjacency: make([][]int, numNodes),
	}
}

// AddEdge adds an undirected edge between two nodes. Duplicate edges and
// self-loops are ignored so the adjacency stays binary.
func (g *Graph) AddEdge(u, v int) error {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return fmt.Errorf("node index out of range: u=%d, v=%d, numNodes=%d", u, v, g.NumNodes)
	}

	if u == v {
		return nil
	}

	if g.HasEdge(u, v) {
		return nil
	}

	g.Adjacency[u] = append(g.Adjacency[u], v)
	g.Adjacency[v] = append(g.Adjacency[v], u)
	g.NumEdges++
	return nil
}

// HasEdge reports whether an edge between u and v exists
func (g *Graph) HasEdge(u, v int) bool {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return false
	}

	for _, neighbor := range g.Adjacency[u] {
		if neighbor == v {
			return true
		}
	}
	return false
}

// Neighbors returns the neighbor list of a node
func (g *Graph) Neighbors(node int) []int {
	if node < 0 || node >= g.NumNodes {
		return nil
	}
	return g.Adjacency[node]
}

// Degree returns the number of neighbors of a node
func (g *Graph) Degree(node int) int {
	if node < 0 || node >= g.NumNodes {
		return 0
	}
	return len(g.Adjacency[node])
}

// Validate checks graph consistency
func (g *Graph) Validate() error {
	if g.NumNodes < 0 {
		return fmt.Errorf("graph must have non-negative number of nodes")
	}

	for i := 0; i < g.NumNodes; i++ {
		seen := make(map[int]bool, len(g.Adjacency[i]))
		for _, neighbor := range g.Adjacency[i] {
			if neighbor < 0 || neighbor >= g.NumNodes {
				return fmt.Errorf("invalid neighbor %d for node %d", neighbor, i)
			}
			if neighbor == i {
				return fmt.Errorf("self-loop on node %d", i)
			}
			if seen[neighbor] {
				return fmt.Errorf("duplicate edge %d-%d", i, neighbor)
			}
			seen[neighbor] = true

			if !g.HasEdge(neighbor, i) {
				return fmt.Errorf("asymmetric edge %d-%d", i, neighbor)
			}
		}
	}

	return nil
}
