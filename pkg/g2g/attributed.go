package g2g

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// AttributedGraph holds the topology, node attributes and labels of one
// graph together with the derived sampling state: per-node level sets,
// level-set cardinalities, loss weights and one complete k-partite sampler
// per eligible node.
//
// Everything derived is computed once at construction from the fixed
// topology and is read-only afterwards.
type AttributedGraph struct {
	Graph      *Graph
	Attributes *mat.Dense // n x D, one feature row per node
	Labels     []int      // used only by the evaluation probe

	LevelSets   [][][]int
	LevelCounts [][]int   // LevelCounts[i][d] = |LevelSets[i][d]|
	LossWeights []float64 // number of ordered (closer, farther) pairs per node

	neighborhoods []*CompleteKPartite // nil for ineligible nodes
	eligible      []int
}

// NewAttributedGraph builds the sampling state for a graph with attributes.
// maxHops bounds the level-set depth (<= 0 means unlimited).
func NewAttributedGraph(g *Graph, attributes *mat.Dense, labels []int, maxHops int) (*AttributedGraph, error) {
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	n := g.NumNodes
	if attributes != nil {
		rows, _ := attributes.Dims()
		if rows != n {
			return nil, fmt.Errorf("attribute matrix has %d rows, graph has %d nodes", rows, n)
		}
	}
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("label vector has %d entries, graph has %d nodes", len(labels), n)
	}

	ag := &AttributedGraph{
		Graph:         g,
		Attributes:    attributes,
		Labels:        labels,
		LevelSets:     ComputeLevelSets(g, maxHops),
		LevelCounts:   make([][]int, n),
		LossWeights:   make([]float64, n),
		neighborhoods: make([]*CompleteKPartite, n),
	}

	for i := 0; i < n; i++ {
		shells := ag.LevelSets[i]

		counts := make([]int, len(shells))
		for d, shell := range shells {
			counts[d] = len(shell)
		}
		ag.LevelCounts[i] = counts

		// The weight of node i in the loss is the number of ordered
		// (closer, farther) pairs reachable from it: it rescales the
		// Monte-Carlo estimate over sampled pairs to the full population.
		sum := 0
		sumSq := 0
		for _, c := range counts[1:] {
			sum += c
			sumSq += c * c
		}
		ag.LossWeights[i] = 0.5 * float64(sum*sum-sumSq)

		if len(shells) >= 3 {
			sampler, err := NewCompleteKPartite(shells[1:])
			if err != nil {
				return nil, fmt.Errorf("building sampler for node %d: %w", i, err)
			}
			ag.neighborhoods[i] = sampler
			ag.eligible = append(ag.eligible, i)
		}
	}

	return ag, nil
}

// NumNodes returns the number of nodes in the graph
func (ag *AttributedGraph) NumNodes() int {
	return ag.Graph.NumNodes
}

// EligibleNodes returns the nodes that can contribute to the loss, in
// ascending order. A node with only first-degree neighbors has no valid
// closer/farther comparison and is excluded.
func (ag *AttributedGraph) EligibleNodes() []int {
	return ag.eligible
}

// SampleTwoNeighbors samples size (closer, farther) node pairs from the
// neighborhood of the given node. The first node of each pair is always
// strictly closer to the anchor than the second.
func (ag *AttributedGraph) SampleTwoNeighbors(node, size int, rng *rand.Rand) ([]int, []int, error) {
	if node < 0 || node >= ag.Graph.NumNodes {
		return nil, nil, fmt.Errorf("node %d out of range", node)
	}
	if ag.neighborhoods[node] == nil {
		return nil, nil, fmt.Errorf("insufficient neighborhood depth: node %d has only one layer of neighbors", node)
	}

	closer, farther := ag.neighborhoods[node].SampleEdges(size, rng)
	return closer, farther, nil
}
