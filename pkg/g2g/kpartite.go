package g2g

import (
	"fmt"
	"math/rand"
	"sort"
)

// CompleteKPartite represents the complete k-partite graph over a node's
// neighborhood level sets: every pair of nodes from different partitions is
// connected, no pair within the same partition is. It supports sampling
// edges uniformly from the full cross-partition edge population in one step.
//
// All derived state is precomputed at construction and immutable afterwards,
// so a single instance is safe to share read-only across sampling workers.
type CompleteKPartite struct {
	nodes          []int     // flattened node IDs across partitions
	partitionSize  []int     // partitionSize[i] = size of node i's partition
	partitionStart []int     // partitionStart[i] = offset of node i's partition in nodes
	outDegree      []int     // outDegree[i] = total - partitionSize[i]
	cumWeight      []float64 // cumulative out-degree weights for origin sampling
	total          int
}

// NewCompleteKPartite builds the sampler from ordered node partitions.
// At least two partitions are required and none may be empty.
func NewCompleteKPartite(partitions [][]int) (*CompleteKPartite, error) {
	if len(partitions) < 2 {
		return nil, fmt.Errorf("complete k-partite graph requires at least 2 partitions, got %d", len(partitions))
	}

	total := 0
	for p, partition := range partitions {
		if len(partition) == 0 {
			return nil, fmt.Errorf("partition %d is empty", p)
		}
		total += len(partition)
	}

	g := &CompleteKPartite{
		nodes:          make([]int, 0, total),
		partitionSize:  make([]int, 0, total),
		partitionStart: make([]int, 0, total),
		outDegree:      make([]int, 0, total),
		cumWeight:      make([]float64, 0, total),
		total:          total,
	}

	// Each node has an edge to every node outside its own partition. Sampling
	// the originating endpoint proportionally to its out-degree biases the
	// draw toward smaller partitions, which is exactly what uniform sampling
	// over the edge population requires.
	start := 0
	cum := 0.0
	for _, partition := range partitions {
		size := len(partition)
		for _, node := range partition {
			g.nodes = append(g.nodes, node)
			g.partitionSize = append(g.partitionSize, size)
			g.partitionStart = append(g.partitionStart, start)
			g.outDegree = append(g.outDegree, total-size)

			cum += float64(total - size)
			g.cumWeight = append(g.cumWeight, cum)
		}
		start += size
	}

	return g, nil
}

// Total returns the number of nodes across all partitions
func (g *CompleteKPartite) Total() int {
	return g.total
}

// SampleEdges samples size edges (closer, farther) uniformly and
// independently from the cross-partition edge population. The first node of
// every returned pair belongs to a lower-indexed partition than the second.
func (g *CompleteKPartite) SampleEdges(size int, rng *rand.Rand) ([]int, []int) {
	closer := make([]int, size)
	farther := make([]int, size)

	totalWeight := g.cumWeight[len(g.cumWeight)-1]

	for s := 0; s < size; s++ {
		// Draw the originating endpoint proportionally to out-degree.
		j := sort.SearchFloat64s(g.cumWeight, rng.Float64()*totalWeight)
		if j >= g.total {
			j = g.total - 1
		}

		// Draw a uniform rank over the nodes outside j's partition. Ranks at
		// or beyond the partition's start skip over the whole partition block.
		k := rng.Intn(g.outDegree[j])
		if k >= g.partitionStart[j] {
			k += g.partitionSize[j]
		}

		// Partitions are laid out in shell order, so comparing flattened
		// indices compares partition ranks.
		if k < j {
			j, k = k, j
		}

		closer[s] = g.nodes[j]
		farther[s] = g.nodes[k]
	}

	return closer, farther
}
