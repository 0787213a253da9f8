package g2g

// unreachable marks node pairs with no path (or a path longer than maxHops)
const unreachable = -1

// ComputeLevelSets enumerates the level sets of every node's neighborhood.
//
// For node i, shell 0 is {i}, shell d holds the nodes at exact hop distance d,
// and the final shell collects every node that is unreachable from i or
// farther than maxHops away. If every other node is within range, no overflow
// shell is appended. maxHops <= 0 means unlimited depth.
//
// Nodes from other connected components land in the same overflow shell as
// reachable-but-far nodes. This pushes disconnected nodes apart during
// training and is kept as a deliberate simplification.
func ComputeLevelSets(g *Graph, maxHops int) [][][]int {
	n := g.NumNodes
	sets := make([][][]int, n)
	if n == 0 {
		return sets
	}

	dist := make([]int, n)
	queue := make([]int, 0, n)

	for i := 0; i < n; i++ {
		bfsDistances(g, i, maxHops, dist, &queue)

		maxFinite := 0
		overflow := 0
		for j := 0; j < n; j++ {
			if dist[j] == unreachable {
				overflow++
			} else if dist[j] > maxFinite {
				maxFinite = dist[j]
			}
		}

		numShells := maxFinite + 1
		if overflow > 0 {
			numShells++
		}

		shells := make([][]int, numShells)
		for j := 0; j < n; j++ {
			d := dist[j]
			if d == unreachable {
				d = numShells - 1
			}
			shells[d] = append(shells[d], j)
		}

		sets[i] = shells
	}

	return sets
}

// bfsDistances fills dist with hop distances from source, folding distances
// beyond maxHops into the unreachable sentinel. The queue slice is reused
// across calls to avoid reallocation.
func bfsDistances(g *Graph, source, maxHops int, dist []int, queue *[]int) {
	for j := range dist {
		dist[j] = unreachable
	}

	q := (*queue)[:0]
	dist[source] = 0
	q = append(q, source)

	for len(q) > 0 {
		u := q[0]
		q = q[1:]

		for _, v := range g.Adjacency[u] {
			if dist[v] != unreachable {
				continue
			}
			dist[v] = dist[u] + 1
			q = append(q, v)
		}
	}

	if maxHops > 0 {
		for j := range dist {
			if dist[j] > maxHops {
				dist[j] = unreachable
			}
		}
	}

	*queue = q
}
